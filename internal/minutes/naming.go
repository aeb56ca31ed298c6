package minutes

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var windowSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\|\s*Microsoft Teams.*$`),
	regexp.MustCompile(`(?i)\s*-\s*Microsoft Teams.*$`),
	regexp.MustCompile(`(?i)^Meeting in\s*`),
	regexp.MustCompile(`(?i)^Reunión en\s*`),
}

// MeetingNameFromWindow extracts the meeting name from a meeting client's
// window title, e.g. "Meeting in Sprint review | Microsoft Teams" yields
// "Sprint review". It returns "" when nothing is left.
func MeetingNameFromWindow(title string) string {
	for _, re := range windowSuffixes {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

const maxNameRunes = 50

// SanitizeName turns a meeting name into a token safe for file and document
// names: characters invalid in file names are removed, the result is capped
// at 50 runes and whitespace runs become underscores. An empty result
// becomes "meeting".
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		return "meeting"
	}
	return name
}

// CleanForDisplay strips the markdown noise models add to minutes so they
// read well in a plain text view.
func CleanForDisplay(text string) string {
	r := strings.NewReplacer("### ", "", "**", "", "labels:", "")
	return strings.TrimSpace(r.Replace(text))
}

// cleanSuggestedName trims whitespace and surrounding quotes from a model
// reply.
func cleanSuggestedName(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
