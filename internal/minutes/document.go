package minutes

import (
	"strings"
	"time"
)

var rule = strings.Repeat("=", 60)

// Render builds the final minutes document: title and date, the executive
// summary, then the chronological log.
func Render(title string, date time.Time, summary, log string) string {
	var b strings.Builder
	b.WriteString("# 📋 MINUTES: " + title + "\n")
	b.WriteString("**Date:** " + date.Format("2006-01-02 15:04") + "\n\n")

	b.WriteString(rule + "\n")
	b.WriteString("# 🎯 EXECUTIVE SUMMARY\n")
	b.WriteString(rule + "\n\n")
	b.WriteString(summary)
	b.WriteString("\n\n")

	b.WriteString(rule + "\n")
	b.WriteString("# 📝 DETAILED LOG (chronological)\n")
	b.WriteString(rule + "\n")
	b.WriteString(log)
	return b.String()
}
