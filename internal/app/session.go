package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/internal/minutes"
)

// SessionInfo holds metadata about the running capture session.
type SessionInfo struct {
	// SessionID keys everything the session stores.
	SessionID string

	// Title is the meeting name known at start, possibly empty.
	Title string

	// StartedAt is when the session was created.
	StartedAt time.Time

	// Source names the frame source kind ("replay", "websocket", ...).
	Source string
}

// newSessionID derives a readable, sortable session key from the meeting
// title and start time.
func newSessionID(title string, now time.Time) string {
	name := sanitizeName(title)
	if name == "" {
		name = "meeting"
	}
	return fmt.Sprintf("session-%s-%s", name, now.UTC().Format("20060102T150405Z"))
}

// sanitizeName lowercases the file-safe form of name and joins words with
// hyphens.
func sanitizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	name = strings.ToLower(minutes.SanitizeName(name))
	return strings.ReplaceAll(name, "_", "-")
}
