package session

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateSessionID builds a human-readable session ID of the form
// {SanitizedAgentName}_{YYMMDD}_{HHMMSS}.
func GenerateSessionID(agentName string, now time.Time) string {
	name := SanitizeAgentName(agentName)
	if name == "" {
		name = "agent"
	}
	return name + "_" + now.Format("060102_150405")
}

// SanitizeAgentName strips whitespace and path-hostile characters from an
// agent name so it can be embedded in a directory name.
func SanitizeAgentName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ', r == '\t', r == '\n':
			// stripped
		case r == '/', r == '\\', r == ':':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NewID generates an opaque unique ID for messages, parts and tool calls.
func NewID() string {
	return ulid.Make().String()
}
