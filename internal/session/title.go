package session

import "strings"

const maxTitleLen = 80

// TitleFromPrompt derives a session title from the first user prompt:
// first non-empty line, whitespace collapsed, truncated with an ellipsis.
func TitleFromPrompt(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > maxTitleLen {
			return string(runes[:maxTitleLen-1]) + "…"
		}
		return line
	}
	return ""
}
