// Package parse turns raw model output into payloads: it strips markdown fence
// markers and extracts fenced code blocks.
package parse

import (
	"strings"
)

const fence = "```"

// IsFenceMarker reports whether line is an opening or closing fence such as
// "```", "```json" or "```python".
func IsFenceMarker(line string) bool {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, fence) {
		return false
	}
	info := strings.TrimLeft(l, "`")
	return !strings.ContainsAny(info, " \t`")
}

// StripFences drops every fence marker line and keeps all other lines as is.
func StripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsFenceMarker(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ExtractPayload returns the content of the first fenced block in one of the
// given languages. Responses without such a block fall back to StripFences,
// which also covers unterminated fences.
func ExtractPayload(s string, languages ...string) string {
	blocks, err := ExtractCodeBlocks(s, languages...)
	if err == nil && len(blocks) > 0 && strings.TrimSpace(blocks[0].Code) != "" {
		return blocks[0].Code
	}
	return strings.TrimSpace(StripFences(s))
}
