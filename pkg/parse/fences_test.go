package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"query\": \"SELECT 1\"}\n```", "{\"query\": \"SELECT 1\"}"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"python fence", "```python\nx = 1\n```", "x = 1"},
		{"indented fence", "  ```js\nlet a = 1\n  ```", "let a = 1"},
		{"no fence", "{\"query\": \"SELECT 1\"}", "{\"query\": \"SELECT 1\"}"},
		{"inline backticks kept", "a ```b c``` d", "a ```b c``` d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripFences(tt.in)
			require.Equal(t, tt.want, got)
			for _, line := range strings.Split(got, "\n") {
				require.False(t, IsFenceMarker(line), "fence marker %q survived", line)
			}
		})
	}
}

func TestExtractPayloadPrefersFencedBlock(t *testing.T) {
	in := "Here is the query you asked for:\n\n```json\n{\"query\": \"SELECT 1\", \"error\": null}\n```\n\nHope it helps."
	require.Equal(t, "{\"query\": \"SELECT 1\", \"error\": null}", strings.TrimSpace(ExtractPayload(in, "json")))
}

func TestExtractPayloadFallsBackToStripping(t *testing.T) {
	in := "```json\n{\"query\": \"SELECT 1\"}"
	require.Equal(t, "{\"query\": \"SELECT 1\"}", ExtractPayload(in, "json"))
}

func TestExtractCodeBlocksFiltersLanguages(t *testing.T) {
	in := "```sql\nSELECT 1\n```\n\n```javascript\nfunction generate_fig() {}\n```\n"
	blocks, err := ExtractCodeBlocks(in, "js", "javascript")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, "javascript", blocks[0].Language)
	require.Equal(t, "function generate_fig() {}\n", blocks[0].Code)

	all, err := ExtractCodeBlocks(in)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "sql", all[0].Language)
}
