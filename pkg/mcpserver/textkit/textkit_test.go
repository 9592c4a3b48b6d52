package textkit

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	server := NewServer()
	tool := server.GetTool(name)
	require.NotNil(t, tool, "%s tool should exist", name)

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	result, err := tool.Handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content should be text")
	return content.Text
}

func TestWordcount(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "single line", text: "three short words", expected: "1 3 17"},
		{name: "multi line", text: "a\nb c\n", expected: "3 3 6"},
		{name: "empty", text: "", expected: "0 0 0"},
		{name: "unicode runes", text: "héllo wörld", expected: "1 2 11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, "wordcount", map[string]any{"text": tt.text})
			assert.False(t, result.IsError)
			assert.Equal(t, tt.expected, textOf(t, result))
		})
	}
}

func TestReverse(t *testing.T) {
	result := callTool(t, "reverse", map[string]any{"text": "wolo"})
	assert.False(t, result.IsError)
	assert.Equal(t, "olow", textOf(t, result))

	result = callTool(t, "reverse", map[string]any{"text": "héllo"})
	assert.Equal(t, "olléh", textOf(t, result))
}

func TestMissingArgument(t *testing.T) {
	result := callTool(t, "wordcount", map[string]any{})
	assert.True(t, result.IsError)
}

func TestWrongArgumentType(t *testing.T) {
	result := callTool(t, "reverse", map[string]any{"text": 42})
	assert.True(t, result.IsError)
}
