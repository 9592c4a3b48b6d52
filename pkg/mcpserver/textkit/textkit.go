// Package textkit provides a small MCP server with text utilities. It
// exists to exercise the MCP bridge end to end without external servers.
package textkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates the textkit MCP server.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"wolo-textkit",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	wordcount := mcp.NewTool("wordcount",
		mcp.WithDescription("Counts lines, words and characters in a text"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to measure"),
		),
	)
	s.AddTool(wordcount, wordcountHandler)

	reverse := mcp.NewTool("reverse",
		mcp.WithDescription("Reverses a text rune by rune"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to reverse"),
		),
	)
	s.AddTool(reverse, reverseHandler)

	return s
}

func textArg(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args := request.GetArguments()
	raw, ok := args["text"]
	if !ok {
		return "", mcp.NewToolResultError("text argument is required")
	}
	text, ok := raw.(string)
	if !ok {
		return "", mcp.NewToolResultError(fmt.Sprintf("text must be a string, got %T", raw))
	}
	return text, nil
}

func wordcountHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, errResult := textArg(request)
	if errResult != nil {
		return errResult, nil
	}

	lines := 0
	if text != "" {
		lines = strings.Count(text, "\n") + 1
	}
	words := len(strings.Fields(text))
	chars := len([]rune(text))

	return mcp.NewToolResultText(fmt.Sprintf("%d %d %d", lines, words, chars)), nil
}

func reverseHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, errResult := textArg(request)
	if errResult != nil {
		return errResult, nil
	}

	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return mcp.NewToolResultText(string(runes)), nil
}
