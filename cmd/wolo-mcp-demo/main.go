// Command wolo-mcp-demo runs the textkit MCP server over stdio. It is
// used for testing the MCP tool bridge.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/wolo-ai/wolo/pkg/mcpserver/textkit"
)

func main() {
	if err := server.ServeStdio(textkit.NewServer()); err != nil {
		log.Fatal(err)
	}
}
