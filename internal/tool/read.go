package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const readDescription = `Reads a file from the local filesystem.

Usage:
- The filePath parameter should be an absolute path; relative paths
  resolve against the working directory
- Optional offset (1-based line number) and limit select a range
- Output is returned with line numbers, like cat -n
- Long lines are truncated`

const (
	defaultReadLimit = 2000
	maxLineLength    = 2000
)

// ReadTool implements file reading.
type ReadTool struct {
	workDir string
}

// ReadInput represents the input for the read tool.
type ReadInput struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// NewReadTool creates a new read tool.
func NewReadTool(workDir string) *ReadTool {
	return &ReadTool{workDir: workDir}
}

func (t *ReadTool) ID() string          { return "read" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path to the file to read"
			},
			"offset": {
				"type": "integer",
				"description": "Line number to start reading from (1-based)"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of lines to read"
			}
		},
		"required": ["filePath"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	path := resolvePath(params.FilePath, toolCtx, t.workDir)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	offset := params.Offset
	if offset < 1 {
		offset = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	if offset > len(lines) {
		return nil, &Error{ToolName: t.ID(), Message: fmt.Sprintf("offset %d is beyond end of file (%d lines)", offset, len(lines))}
	}
	end := offset - 1 + limit
	if end > len(lines) {
		end = len(lines)
	}
	selected := lines[offset-1 : end]

	var sb strings.Builder
	for i, line := range selected {
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		fmt.Fprintf(&sb, "%6d\t%s\n", offset+i, line)
	}

	return &Result{
		Output: sb.String(),
		Metadata: map[string]any{
			"file":        path,
			"total_lines": len(lines),
			"shown":       len(selected),
		},
	}, nil
}

func (t *ReadTool) FormatStart(input map[string]any) string {
	path, _ := input["filePath"].(string)
	return "read " + path
}

// resolvePath makes a tool path absolute against the tool context's
// working directory.
func resolvePath(path string, toolCtx *Context, fallbackDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	dir := fallbackDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		dir = toolCtx.WorkDir
	}
	return filepath.Join(dir, path)
}
