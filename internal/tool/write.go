package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const writeDescription = `Writes a file to the local filesystem, creating parent directories
as needed. Overwrites the file if it already exists.`

// WriteTool implements file writing.
type WriteTool struct {
	workDir string
}

// WriteInput represents the input for the write tool.
type WriteInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) ID() string          { return "write" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path of the file to write"
			},
			"content": {
				"type": "string",
				"description": "The full content to write"
			}
		},
		"required": ["filePath", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	path := resolvePath(params.FilePath, toolCtx, t.workDir)

	if toolCtx != nil && toolCtx.Guard != nil {
		if err := toolCtx.Guard.CheckWrite(path); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "cannot create directory: " + err.Error()}
	}
	_, existed := fileExists(path)
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "write failed: " + err.Error()}
	}

	action := "Created"
	if existed {
		action = "Overwrote"
	}
	return &Result{
		Output: fmt.Sprintf("%s %s (%d bytes)", action, path, len(params.Content)),
		Metadata: map[string]any{
			"file":      path,
			"bytes":     len(params.Content),
			"overwrote": existed,
		},
	}, nil
}

func (t *WriteTool) FormatStart(input map[string]any) string {
	path, _ := input["filePath"].(string)
	return "write " + path
}

func fileExists(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	return info, err == nil
}
