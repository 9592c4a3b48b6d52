package tool

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
)

const listDescription = `Lists files and directories in a given path.

Usage:
- Directories are suffixed with a slash
- Hidden entries and common dependency directories are skipped`

// ListTool implements directory listing.
type ListTool struct {
	workDir string
}

// ListInput represents the input for the ls tool.
type ListInput struct {
	Path string `json:"path,omitempty"`
}

// NewListTool creates a new list tool.
func NewListTool(workDir string) *ListTool {
	return &ListTool{workDir: workDir}
}

func (t *ListTool) ID() string          { return "ls" }
func (t *ListTool) Description() string { return listDescription }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory to list (default: working directory)"
			}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ListInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}

	dir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		dir = toolCtx.WorkDir
	}
	if params.Path != "" {
		dir = resolvePath(params.Path, toolCtx, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	dirs, files := 0, 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || skippedDirs[name] {
			continue
		}
		if e.IsDir() {
			names = append(names, name+"/")
			dirs++
		} else {
			names = append(names, name)
			files++
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return &Result{Output: "(empty directory)"}, nil
	}
	return &Result{
		Output: strings.Join(names, "\n"),
		Metadata: map[string]any{
			"path":  dir,
			"dirs":  dirs,
			"files": files,
		},
	}, nil
}

func (t *ListTool) FormatStart(input map[string]any) string {
	if path, ok := input["path"].(string); ok && path != "" {
		return "ls " + path
	}
	return "ls"
}
