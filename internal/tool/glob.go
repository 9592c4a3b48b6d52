package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const globDescription = `Fast file pattern matching.

Usage:
- Supports glob patterns like "**/*.go" or "src/**/*.ts"
- Returns matching file paths sorted by modification time, newest first
- Use this tool to find files by name patterns`

const maxGlobResults = 100

// GlobTool implements file pattern matching.
type GlobTool struct {
	workDir string
}

// GlobInput represents the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: working directory)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}

	searchDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		searchDir = toolCtx.WorkDir
	}
	if params.Path != "" {
		searchDir = resolvePath(params.Path, toolCtx, searchDir)
	}

	matches, err := doublestar.Glob(os.DirFS(searchDir), params.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "bad pattern: " + err.Error()}
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	infos := make([]fileInfo, 0, len(matches))
	for _, m := range matches {
		fi, err := fs.Stat(os.DirFS(searchDir), m)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: filepath.Join(searchDir, m), modTime: fi.ModTime().UnixNano()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime > infos[j].modTime })

	truncated := false
	if len(infos) > maxGlobResults {
		infos = infos[:maxGlobResults]
		truncated = true
	}

	if len(infos) == 0 {
		return &Result{
			Output:   "No files matched the pattern",
			Metadata: map[string]any{"pattern": params.Pattern, "count": 0},
		}, nil
	}

	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.path
	}
	output := strings.Join(paths, "\n")
	if truncated {
		output += fmt.Sprintf("\n\n(showing first %d matches)", maxGlobResults)
	}
	return &Result{
		Output: output,
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(paths),
			"truncated": truncated,
		},
	}, nil
}
