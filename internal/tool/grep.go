package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const grepDescription = `Searches file contents with a regular expression.

Usage:
- Full Go regexp syntax
- Optional glob filter restricts which files are scanned
- Returns file:line:text matches, capped at 100`

const maxGrepResults = 100

// GrepTool implements content search.
type GrepTool struct {
	workDir string
}

// GrepInput represents the input for the grep tool.
type GrepInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

// NewGrepTool creates a new grep tool.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{workDir: workDir}
}

func (t *GrepTool) ID() string          { return "grep" }
func (t *GrepTool) Description() string { return grepDescription }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The regular expression to search for"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: working directory)"
			},
			"glob": {
				"type": "string",
				"description": "Glob pattern to filter files, e.g. \"**/*.go\""
			}
		},
		"required": ["pattern"]
	}`)
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GrepInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "bad pattern: " + err.Error()}
	}

	searchDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		searchDir = toolCtx.WorkDir
	}
	if params.Path != "" {
		searchDir = resolvePath(params.Path, toolCtx, searchDir)
	}

	var matches []string
	count := 0
	err = filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if count >= maxGrepResults {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(searchDir, path)
		if relErr != nil {
			rel = path
		}
		if params.Glob != "" {
			ok, globErr := doublestar.Match(params.Glob, rel)
			if globErr != nil || !ok {
				return nil
			}
		}
		scanFile(path, rel, re, &matches, &count)
		return nil
	})
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "search failed: " + err.Error()}
	}

	if len(matches) == 0 {
		return &Result{
			Output:   "No matches found",
			Metadata: map[string]any{"pattern": params.Pattern, "count": 0},
		}, nil
	}

	output := strings.Join(matches, "\n")
	if count >= maxGrepResults {
		output += fmt.Sprintf("\n\n(stopped at %d matches)", maxGrepResults)
	}
	return &Result{
		Output: output,
		Metadata: map[string]any{
			"pattern": params.Pattern,
			"count":   len(matches),
		},
	}, nil
}

func scanFile(path, rel string, re *regexp.Regexp, matches *[]string, count *int) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		if len(line) > 250 {
			line = line[:250] + "..."
		}
		*matches = append(*matches, fmt.Sprintf("%s:%d:%s", rel, lineNo, line))
		*count++
		if *count >= maxGrepResults {
			return
		}
	}
	// Scanner errors on binary files are treated as no match.
}
