package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const editDescription = `Performs exact string replacements in files.

Usage:
- The old_string must exist in the file (exact match required)
- Use replaceAll to replace every occurrence
- The edit FAILS if oldString matches more than once without replaceAll
- On no match, the closest-matching region is reported as a hint`

// EditTool implements file editing.
type EditTool struct {
	workDir string
}

// EditInput represents the input for the edit tool.
type EditInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) ID() string          { return "edit" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The path to the file to edit"
			},
			"oldString": {
				"type": "string",
				"description": "The exact text to replace"
			},
			"newString": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replaceAll": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if params.OldString == params.NewString {
		return nil, &Error{ToolName: t.ID(), Message: "oldString and newString must be different"}
	}
	path := resolvePath(params.FilePath, toolCtx, t.workDir)

	if toolCtx != nil && toolCtx.Guard != nil {
		if err := toolCtx.Guard.CheckWrite(path); err != nil {
			return nil, err
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(content)

	count := strings.Count(text, params.OldString)
	if count == 0 {
		hint := closestMatch(text, params.OldString)
		msg := "oldString not found in file"
		if hint != "" {
			msg += fmt.Sprintf("; closest match:\n%s", hint)
		}
		return nil, &Error{ToolName: t.ID(), Message: msg}
	}
	if count > 1 && !params.ReplaceAll {
		return nil, &Error{ToolName: t.ID(), Message: fmt.Sprintf("oldString appears %d times; use replaceAll or provide more context", count)}
	}

	var newText string
	if params.ReplaceAll {
		newText = strings.ReplaceAll(text, params.OldString, params.NewString)
	} else {
		newText = strings.Replace(text, params.OldString, params.NewString, 1)
		count = 1
	}

	if err := os.WriteFile(path, []byte(newText), 0o644); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "write failed: " + err.Error()}
	}

	return &Result{
		Output: fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path),
		Metadata: map[string]any{
			"file":         path,
			"replacements": count,
			"diff":         unifiedDiff(text, newText),
		},
	}, nil
}

func (t *EditTool) FormatStart(input map[string]any) string {
	path, _ := input["filePath"].(string)
	return "edit " + path
}

// closestMatch finds the line window of the file nearest to the needle by
// edit distance, used to hint the model at near-misses (usually
// whitespace or truncation differences).
func closestMatch(text, needle string) string {
	lines := strings.Split(text, "\n")
	window := len(strings.Split(needle, "\n"))
	if window < 1 {
		window = 1
	}

	best := -1
	bestDist := 0
	// Cap the scan for very large files.
	const maxWindows = 5000
	for i := 0; i+window <= len(lines) && i < maxWindows; i++ {
		candidate := strings.Join(lines[i:i+window], "\n")
		dist := levenshtein.ComputeDistance(candidate, needle)
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best == -1 {
		return ""
	}
	// A hint is only useful when the match is actually close.
	if bestDist > len(needle)/2 {
		return ""
	}
	return strings.Join(lines[best:best+window], "\n")
}

// unifiedDiff renders a compact diff for tool metadata.
func unifiedDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sb.WriteString("+" + d.Text)
		case diffmatchpatch.DiffDelete:
			sb.WriteString("-" + d.Text)
		}
	}
	const maxDiff = 2000
	out := sb.String()
	if len(out) > maxDiff {
		out = out[:maxDiff] + "..."
	}
	return out
}
