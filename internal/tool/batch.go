package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/pkg/types"
)

const batchDescription = `Executes multiple independent tool calls concurrently to reduce
latency. Best used for gathering context (reads, searches, listings).

Rules:
- 1-10 tool calls per batch
- All calls start in parallel; ordering is NOT guaranteed
- Partial failures do not stop the others
- Nesting batch inside batch is not allowed

When NOT to use:
- Operations that depend on prior tool output
- Ordered stateful mutations where sequence matters`

// maxBatchParallel caps concurrent sub-calls per batch.
const maxBatchParallel = 10

// previewLen bounds the per-call output preview in the summary.
const previewLen = 500

// BatchTool runs sub-calls through the dispatcher concurrently.
type BatchTool struct {
	registry *Registry
}

// BatchInput represents the input for the batch tool.
type BatchInput struct {
	ToolCalls []BatchCall `json:"tool_calls"`
}

// BatchCall is one sub-call within a batch.
type BatchCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// NewBatchTool creates a new batch tool.
func NewBatchTool(registry *Registry) *BatchTool {
	return &BatchTool{registry: registry}
}

func (t *BatchTool) ID() string          { return "batch" }
func (t *BatchTool) Description() string { return batchDescription }

func (t *BatchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tool_calls": {
				"type": "array",
				"description": "Tool calls to execute in parallel",
				"items": {
					"type": "object",
					"properties": {
						"tool": {
							"type": "string",
							"description": "The name of the tool to execute"
						},
						"input": {
							"type": "object",
							"description": "Input for the tool"
						}
					},
					"required": ["tool", "input"]
				},
				"minItems": 1,
				"maxItems": 10
			}
		},
		"required": ["tool_calls"]
	}`)
}

func (t *BatchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BatchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if len(params.ToolCalls) == 0 {
		return nil, &Error{ToolName: t.ID(), Message: "tool_calls must contain at least one call"}
	}
	if len(params.ToolCalls) > maxBatchParallel {
		return nil, &Error{ToolName: t.ID(), Message: fmt.Sprintf("at most %d calls per batch, got %d", maxBatchParallel, len(params.ToolCalls))}
	}
	for _, call := range params.ToolCalls {
		if call.Tool == t.ID() {
			return nil, &Error{ToolName: t.ID(), Message: "batch calls cannot be nested"}
		}
	}
	if toolCtx == nil || toolCtx.Dispatcher == nil {
		return nil, &Error{ToolName: t.ID(), Message: "no dispatcher available"}
	}

	agentCfg := toolCtx.AgentConfig

	// Fresh tool parts per sub-call, dispatched with the same machinery
	// as top-level calls so permissions and events apply uniformly.
	parts := make([]*types.ToolPart, len(params.ToolCalls))
	for i, call := range params.ToolCalls {
		parts[i] = &types.ToolPart{
			ID:       fmt.Sprintf("%s_b%d_%s", toolCtx.CallID, i, ulid.Make().String()[:8]),
			Type:     "tool",
			ToolName: call.Tool,
			Input:    call.Input,
			Status:   types.StatusPending,
		}
	}

	// Sub-call errors land in the part's status and never abort sibling
	// calls, but they are collected so fatal ones surface after the
	// whole batch settles.
	subErrs := make([]error, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i, part := i, parts[i]
		g.Go(func() error {
			subErrs[i] = toolCtx.Dispatcher.Execute(gctx, part, agentCfg, toolCtx.SessionID, toolCtx.MessageID)
			return nil
		})
	}
	g.Wait()

	// A path-safety denial must reach the loop even when it happened
	// inside a batch.
	for _, subErr := range subErrs {
		var denied *pathguard.DeniedError
		if errors.As(subErr, &denied) {
			return nil, denied
		}
	}

	succeeded := 0
	var outputs []string
	details := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		if part.Status == types.StatusCompleted {
			succeeded++
		}
		preview := part.Output
		if len(preview) > previewLen {
			// Back off to a rune boundary so truncation never splits
			// a multi-byte character.
			cut := previewLen
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut] + "..."
		}
		outputs = append(outputs, fmt.Sprintf("=== %s (%s) ===\n%s", part.ToolName, part.Status, preview))
		details = append(details, map[string]any{
			"tool":   part.ToolName,
			"status": part.Status,
		})
	}

	status := types.StatusCompleted
	if succeeded < len(parts) {
		status = types.StatusPartial
	}
	summary := fmt.Sprintf("Executed %d/%d tools successfully.\n\n%s",
		succeeded, len(parts), strings.Join(outputs, "\n\n"))

	return &Result{
		Output: summary,
		Status: status,
		Metadata: map[string]any{
			"total":     len(parts),
			"succeeded": succeeded,
			"details":   details,
		},
	}, nil
}
