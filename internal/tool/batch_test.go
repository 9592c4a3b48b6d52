package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/pkg/types"
)

func batchSetup(t *testing.T) (*Dispatcher, *Registry) {
	t.Helper()
	event.Reset()
	r := NewRegistry()
	r.Register(&stubTool{id: "echo", exec: func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
		var in struct {
			Text string `json:"text"`
		}
		json.Unmarshal(input, &in)
		return &Result{Output: in.Text}, nil
	}})
	r.Register(&stubTool{id: "fail", exec: func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
		return nil, &Error{ToolName: "fail", Message: "boom"}
	}})
	r.Register(NewBatchTool(r))
	d := NewDispatcher(r, nil, nil, nil, nil, t.TempDir())
	return d, r
}

func runBatch(t *testing.T, d *Dispatcher, calls []BatchCall) *types.ToolPart {
	t.Helper()
	part := &types.ToolPart{
		ID:       "outer_1",
		Type:     "tool",
		ToolName: "batch",
		Input:    map[string]any{"tool_calls": callsToAny(calls)},
		Status:   types.StatusPending,
	}
	d.Execute(context.Background(), part, nil, "s1", "m1")
	return part
}

func callsToAny(calls []BatchCall) []any {
	out := make([]any, len(calls))
	for i, c := range calls {
		out[i] = map[string]any{"tool": c.Tool, "input": c.Input}
	}
	return out
}

func TestBatch_AllSucceed(t *testing.T) {
	d, _ := batchSetup(t)
	part := runBatch(t, d, []BatchCall{
		{Tool: "echo", Input: map[string]any{"text": "a"}},
		{Tool: "echo", Input: map[string]any{"text": "b"}},
	})
	if part.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", part.Status)
	}
	if part.Metadata["succeeded"] != 2 {
		t.Errorf("metadata = %v", part.Metadata)
	}
}

func TestBatch_PartialOnAnyFailure(t *testing.T) {
	d, _ := batchSetup(t)
	part := runBatch(t, d, []BatchCall{
		{Tool: "echo", Input: map[string]any{"text": "a"}},
		{Tool: "fail", Input: map[string]any{}},
	})
	if part.Status != types.StatusPartial {
		t.Errorf("status = %s, want partial", part.Status)
	}
}

func TestBatch_ZeroSuccessesIsPartial(t *testing.T) {
	event.Reset()
	r := NewRegistry()
	r.Register(&stubTool{id: "danger", exec: func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
		return &Result{Output: "should not run"}, nil
	}})
	r.Register(NewBatchTool(r))
	d := NewDispatcher(r, nil, nil, nil, nil, t.TempDir())

	// The outer call runs under an agent that denies the sub-tool.
	cfg := &agent.Config{
		Name:              "locked",
		Permissions:       map[string]agent.Permission{"danger": agent.PermissionDeny},
		DefaultPermission: agent.PermissionAllow,
	}
	part := &types.ToolPart{
		ID: "outer_1", Type: "tool", ToolName: "batch",
		Input: map[string]any{"tool_calls": []any{
			map[string]any{"tool": "danger", "input": map[string]any{}},
			map[string]any{"tool": "danger", "input": map[string]any{}},
		}},
		Status: types.StatusPending,
	}
	d.Execute(context.Background(), part, cfg, "s1", "m1")

	if part.Status != types.StatusPartial {
		t.Errorf("all-denied batch must be partial, got %s", part.Status)
	}
	if part.Metadata["succeeded"] != 0 {
		t.Errorf("succeeded = %v, want 0", part.Metadata["succeeded"])
	}
}

func TestBatch_DeniedSubCallPropagates(t *testing.T) {
	event.Reset()
	r := NewRegistry()
	r.Register(&stubTool{id: "writer", exec: func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
		return nil, &pathguard.DeniedError{Path: "/etc/passwd"}
	}})
	r.Register(NewBatchTool(r))
	d := NewDispatcher(r, nil, nil, nil, nil, t.TempDir())

	part := &types.ToolPart{
		ID: "outer_1", Type: "tool", ToolName: "batch",
		Input: map[string]any{"tool_calls": []any{
			map[string]any{"tool": "writer", "input": map[string]any{}},
		}},
		Status: types.StatusPending,
	}
	err := d.Execute(context.Background(), part, nil, "s1", "m1")

	var denied *pathguard.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("denial inside a batch must surface, got %v", err)
	}
	if part.Status != types.StatusError {
		t.Errorf("status = %s, want error", part.Status)
	}
}

func TestBatch_PreviewKeepsRunesIntact(t *testing.T) {
	d, _ := batchSetup(t)
	// 200 three-byte runes put the truncation point mid-rune.
	long := strings.Repeat("世", 200)
	part := runBatch(t, d, []BatchCall{
		{Tool: "echo", Input: map[string]any{"text": long}},
	})
	if part.Status != types.StatusCompleted {
		t.Fatalf("status = %s", part.Status)
	}
	if !utf8.ValidString(part.Output) {
		t.Error("truncated preview contains a split rune")
	}
	if !strings.Contains(part.Output, "...") {
		t.Error("long output must be truncated")
	}
}

func TestBatch_RejectsEmpty(t *testing.T) {
	d, _ := batchSetup(t)
	part := runBatch(t, d, nil)
	if part.Status != types.StatusError {
		t.Errorf("empty batch must be an error, got %s", part.Status)
	}
}

func TestBatch_RejectsNesting(t *testing.T) {
	d, _ := batchSetup(t)
	part := runBatch(t, d, []BatchCall{
		{Tool: "batch", Input: map[string]any{"tool_calls": []any{}}},
	})
	if part.Status != types.StatusError {
		t.Errorf("nested batch must be an error, got %s", part.Status)
	}
}

func TestBatch_RejectsOversized(t *testing.T) {
	d, _ := batchSetup(t)
	calls := make([]BatchCall, maxBatchParallel+1)
	for i := range calls {
		calls[i] = BatchCall{Tool: "echo", Input: map[string]any{"text": "x"}}
	}
	part := runBatch(t, d, calls)
	if part.Status != types.StatusError {
		t.Errorf("oversized batch must be an error, got %s", part.Status)
	}
}
