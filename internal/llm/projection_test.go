package llm

import (
	"strings"
	"testing"

	"github.com/wolo-ai/wolo/pkg/types"
)

func userMsg(text string) *types.Message {
	return &types.Message{
		ID:   "u1",
		Role: types.RoleUser,
		Parts: []types.Part{
			&types.TextPart{ID: "t1", Type: "text", Text: text},
		},
	}
}

func TestProjectMessages_SystemPromptSubstitution(t *testing.T) {
	msgs := []*types.Message{userMsg("hi")}
	out := ProjectMessages(msgs, "You are "+Wordmark+", a coding agent. "+Wordmark+" helps.", "general")

	if len(out) != 2 {
		t.Fatalf("expected system+user, got %d messages", len(out))
	}
	if out[0].Role != "system" {
		t.Fatalf("first message should be system, got %s", out[0].Role)
	}
	if strings.Contains(out[0].Content, Wordmark) {
		t.Error("wordmark not substituted")
	}
	if !strings.Contains(out[0].Content, "You are general") {
		t.Errorf("agent name missing: %q", out[0].Content)
	}
}

func TestProjectMessages_NoDuplicateSystem(t *testing.T) {
	msgs := []*types.Message{
		{Role: types.RoleSystem, Parts: []types.Part{&types.TextPart{Type: "text", Text: "custom"}}},
		userMsg("hi"),
	}
	out := ProjectMessages(msgs, "default prompt", "general")
	if len(out) != 2 || out[0].Content != "custom" {
		t.Errorf("existing system message must win: %+v", out)
	}
}

func TestProjectMessages_TerminalToolPartsOnly(t *testing.T) {
	assistant := &types.Message{
		Role: types.RoleAssistant,
		Parts: []types.Part{
			&types.TextPart{Type: "text", Text: "working"},
			&types.ToolPart{ID: "c1", Type: "tool", ToolName: "read", Status: types.StatusCompleted, Output: "contents"},
			&types.ToolPart{ID: "c2", Type: "tool", ToolName: "write", Status: types.StatusPending},
			&types.ToolPart{ID: "c3", Type: "tool", ToolName: "edit", Status: types.StatusRunning},
			&types.ToolPart{ID: "c4", Type: "tool", ToolName: "grep", Status: types.StatusError, Output: "boom"},
			&types.ToolPart{ID: "c5", Type: "tool", ToolName: "ls", Status: types.StatusPartial},
		},
	}
	out := ProjectMessages([]*types.Message{userMsg("go"), assistant}, "", "")

	var asst *wireMessage
	for i := range out {
		if out[i].Role == "assistant" {
			asst = &out[i]
			break
		}
	}
	if asst == nil {
		t.Fatal("no assistant message emitted")
	}
	if len(asst.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls (completed+error), got %d", len(asst.ToolCalls))
	}

	// Every emitted call id must be matched by exactly one role=tool message.
	results := map[string]int{}
	for _, m := range out {
		if m.Role == "tool" {
			results[m.ToolCallID]++
		}
	}
	for _, call := range asst.ToolCalls {
		if results[call.ID] != 1 {
			t.Errorf("call %s has %d results, want 1", call.ID, results[call.ID])
		}
	}
	if len(results) != len(asst.ToolCalls) {
		t.Errorf("orphan tool results: %v", results)
	}
}

func TestProjectMessages_InterruptedPlaceholder(t *testing.T) {
	assistant := &types.Message{
		Role: types.RoleAssistant,
		Parts: []types.Part{
			&types.ToolPart{ID: "c1", Type: "tool", ToolName: "bash", Status: types.StatusInterrupted},
		},
	}
	out := ProjectMessages([]*types.Message{assistant}, "", "")

	var toolMsg *wireMessage
	for i := range out {
		if out[i].Role == "tool" {
			toolMsg = &out[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("interrupted part should still be projected")
	}
	if toolMsg.Content == "" {
		t.Error("interrupted part with empty output needs a placeholder")
	}
}

func TestProjectMessages_SkipsEmptyAssistant(t *testing.T) {
	empty := &types.Message{
		Role: types.RoleAssistant,
		Parts: []types.Part{
			&types.ToolPart{ID: "c1", Type: "tool", ToolName: "read", Status: types.StatusPending},
		},
	}
	out := ProjectMessages([]*types.Message{userMsg("hi"), empty}, "", "")
	for _, m := range out {
		if m.Role == "assistant" {
			t.Errorf("assistant with no text and no terminal calls must be skipped: %+v", m)
		}
	}
}
