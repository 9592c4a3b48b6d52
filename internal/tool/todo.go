package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolo-ai/wolo/pkg/types"
)

const todoWriteDescription = `Replaces the session's todo list.

Usage:
- Send the complete list every time; this is a full replacement
- Valid statuses: pending, in_progress, completed
- Keep at most one item in_progress`

const todoReadDescription = `Reads the session's current todo list.`

// TodoWriteTool persists the session todo list.
type TodoWriteTool struct{}

// TodoWriteInput represents the input for the todowrite tool.
type TodoWriteInput struct {
	Todos []types.Todo `json:"todos"`
}

func NewTodoWriteTool() *TodoWriteTool { return &TodoWriteTool{} }

func (t *TodoWriteTool) ID() string          { return "todowrite" }
func (t *TodoWriteTool) Description() string { return todoWriteDescription }

func (t *TodoWriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"description": "The complete todo list",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"content": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]}
					},
					"required": ["id", "content", "status"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

func (t *TodoWriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TodoWriteInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if toolCtx == nil || toolCtx.Store == nil || toolCtx.SessionID == "" {
		return nil, &Error{ToolName: t.ID(), Message: "no session available"}
	}

	for _, todo := range params.Todos {
		switch todo.Status {
		case "pending", "in_progress", "completed":
		default:
			return nil, &Error{ToolName: t.ID(), Message: fmt.Sprintf("invalid status %q for todo %s", todo.Status, todo.ID)}
		}
	}

	if err := toolCtx.Store.SaveTodos(ctx, toolCtx.SessionID, params.Todos); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "save failed: " + err.Error()}
	}

	done := 0
	for _, todo := range params.Todos {
		if todo.Status == "completed" {
			done++
		}
	}
	return &Result{
		Output:   renderTodos(params.Todos),
		Metadata: map[string]any{"total": len(params.Todos), "completed": done},
	}, nil
}

func (t *TodoWriteTool) HideOutput() bool { return true }

// TodoReadTool reads the session todo list.
type TodoReadTool struct{}

func NewTodoReadTool() *TodoReadTool { return &TodoReadTool{} }

func (t *TodoReadTool) ID() string          { return "todoread" }
func (t *TodoReadTool) Description() string { return todoReadDescription }

func (t *TodoReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *TodoReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if toolCtx == nil || toolCtx.Store == nil || toolCtx.SessionID == "" {
		return nil, &Error{ToolName: t.ID(), Message: "no session available"}
	}
	todos, err := toolCtx.Store.GetTodos(ctx, toolCtx.SessionID)
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "read failed: " + err.Error()}
	}
	if len(todos) == 0 {
		return &Result{Output: "No todos yet"}, nil
	}
	return &Result{
		Output:   renderTodos(todos),
		Metadata: map[string]any{"total": len(todos)},
	}, nil
}

func renderTodos(todos []types.Todo) string {
	marks := map[string]string{
		"pending":     "[ ]",
		"in_progress": "[~]",
		"completed":   "[x]",
	}
	var sb strings.Builder
	for _, todo := range todos {
		fmt.Fprintf(&sb, "%s %s\n", marks[todo.Status], todo.Content)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
