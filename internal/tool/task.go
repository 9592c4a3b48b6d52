package tool

import (
	"context"
	"encoding/json"

	"github.com/wolo-ai/wolo/internal/agent"
)

const taskDescription = `Spawns a sub-agent in its own session to handle a delegated task,
and returns the sub-agent's final answer.

Usage:
- agent selects the personality: ` + "`general`, `plan`, or `explore`" + `
- message is the full task description; the sub-agent has no access to
  this conversation, so include all needed context
- Use explore for read-only questions, plan for design work`

// TaskTool spawns sub-agent loops.
type TaskTool struct{}

// TaskInput represents the input for the task tool.
type TaskInput struct {
	Agent       string `json:"agent"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// NewTaskTool creates a new task tool.
func NewTaskTool() *TaskTool { return &TaskTool{} }

func (t *TaskTool) ID() string          { return "task" }
func (t *TaskTool) Description() string { return taskDescription }

func (t *TaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"agent": {
				"type": "string",
				"description": "Sub-agent to run: general, plan, or explore"
			},
			"message": {
				"type": "string",
				"description": "The complete task for the sub-agent"
			},
			"description": {
				"type": "string",
				"description": "Short label for progress display"
			}
		},
		"required": ["agent", "message"]
	}`)
}

func (t *TaskTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TaskInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if params.Message == "" {
		return nil, &Error{ToolName: t.ID(), Message: "message is required"}
	}
	if _, err := agent.Get(params.Agent); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: err.Error()}
	}
	if toolCtx == nil || toolCtx.RunSubAgent == nil {
		return nil, &Error{ToolName: t.ID(), Message: "sub-agent execution is not available"}
	}

	text, subsessionID, err := toolCtx.RunSubAgent(ctx, params.Agent, params.Message)
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "sub-agent failed: " + err.Error()}
	}
	return &Result{
		Output: text,
		Metadata: map[string]any{
			"agent":      params.Agent,
			"subsession": subsessionID,
		},
	}, nil
}

func (t *TaskTool) FormatStart(input map[string]any) string {
	if desc, ok := input["description"].(string); ok && desc != "" {
		return "task: " + desc
	}
	agentName, _ := input["agent"].(string)
	return "task (" + agentName + ")"
}
