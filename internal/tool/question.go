package tool

import (
	"context"
	"encoding/json"
)

const questionDescription = `Asks the user a blocking multiple-choice question and returns the
selected option. Use sparingly, only when you genuinely cannot proceed
without the user's decision.`

// QuestionTool requests a blocking user selection via the control
// manager. Modes without interactive input exclude it from the tool list
// at projection time.
type QuestionTool struct{}

// QuestionInput represents the input for the question tool.
type QuestionInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// NewQuestionTool creates a new question tool.
func NewQuestionTool() *QuestionTool { return &QuestionTool{} }

func (t *QuestionTool) ID() string          { return "question" }
func (t *QuestionTool) Description() string { return questionDescription }

func (t *QuestionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {
				"type": "string",
				"description": "The question to ask the user"
			},
			"options": {
				"type": "array",
				"description": "The options the user can choose from",
				"items": {"type": "string"},
				"minItems": 2
			}
		},
		"required": ["question", "options"]
	}`)
}

func (t *QuestionTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params QuestionInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if len(params.Options) < 2 {
		return nil, &Error{ToolName: t.ID(), Message: "at least two options are required"}
	}
	if toolCtx == nil || toolCtx.Control == nil {
		return nil, &Error{ToolName: t.ID(), Message: "no control plane available"}
	}

	answer, err := toolCtx.Control.Ask(ctx, params.Question, params.Options)
	if err != nil {
		return nil, &Error{ToolName: t.ID(), Message: err.Error()}
	}
	return &Result{
		Output:   answer,
		Metadata: map[string]any{"question": params.Question},
	}, nil
}
