package types

import "encoding/json"

// Tool part statuses.
const (
	StatusPending     = "pending"
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusError       = "error"
	StatusPartial     = "partial"
	StatusInterrupted = "interrupted"
	StatusTimeout     = "timeout"
)

// TerminalStatus reports whether a tool part status can never transition again.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusError, StatusPartial, StatusInterrupted, StatusTimeout:
		return true
	}
	return false
}

// Part represents a component of a message.
type Part interface {
	PartType() string
	PartID() string
}

// TextPart represents a text content part.
type TextPart struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return "text" }
func (p *TextPart) PartID() string   { return p.ID }

// ToolPart represents a tool call and its result. The part mutates in place
// while the tool runs; Status never leaves a terminal state once it reaches one.
type ToolPart struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"` // always "tool"
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"input"`
	Output    string         `json:"output"`
	Status    string         `json:"status"`
	StartTime int64          `json:"start_time,omitempty"` // unix millis
	EndTime   int64          `json:"end_time,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (p *ToolPart) PartType() string { return "tool" }
func (p *ToolPart) PartID() string   { return p.ID }

// UnmarshalPart unmarshals a JSON part into the appropriate type based on
// the "type" discriminator field.
func UnmarshalPart(data []byte) (Part, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case "tool":
		var p ToolPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		// Unknown part types degrade to text so old sessions keep loading.
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	}
}
