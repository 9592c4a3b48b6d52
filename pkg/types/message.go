package types

import "encoding/json"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message represents one conversation message. Messages are append-only at
// the session level, but individual tool parts mutate in place while running.
type Message struct {
	ID               string         `json:"id"`
	Role             string         `json:"role"`
	Parts            []Part         `json:"parts"`
	Timestamp        int64          `json:"timestamp"` // unix millis
	Finished         bool           `json:"finished"`
	FinishReason     string         `json:"finish_reason,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// TextContent concatenates all text parts of the message.
func (m *Message) TextContent() string {
	var text string
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

// ToolParts returns the tool parts of the message in order.
func (m *Message) ToolParts() []*ToolPart {
	var parts []*ToolPart
	for _, p := range m.Parts {
		if tp, ok := p.(*ToolPart); ok {
			parts = append(parts, tp)
		}
	}
	return parts
}

// PendingToolParts returns tool parts that have not started executing.
func (m *Message) PendingToolParts() []*ToolPart {
	var parts []*ToolPart
	for _, p := range m.ToolParts() {
		if p.Status == StatusPending {
			parts = append(parts, p)
		}
	}
	return parts
}

// UnmarshalJSON decodes the polymorphic parts array through UnmarshalPart.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Parts = make([]Part, 0, len(aux.Parts))
	for _, raw := range aux.Parts {
		part, err := UnmarshalPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

// MarshalJSON keeps the parts array non-null for empty messages.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	aux := struct {
		alias
		Parts []Part `json:"parts"`
	}{alias: alias(m), Parts: m.Parts}
	if aux.Parts == nil {
		aux.Parts = []Part{}
	}
	return json.Marshal(aux)
}
