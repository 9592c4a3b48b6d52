package event

// TextDeltaData carries an appended fragment of assistant text.
type TextDeltaData struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ReasoningDeltaData carries an appended fragment of reasoning content.
type ReasoningDeltaData struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ToolStartData announces that a tool call began executing.
type ToolStartData struct {
	MessageID string `json:"message_id"`
	ToolID    string `json:"tool_id"`
	ToolName  string `json:"tool_name"`
	Brief     string `json:"brief,omitempty"`
}

// ToolCompleteData announces that a tool call reached a terminal status.
type ToolCompleteData struct {
	MessageID  string `json:"message_id"`
	ToolID     string `json:"tool_id"`
	ToolName   string `json:"tool_name"`
	Status     string `json:"status"`
	Brief      string `json:"brief,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
}

// ToolCallHintData carries a streaming tool-call renderer hint.
type ToolCallHintData struct {
	MessageID string `json:"message_id"`
	ToolID    string `json:"tool_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	ArgsLen   int    `json:"args_len,omitempty"`
}

// AgentStartData announces a new assistant turn.
type AgentStartData struct {
	MessageID string `json:"message_id"`
	Agent     string `json:"agent,omitempty"`
	Step      int    `json:"step"`
}

// FinishData announces loop termination.
type FinishData struct {
	Reason    string `json:"reason"`
	StepCount int    `json:"step_count"`
}

// ErrorData announces a surfaced error.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
