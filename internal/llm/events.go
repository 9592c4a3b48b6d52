package llm

// StreamEventType discriminates the events yielded by ChatCompletion.
type StreamEventType string

const (
	EventTextDelta         StreamEventType = "text-delta"
	EventReasoningDelta    StreamEventType = "reasoning-delta"
	EventToolCallStreaming StreamEventType = "tool-call-streaming"
	EventToolCallProgress  StreamEventType = "tool-call-progress"
	EventToolCall          StreamEventType = "tool-call"
	EventFinish            StreamEventType = "finish"
	EventError             StreamEventType = "error"
)

// StreamEvent is one element of the adapter's event sequence. Only the
// fields relevant to the Type are populated.
type StreamEvent struct {
	Type StreamEventType

	// text-delta, reasoning-delta
	Text string

	// tool-call-streaming, tool-call
	ToolID   string
	ToolName string

	// tool-call-streaming, tool-call-progress
	Index   int
	ArgsLen int

	// tool-call: parsed JSON arguments
	Input map[string]any

	// finish
	FinishReason string

	// error
	Err *AdapterError
}

// Usage accumulates token-usage totals reported by the backend. It
// survives adapter retries: totals only ever grow.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u *Usage) add(prompt, completion, total int) {
	u.PromptTokens += prompt
	u.CompletionTokens += completion
	u.TotalTokens += total
}
