package llm

import (
	"encoding/json"
	"strings"

	"github.com/wolo-ai/wolo/pkg/types"
)

// Wordmark is the placeholder token in agent prompts replaced by the
// literal agent name at projection time.
const Wordmark = "{{WOLO}}"

const interruptedPlaceholder = "[tool execution was interrupted before completion]"

// ProjectMessages flattens the in-memory session into the wire format.
// Tool parts are emitted only in terminal states that carry a usable
// result (completed, error, interrupted); every emitted tool call is
// paired with exactly one following role=tool message.
func ProjectMessages(messages []*types.Message, systemPrompt, agentName string) []wireMessage {
	out := make([]wireMessage, 0, len(messages)+1)

	if systemPrompt != "" && !hasSystemMessage(messages) {
		prompt := strings.ReplaceAll(systemPrompt, Wordmark, agentName)
		out = append(out, wireMessage{Role: "system", Content: prompt})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleAssistant:
			out = append(out, projectAssistant(msg)...)
		case types.RoleSystem:
			out = append(out, wireMessage{Role: "system", Content: msg.TextContent()})
		default:
			out = append(out, wireMessage{Role: string(msg.Role), Content: msg.TextContent()})
		}
	}
	return out
}

func projectAssistant(msg *types.Message) []wireMessage {
	text := msg.TextContent()

	var calls []wireToolCall
	var results []wireMessage
	for _, part := range msg.ToolParts() {
		if !projectableStatus(part.Status) {
			continue
		}
		args, err := json.Marshal(part.Input)
		if err != nil {
			args = []byte("{}")
		}
		calls = append(calls, wireToolCall{
			ID:   part.ID,
			Type: "function",
			Function: wireFunction{
				Name:      part.ToolName,
				Arguments: string(args),
			},
		})
		output := part.Output
		if part.Status == types.StatusInterrupted && output == "" {
			output = interruptedPlaceholder
		}
		results = append(results, wireMessage{
			Role:       "tool",
			Content:    output,
			ToolCallID: part.ID,
		})
	}

	if text == "" && len(calls) == 0 {
		return nil
	}

	assistant := wireMessage{Role: "assistant", Content: text, ToolCalls: calls}
	return append([]wireMessage{assistant}, results...)
}

// projectableStatus reports whether a tool part is in a terminal state
// the model should see. Pending, running, partial, and timeout parts are
// never projected.
func projectableStatus(status string) bool {
	switch status {
	case types.StatusCompleted, types.StatusError, types.StatusInterrupted:
		return true
	}
	return false
}

func hasSystemMessage(messages []*types.Message) bool {
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			return true
		}
	}
	return false
}
