// Package token provides a cheap deterministic token estimator.
//
// The estimate is character-based and language-aware: CJK text runs much
// denser per token than Latin text. It never calls the model.
package token

import (
	"encoding/json"
	"math"
	"unicode"

	"github.com/wolo-ai/wolo/pkg/types"
)

const (
	// ToolOverhead is the fixed token cost of a tool call envelope.
	ToolOverhead = 20
	// MessageOverhead is the fixed token cost of a message envelope.
	MessageOverhead = 10
)

// EstimateText estimates tokens for a plain string.
// chinese_chars/1.5 + other_chars/4, rounded up, at least 1 when non-empty.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}

	var chinese, other int
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			chinese++
		} else {
			other++
		}
	}

	est := int(math.Ceil(float64(chinese)/1.5 + float64(other)/4))
	if est < 1 {
		est = 1
	}
	return est
}

// EstimatePart estimates tokens for one message part.
func EstimatePart(part types.Part) int {
	switch p := part.(type) {
	case *types.TextPart:
		return EstimateText(p.Text)
	case *types.ToolPart:
		est := ToolOverhead
		if len(p.Input) > 0 {
			if data, err := json.Marshal(p.Input); err == nil {
				est += EstimateText(string(data))
			}
		}
		est += EstimateText(p.Output)
		return est
	default:
		return 0
	}
}

// EstimateMessage estimates tokens for a message including its envelope.
func EstimateMessage(msg *types.Message) int {
	est := MessageOverhead
	for _, part := range msg.Parts {
		est += EstimatePart(part)
	}
	est += EstimateText(msg.ReasoningContent)
	return est
}

// EstimateMessages sums estimates over a message list.
func EstimateMessages(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateMessage(msg)
	}
	return total
}
