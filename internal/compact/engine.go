// Package compact shrinks a session's message history to fit the model
// context window. Policies run between turns, never mid-stream, and
// every application is recorded in the session metadata.
package compact

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/internal/token"
	"github.com/wolo-ai/wolo/pkg/types"
)

const (
	PolicyToolPruning   = "tool_output_pruning"
	PolicySummarization = "summarization"

	defaultProtectTurns      = 3
	defaultProtectTokens     = 4000
	defaultMinimumPrune      = 500
	defaultReplacementText   = "[output pruned: re-run the tool if the result is needed again]"
	contextBudgetFraction    = 0.8
	minSummarizablePrefixLen = 2
)

// Summarizer produces a condensed transcript of the given messages. Wired
// by the loop from an auxiliary LLM call with the compaction agent prompt.
type Summarizer func(ctx context.Context, messages []*types.Message) (string, error)

// Engine applies compaction policies in priority order.
type Engine struct {
	store         *session.Store
	cfg           types.CompactionConfig
	contextWindow int
	summarize     Summarizer
}

// New creates an engine. contextWindow may be zero when the endpoint does
// not declare one; the explicit token_threshold then governs.
func New(store *session.Store, cfg types.CompactionConfig, contextWindow int) *Engine {
	return &Engine{store: store, cfg: cfg, contextWindow: contextWindow}
}

// SetSummarizer enables the summarization policy.
func (e *Engine) SetSummarizer(s Summarizer) { e.summarize = s }

// Threshold returns the token estimate above which compaction triggers.
func (e *Engine) Threshold() int {
	if e.cfg.TokenThreshold > 0 {
		return e.cfg.TokenThreshold
	}
	if e.contextWindow > 0 {
		return int(float64(e.contextWindow) * contextBudgetFraction)
	}
	return 0
}

// MaybeCompact applies policies if the estimate exceeds the threshold and
// returns the working message list (possibly rewritten). Untouched input
// is returned as-is.
func (e *Engine) MaybeCompact(ctx context.Context, sessionID string, messages []*types.Message) ([]*types.Message, error) {
	if !e.cfg.Enabled || len(messages) == 0 {
		return messages, nil
	}
	threshold := e.Threshold()
	if threshold <= 0 {
		return messages, nil
	}
	estimate := token.EstimateMessages(messages)
	if estimate <= threshold {
		return messages, nil
	}

	logging.Info().
		Str("session", sessionID).
		Int("tokens", estimate).
		Int("threshold", threshold).
		Msg("context over budget, compacting")

	if e.cfg.ToolPruningPolicy.Enabled {
		record, err := e.pruneToolOutputs(ctx, sessionID, messages)
		if err != nil {
			return messages, err
		}
		if record != nil {
			if err := e.appendRecord(ctx, sessionID, *record); err != nil {
				return messages, err
			}
			estimate = record.TokensAfter
		}
	}

	if estimate > threshold && e.summarize != nil {
		rewritten, record, err := e.summarizePrefix(ctx, sessionID, messages)
		if err != nil {
			// Summarization failure is not fatal; the turn proceeds with
			// whatever pruning already saved.
			logging.Warn().Err(err).Str("session", sessionID).Msg("summarization failed")
			return messages, nil
		}
		if record != nil {
			if err := e.appendRecord(ctx, sessionID, *record); err != nil {
				return rewritten, err
			}
			return rewritten, nil
		}
	}
	return messages, nil
}

// pruneToolOutputs elides old tool outputs. Scans newest to oldest,
// keeping the most recent turns and the most recent accumulated output
// tokens intact. Returns nil when nothing worth pruning was found.
func (e *Engine) pruneToolOutputs(ctx context.Context, sessionID string, messages []*types.Message) (*types.CompactionRecord, error) {
	policy := e.cfg.ToolPruningPolicy
	protectTurns := policy.ProtectRecentTurns
	if protectTurns <= 0 {
		protectTurns = defaultProtectTurns
	}
	protectTokens := policy.ProtectTokenThreshold
	if protectTokens <= 0 {
		protectTokens = defaultProtectTokens
	}
	minimumPrune := policy.MinimumPruneTokens
	if minimumPrune <= 0 {
		minimumPrune = defaultMinimumPrune
	}
	replacement := policy.ReplacementText
	if replacement == "" {
		replacement = defaultReplacementText
	}
	protected := make(map[string]bool, len(policy.ProtectedTools))
	for _, name := range policy.ProtectedTools {
		protected[name] = true
	}

	tokensBefore := token.EstimateMessages(messages)

	type candidate struct {
		msg  *types.Message
		part *types.ToolPart
	}
	var candidates []candidate
	savable := 0
	turnsSeen := 0
	outputAcc := 0

scan:
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == types.RoleUser {
			turnsSeen++
			continue
		}
		if turnsSeen < protectTurns {
			continue
		}
		parts := msg.ToolParts()
		for j := len(parts) - 1; j >= 0; j-- {
			part := parts[j]
			if part.Output == "" {
				continue
			}
			if pruned, _ := part.Metadata["pruned"].(bool); pruned {
				// Everything older was handled by a previous pass.
				break scan
			}
			outTokens := token.EstimateText(part.Output)
			outputAcc += outTokens
			if outputAcc <= protectTokens {
				continue
			}
			if part.Status != types.StatusCompleted || protected[part.ToolName] {
				continue
			}
			candidates = append(candidates, candidate{msg: msg, part: part})
			savable += outTokens - token.EstimateText(replacement)
		}
	}

	if savable < minimumPrune {
		return nil, nil
	}

	now := time.Now().UnixMilli()
	touched := make(map[string]*types.Message)
	var ids []string
	for _, c := range candidates {
		original := token.EstimateText(c.part.Output)
		c.part.Output = replacement
		if c.part.Metadata == nil {
			c.part.Metadata = make(map[string]any)
		}
		c.part.Metadata["pruned"] = true
		c.part.Metadata["pruned_at"] = now
		c.part.Metadata["original_output_tokens"] = original
		if _, seen := touched[c.msg.ID]; !seen {
			touched[c.msg.ID] = c.msg
			ids = append(ids, c.msg.ID)
		}
	}
	for _, msg := range touched {
		if err := e.store.SaveMessage(ctx, sessionID, msg); err != nil {
			return nil, fmt.Errorf("persist pruned message: %w", err)
		}
	}

	return &types.CompactionRecord{
		SessionID:    sessionID,
		Policy:       PolicyToolPruning,
		TokensBefore: tokensBefore,
		TokensAfter:  token.EstimateMessages(messages),
		MessageIDs:   ids,
		Timestamp:    now,
	}, nil
}

// summarizePrefix replaces everything before the protected recent turns
// with one synthesized assistant message. Summarized originals stay on
// disk, marked so Active() excludes them from future projections.
func (e *Engine) summarizePrefix(ctx context.Context, sessionID string, messages []*types.Message) ([]*types.Message, *types.CompactionRecord, error) {
	protectTurns := e.cfg.ToolPruningPolicy.ProtectRecentTurns
	if protectTurns <= 0 {
		protectTurns = defaultProtectTurns
	}

	boundary := -1
	turnsSeen := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			turnsSeen++
			if turnsSeen == protectTurns {
				boundary = i
				break
			}
		}
	}
	if boundary < minSummarizablePrefixLen {
		return messages, nil, nil
	}
	prefix := messages[:boundary]

	text, err := e.summarize(ctx, prefix)
	if err != nil {
		return messages, nil, err
	}
	if text == "" {
		return messages, nil, fmt.Errorf("summarizer returned empty text")
	}

	tokensBefore := token.EstimateMessages(messages)
	now := time.Now().UnixMilli()
	ids := make([]string, len(prefix))
	for i, msg := range prefix {
		ids[i] = msg.ID
	}

	summary := &types.Message{
		ID:        "sum_" + ulid.Make().String(),
		Role:      types.RoleAssistant,
		Timestamp: messages[boundary].Timestamp - 1,
		Finished:  true,
		Parts: []types.Part{&types.TextPart{
			ID:   "txt_" + ulid.Make().String(),
			Type: "text",
			Text: text,
		}},
		Metadata: map[string]any{
			"compaction": map[string]any{
				"is_summary":     true,
				"summarized_ids": ids,
			},
		},
	}
	if err := e.store.SaveMessage(ctx, sessionID, summary); err != nil {
		return messages, nil, err
	}

	for _, msg := range prefix {
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any)
		}
		msg.Metadata["compaction"] = map[string]any{
			"summarized": true,
			"summary_id": summary.ID,
		}
		if err := e.store.SaveMessage(ctx, sessionID, msg); err != nil {
			return messages, nil, err
		}
	}

	rewritten := append([]*types.Message{summary}, messages[boundary:]...)
	return rewritten, &types.CompactionRecord{
		SessionID:    sessionID,
		Policy:       PolicySummarization,
		TokensBefore: tokensBefore,
		TokensAfter:  token.EstimateMessages(rewritten),
		MessageIDs:   ids,
		Timestamp:    now,
	}, nil
}

func (e *Engine) appendRecord(ctx context.Context, sessionID string, record types.CompactionRecord) error {
	_, err := e.store.UpdateSessionMetadata(ctx, sessionID, func(s *types.Session) {
		s.Compactions = append(s.Compactions, record)
	})
	return err
}

// Active filters out messages that a summarization pass folded into a
// summary. Used when loading history from disk.
func Active(messages []*types.Message) []*types.Message {
	out := messages[:0:0]
	for _, msg := range messages {
		if compaction, ok := msg.Metadata["compaction"].(map[string]any); ok {
			if summarized, _ := compaction["summarized"].(bool); summarized {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}
