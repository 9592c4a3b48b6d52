// Package loop drives one session: it alternates model turns and tool
// execution until the model stops asking for tools or a terminal
// condition is reached.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/compact"
	"github.com/wolo-ai/wolo/internal/control"
	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/llm"
	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/internal/tool"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Finish reasons produced by the loop itself. The model's stop and
// length reasons pass through unchanged.
const (
	FinishInterrupted = "interrupted"
	FinishPathSafety  = "path_safety_cancelled"
	FinishMaxSteps    = "max_steps"
	FinishError       = "error"
)

const (
	interruptedToolOutput = "[interrupted by user before execution]"
	maxStreamRedo         = 2
	streamRedoDelay       = time.Second
	defaultDisplayName    = "wolo"
)

// Deps bundles everything a loop needs. Store, Client, Dispatcher, and
// Agent are required; the rest degrade gracefully when nil.
type Deps struct {
	Store      *session.Store
	Client     *llm.Client
	Dispatcher *tool.Dispatcher
	Control    *control.Manager
	Engine     *compact.Engine
	Agent      *agent.Config
	Mode       ModeConfig
	Metrics    *Metrics

	// MaxSteps overrides the agent's step quota when positive.
	MaxSteps int

	// DisplayName substitutes the wordmark in system prompts.
	DisplayName string

	EnableThinking bool

	// OnStop runs once on any terminal path, after the final save and
	// before the finish event. Used to stop the watch server.
	OnStop func()
}

// Loop owns one session's execution. Exactly one goroutine runs Run at
// a time; tools and the stream reader report back through it.
type Loop struct {
	deps      Deps
	sessionID string
	maxSteps  int
}

// New wires a loop for the given session. It registers itself as the
// dispatcher's sub-agent runner and as the engine's summarizer.
func New(sessionID string, deps Deps) *Loop {
	if deps.Control == nil {
		deps.Control = control.NewManager()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.DisplayName == "" {
		deps.DisplayName = defaultDisplayName
	}
	maxSteps := deps.MaxSteps
	if maxSteps <= 0 && deps.Agent != nil {
		maxSteps = deps.Agent.MaxSteps
	}

	l := &Loop{deps: deps, sessionID: sessionID, maxSteps: maxSteps}
	if deps.Dispatcher != nil {
		deps.Dispatcher.SetSubAgentRunner(l.runSubAgent)
	}
	if deps.Engine != nil && deps.Client != nil {
		deps.Engine.SetSummarizer(l.summarizeMessages)
	}
	return l
}

// Run executes the loop for one user input and returns the finish
// reason. On any terminal path the session is saved, a finish event is
// published, the PID lock is cleared, and OnStop runs.
func (l *Loop) Run(ctx context.Context, userInput string) (reason string, err error) {
	d := l.deps
	d.Metrics.Begin(l.sessionID)

	stepCount := 0
	defer func() {
		d.Metrics.SetSteps(l.sessionID, stepCount)
		if d.Client != nil {
			d.Metrics.SetUsage(l.sessionID, d.Client.Usage())
		}
		if d.OnStop != nil {
			d.OnStop()
		}
		event.Publish(event.Event{
			Type:      event.Finish,
			SessionID: l.sessionID,
			Data:      event.FinishData{Reason: reason, StepCount: stepCount},
		})
		d.Store.ClearPID(context.Background(), l.sessionID)
	}()

	if userInput != "" {
		if err := l.appendUserMessage(ctx, userInput); err != nil {
			return FinishError, err
		}
	}

	messages, err := d.Store.GetAllMessages(ctx, l.sessionID)
	if err != nil {
		return FinishError, err
	}
	messages = compact.Active(messages)

	lastFinish := ""
	for {
		if waitErr := d.Control.WaitIfPaused(ctx); waitErr != nil {
			return FinishInterrupted, nil
		}
		if d.Control.ShouldInterrupt() {
			return FinishInterrupted, nil
		}

		if d.Engine != nil {
			compacted, compactErr := d.Engine.MaybeCompact(ctx, l.sessionID, messages)
			if compactErr != nil {
				logging.Warn().Err(compactErr).Msg("compaction failed, continuing uncompacted")
			} else {
				messages = compacted
			}
		}

		msg := &types.Message{
			ID:        session.NewID(),
			Role:      types.RoleAssistant,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
			return FinishError, err
		}
		messages = append(messages, msg)
		event.Publish(event.Event{
			Type:      event.AgentStart,
			SessionID: l.sessionID,
			Data:      event.AgentStartData{MessageID: msg.ID, Agent: l.agentName(), Step: stepCount + 1},
		})

		lastFinish, err = l.streamTurn(ctx, messages, msg)
		if err != nil {
			l.publishError(err)
			return FinishError, err
		}

		executed, fatalErr := l.handlePendingTools(ctx, msg)
		if fatalErr != nil {
			return FinishPathSafety, nil
		}

		shouldContinue := executed
		if text, ok := d.Control.PendingUserInput(); ok {
			if err := l.appendUserMessage(ctx, text); err != nil {
				return FinishError, err
			}
			reloaded, loadErr := d.Store.GetAllMessages(ctx, l.sessionID)
			if loadErr == nil {
				messages = compact.Active(reloaded)
			}
			shouldContinue = true
		}
		if !shouldContinue {
			shouldContinue = lastFinish == "tool_calls"
		}

		stepCount++
		if stepCount >= l.maxSteps && shouldContinue {
			return FinishMaxSteps, nil
		}
		if !shouldContinue {
			return lastFinish, nil
		}
	}
}

func (l *Loop) agentName() string {
	if l.deps.Agent != nil {
		return l.deps.Agent.Name
	}
	return ""
}

func (l *Loop) appendUserMessage(ctx context.Context, text string) error {
	msg := &types.Message{
		ID:        session.NewID(),
		Role:      types.RoleUser,
		Timestamp: time.Now().UnixMilli(),
		Finished:  true,
		Parts:     []types.Part{&types.TextPart{ID: session.NewID(), Type: "text", Text: text}},
	}
	if err := l.deps.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
		return err
	}

	// First prompt names the session.
	if sess, err := l.deps.Store.GetSessionMetadata(ctx, l.sessionID); err == nil && sess.Title == "" {
		l.deps.Store.UpdateSessionMetadata(ctx, l.sessionID, func(s *types.Session) {
			s.Title = session.TitleFromPrompt(text)
		})
	}
	return nil
}

// streamTurn runs one model call, mutating msg as events arrive. A
// retryable adapter failure after partial delivery redoes the stream
// with the partial content discarded.
func (l *Loop) streamTurn(ctx context.Context, messages []*types.Message, msg *types.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxStreamRedo; attempt++ {
		if attempt > 0 {
			msg.Parts = nil
			msg.ReasoningContent = ""
			msg.Finished = false
			msg.FinishReason = ""
			if err := l.deps.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
				return "", err
			}
			time.Sleep(streamRedoDelay)
		}

		finish, retryable, err := l.streamOnce(ctx, messages, msg)
		if err == nil {
			return finish, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		logging.Warn().Err(err).Int("attempt", attempt+1).Msg("stream failed mid-turn, redoing")
	}
	return "", lastErr
}

func (l *Loop) streamOnce(ctx context.Context, messages []*types.Message, msg *types.Message) (finish string, retryable bool, err error) {
	d := l.deps

	exclude := []string{}
	if !d.Mode.EnableQuestionTool {
		exclude = append(exclude, "question")
	}
	var tools []llm.ToolSchema
	if d.Dispatcher != nil {
		tools = d.Dispatcher.Registry().Schemas(exclude...)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := d.Client.ChatCompletion(streamCtx, llm.Request{
		Messages:       messages,
		SystemPrompt:   l.systemPrompt(),
		AgentName:      d.DisplayName,
		Tools:          tools,
		EnableThinking: d.EnableThinking,
	})
	if err != nil {
		return "", false, err
	}

	saver := session.NewDebouncedSaver(0, func() error {
		return d.Store.SaveMessage(ctx, l.sessionID, msg)
	})
	defer saver.Flush()

	var textPart *types.TextPart
	var streamErr *llm.AdapterError
	interrupted := false

	for ev := range events {
		if !interrupted && d.Control.ShouldInterrupt() {
			// Stop the request; keep draining so the reader can exit.
			interrupted = true
			cancel()
		}
		if interrupted {
			continue
		}

		switch ev.Type {
		case llm.EventTextDelta:
			if textPart == nil {
				textPart = &types.TextPart{ID: session.NewID(), Type: "text"}
				msg.Parts = append(msg.Parts, textPart)
			}
			textPart.Text += ev.Text
			saver.Request()
			event.Publish(event.Event{
				Type:      event.TextDelta,
				SessionID: l.sessionID,
				Data:      event.TextDeltaData{MessageID: msg.ID, Text: ev.Text},
			})

		case llm.EventReasoningDelta:
			msg.ReasoningContent += ev.Text
			saver.Request()
			event.Publish(event.Event{
				Type:      event.ReasoningDelta,
				SessionID: l.sessionID,
				Data:      event.ReasoningDeltaData{MessageID: msg.ID, Text: ev.Text},
			})

		case llm.EventToolCallStreaming:
			event.Publish(event.Event{
				Type:      event.ToolCallStreaming,
				SessionID: l.sessionID,
				Data:      event.ToolCallHintData{MessageID: msg.ID, ToolID: ev.ToolID, ToolName: ev.ToolName},
			})

		case llm.EventToolCallProgress:
			event.Publish(event.Event{
				Type:      event.ToolCallProgress,
				SessionID: l.sessionID,
				Data:      event.ToolCallHintData{MessageID: msg.ID, ArgsLen: ev.ArgsLen},
			})

		case llm.EventToolCall:
			msg.Parts = append(msg.Parts, &types.ToolPart{
				ID:       ev.ToolID,
				Type:     "tool",
				ToolName: ev.ToolName,
				Input:    ev.Input,
				Status:   types.StatusPending,
			})
			if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
				return "", false, err
			}

		case llm.EventFinish:
			finish = ev.FinishReason
			msg.Finished = true
			msg.FinishReason = finish
			if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
				return "", false, err
			}

		case llm.EventError:
			streamErr = ev.Err
		}
	}

	d.Metrics.SetUsage(l.sessionID, d.Client.Usage())

	if interrupted {
		msg.Finished = true
		msg.FinishReason = FinishInterrupted
		if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
			return "", false, err
		}
		return FinishInterrupted, false, nil
	}
	if streamErr != nil {
		return "", streamErr.Retryable(), streamErr
	}
	if finish == "" {
		// Stream closed without a finish event; treat as a plain stop.
		finish = "stop"
		msg.Finished = true
		msg.FinishReason = finish
		if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
			return "", false, err
		}
	}
	return finish, false, nil
}

func (l *Loop) systemPrompt() string {
	if l.deps.Agent != nil {
		return l.deps.Agent.SystemPrompt
	}
	return ""
}

// handlePendingTools executes the turn's pending tool parts in order.
// An interrupt marks the current and all later pending parts
// interrupted. A path-safety denial is returned as fatal; every other
// tool failure is already recorded on the part and the loop continues.
func (l *Loop) handlePendingTools(ctx context.Context, msg *types.Message) (executed bool, fatal error) {
	d := l.deps
	pending := msg.PendingToolParts()

	for i, part := range pending {
		if d.Control.ShouldInterrupt() {
			now := time.Now().UnixMilli()
			for _, p := range pending[i:] {
				p.Status = types.StatusInterrupted
				p.Output = interruptedToolOutput
				p.EndTime = now
				event.Publish(event.Event{
					Type:      event.ToolComplete,
					SessionID: l.sessionID,
					Data: event.ToolCompleteData{
						MessageID: msg.ID,
						ToolID:    p.ID,
						ToolName:  p.ToolName,
						Status:    types.StatusInterrupted,
						Output:    p.Output,
					},
				})
			}
			if err := d.Store.SaveMessage(ctx, l.sessionID, msg); err != nil {
				return true, nil
			}
			return true, nil
		}
		if err := d.Control.WaitIfPaused(ctx); err != nil {
			return executed, nil
		}

		execErr := d.Dispatcher.Execute(ctx, part, d.Agent, l.sessionID, msg.ID)
		if saveErr := d.Store.SaveMessage(ctx, l.sessionID, msg); saveErr != nil {
			logging.Warn().Err(saveErr).Msg("persisting tool result failed")
		}
		d.Metrics.RecordTool(l.sessionID, part.ToolName, part.EndTime-part.StartTime)

		if types.TerminalStatus(part.Status) {
			executed = true
		}
		if execErr != nil {
			var denied *pathguard.DeniedError
			if errors.As(execErr, &denied) {
				return true, execErr
			}
			// Recoverable tool error: status is set, the model sees it.
		}
	}
	return executed, nil
}

// runSubAgent spawns a child session driven by its own loop and returns
// the final assistant text. Used by the task tool.
func (l *Loop) runSubAgent(ctx context.Context, agentName, message string) (string, string, error) {
	cfg, err := agent.Get(agentName)
	if err != nil {
		return "", "", err
	}
	child, err := l.deps.Store.CreateSession(ctx, "", agentName)
	if err != nil {
		return "", "", err
	}
	l.deps.Store.UpdateSessionMetadata(ctx, child.ID, func(s *types.Session) {
		s.ParentSessionID = l.sessionID
	})
	l.deps.Metrics.RecordSubsession(l.sessionID, child.ID)

	subDeps := l.deps
	subDeps.Agent = cfg
	subDeps.MaxSteps = cfg.MaxSteps
	subDeps.OnStop = nil
	sub := &Loop{deps: subDeps, sessionID: child.ID, maxSteps: cfg.MaxSteps}

	if _, err := sub.Run(ctx, message); err != nil {
		return "", child.ID, err
	}

	messages, err := l.deps.Store.GetAllMessages(ctx, child.ID)
	if err != nil {
		return "", child.ID, err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			if text := messages[i].TextContent(); text != "" {
				return text, child.ID, nil
			}
		}
	}
	return "", child.ID, fmt.Errorf("sub-agent %s produced no output", agentName)
}

// summarizeMessages is the compaction engine's summarizer: one auxiliary
// model call with the compaction agent prompt, no tools.
func (l *Loop) summarizeMessages(ctx context.Context, messages []*types.Message) (string, error) {
	cfg, err := agent.Get("compaction")
	if err != nil {
		return "", err
	}
	events, err := l.deps.Client.ChatCompletion(ctx, llm.Request{
		Messages:     messages,
		SystemPrompt: cfg.SystemPrompt,
		AgentName:    l.deps.DisplayName,
	})
	if err != nil {
		return "", err
	}

	text := ""
	var streamErr *llm.AdapterError
	for ev := range events {
		switch ev.Type {
		case llm.EventTextDelta:
			text += ev.Text
		case llm.EventError:
			streamErr = ev.Err
		}
	}
	if streamErr != nil {
		return "", streamErr
	}
	return text, nil
}

func (l *Loop) publishError(err error) {
	kind := "unknown"
	var adapterErr *llm.AdapterError
	if errors.As(err, &adapterErr) {
		kind = string(adapterErr.Kind)
	}
	event.Publish(event.Event{
		Type:      event.Error,
		SessionID: l.sessionID,
		Data:      event.ErrorData{Kind: kind, Message: err.Error()},
	})
}
