package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/control"
	"github.com/wolo-ai/wolo/internal/event"
	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Dispatcher executes tool parts: permission gate, status transitions,
// event publication, and error normalization.
type Dispatcher struct {
	registry *Registry
	store    *session.Store
	guard    *pathguard.Guard
	control  *control.Manager
	config   *types.Config
	workDir  string

	runSubAgent func(ctx context.Context, agentName, message string) (string, string, error)
}

// NewDispatcher wires a dispatcher. Any of store, guard, control, and
// config may be nil for tools that do not need them.
func NewDispatcher(registry *Registry, store *session.Store, guard *pathguard.Guard, ctrl *control.Manager, config *types.Config, workDir string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		guard:    guard,
		control:  ctrl,
		config:   config,
		workDir:  workDir,
	}
}

// Registry exposes the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// SetSubAgentRunner wires the task tool's sub-loop entry point.
func (d *Dispatcher) SetSubAgentRunner(run func(ctx context.Context, agentName, message string) (string, string, error)) {
	d.runSubAgent = run
}

// Execute runs one tool part to a terminal status. The part is mutated in
// place; in every error case status and output are set before the typed
// error is returned. Permission denials are handled locally and return
// nil. Path-safety denials return the guard's typed error so the loop can
// terminate the run.
func (d *Dispatcher) Execute(ctx context.Context, part *types.ToolPart, agentCfg *agent.Config, sessionID, messageID string) error {
	if agentCfg != nil {
		switch agentCfg.CheckPermission(part.ToolName) {
		case agent.PermissionDeny:
			d.finishDenied(part, sessionID, messageID,
				fmt.Sprintf("Tool %q is not permitted for the %s agent.", part.ToolName, agentCfg.Name))
			return nil
		case agent.PermissionAsk:
			// Confirmation flows are not interactive here; an ask rule
			// without a prompter behaves as a deny with explanation.
			d.finishDenied(part, sessionID, messageID,
				fmt.Sprintf("Tool %q requires confirmation which is unavailable in this mode.", part.ToolName))
			return nil
		}
	}

	part.Status = types.StatusRunning
	part.StartTime = time.Now().UnixMilli()

	event.Publish(event.Event{
		Type:      event.ToolStart,
		SessionID: sessionID,
		Data: event.ToolStartData{
			MessageID: messageID,
			ToolID:    part.ID,
			ToolName:  part.ToolName,
			Brief:     d.registry.FormatToolStart(part.ToolName, part.Input),
		},
	})

	result, execErr := d.invoke(ctx, part, agentCfg, sessionID, messageID)

	part.EndTime = time.Now().UnixMilli()
	var typedErr error
	switch {
	case execErr == nil:
		part.Status = types.StatusCompleted
		if result != nil {
			part.Output = result.Output
			part.Metadata = result.Metadata
			if result.Status != "" {
				part.Status = result.Status
			}
		}
	default:
		typedErr = d.normalizeError(part, execErr)
	}

	d.publishComplete(part, sessionID, messageID)
	return typedErr
}

func (d *Dispatcher) invoke(ctx context.Context, part *types.ToolPart, agentCfg *agent.Config, sessionID, messageID string) (*Result, error) {
	t, ok := d.registry.Get(part.ToolName)
	if !ok {
		return nil, &Error{ToolName: part.ToolName, Message: fmt.Sprintf("unknown tool (available: %v)", d.registry.IDs())}
	}

	input, err := json.Marshal(part.Input)
	if err != nil {
		return nil, &Error{ToolName: part.ToolName, Message: "unserializable input: " + err.Error()}
	}

	agentName := ""
	if agentCfg != nil {
		agentName = agentCfg.Name
	}
	toolCtx := &Context{
		SessionID:   sessionID,
		MessageID:   messageID,
		CallID:      part.ID,
		Agent:       agentName,
		AgentConfig: agentCfg,
		WorkDir:     d.workDir,
		Guard:       d.guard,
		Control:     d.control,
		Store:       d.store,
		Config:      d.config,
		Dispatcher:  d,
		RunSubAgent: d.runSubAgent,
	}
	return t.Execute(ctx, input, toolCtx)
}

// normalizeError sets status and output on the part, then returns the
// typed error the loop should see.
func (d *Dispatcher) normalizeError(part *types.ToolPart, execErr error) error {
	var denied *pathguard.DeniedError
	var timeout *TimeoutError
	var toolErr *Error

	switch {
	case errors.As(execErr, &denied):
		part.Status = types.StatusError
		part.Output = denied.Error()
		return denied
	case errors.As(execErr, &timeout):
		part.Status = types.StatusTimeout
		part.Output = timeout.Error()
		return timeout
	case errors.Is(execErr, os.ErrNotExist):
		part.Status = types.StatusError
		part.Output = "File not found: " + execErr.Error()
		return &Error{ToolName: part.ToolName, Message: part.Output}
	case errors.As(execErr, &toolErr):
		part.Status = types.StatusError
		part.Output = toolErr.Message
		return toolErr
	default:
		part.Status = types.StatusError
		part.Output = "Unexpected error: " + execErr.Error()
		logging.Warn().Err(execErr).Str("tool", part.ToolName).Msg("tool execution failed")
		return &Error{ToolName: part.ToolName, Message: part.Output}
	}
}

func (d *Dispatcher) finishDenied(part *types.ToolPart, sessionID, messageID, explanation string) {
	now := time.Now().UnixMilli()
	part.StartTime = now

	event.Publish(event.Event{
		Type:      event.ToolStart,
		SessionID: sessionID,
		Data: event.ToolStartData{
			MessageID: messageID,
			ToolID:    part.ID,
			ToolName:  part.ToolName,
			Brief:     d.registry.FormatToolStart(part.ToolName, part.Input),
		},
	})

	part.Status = types.StatusError
	part.Output = explanation
	part.EndTime = time.Now().UnixMilli()
	d.publishComplete(part, sessionID, messageID)
}

func (d *Dispatcher) publishComplete(part *types.ToolPart, sessionID, messageID string) {
	duration := part.EndTime - part.StartTime
	event.Publish(event.Event{
		Type:      event.ToolComplete,
		SessionID: sessionID,
		Data: event.ToolCompleteData{
			MessageID:  messageID,
			ToolID:     part.ID,
			ToolName:   part.ToolName,
			Status:     part.Status,
			Brief:      d.registry.FormatToolComplete(part.ToolName, part.Output, part.Status, duration, part.Metadata),
			DurationMS: duration,
			Output:     part.Output,
		},
	})
}
