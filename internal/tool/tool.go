// Package tool provides the tool framework: registry, dispatcher, and the
// built-in tool implementations.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/control"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description shown to the model.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute runs the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// StartFormatter lets a tool customize its tool-start brief.
type StartFormatter interface {
	FormatStart(input map[string]any) string
}

// CompleteFormatter lets a tool customize its tool-complete brief.
type CompleteFormatter interface {
	FormatComplete(output, status string, durationMS int64, metadata map[string]any) string
}

// OutputHider marks tools whose raw output should not be rendered.
type OutputHider interface {
	HideOutput() bool
}

// Context provides execution context to tools.
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	Agent     string
	WorkDir   string

	// AgentConfig is the active agent's full configuration, used by
	// batch to dispatch sub-calls under the same permission rules.
	AgentConfig *agent.Config

	Guard   *pathguard.Guard
	Control *control.Manager
	Store   *session.Store
	Config  *types.Config

	// Dispatcher is set so batch can re-dispatch sub-calls with the full
	// permission and event machinery.
	Dispatcher *Dispatcher

	// RunSubAgent runs a fresh loop in a child session and returns its
	// final assistant text and the subsession ID. Wired by the loop.
	RunSubAgent func(ctx context.Context, agentName, message string) (text, subsessionID string, err error)
}

// Result represents the output of a tool execution.
type Result struct {
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Status overrides the terminal status the dispatcher records.
	// Empty means completed. Used by batch (partial) and bash (timeout).
	Status string `json:"-"`
}

// Error is a recoverable tool failure: the model sees it as an error
// result and the loop continues.
type Error struct {
	ToolName string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s", e.ToolName, e.Message)
}

// TimeoutError marks a tool that exceeded its own deadline. The
// dispatcher records status=timeout instead of error.
type TimeoutError struct {
	ToolName string
	Message  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out: %s", e.ToolName, e.Message)
}
