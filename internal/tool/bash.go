package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wolo-ai/wolo/internal/pathguard"
)

const (
	DefaultBashTimeout = 30 * time.Second
	MaxBashTimeout     = 10 * time.Minute
	MaxOutputLength    = 30000
	sigkillGrace       = 200 * time.Millisecond
)

const bashDescription = `Executes a shell command and returns its combined output.

Usage:
- Command is required; provide a brief description of what it does
- Optional timeout in milliseconds (default 30000, max 600000)
- Commands run in their own process group so timeouts kill the whole tree
- Output is captured from stdout and stderr, truncated at 30000 bytes`

// BashTool implements shell command execution.
type BashTool struct {
	workDir string
}

// BashInput represents the input for the bash tool.
type BashInput struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"` // milliseconds
	Description string `json:"description,omitempty"`
}

// NewBashTool creates a new bash tool.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{workDir: workDir}
}

func (t *BashTool) ID() string          { return "bash" }
func (t *BashTool) Description() string { return bashDescription }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"timeout": {
				"type": "integer",
				"description": "Timeout in milliseconds (max 600000)"
			},
			"description": {
				"type": "string",
				"description": "Brief description of what this command does"
			}
		},
		"required": ["command"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params BashInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "invalid input: " + err.Error()}
	}
	if params.Command == "" {
		return nil, &Error{ToolName: t.ID(), Message: "command is required"}
	}

	timeout := DefaultBashTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > MaxBashTimeout {
			timeout = MaxBashTimeout
		}
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	if err := t.checkWriteTargets(params.Command, workDir, toolCtx); err != nil {
		return nil, err
	}

	cmd := exec.Command("/bin/sh", "-c", params.Command)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	// Own process group so a timeout can kill the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &Error{ToolName: t.ID(), Message: "cannot start command: " + err.Error()}
	}
	Processes.register(cmd)
	defer Processes.unregister(cmd)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var runErr error
	timedOut := false
	select {
	case runErr = <-done:
	case <-time.After(timeout):
		timedOut = true
		killProcessGroup(cmd)
		<-done
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		runErr = ctx.Err()
	}
	duration := time.Since(start)

	out := output.String()
	if len(out) > MaxOutputLength {
		out = out[:MaxOutputLength] + "\n... (output truncated)"
	}

	if timedOut {
		return nil, &TimeoutError{
			ToolName: t.ID(),
			Message:  fmt.Sprintf("command exceeded %s\n%s", timeout, out),
		}
	}

	exitCode := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return nil, &Error{ToolName: t.ID(), Message: runErr.Error() + "\n" + out}
	}

	meta := map[string]any{
		"exit_code":   exitCode,
		"duration_ms": duration.Milliseconds(),
	}
	if exitCode != 0 {
		return nil, &Error{
			ToolName: t.ID(),
			Message:  fmt.Sprintf("exit code %d\n%s", exitCode, out),
		}
	}
	return &Result{Output: out, Metadata: meta}, nil
}

// checkWriteTargets statically extracts the command's write targets and
// runs each through the path guard before anything executes. A command
// the parser cannot analyze is refused rather than trusted.
func (t *BashTool) checkWriteTargets(command, workDir string, toolCtx *Context) error {
	if toolCtx == nil || toolCtx.Guard == nil || toolCtx.Guard.WildMode() {
		return nil
	}
	targets, ok := pathguard.ShellWriteTargets(command)
	if !ok {
		return &Error{
			ToolName: t.ID(),
			Message:  "cannot verify the command's write targets; simplify it or use the write/edit tools",
		}
	}
	for _, target := range targets {
		if !filepath.IsAbs(target) {
			target = filepath.Join(workDir, target)
		}
		if err := toolCtx.Guard.CheckWrite(target); err != nil {
			return err
		}
	}
	return nil
}

func (t *BashTool) FormatStart(input map[string]any) string {
	if desc, ok := input["description"].(string); ok && desc != "" {
		return "bash: " + desc
	}
	command, _ := input["command"].(string)
	if len(command) > 80 {
		command = command[:77] + "..."
	}
	return "bash: " + command
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	syscall.Kill(pgid, syscall.SIGTERM)
	time.Sleep(sigkillGrace)
	syscall.Kill(pgid, syscall.SIGKILL)
}

// ProcessRegistry tracks live shell children so shutdown can terminate
// them before the loop tears down.
type ProcessRegistry struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// Processes is the process-wide registry.
var Processes = &ProcessRegistry{procs: make(map[int]*exec.Cmd)}

func (r *ProcessRegistry) register(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[cmd.Process.Pid] = cmd
}

func (r *ProcessRegistry) unregister(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, cmd.Process.Pid)
}

// Live returns the number of tracked children.
func (r *ProcessRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// KillAll terminates every tracked child process group.
func (r *ProcessRegistry) KillAll() {
	r.mu.Lock()
	procs := make([]*exec.Cmd, 0, len(r.procs))
	for _, cmd := range r.procs {
		procs = append(procs, cmd)
	}
	r.mu.Unlock()

	for _, cmd := range procs {
		killProcessGroup(cmd)
	}
}
