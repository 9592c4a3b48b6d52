package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/term"

	"github.com/wolo-ai/wolo/internal/agent"
	"github.com/wolo-ai/wolo/internal/compact"
	"github.com/wolo-ai/wolo/internal/config"
	"github.com/wolo-ai/wolo/internal/control"
	"github.com/wolo-ai/wolo/internal/llm"
	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/internal/loop"
	"github.com/wolo-ai/wolo/internal/pathguard"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/internal/tool"
	"github.com/wolo-ai/wolo/internal/watch"
	"github.com/wolo-ai/wolo/pkg/types"
)

// executeRun wires the full runtime and drives one task (or a REPL).
func executeRun(prompt string) error {
	ctx := context.Background()
	modeCfg := loop.ModeFor(string(modeName()))

	workDir, err := GetWorkDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return exitWith(ExitConfig, err)
	}
	endpoint, err := config.ResolveEndpoint(cfg, "")
	if err != nil {
		return exitWith(ExitConfig, err)
	}
	applyFlagOverrides(&endpoint)
	if endpoint.APIKey == "" && !strings.Contains(endpoint.BaseURL, "localhost") && !strings.Contains(endpoint.BaseURL, "127.0.0.1") {
		logging.Warn().Str("endpoint", endpoint.Name).Msg("no API key configured; requests may be rejected")
	}

	agentCfg, err := agent.Get(flagAgent)
	if err != nil {
		return exitWith(ExitGeneric, err)
	}

	store := session.NewStore(config.SessionsDir())
	sessID, err := resolveSession(ctx, store, agentCfg.Name)
	if err != nil {
		return exitWith(ExitSession, err)
	}

	ok, err := store.CheckAndSetPID(ctx, sessID)
	if err != nil {
		return exitWith(ExitSession, err)
	}
	if !ok {
		return exitWith(ExitSession, fmt.Errorf("session %s is already running; use wolo -w %s to watch it", sessID, sessID))
	}

	store.UpdateSessionMetadata(ctx, sessID, func(s *types.Session) {
		s.Workdir = workDir
		s.ExecutionMode = modeCfg.Name
	})

	guard := buildGuard(cfg, workDir, modeCfg)

	registry := tool.DefaultRegistry(workDir)
	mcpMgr := tool.NewMCPManager()
	if cfg.MCP.Enabled {
		mcpMgr.Connect(ctx, cfg.MCP, registry)
	}
	defer mcpMgr.Close()

	ctrl := control.NewManager()
	if modeCfg.EnableQuestionTool {
		ctrl.SetPrompter(terminalPrompter)
	}

	dispatcher := tool.NewDispatcher(registry, store, guard, ctrl, cfg, workDir)
	defer tool.Processes.KillAll()

	ws := watch.NewServer(sessID, store.WatchSocketPath(sessID))
	if err := ws.Start(); err != nil {
		logging.Warn().Err(err).Msg("watch server unavailable")
	}
	defer ws.Stop()

	render := newRenderer(os.Stdout, flagOutputStyle, flagJSON, flagNoColor)
	unsub := render.Attach()
	defer unsub()

	client := llm.NewClient(endpoint,
		llm.WithCorrelation(sessID, filepath.Base(workDir)),
		llm.WithDebugRecorder(llm.NewDebugRecorder(flagDebugFile, flagDebugDir)))
	engine := compact.New(store, cfg.Compaction, endpoint.ContextWindow)

	runLoop := loop.New(sessID, loop.Deps{
		Store:          store,
		Client:         client,
		Dispatcher:     dispatcher,
		Control:        ctrl,
		Engine:         engine,
		Agent:          agentCfg,
		Mode:           modeCfg,
		Metrics:        loop.NewMetrics(),
		MaxSteps:       flagMaxSteps,
		EnableThinking: cfg.EnableThink,
	})

	// First SIGINT interrupts the loop so in-flight tool results are
	// persisted; a second one kills the process outright.
	var gotSignal atomic.Int32
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGTERM {
				gotSignal.Store(int32(ExitSIGTERM))
				ctrl.Interrupt()
				continue
			}
			if !gotSignal.CompareAndSwap(0, int32(ExitSIGINT)) {
				tool.Processes.KillAll()
				os.Exit(ExitSIGINT)
			}
			ctrl.Interrupt()
		}
	}()

	// Raw-mode shortcuts clash with REPL line input, so the REPL relies
	// on SIGINT instead.
	if modeCfg.EnableKeyboardShortcuts && modeCfg.Name != types.ModeRepl && term.IsTerminal(int(os.Stdin.Fd())) {
		kb := control.NewKeyboardListener(ctrl, func() {
			tool.Processes.KillAll()
			os.Exit(ExitSIGINT)
		})
		if err := kb.Start(); err != nil {
			logging.Debug().Err(err).Msg("keyboard listener unavailable")
		}
		defer kb.Stop()
	}

	if modeCfg.ExitAfterTask {
		reason, err := runLoop.Run(ctx, prompt)
		return finishResult(reason, err, &gotSignal)
	}
	return replSession(ctx, runLoop, prompt, &gotSignal, render)
}

// replSession reads tasks line by line and feeds each to the loop.
func replSession(ctx context.Context, runLoop *loop.Loop, first string, gotSignal *atomic.Int32, r *renderer) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	input := first
	for {
		if input != "" {
			reason, err := runLoop.Run(ctx, input)
			if res := finishResult(reason, err, gotSignal); res != nil {
				var exit *exitError
				if errors.As(res, &exit) && exit.code == ExitQuota {
					r.println("step quota reached; continue with a new task or press Ctrl-D to exit")
				} else {
					return res
				}
			}
		}
		if code := gotSignal.Load(); code != 0 {
			return exitWith(int(code), nil)
		}

		fmt.Fprint(os.Stderr, "wolo> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return nil
		}
		input = strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			return nil
		}
	}
}

// finishResult maps a finished run to the process exit code.
func finishResult(reason string, err error, gotSignal *atomic.Int32) error {
	if code := gotSignal.Load(); code != 0 {
		return exitWith(int(code), nil)
	}
	if err != nil {
		return exitWith(ExitGeneric, err)
	}
	switch reason {
	case loop.FinishMaxSteps:
		return exitWith(ExitQuota, fmt.Errorf("step quota reached before the task completed"))
	case loop.FinishPathSafety:
		return exitWith(ExitGeneric, fmt.Errorf("task cancelled: a write outside the allowed paths was denied"))
	case loop.FinishInterrupted:
		return exitWith(ExitSIGINT, nil)
	default:
		return nil
	}
}

// resolveSession picks the session for this run from -r / -s, creating
// one when needed.
func resolveSession(ctx context.Context, store *session.Store, agentName string) (string, error) {
	if flagResume != "" {
		if _, err := store.GetSessionMetadata(ctx, flagResume); err != nil {
			return "", fmt.Errorf("resume %s: %w", flagResume, err)
		}
		return flagResume, nil
	}
	if flagSession != "" {
		if _, err := store.GetSessionMetadata(ctx, flagSession); err == nil {
			return flagSession, nil
		}
		if _, err := store.CreateSession(ctx, flagSession, agentName); err != nil {
			return "", err
		}
		return flagSession, nil
	}
	sess, err := store.CreateSession(ctx, "", agentName)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// buildGuard constructs the path guard. SOLO runs wild unless the user
// or the config narrows writes down; COOP and REPL never imply wild.
func buildGuard(cfg *types.Config, workDir string, modeCfg loop.ModeConfig) *pathguard.Guard {
	wild := flagWild
	implied := false
	if modeCfg.Name == types.ModeSolo && !wild &&
		len(flagAllowPaths) == 0 && len(cfg.PathSafety.AllowedWritePaths) == 0 {
		wild = true
		implied = true
	}

	auditor := pathguard.NewAuditor(
		config.AuditLogPath(cfg.PathSafety.AuditLogFile),
		cfg.PathSafety.AuditDenied,
	)
	g := pathguard.New(cfg.PathSafety.AllowedWritePaths, flagAllowPaths, workDir, wild, auditor)
	if implied {
		g.WarnSoloWild()
	} else if wild {
		logging.Warn().Msg("path safety disabled: writes are not restricted")
	}
	return g
}

func applyFlagOverrides(ep *types.EndpointConfig) {
	if flagModel != "" {
		ep.Model = flagModel
	}
	if flagBaseURL != "" {
		ep.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		ep.APIKey = flagAPIKey
	}
}

// terminalPrompter answers agent questions from the controlling terminal.
func terminalPrompter(ctx context.Context, question string, options []string) (string, error) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return "", fmt.Errorf("no terminal available to answer question: %w", err)
	}
	defer tty.Close()

	fmt.Fprintf(os.Stderr, "\n? %s\n", question)
	for i, opt := range options {
		fmt.Fprintf(os.Stderr, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprint(os.Stderr, "> ")

	answered := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(tty)
		if scanner.Scan() {
			answered <- strings.TrimSpace(scanner.Text())
		} else {
			answered <- ""
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case answer := <-answered:
		for i, opt := range options {
			if answer == fmt.Sprintf("%d", i+1) {
				return opt, nil
			}
		}
		return answer, nil
	}
}
