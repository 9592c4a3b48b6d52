// Package commands provides the CLI commands for wolo.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Version information set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitGeneric = 1
	ExitQuota   = 2
	ExitSession = 3
	ExitConfig  = 4
	ExitSIGINT  = 130
	ExitSIGTERM = 131
)

// exitError carries a specific process exit code up to Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// Mode and session flags.
var (
	flagSolo    bool
	flagCoop    bool
	flagRepl    bool
	flagSession string
	flagResume  string
	flagWatch   string
	flagList    bool
)

// Safety flags.
var (
	flagAllowPaths []string
	flagWild       bool
)

// Ergonomics flags.
var (
	flagWorkDir     string
	flagAgent       string
	flagMaxSteps    int
	flagModel       string
	flagBaseURL     string
	flagAPIKey      string
	flagNoColor     bool
	flagOutputStyle string
	flagJSON        bool
	flagDebugFile   string
	flagDebugDir    string
)

var rootCmd = &cobra.Command{
	Use:   "wolo [prompt]",
	Short: "wolo - autonomous terminal coding agent",
	Long: `wolo runs an AI coding agent in your terminal.

Give it a task and it works the task to completion: reading files,
editing code, and running commands, with write access gated by path
safety rules.

Examples:
  wolo "fix the failing test in pkg/parser"
  git diff | wolo "review this change"
  wolo --coop -a plan "draft a migration plan"
  wolo -w my-session        # observe a running session
  wolo -l                   # list sessions`,
	Version:      Version,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVar(&flagSolo, "solo", false, "Run unattended (default)")
	flags.BoolVar(&flagCoop, "coop", false, "Run cooperatively, asking before risky steps")
	flags.BoolVar(&flagRepl, "repl", false, "Interactive REPL session")
	rootCmd.MarkFlagsMutuallyExclusive("solo", "coop", "repl")

	flags.StringVarP(&flagSession, "session", "s", "", "Named session to create or continue")
	flags.StringVarP(&flagResume, "resume", "r", "", "Resume an existing session by ID")
	flags.StringVarP(&flagWatch, "watch", "w", "", "Watch a running session's events")
	flags.BoolVarP(&flagList, "list", "l", false, "List sessions with status")

	flags.StringArrayVarP(&flagAllowPaths, "allow-path", "P", nil, "Additional allowed write path (repeatable)")
	flags.BoolVarP(&flagWild, "wild", "W", false, "Disable path safety entirely")

	flags.StringVarP(&flagWorkDir, "workdir", "C", "", "Working directory")
	flags.StringVarP(&flagAgent, "agent", "a", "general", "Agent (general|plan|explore|compaction)")
	flags.IntVarP(&flagMaxSteps, "max-steps", "n", 0, "Step quota override")
	flags.StringVarP(&flagModel, "model", "m", "", "Model override")
	flags.StringVar(&flagBaseURL, "base-url", "", "Endpoint base URL override")
	flags.StringVar(&flagAPIKey, "api-key", "", "API key override")
	flags.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	flags.StringVar(&flagOutputStyle, "output-style", "default", "Output style (minimal|default|verbose)")
	flags.BoolVar(&flagJSON, "json", false, "Emit events as NDJSON")
	flags.StringVar(&flagDebugFile, "llm-debug-file", "", "Append raw LLM traffic to this file")
	flags.StringVar(&flagDebugDir, "llm-debug-dir", "", "Write one raw LLM trace file per request into this directory")

	rootCmd.SetVersionTemplate(fmt.Sprintf("wolo %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(replCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	godotenv.Load()
	logging.Init(logging.DefaultConfig())

	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, "error:", exit.err)
		}
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return ExitGeneric
}

func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case flagList:
		return listSessions()
	case flagWatch != "":
		return watchSession(flagWatch)
	}

	prompt, err := assemblePrompt(args)
	if err != nil {
		return err
	}
	if prompt == "" && !modeName().isRepl() && flagResume == "" {
		return exitWith(ExitGeneric, fmt.Errorf("a task is required; try: wolo \"describe the task\""))
	}
	return executeRun(prompt)
}

type mode string

func (m mode) isRepl() bool { return m == types.ModeRepl }

func modeName() mode {
	switch {
	case flagCoop:
		return mode(types.ModeCoop)
	case flagRepl:
		return mode(types.ModeRepl)
	default:
		return mode(types.ModeSolo)
	}
}

// assemblePrompt joins the positional argument with piped stdin. With
// both present, stdin becomes context and the argument the task.
func assemblePrompt(args []string) (string, error) {
	arg := strings.TrimSpace(strings.Join(args, " "))

	stdin := ""
	if !term.IsTerminal(int(os.Stdin.Fd())) && !modeName().isRepl() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		stdin = strings.TrimSpace(string(data))
	}

	switch {
	case arg != "" && stdin != "":
		return fmt.Sprintf("Context:\n%s\n\nTask:\n%s", stdin, arg), nil
	case stdin != "":
		return stdin, nil
	default:
		return arg, nil
	}
}

// GetWorkDir resolves the working directory flag.
func GetWorkDir() (string, error) {
	if flagWorkDir != "" {
		return flagWorkDir, nil
	}
	return os.Getwd()
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session (synonym for --repl)",
	RunE: func(cmd *cobra.Command, args []string) error {
		flagRepl = true
		return runRoot(cmd, args)
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session (synonym for --repl)",
	RunE: func(cmd *cobra.Command, args []string) error {
		flagRepl = true
		return runRoot(cmd, args)
	},
}
