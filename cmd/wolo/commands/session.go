package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolo-ai/wolo/internal/config"
	"github.com/wolo-ai/wolo/internal/session"
	"github.com/wolo-ai/wolo/internal/watch"
	"github.com/wolo-ai/wolo/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

func init() {
	sessionCmd.AddCommand(
		sessionListCmd,
		sessionShowCmd,
		sessionResumeCmd,
		sessionCreateCmd,
		sessionWatchCmd,
		sessionDeleteCmd,
		sessionCleanCmd,
	)
}

func openStore() *session.Store {
	return session.NewStore(config.SessionsDir())
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

func listSessions() error {
	store := openStore()
	listings, err := store.ListSessions(context.Background())
	if err != nil {
		return exitWith(ExitSession, err)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(listings)
	}
	if len(listings) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAGENT\tSTATUS\tMSGS\tUPDATED\tTITLE")
	for _, l := range listings {
		status := "idle"
		if l.IsRunning {
			status = fmt.Sprintf("running (pid %d)", l.PID)
		}
		updated := time.UnixMilli(l.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID, l.AgentType, status, l.MessageCount, updated, l.Title)
	}
	return w.Flush()
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's metadata and transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()
		sess, messages, err := store.LoadFullSession(context.Background(), args[0])
		if err != nil {
			return exitWith(ExitSession, err)
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"session":  sess,
				"messages": messages,
			})
		}

		fmt.Printf("session:  %s\n", sess.ID)
		fmt.Printf("agent:    %s\n", sess.AgentType)
		fmt.Printf("created:  %s\n", time.UnixMilli(sess.CreatedAt).Format(time.RFC3339))
		if sess.Title != "" {
			fmt.Printf("title:    %s\n", sess.Title)
		}
		if len(sess.Compactions) > 0 {
			fmt.Printf("compactions: %d\n", len(sess.Compactions))
		}
		fmt.Println()
		for _, msg := range messages {
			fmt.Printf("[%s] %s\n", msg.Role, msg.TextContent())
			for _, part := range msg.Parts {
				if tp, ok := part.(*types.ToolPart); ok {
					fmt.Printf("  tool %s (%s)\n", tp.ToolName, tp.Status)
				}
			}
		}
		return nil
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <session-id> [prompt]",
	Short: "Resume a session, optionally with a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flagResume = args[0]
		prompt, err := assemblePrompt(args[1:])
		if err != nil {
			return err
		}
		return executeRun(prompt)
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a session without running it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		sess, err := openStore().CreateSession(context.Background(), name, flagAgent)
		if err != nil {
			return exitWith(ExitSession, err)
		}
		fmt.Println(sess.ID)
		return nil
	},
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Stream a running session's events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchSession(args[0])
	},
}

// watchSession follows a session's live event stream until interrupted.
func watchSession(sessionID string) error {
	store := openStore()
	status := store.GetSessionStatus(context.Background(), sessionID)
	if !status.Exists {
		return exitWith(ExitSession, fmt.Errorf("session %s not found", sessionID))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	err := watch.Follow(ctx, store.WatchSocketPath(sessionID), store.Dir(sessionID), os.Stdout)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()
		status := store.GetSessionStatus(context.Background(), args[0])
		if status.IsRunning {
			return exitWith(ExitSession, fmt.Errorf("session %s is running (pid %d); interrupt it first", args[0], status.PID))
		}
		if err := store.DeleteSession(context.Background(), args[0]); err != nil {
			return exitWith(ExitSession, err)
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var flagCleanDays int

func init() {
	sessionCleanCmd.Flags().IntVar(&flagCleanDays, "older-than", 0, "Only delete sessions idle for at least this many days")
}

var sessionCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete sessions that are not running",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store := openStore()
		listings, err := store.ListSessions(ctx)
		if err != nil {
			return exitWith(ExitSession, err)
		}
		cutoff := time.Now().AddDate(0, 0, -flagCleanDays).UnixMilli()
		removed := 0
		for _, l := range listings {
			if l.IsRunning {
				continue
			}
			if flagCleanDays > 0 && l.UpdatedAt > cutoff {
				continue
			}
			if err := store.DeleteSession(ctx, l.ID); err != nil {
				fmt.Fprintf(os.Stderr, "skip %s: %v\n", l.ID, err)
				continue
			}
			removed++
		}
		fmt.Printf("removed %d session(s)\n", removed)
		return nil
	},
}
