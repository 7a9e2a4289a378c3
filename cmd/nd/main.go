// Command nd is the CLI front-end for notify-done (spec.md §6): it talks to
// a running notify-doned over its Unix socket, manages configuration, and
// doubles as a foreground command wrapper ("nd -- <command>").
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JacquesDurand/notify-done/internal/config"
	"github.com/JacquesDurand/notify-done/internal/daemon"
	"github.com/JacquesDurand/notify-done/internal/executor"
	"github.com/JacquesDurand/notify-done/internal/notifier"
	"github.com/JacquesDurand/notify-done/internal/session"
	"github.com/JacquesDurand/notify-done/internal/tracker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		threshold uint64
		name      string
		quiet     bool
	)

	root := &cobra.Command{
		Use:   "nd",
		Short: "Notify when long-running commands complete",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runForeground(cmd.Context(), args, threshold, name, quiet)
		},
	}
	root.PersistentFlags().Uint64VarP(&threshold, "threshold", "t", 0, "only notify if command takes longer than this (seconds)")
	root.PersistentFlags().StringVarP(&name, "name", "n", "", "custom name for task in notification")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress notification")

	root.AddCommand(newStatusCmd(), newListCmd(), newHistoryCmd(), newConfigCmd(), newTestCmd(), newWatchCmd(), newDaemonCmd())
	return root
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon.IsRunning() {
				fmt.Println("notify-doned is running")
				return nil
			}
			fmt.Println("notify-doned is not running")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List currently running tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := daemon.Connect()
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			defer c.Close()

			tasks, err := c.ListTasks()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tCOMMAND\tRUNNING")
			for _, t := range tasks {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.PID, t.Command, time.Since(t.StartedAt).Round(time.Second))
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := daemon.Connect()
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			defer c.Close()

			entries, err := c.GetHistory(count)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COMMAND\tEXIT\tDURATION\tWHEN")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Command, e.ExitCode, notifier.FormatDuration(e.Duration), e.CompletedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 10, "number of entries to show")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var showPath, show, initFlag bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the CLI's configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case initFlag:
				path, err := config.InitCLIConfig()
				if err != nil {
					return err
				}
				fmt.Println("Wrote default config to", path)
				return nil
			case showPath:
				path, err := config.CLIConfigPath()
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			case show:
				cfg, err := config.LoadCLIConfig()
				if err != nil {
					return err
				}
				fmt.Printf("%+v\n", cfg)
				return nil
			default:
				return cmd.Help()
			}
		},
	}
	cmd.Flags().BoolVar(&showPath, "path", false, "show config file path")
	cmd.Flags().BoolVar(&show, "show", false, "show current configuration")
	cmd.Flags().BoolVar(&initFlag, "init", false, "initialize default config file")
	return cmd
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the caller's own session",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := uint32(os.Getuid())
			disc := session.New(nil)
			sess, ok := disc.GetSession(uid)
			if !ok {
				return fmt.Errorf("could not resolve a session for uid %d", uid)
			}
			return notifier.New(nil).SendTest(sess)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Tail the daemon's log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := exec.LookPath("journalctl"); err == nil {
				c := exec.Command("journalctl", "-u", "notify-done", "-f")
				c.Stdout = os.Stdout
				c.Stderr = os.Stderr
				return c.Run()
			}
			return fmt.Errorf("journalctl not found; no fallback log file configured")
		},
	}
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the notify-doned background process",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start notify-doned in the background",
			RunE: func(cmd *cobra.Command, args []string) error {
				if daemon.IsRunning() {
					fmt.Println("notify-doned is already running")
					return nil
				}
				exe, err := exec.LookPath("notify-doned")
				if err != nil {
					return fmt.Errorf("notify-doned not found in PATH: %w", err)
				}
				c := exec.Command(exe)
				c.Env = append(os.Environ(), "ND_DAEMON_CHILD=1")
				c.Stdin = nil
				c.Stdout = nil
				c.Stderr = nil
				if err := c.Start(); err != nil {
					return fmt.Errorf("failed to start notify-doned: %w", err)
				}
				fmt.Println("notify-doned started, pid", c.Process.Pid)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Request notify-doned shutdown",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := daemon.Connect()
				if err != nil {
					return fmt.Errorf("daemon not reachable: %w", err)
				}
				defer c.Close()
				return c.Shutdown()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Check whether notify-doned is running",
			RunE: func(cmd *cobra.Command, args []string) error {
				if daemon.IsRunning() {
					fmt.Println("running")
					return nil
				}
				fmt.Println("stopped")
				return nil
			},
		},
	)
	return cmd
}

func runForeground(ctx context.Context, args []string, threshold uint64, name string, quiet bool) error {
	taskID := uuid.NewString()

	var client *daemon.Client
	if c, err := daemon.Connect(); err == nil {
		client = c
		defer client.Close()
		_ = client.RegisterTask(taskID, strings.Join(args, " "), name, uint32(os.Getpid()))
	}

	result, err := executor.Run(ctx, args)
	if err != nil {
		return err
	}

	if client != nil {
		_ = client.CompleteTask(taskID, result.ExitCode, result.Duration)
	}

	if !quiet && uint64(result.Duration.Seconds()) >= threshold {
		notifyForeground(result, name)
	}

	os.Exit(int(result.ExitCode))
	return nil
}

func notifyForeground(result executor.Result, name string) {
	uid := uint32(os.Getuid())
	disc := session.New(nil)
	sess, ok := disc.GetSession(uid)
	if !ok {
		return
	}

	displayName := result.Command
	if name != "" {
		displayName = name
	}

	notifier.New(nil).Notify(sess, tracker.CompletedProcess{
		Comm:     displayName,
		ExitCode: result.ExitCode,
		Duration: result.Duration,
	})
}
