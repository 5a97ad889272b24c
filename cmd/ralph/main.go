// Command ralph loads ralph.yml and drives the event loop to
// termination. The richer front-end (init/plan/task, presets, SOPs)
// lives outside this binary; this is the orchestration core as a
// runnable.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steveyegge/ralph/internal/cli"
	"github.com/steveyegge/ralph/internal/eventlog"
	"github.com/steveyegge/ralph/internal/hatconfig"
	"github.com/steveyegge/ralph/internal/orchestrator"
	"github.com/steveyegge/ralph/internal/session"
)

// Exit codes per the loop contract.
const (
	exitOK        = 0
	exitConfig    = 1
	exitNoBackend = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		eventsPath string
		recordPath string
		indexPath  string
	)

	root := &cobra.Command{
		Use:           "ralph",
		Short:         "Event-driven orchestrator for CLI coding agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var exitCode int
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the event loop until a termination trigger fires",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runLoop(cmd.Context(), configPath, eventsPath, recordPath, indexPath)
			exitCode = code
			return err
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "ralph.yml", "path to the config file")
	runCmd.Flags().StringVar(&eventsPath, "events", ".agent/events.jsonl", "path to the event log")
	runCmd.Flags().StringVar(&recordPath, "record", "", "record the session to this file")
	runCmd.Flags().StringVar(&indexPath, "index", "", "maintain a SQLite topic index of the event log at this path")
	root.AddCommand(runCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ralph: %v\n", err)
		if exitCode == exitOK {
			exitCode = exitConfig
		}
	}
	return exitCode
}

func runLoop(ctx context.Context, configPath, eventsPath, recordPath, indexPath string) (int, error) {
	cfg, err := hatconfig.Load(configPath)
	if err != nil {
		return exitConfig, err
	}

	if cfg.Cli.Backend == "auto" {
		backend, err := cli.DetectBackend()
		if err != nil {
			var noBackend *cli.NoBackendError
			if errors.As(err, &noBackend) {
				return exitNoBackend, fmt.Errorf("%w (PATH=%s)", err, os.Getenv("PATH"))
			}
			return exitNoBackend, err
		}
		// Resolve once so every hat inheriting cli.backend gets the
		// concrete name.
		cfg.Cli.Backend = string(backend)
	}

	if dir := filepath.Dir(eventsPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exitConfig, fmt.Errorf("create event log directory: %w", err)
		}
	}
	log := eventlog.Open(eventsPath)
	if indexPath != "" {
		index, err := eventlog.OpenSQLiteIndex(indexPath)
		if err != nil {
			return exitConfig, err
		}
		defer index.Close()
		if err := index.Rebuild(log); err != nil {
			return exitConfig, err
		}
		log.SetIndex(index)
	}
	loop := orchestrator.New(cfg, log, orchestrator.NewCliRunner())

	if recordPath != "" {
		recorder, err := session.NewRecorder(recordPath)
		if err != nil {
			return exitConfig, err
		}
		defer recorder.Close()
		loop.Bus().SetObserver(recorder.Observer())
	}

	reason, err := loop.Run(ctx)
	if err != nil {
		return exitConfig, err
	}

	fmt.Fprintf(os.Stderr, "loop terminated: %s after %d iterations\n", reason, loop.State().Iteration)
	if reason == orchestrator.TerminationCancelled {
		return exitCancelled, nil
	}
	return exitOK, nil
}
