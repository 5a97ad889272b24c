// Package orchestrator implements the top-level event loop: it drains
// the durable event log, routes events through the bus to hats, runs the
// chosen hat's agent through the CLI layer, and falls back to solo-mode
// Ralph when nothing matches.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/ralph/internal/cli"
	"github.com/steveyegge/ralph/internal/eventlog"
	"github.com/steveyegge/ralph/internal/hatconfig"
	"github.com/steveyegge/ralph/internal/proto"
)

// ErrorTopic is the reserved topic recoverable loop errors are published
// on, so observers and replay see them as part of the event stream.
const ErrorTopic = "loop.error"

// loopSource marks events the loop itself emits.
const loopSource = "loop"

// TerminationReason is why the loop stopped. Empty means still running.
type TerminationReason string

const (
	TerminationNone              TerminationReason = ""
	TerminationIterationLimit    TerminationReason = "iteration_limit"
	TerminationTimeLimit         TerminationReason = "time_limit"
	TerminationCompletionPromise TerminationReason = "completion_promise"
	TerminationCancelled         TerminationReason = "cancelled"
	TerminationError             TerminationReason = "error"
)

// LoopState is the observable loop progress snapshot.
type LoopState struct {
	Iteration   uint
	StartedAt   time.Time
	LastEventAt time.Time
	Termination TerminationReason
}

// Running reports whether the loop may still dispatch.
func (s LoopState) Running() bool {
	return s.Termination == TerminationNone
}

// Runner executes one prompt through an agent backend and returns the
// aggregated result. cli.Executor satisfies it via CliRunner; tests use
// MockBackend.
type Runner interface {
	Execute(ctx context.Context, backend, prompt string) (cli.ExecutionResult, error)
}

// CliRunner is the production Runner: one pipe-mode executor per
// backend, created lazily and reused across iterations so the version
// probe happens once.
type CliRunner struct {
	executors map[string]*cli.Executor
}

// NewCliRunner returns an empty runner; executors are created on first
// use per backend.
func NewCliRunner() *CliRunner {
	return &CliRunner{executors: make(map[string]*cli.Executor)}
}

func (r *CliRunner) Execute(ctx context.Context, backend, prompt string) (cli.ExecutionResult, error) {
	ex, ok := r.executors[backend]
	if !ok {
		ex = cli.NewExecutor(cli.Backend(backend))
		r.executors[backend] = ex
	}
	return ex.Execute(ctx, prompt)
}

// UpdateFunc receives the loop state and any newly appended events after
// each iteration. Called from the loop's goroutine.
type UpdateFunc func(state LoopState, newEvents []proto.Event)

// EventLoop drives the whole orchestration. It is single-threaded
// cooperative: publish, dispatch, and one agent run are strictly
// ordered, and events a hat emits become visible to other hats only on
// the next iteration's log drain.
type EventLoop struct {
	cfg      hatconfig.Config
	registry *hatconfig.Registry
	bus      *proto.Bus
	log      *eventlog.Log
	runner   Runner

	state   LoopState
	offset  int64
	orphans []proto.Event
	thrash  *thrashDetector

	pollInterval time.Duration
	onUpdate     UpdateFunc
}

// New builds a loop from cfg, backed by log and executing through
// runner. Hats from cfg are registered on a fresh bus in the registry's
// deterministic order.
func New(cfg hatconfig.Config, log *eventlog.Log, runner Runner) *EventLoop {
	registry := hatconfig.NewRegistry(cfg)
	bus := proto.NewBus()
	for _, hat := range registry.Hats() {
		bus.Register(hat)
	}
	return &EventLoop{
		cfg:          cfg,
		registry:     registry,
		bus:          bus,
		log:          log,
		runner:       runner,
		thrash:       newThrashDetector(0, 0),
		pollInterval: time.Second,
	}
}

// Bus exposes the loop's bus so a recorder or TUI can install its
// observer before Run.
func (l *EventLoop) Bus() *proto.Bus {
	return l.bus
}

// State returns the current loop state snapshot.
func (l *EventLoop) State() LoopState {
	return l.state
}

// SetUpdateFunc installs the per-iteration state callback.
func (l *EventLoop) SetUpdateFunc(fn UpdateFunc) {
	l.onUpdate = fn
}

// SetPollInterval overrides the idle wait between empty iterations.
func (l *EventLoop) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

// ProcessEventsFromLog tails the log and publishes each new event into
// the bus. It returns true when Ralph must handle the batch: some event
// found no subscriber and no registered target. Transient read failures
// are retried once before surfacing.
func (l *EventLoop) ProcessEventsFromLog() (bool, error) {
	events, malformed, next, err := l.log.Tail(l.offset)
	if err != nil {
		events, malformed, next, err = l.log.Tail(l.offset)
		if err != nil {
			return false, fmt.Errorf("orchestrator: tail event log: %w", err)
		}
	}
	l.offset = next

	for _, m := range malformed {
		slog.Warn("orchestrator: malformed log line", "line", m.LineNumber, "error", m.Err)
	}

	ralphNeeded := false
	for _, event := range events {
		if event.Source == loopSource && event.Topic == ErrorTopic {
			// The loop's own diagnostics are for observers and replay, not
			// for re-dispatch.
			continue
		}
		l.state.LastEventAt = time.Now()
		recipients := l.bus.Publish(event)
		if len(recipients) == 0 {
			l.orphans = append(l.orphans, event)
			ralphNeeded = true
		}
	}
	return ralphNeeded, nil
}

// Run drives iterations until a termination trigger fires, returning the
// reason. The bus is drained one last time on cancellation so the
// observer sees everything that was appended.
func (l *EventLoop) Run(ctx context.Context) (TerminationReason, error) {
	l.state.StartedAt = time.Now()

	for {
		if reason := l.checkBounds(ctx); reason != TerminationNone {
			return l.terminate(reason), nil
		}

		ralphNeeded, err := l.ProcessEventsFromLog()
		if err != nil {
			l.publishError(err.Error())
			return l.terminate(TerminationError), err
		}

		if id, ok := l.bus.NextHatWithPending(); ok {
			if err := l.runHat(ctx, id); err != nil {
				return l.terminate(TerminationError), err
			}
			continue
		}

		// The backlog check matters when one drain batch carries both an
		// orphan and a hat-matched event: the hat wins that tick, and if
		// its agent emits nothing the next drain returns ralphNeeded=false
		// while the orphan still sits in l.orphans awaiting Ralph.
		if ralphNeeded || len(l.orphans) > 0 || l.registry.Solo() {
			done, err := l.runRalph(ctx, "")
			if err != nil {
				return l.terminate(TerminationError), err
			}
			if done {
				return l.terminate(TerminationCompletionPromise), nil
			}
			continue
		}

		// Multi-hat mode with nothing pending: idle until the log grows.
		select {
		case <-ctx.Done():
			return l.terminate(TerminationCancelled), nil
		case <-time.After(l.pollInterval):
		}
	}
}

// checkBounds evaluates the termination pre-conditions in fixed order:
// iteration ceiling, wall-clock ceiling, cancellation.
func (l *EventLoop) checkBounds(ctx context.Context) TerminationReason {
	el := l.cfg.EventLoop
	if el.MaxIterations > 0 && l.state.Iteration >= el.MaxIterations {
		return TerminationIterationLimit
	}
	if el.MaxRuntimeSeconds > 0 {
		if time.Since(l.state.StartedAt) >= time.Duration(el.MaxRuntimeSeconds)*time.Second {
			return TerminationTimeLimit
		}
	}
	select {
	case <-ctx.Done():
		return TerminationCancelled
	default:
	}
	return TerminationNone
}

// runHat executes one hat over its pending queue: build the prompt, run
// the agent, append whatever it emitted back to the log.
func (l *EventLoop) runHat(ctx context.Context, id string) error {
	hat, _ := l.bus.GetHat(id)
	pending := l.bus.TakePending(id)

	fmt.Fprintf(os.Stderr, "iteration %d: %s (%d events)\n", l.state.Iteration, id, len(pending))

	prompt := l.buildHatPrompt(hat, pending)
	result, err := l.execute(ctx, hat.Command.Backend, prompt)
	if err != nil {
		l.publishError(fmt.Sprintf("hat %s: %v", id, err))
		if l.cfg.EventLoop.StopOnAgentError {
			return fmt.Errorf("orchestrator: hat %s: %w", id, err)
		}
		l.finishIteration(nil)
		return nil
	}
	if result.Failed() {
		l.publishError(fmt.Sprintf("hat %s exited with code %d: %s",
			id, result.ExitCode, tailOf(result.Stderr, 500)))
		if l.cfg.EventLoop.StopOnAgentError {
			l.finishIteration(nil)
			return fmt.Errorf("orchestrator: hat %s exited with code %d", id, result.ExitCode)
		}
	}

	emitted := ParseEmittedEvents(agentText(result), id, time.Now())
	for _, event := range emitted {
		if l.thrash.Observe(event, time.Now()) {
			l.publishError(thrashMessage(event))
		}
		if err := l.log.Append(event); err != nil {
			return fmt.Errorf("orchestrator: append emitted event: %w", err)
		}
	}

	l.finishIteration(emitted)
	return nil
}

// runRalph composes and runs the fallback prompt once. Orphans pending
// from the last drain are handed over and cleared; each appended event
// is consumed by a hat or observed by Ralph at most once. Returns true
// when Ralph's output contains the completion promise.
func (l *EventLoop) runRalph(ctx context.Context, callerContext string) (bool, error) {
	pendingContext := callerContext
	if pendingContext == "" {
		pendingContext = formatOrphans(l.orphans)
	}
	l.orphans = nil

	fmt.Fprintf(os.Stderr, "iteration %d: ralph\n", l.state.Iteration)

	prompt := l.BuildRalphPrompt(pendingContext)
	result, err := l.execute(ctx, l.cfg.Cli.Backend, prompt)
	if err != nil {
		l.publishError(fmt.Sprintf("ralph: %v", err))
		if l.cfg.EventLoop.StopOnAgentError {
			return false, fmt.Errorf("orchestrator: ralph: %w", err)
		}
		l.finishIteration(nil)
		return false, nil
	}
	if result.Failed() {
		l.publishError(fmt.Sprintf("ralph exited with code %d: %s",
			result.ExitCode, tailOf(result.Stderr, 500)))
		if l.cfg.EventLoop.StopOnAgentError {
			l.finishIteration(nil)
			return false, fmt.Errorf("orchestrator: ralph exited with code %d", result.ExitCode)
		}
	}

	emitted := ParseEmittedEvents(agentText(result), loopSource, time.Now())
	for _, event := range emitted {
		if err := l.log.Append(event); err != nil {
			return false, fmt.Errorf("orchestrator: append emitted event: %w", err)
		}
	}

	done := l.CheckRalphCompletion(result.CombinedOutput())
	l.finishIteration(emitted)
	return done, nil
}

// execute runs one prompt with the per-invocation wall-clock cap.
// Exceeding the cap cancels that subprocess only, not the loop.
func (l *EventLoop) execute(ctx context.Context, backend, prompt string) (cli.ExecutionResult, error) {
	if secs := l.cfg.EventLoop.HatTimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}
	return l.runner.Execute(ctx, backend, prompt)
}

// publishError surfaces a recoverable error on the reserved topic, both
// to the log (for replay) and directly to the bus observer.
func (l *EventLoop) publishError(msg string) {
	event := proto.Event{
		Topic:   ErrorTopic,
		Payload: msg,
		Source:  loopSource,
		Ts:      time.Now().UTC(),
	}
	if err := l.log.Append(event); err != nil {
		slog.Error("orchestrator: cannot append loop.error", "error", err)
	}
	l.bus.Publish(event)
}

func (l *EventLoop) finishIteration(newEvents []proto.Event) {
	l.state.Iteration++
	if l.onUpdate != nil {
		l.onUpdate(l.state, newEvents)
	}
}

// terminate records the terminal state. On cancellation the bus is
// drained one last time so observers see every appended event; after
// this, no further dispatch occurs.
func (l *EventLoop) terminate(reason TerminationReason) TerminationReason {
	if reason == TerminationCancelled {
		if _, err := l.ProcessEventsFromLog(); err != nil {
			slog.Warn("orchestrator: final drain failed", "error", err)
		}
	}
	l.state.Termination = reason
	if l.onUpdate != nil {
		l.onUpdate(l.state, nil)
	}
	return reason
}

// agentText extracts the text an agent actually said: the assistant text
// blocks for a streaming backend, the raw combined output otherwise.
func agentText(result cli.ExecutionResult) string {
	if len(result.StreamEvents) == 0 {
		return result.CombinedOutput()
	}
	var parts []string
	for _, ev := range result.StreamEvents {
		if ev.Type != cli.StreamEventAssistant {
			continue
		}
		for _, block := range ev.Message.Content {
			if block.Type == cli.ContentText {
				parts = append(parts, block.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
