package orchestrator

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/steveyegge/ralph/internal/cli"
	"github.com/steveyegge/ralph/internal/eventlog"
	"github.com/steveyegge/ralph/internal/hatconfig"
	"github.com/steveyegge/ralph/internal/proto"
)

// MockBackend is a Runner with scripted responses, for exercising the
// loop without spawning subprocesses. Responses are consumed in order;
// the last one repeats once the script runs out.
type MockBackend struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	backends  []string
}

// NewMockBackend returns a backend scripted with responses.
func NewMockBackend(responses []string) *MockBackend {
	return &MockBackend{responses: responses}
}

func (m *MockBackend) Execute(_ context.Context, backend, prompt string) (cli.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.backends = append(m.backends, backend)

	out := ""
	if idx >= 0 {
		out = m.responses[idx]
	}
	return cli.ExecutionResult{Stdout: out}, nil
}

// ExecutionCount returns how many times Execute was called.
func (m *MockBackend) ExecutionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns every prompt Execute received, in call order.
func (m *MockBackend) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Backends returns the backend name of every call, in call order.
func (m *MockBackend) Backends() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.backends...)
}

// Scenario is one scripted end-to-end loop run.
type Scenario struct {
	Name   string
	Config hatconfig.Config
	// Seed events are appended to the log before the loop starts.
	Seed []proto.Event
	// Dir is where the scenario's events.jsonl lives (a test temp dir).
	Dir string
}

// Trace is what a scenario run produced.
type Trace struct {
	Iterations  uint
	Termination TerminationReason
	// Topics is every event topic in the log after the run, in file
	// order.
	Topics []string
}

// ScenarioRunner runs scenarios against one backend.
type ScenarioRunner struct {
	backend Runner
}

// NewScenarioRunner returns a runner executing through backend.
func NewScenarioRunner(backend Runner) *ScenarioRunner {
	return &ScenarioRunner{backend: backend}
}

// Run seeds the log, drives the loop to termination, and returns the
// trace.
func (r *ScenarioRunner) Run(ctx context.Context, s Scenario) (Trace, error) {
	log := eventlog.Open(filepath.Join(s.Dir, "events.jsonl"))
	for _, event := range s.Seed {
		if err := log.Append(event); err != nil {
			return Trace{}, err
		}
	}

	loop := New(s.Config, log, r.backend)
	reason, err := loop.Run(ctx)
	if err != nil {
		return Trace{}, err
	}

	events, _, readErr := log.ReadAll()
	if readErr != nil {
		return Trace{}, readErr
	}
	trace := Trace{Iterations: loop.State().Iteration, Termination: reason}
	for _, event := range events {
		trace.Topics = append(trace.Topics, event.Topic)
	}
	return trace, nil
}
