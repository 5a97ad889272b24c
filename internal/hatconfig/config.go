// Package hatconfig parses ralph.yml into the loop's configuration model
// and builds the hat registry, including the default-publishes
// inference.
package hatconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KnownBackends lists the built-in backend names in the same priority
// order that internal/cli.DetectBackend probes. Validate does not
// restrict cli.backend to this list: any non-empty name is accepted as
// a custom backend.
var KnownBackends = []string{"claude", "gemini", "codex", "amp", "kiro"}

// Config is the top-level parsed ralph.yml. It is immutable after Load
// for the lifetime of a loop run; the default-publishes inference is
// computed on demand by Registry rather than written back into this
// struct.
type Config struct {
	Core      CoreConfig           `yaml:"core"`
	EventLoop EventLoopConfig      `yaml:"event_loop"`
	Cli       CliConfig            `yaml:"cli"`
	Hats      map[string]HatConfig `yaml:"hats"`
}

// CoreConfig holds paths and guardrail text shared by every hat and by
// solo-mode Ralph.
type CoreConfig struct {
	// Scratchpad is the path to the agent's working-notes file.
	Scratchpad string `yaml:"scratchpad"`
	// SpecsDir is the path to the directory of spec documents the agent
	// should consult.
	SpecsDir string `yaml:"specs_dir"`
	// Guardrails are plain-text rules injected into every prompt.
	Guardrails []string `yaml:"guardrails"`
}

// EventLoopConfig bounds a single run of the event loop.
type EventLoopConfig struct {
	// CompletionPromise is the sentinel substring that, found anywhere in
	// an agent's combined stdout+stderr, terminates the loop.
	// Default: "LOOP_COMPLETE".
	CompletionPromise string `yaml:"completion_promise"`

	// MaxIterations caps the number of hat/Ralph runs before the loop
	// terminates with reason IterationLimit. Zero means unbounded.
	MaxIterations uint `yaml:"max_iterations"`

	// MaxRuntimeSeconds caps wall-clock elapsed time since loop start
	// before the loop terminates with reason TimeLimit. Zero means
	// unbounded.
	MaxRuntimeSeconds uint `yaml:"max_runtime_seconds"`

	// StopOnAgentError controls whether a subprocess non-zero exit
	// terminates the loop outright or is merely fed to Ralph/the next hat
	// as context. Default: false.
	StopOnAgentError bool `yaml:"stop_on_agent_error"`

	// HatTimeoutSeconds caps a single hat (or Ralph) invocation. Exceeding
	// it cancels that subprocess only, not the loop. Zero means unbounded.
	HatTimeoutSeconds uint `yaml:"hat_timeout_seconds"`
}

// CliConfig selects the agent backend.
type CliConfig struct {
	// Backend is "auto" (probe KnownBackends in order), one of
	// KnownBackends, or a custom backend name.
	Backend string `yaml:"backend"`
}

// HatConfig is one entry under hats: in ralph.yml.
type HatConfig struct {
	Name      string   `yaml:"name"`
	Triggers  []string `yaml:"triggers"`
	Publishes []string `yaml:"publishes"`
	Backend   string   `yaml:"backend"`
}

// DefaultConfig returns the configuration used when ralph.yml omits a
// section entirely.
func DefaultConfig() Config {
	return Config{
		EventLoop: EventLoopConfig{
			CompletionPromise: "LOOP_COMPLETE",
			StopOnAgentError:  false,
		},
		Cli: CliConfig{Backend: "auto"},
	}
}

// Load reads and parses the YAML file at path, filling unset sections
// with DefaultConfig's values, and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hatconfig: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("hatconfig: parse %s: %w", path, err)
	}
	if cfg.EventLoop.CompletionPromise == "" {
		cfg.EventLoop.CompletionPromise = "LOOP_COMPLETE"
	}
	if cfg.Cli.Backend == "" {
		cfg.Cli.Backend = "auto"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects an empty cli.backend and an empty or duplicate hat
// id; any other non-empty backend name is accepted as a custom backend.
// Config errors surface to the caller and refuse to start; they are
// never silently corrected.
func (c Config) Validate() error {
	if c.Cli.Backend != "auto" && !isKnownOrCustom(c.Cli.Backend) {
		return fmt.Errorf("hatconfig: cli.backend must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Hats))
	for id := range c.Hats {
		if id == "" {
			return fmt.Errorf("hatconfig: hat id must not be empty")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("hatconfig: duplicate hat id %q", id)
		}
		seen[id] = struct{}{}

		// An empty hat.Backend means "inherit cli.backend"; only an
		// explicitly empty-string override after trimming is rejected,
		// which yaml.v3 cannot produce, so there is nothing further to
		// check here beyond the id/duplicate checks above.
	}

	return nil
}

func isKnownOrCustom(name string) bool {
	// Any non-empty name is accepted as a custom backend: the CLI
	// execution layer only rejects an *empty* name outright, and an
	// unknown-but-nonempty name is resolved only at the point
	// auto-detection or execution actually needs it; see
	// internal/cli.ValidateBackend.
	return name != ""
}
