package hatconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySoloWhenNoHats(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	assert.True(t, r.Solo())
	assert.Empty(t, r.Hats())
}

func TestRegistryBuildsHatsFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hats = map[string]HatConfig{
		"planner": {Name: "Planner", Triggers: []string{"task.start"}, Publishes: []string{"build.task"}},
		"builder": {Name: "Builder", Triggers: []string{"build.task"}},
	}
	r := NewRegistry(cfg)
	require.False(t, r.Solo())

	planner, ok := r.Get("planner")
	require.True(t, ok)
	assert.Equal(t, "Planner", planner.Name)
	assert.Equal(t, []string{"task.start"}, planner.Subscribes)
}

func TestRegistryHatsDeterministicOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hats = map[string]HatConfig{
		"zeta":  {Name: "Zeta"},
		"alpha": {Name: "Alpha"},
		"mid":   {Name: "Mid"},
	}
	r := NewRegistry(cfg)
	var ids []string
	for _, h := range r.Hats() {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestRegistryExplicitPublishesWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hats = map[string]HatConfig{
		"planner": {Name: "Planner", Triggers: []string{"task.start"}, Publishes: []string{"build.task"}},
		"builder": {Name: "Builder", Triggers: []string{"build.task"}},
	}
	r := NewRegistry(cfg)
	assert.Equal(t, []string{"build.task"}, r.PublishHint("planner"))
}

func TestRegistryInfersDefaultPublishesForHatWithoutPublishes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hats = map[string]HatConfig{
		"planner": {Name: "Planner", Triggers: []string{"task.start"}},
		"builder": {Name: "Builder", Triggers: []string{"build.task"}},
	}
	r := NewRegistry(cfg)

	// planner subscribes to task.start, so its inferred publish hint is
	// every other subscription in the topology: build.task.
	assert.Equal(t, []string{"build.task"}, r.PublishHint("planner"))
	assert.Equal(t, []string{"task.start"}, r.PublishHint("builder"))
}

func TestRegistryHatInheritsGlobalBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cli.Backend = "claude"
	cfg.Hats = map[string]HatConfig{"planner": {Name: "Planner"}}
	r := NewRegistry(cfg)
	planner, _ := r.Get("planner")
	assert.Equal(t, "claude", planner.Command.Backend)
}

func TestRegistryHatOverridesGlobalBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cli.Backend = "claude"
	cfg.Hats = map[string]HatConfig{"planner": {Name: "Planner", Backend: "gemini"}}
	r := NewRegistry(cfg)
	planner, _ := r.Get("planner")
	assert.Equal(t, "gemini", planner.Command.Backend)
}
