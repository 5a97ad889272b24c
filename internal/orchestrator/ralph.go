package orchestrator

import (
	"fmt"
	"strings"

	"github.com/steveyegge/ralph/internal/proto"
)

// BuildRalphPrompt composes the solo/fallback agent's prompt from the
// loaded config and the pending context. Fragments are assembled in a
// fixed order: core behaviors, paths, guardrails, mode section, the
// completion promise, then whatever input is pending. The promise is
// kept on its own line so the substring scan stays robust against
// surrounding template edits.
func (l *EventLoop) BuildRalphPrompt(pendingContext string) string {
	var b strings.Builder

	b.WriteString("You are Ralph, the orchestrator's default agent.\n\n")

	b.WriteString("CORE BEHAVIORS:\n")
	b.WriteString("- Fresh context each iteration: re-read the scratchpad and specs before acting.\n")
	b.WriteString("- Backpressure: do one coherent unit of work per iteration, then stop.\n")
	b.WriteString("- Record decisions and open threads in the scratchpad for the next iteration.\n")

	core := l.cfg.Core
	fmt.Fprintf(&b, "\nScratchpad: %s\n", core.Scratchpad)
	fmt.Fprintf(&b, "Specs: %s\n", core.SpecsDir)
	if len(core.Guardrails) > 0 {
		b.WriteString("\nGUARDRAILS:\n")
		for _, g := range core.Guardrails {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	if l.registry.Solo() {
		b.WriteString("\nSOLO MODE: no hats are configured. You're doing everything yourself.\n")
	} else {
		b.WriteString("\nMULTI-HAT MODE: events are routed to the team below; you only handle\n")
		b.WriteString("what fell through.\n\nMY TEAM:\n")
		for _, hat := range l.registry.Hats() {
			fmt.Fprintf(&b, "  %-12s %-16s subscribes: %s\n",
				hat.ID, hat.Name, strings.Join(hat.Subscribes, ", "))
		}
	}

	fmt.Fprintf(&b, "\nWhen every task is genuinely complete, output this exact line:\n%s\n",
		l.cfg.EventLoop.CompletionPromise)

	if pendingContext != "" {
		b.WriteString("\nPENDING INPUT:\n")
		b.WriteString(pendingContext)
		b.WriteString("\n")
	}

	return b.String()
}

// CheckRalphCompletion reports whether output contains the configured
// completion promise. It is a plain case-sensitive substring search over
// the combined stdout+stderr buffer; whitespace is preserved as-is.
func (l *EventLoop) CheckRalphCompletion(output string) bool {
	promise := l.cfg.EventLoop.CompletionPromise
	if promise == "" {
		return false
	}
	return strings.Contains(output, promise)
}

// formatOrphans renders orphaned events for Ralph's pending-input
// section, one per line as "[topic] payload".
func formatOrphans(events []proto.Event) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The following events had no subscriber; handle them:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "[%s] %s\n", e.Topic, e.Payload)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildHatPrompt composes a hat's prompt: who it is, the events it must
// handle, what it is documented to publish, and the shared guardrails.
func (l *EventLoop) buildHatPrompt(hat proto.Hat, events []proto.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are wearing the %s hat (%s).\n\n", hat.Name, hat.ID)

	b.WriteString("EVENTS TO HANDLE:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "[%s] %s\n", e.Topic, e.Payload)
	}

	if hint := l.registry.PublishHint(hat.ID); len(hint) > 0 {
		b.WriteString("\nWhen you finish a unit of work, emit an event line for the next hat.\n")
		b.WriteString("Topics you typically publish: ")
		b.WriteString(strings.Join(hint, ", "))
		b.WriteString("\nEmit an event as a single JSON line: {\"topic\":\"...\",\"payload\":\"...\"}\n")
	} else {
		b.WriteString("\nEmit follow-up events as single JSON lines: {\"topic\":\"...\",\"payload\":\"...\"}\n")
	}

	core := l.cfg.Core
	fmt.Fprintf(&b, "\nScratchpad: %s\nSpecs: %s\n", core.Scratchpad, core.SpecsDir)
	if len(core.Guardrails) > 0 {
		b.WriteString("\nGUARDRAILS:\n")
		for _, g := range core.Guardrails {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	return b.String()
}
