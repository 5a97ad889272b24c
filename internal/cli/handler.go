package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// SessionResult summarizes one completed agent session. The numeric
// fields and IsError come from the final result event of the stream and
// stay zero-valued if the backend never emitted one; FinalText is taken
// from assistant turns either way.
type SessionResult struct {
	NumTurns     uint32
	TotalCostUSD float64
	DurationMs   uint64
	IsError      bool

	// FinalText is the concatenated text of the last assistant turn.
	FinalText string
}

// StreamHandler consumes the typed assistant event stream as it is
// parsed. Handlers must not retain the event past the call.
type StreamHandler interface {
	HandleEvent(ev StreamEvent)
	// Finish is called once after the stream ends and returns the session
	// summary.
	Finish() SessionResult
}

var (
	toolColor   = color.New(color.FgCyan)
	resultColor = color.New(color.Faint)
	errorColor  = color.New(color.FgRed)
)

// ConsoleStreamHandler renders assistant text and tool invocations to an
// io.Writer (stdout by default), coloring tool-use lines so a human
// watching the loop can follow what the agent is doing.
type ConsoleStreamHandler struct {
	Out io.Writer

	summary summaryTracker
}

// NewConsoleStreamHandler returns a handler writing to stdout.
func NewConsoleStreamHandler() *ConsoleStreamHandler {
	return &ConsoleStreamHandler{Out: os.Stdout}
}

func (h *ConsoleStreamHandler) HandleEvent(ev StreamEvent) {
	h.summary.observe(ev)

	switch ev.Type {
	case StreamEventSystem:
		resultColor.Fprintf(h.out(), "session %s (%s)\n", ev.SessionID, ev.Model)
	case StreamEventAssistant:
		for _, block := range ev.Message.Content {
			switch block.Type {
			case ContentText:
				fmt.Fprintln(h.out(), block.Text)
			case ContentToolUse:
				toolColor.Fprintf(h.out(), "→ %s\n", block.ToolName)
			}
		}
	case StreamEventUser:
		// Tool results are noise at console verbosity; only surface that
		// progress happened.
		for range ev.Message.Content {
			resultColor.Fprintln(h.out(), "  ✓ tool result")
		}
	case StreamEventResult:
		if ev.IsError {
			errorColor.Fprintf(h.out(), "session failed after %d turns ($%.4f)\n", ev.NumTurns, ev.TotalCostUSD)
		} else {
			resultColor.Fprintf(h.out(), "done: %d turns, $%.4f, %dms\n", ev.NumTurns, ev.TotalCostUSD, ev.DurationMs)
		}
	}
}

func (h *ConsoleStreamHandler) Finish() SessionResult {
	return h.summary.result()
}

func (h *ConsoleStreamHandler) out() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stdout
}

// QuietStreamHandler discards all rendering and only accumulates the
// SessionResult summary.
type QuietStreamHandler struct {
	summary summaryTracker
}

// NewQuietStreamHandler returns a handler that renders nothing.
func NewQuietStreamHandler() *QuietStreamHandler {
	return &QuietStreamHandler{}
}

func (h *QuietStreamHandler) HandleEvent(ev StreamEvent) {
	h.summary.observe(ev)
}

func (h *QuietStreamHandler) Finish() SessionResult {
	return h.summary.result()
}

// summaryTracker is the shared accumulation logic behind both handlers.
type summaryTracker struct {
	res       SessionResult
	gotResult bool
}

func (s *summaryTracker) observe(ev StreamEvent) {
	switch ev.Type {
	case StreamEventAssistant:
		var texts []string
		for _, block := range ev.Message.Content {
			if block.Type == ContentText {
				texts = append(texts, block.Text)
			}
		}
		if len(texts) > 0 {
			s.res.FinalText = strings.Join(texts, "\n")
		}
	case StreamEventResult:
		s.gotResult = true
		s.res.NumTurns = ev.NumTurns
		s.res.TotalCostUSD = ev.TotalCostUSD
		s.res.DurationMs = ev.DurationMs
		s.res.IsError = ev.IsError
	}
}

func (s *summaryTracker) result() SessionResult {
	return s.res
}
