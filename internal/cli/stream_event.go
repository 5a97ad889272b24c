// Package cli implements the CLI execution layer: building and running
// agent subprocess commands (pipe or PTY mode), parsing Claude's
// structured NDJSON stream, and the console/quiet stream handlers.
package cli

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// StreamEventType discriminates a parsed line of Claude's
// --output-format stream-json output.
type StreamEventType string

const (
	StreamEventSystem    StreamEventType = "system"
	StreamEventAssistant StreamEventType = "assistant"
	StreamEventUser      StreamEventType = "user"
	StreamEventResult    StreamEventType = "result"
)

// StreamEvent is one parsed line of the NDJSON stream. Exactly the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type StreamEventType

	// System fields.
	SessionID string
	Model     string
	Tools     []json.RawMessage

	// Assistant / User fields.
	Message AssistantOrUserMessage
	Usage   *Usage

	// Result fields.
	DurationMs   uint64
	TotalCostUSD float64
	NumTurns     uint32
	IsError      bool
}

// ContentBlockType discriminates assistant/user message content blocks.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
)

// ContentBlock is one block of an assistant or user message. Exactly the
// fields relevant to Type are populated.
type ContentBlock struct {
	Type ContentBlockType

	// Text block.
	Text string

	// ToolUse block.
	ToolUseID   string
	ToolName    string
	ToolInput   json.RawMessage

	// ToolResult block (user turn).
	ToolResultForID string
	ToolResultText  string
}

// AssistantOrUserMessage holds the content blocks of either an assistant
// or a user (tool-result) turn.
type AssistantOrUserMessage struct {
	Content []ContentBlock
}

// Usage is Claude's reported token usage for an assistant turn.
type Usage struct {
	InputTokens  uint64
	OutputTokens uint64
}

// wire shapes mirror the JSON exactly; StreamEvent/ContentBlock above are
// the flattened, Go-idiomatic view callers work with.

type wireEvent struct {
	Type string `json:"type"`

	SessionID string            `json:"session_id"`
	Model     string            `json:"model"`
	Tools     []json.RawMessage `json:"tools"`

	Message *wireMessage `json:"message"`
	Usage   *Usage       `json:"usage"`

	DurationMs   uint64  `json:"duration_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	NumTurns     uint32  `json:"num_turns"`
	IsError      bool    `json:"is_error"`
}

type wireMessage struct {
	Content []wireContentBlock `json:"content"`
}

type wireContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text"`

	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`

	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// ParseStreamLine parses one line of Claude's NDJSON stream. It returns
// nil, false for an empty/whitespace-only line, malformed JSON, or an
// unrecognized type. A bad line never fails the stream; it is logged at
// debug and skipped.
func ParseStreamLine(line string) (*StreamEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		slog.Debug("cli: skipping malformed stream line", "line", truncate(trimmed, 100), "error", err)
		return nil, false
	}

	switch StreamEventType(w.Type) {
	case StreamEventSystem:
		return &StreamEvent{Type: StreamEventSystem, SessionID: w.SessionID, Model: w.Model, Tools: w.Tools}, true
	case StreamEventAssistant:
		return &StreamEvent{Type: StreamEventAssistant, Message: flattenMessage(w.Message), Usage: w.Usage}, true
	case StreamEventUser:
		return &StreamEvent{Type: StreamEventUser, Message: flattenMessage(w.Message)}, true
	case StreamEventResult:
		return &StreamEvent{
			Type:         StreamEventResult,
			DurationMs:   w.DurationMs,
			TotalCostUSD: w.TotalCostUSD,
			NumTurns:     w.NumTurns,
			IsError:      w.IsError,
		}, true
	default:
		slog.Debug("cli: discarding unknown stream event type", "type", w.Type)
		return nil, false
	}
}

func flattenMessage(m *wireMessage) AssistantOrUserMessage {
	if m == nil {
		return AssistantOrUserMessage{}
	}
	blocks := make([]ContentBlock, 0, len(m.Content))
	for _, wb := range m.Content {
		switch ContentBlockType(wb.Type) {
		case ContentText:
			blocks = append(blocks, ContentBlock{Type: ContentText, Text: wb.Text})
		case ContentToolUse:
			blocks = append(blocks, ContentBlock{Type: ContentToolUse, ToolUseID: wb.ID, ToolName: wb.Name, ToolInput: wb.Input})
		case ContentToolResult:
			blocks = append(blocks, ContentBlock{Type: ContentToolResult, ToolResultForID: wb.ToolUseID, ToolResultText: wb.Content})
		}
	}
	return AssistantOrUserMessage{Content: blocks}
}

// truncate shortens s to maxLen bytes, appending "..." if it was cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
