package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	// scannerInitialBuffer is the initial buffer size for the scanner (64KB).
	scannerInitialBuffer = 64 * 1024
	// scannerMaxLineSize is the maximum line size the scanner will handle (100MB).
	scannerMaxLineSize = 100 * 1024 * 1024
)

// Event types retained from the host agent's JSON stream.
const (
	EventMessageEnd       = "message_end"
	EventToolExecutionEnd = "tool_execution_end"
)

// Message roles.
const (
	RoleAssistant  = "assistant"
	RoleToolResult = "toolResult"
)

// Message is one retained entry of a reviewer's message history.
type Message struct {
	Role     string
	Text     string
	ToolName string
	IsError  bool
}

// streamEvent is the subset of a host agent event we decode.
type streamEvent struct {
	Type     string          `json:"type"`
	Message  *streamMessage  `json:"message"`
	ToolName string          `json:"toolName"`
	Result   json.RawMessage `json:"result"`
	IsError  bool            `json:"isError"`
}

type streamMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ConfigureScanner configures a bufio.Scanner with appropriate buffer sizes
// for host agent output (64KB initial, 100MB max).
func ConfigureScanner(scanner *bufio.Scanner) {
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxLineSize)
}

// ReadMessages decodes a line-delimited JSON event stream. Finalized assistant
// messages and finalized tool results are returned in stream order; all other
// events are ignored and malformed lines are counted in dropped.
// The returned error is a read error from r, never a decode error.
func ReadMessages(r io.Reader, onMessage func(Message)) (messages []Message, dropped int, err error) {
	scanner := bufio.NewScanner(r)
	ConfigureScanner(scanner)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg, ok, valid := decodeEvent([]byte(line))
		if !valid {
			dropped++
			continue
		}
		if !ok {
			continue
		}

		messages = append(messages, msg)
		if onMessage != nil {
			onMessage(msg)
		}
	}

	return messages, dropped, scanner.Err()
}

// decodeEvent returns the retained message for a line, whether the line
// carried one, and whether the line was valid JSON at all.
func decodeEvent(line []byte) (msg Message, ok bool, valid bool) {
	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return Message{}, false, false
	}

	switch ev.Type {
	case EventMessageEnd:
		if ev.Message == nil {
			return Message{}, false, true
		}
		return Message{
			Role: ev.Message.Role,
			Text: contentText(ev.Message.Content),
		}, true, true
	case EventToolExecutionEnd:
		return Message{
			Role:     RoleToolResult,
			Text:     toolResultText(ev.Result),
			ToolName: ev.ToolName,
			IsError:  ev.IsError,
		}, true, true
	default:
		return Message{}, false, true
	}
}

// contentText flattens message content, which is either a plain string or a
// list of typed parts of which only text parts are kept.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// toolResultText extracts text from a tool result payload ({"content": ...}
// or bare content).
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var wrapped struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Content) > 0 {
		return contentText(wrapped.Content)
	}
	return contentText(raw)
}

// FinalAnswer returns the text of the last assistant message, scanning from
// the end so intermediate reasoning and tool chatter are skipped.
func FinalAnswer(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i].Text
		}
	}
	return ""
}
