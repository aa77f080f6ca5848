package dify

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// EventKind tags a decoded stream event.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventMessage
	EventTextChunk
	EventTerminal
)

// Event is one decoded line of the agent's event stream. ConversationID is
// carried alongside whatever kind the line is; the last one seen wins.
type Event struct {
	Kind           EventKind
	Text           string
	ConversationID string
}

type streamPayload struct {
	Event          string  `json:"event"`
	Answer         *string `json:"answer"`
	ConversationID string  `json:"conversation_id"`
	Data           struct {
		Text string `json:"text"`
	} `json:"data"`
}

// ParseLine decodes one raw line into an Event. Lines without the data
// prefix and lines whose payload is not valid JSON come back Unrecognized;
// the caller skips them and keeps decoding.
func ParseLine(line string) Event {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return Event{Kind: EventUnrecognized}
	}
	raw := strings.TrimSpace(line[len("data:"):])
	if raw == "[DONE]" {
		return Event{Kind: EventTerminal}
	}
	var p streamPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Event{Kind: EventUnrecognized}
	}

	ev := Event{Kind: EventUnrecognized, ConversationID: p.ConversationID}
	switch p.Event {
	case "message_end", "workflow_finished", "error":
		ev.Kind = EventTerminal
	case "text_chunk":
		ev.Kind = EventTextChunk
		ev.Text = p.Data.Text
	default:
		if p.Answer != nil {
			ev.Kind = EventMessage
			ev.Text = *p.Answer
		}
	}
	return ev
}

// StreamDecoder accumulates answer text and the conversation identifier
// from a one-pass sequence of event lines.
type StreamDecoder struct {
	answer         strings.Builder
	conversationID string
	done           bool
	onFragment     func(string)
}

// NewStreamDecoder constructs a decoder. onFragment may be nil; when set it
// receives each answer fragment in arrival order.
func NewStreamDecoder(onFragment func(string)) *StreamDecoder {
	return &StreamDecoder{onFragment: onFragment}
}

// Feed consumes one raw line. Lines after a terminal event are ignored.
func (d *StreamDecoder) Feed(line string) {
	if d.done {
		return
	}
	ev := ParseLine(line)
	if ev.ConversationID != "" {
		d.conversationID = ev.ConversationID
	}
	switch ev.Kind {
	case EventMessage, EventTextChunk:
		if ev.Text != "" {
			d.answer.WriteString(ev.Text)
			if d.onFragment != nil {
				d.onFragment(ev.Text)
			}
		}
	case EventTerminal:
		d.done = true
	}
}

// Done reports whether a terminal event ended the stream early.
func (d *StreamDecoder) Done() bool { return d.done }

// Result returns the accumulated answer and the last conversation id seen.
// Zero parsed fragments is a valid empty result, not an error; the caller
// decides whether an empty answer is itself a failure.
func (d *StreamDecoder) Result() ChatResult {
	return ChatResult{Answer: d.answer.String(), ConversationID: d.conversationID}
}

// DecodeStream reads event lines from r until a terminal event or EOF.
func DecodeStream(r io.Reader, onFragment func(string)) (ChatResult, error) {
	d := NewStreamDecoder(onFragment)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		d.Feed(sc.Text())
		if d.Done() {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return d.Result(), err
	}
	return d.Result(), nil
}
