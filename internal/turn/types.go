package turn

import (
	"context"
	"fmt"

	"github.com/OdaKanta/DifyInterviewForm/internal/session"
)

// Request is one outgoing exchange with the remote agent.
type Request struct {
	Query          string
	User           string
	ConversationID string
	Inputs         map[string]any
}

// Result is the agent's reply for one exchange.
type Result struct {
	Answer         string
	ConversationID string
}

// Agent is the remote chat-workflow collaborator.
type Agent interface {
	// Chat performs one exchange. onFragment may be nil; when set it
	// receives answer fragments in arrival order (streaming mode only).
	Chat(ctx context.Context, req Request, onFragment func(string)) (Result, error)
	UploadFile(ctx context.Context, filename, contentType string, data []byte, user string) (string, error)
	OpeningStatement(ctx context.Context, user string) (string, error)
}

// LogEntry is one append-only row emitted per completed turn.
type LogEntry struct {
	User           string
	Material       string
	PriorQuestion  string
	UserInput      string
	AgentAnswer    string
	ConversationID string
}

// Sink receives the outward effects of a completed turn. LogEntry is
// fire-and-forget; a sink failure never rolls back the conversation.
type Sink interface {
	TranscriptAppend(t session.Turn)
	LogEntry(e LogEntry)
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
	TurnError(err error)
}

// AttachmentError wraps a failed document registration. A document-grounded
// session must not start without a valid attachment id.
type AttachmentError struct {
	Err error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment registration failed: %v", e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// State tracks one exchange through its lifecycle.
type State int

const (
	StateSubmitting State = iota
	StateStreaming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Phase is the session-level position in the conversation.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingFirstTurn Phase = "awaiting_first_turn"
	PhaseSteady            Phase = "steady"
)
