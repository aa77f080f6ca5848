package sink

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/OdaKanta/DifyInterviewForm/internal/session"
	"github.com/OdaKanta/DifyInterviewForm/internal/turn"
)

// TurnLogger appends one row per completed turn to the log backend.
type TurnLogger interface {
	Append(ctx context.Context, row Row) error
}

// Speech synthesizes audio for assistant text.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Row is the log backend's record shape.
type Row struct {
	CreatedAt      string `json:"created_at"`
	UserID         string `json:"user_id"`
	Material       string `json:"material,omitempty"`
	PriorQuestion  string `json:"prior_question"`
	UserInput      string `json:"user_input"`
	AgentAnswer    string `json:"agent_answer"`
	ConversationID string `json:"conversation_id"`
}

// Log rows carry wall-clock time in JST, matching the existing sheet.
var jst = time.FixedZone("JST", 9*60*60)

// Fanout distributes a completed turn's effects to the collaborators. Any
// of its fields may be nil; missing collaborators are skipped.
type Fanout struct {
	Log          TurnLogger
	Speech       Speech
	OnTranscript func(t session.Turn)
	OnError      func(err error)

	// LogTimeout bounds the fire-and-forget log append.
	LogTimeout time.Duration

	now func() time.Time
}

// NewFanout constructs a Fanout with a default log timeout.
func NewFanout(logger TurnLogger, speech Speech) *Fanout {
	return &Fanout{Log: logger, Speech: speech, LogTimeout: 10 * time.Second, now: time.Now}
}

// TranscriptAppend forwards the turn to the transcript observer.
func (f *Fanout) TranscriptAppend(t session.Turn) {
	if f.OnTranscript != nil {
		f.OnTranscript(t)
	}
}

// LogEntry appends a row to the log backend. Fire-and-forget: failures are
// logged and never block or roll back the conversation.
func (f *Fanout) LogEntry(e turn.LogEntry) {
	if f.Log == nil {
		return
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	row := Row{
		CreatedAt:      now().In(jst).Format("2006-01-02 15:04:05"),
		UserID:         e.User,
		Material:       e.Material,
		PriorQuestion:  e.PriorQuestion,
		UserInput:      e.UserInput,
		AgentAnswer:    e.AgentAnswer,
		ConversationID: e.ConversationID,
	}
	timeout := f.LogTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := f.Log.Append(ctx, row); err != nil {
		log.Printf("sink: log append failed: %v", err)
	}
}

// SynthesizeSpeech returns audio for the text. Empty or whitespace-only
// text never reaches the provider.
func (f *Fanout) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if f.Speech == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return f.Speech.Synthesize(ctx, text)
}

// TurnError surfaces a user-visible turn failure.
func (f *Fanout) TurnError(err error) {
	log.Printf("sink: turn error: %v", err)
	if f.OnError != nil {
		f.OnError(err)
	}
}
