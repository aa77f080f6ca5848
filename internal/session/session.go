package session

import "github.com/google/uuid"

// Role tags a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance in the transcript. Turns are append-only.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session holds one user's conversation state across interaction cycles.
// The host reconstructs the whole call stack on every user action; this
// record is the only thing that survives between cycles.
type Session struct {
	ID     string
	UserID string

	// ConversationID is issued by the remote agent on the first successful
	// exchange. Once bound it never changes until a full reset.
	ConversationID string

	Turns []Turn

	// OpeningDone marks that the first-turn policy already ran, even when
	// it produced no turn; it keeps an empty opening from being retried on
	// every cycle.
	OpeningDone bool

	// PendingInputSignature is the fingerprint of the last input submitted
	// for processing; a cycle that redelivers the same fingerprint must not
	// resubmit it. Cleared when the turn completes.
	PendingInputSignature string

	// LastAudioSignature survives turn completion: the host keeps
	// redelivering the same recording on every redraw until a new one is
	// made, long after the turn it produced has finished.
	LastAudioSignature string

	// LastAgentUtterance is kept separately because the turn log records
	// the prior agent question alongside the current user answer.
	LastAgentUtterance string

	// AttachmentID identifies a document already registered with the remote
	// agent; it is reused on later turns rather than re-uploaded.
	AttachmentID string
}

func newSession(userID string) *Session {
	return &Session{ID: uuid.NewString(), UserID: userID}
}

// Append adds a turn to the transcript.
func (s *Session) Append(role Role, text string) Turn {
	t := Turn{Role: role, Text: text}
	s.Turns = append(s.Turns, t)
	return t
}

// BindConversationID sets the conversation identifier if not already bound.
// A bound id is immutable; later differing values are ignored.
func (s *Session) BindConversationID(id string) {
	if s.ConversationID == "" && id != "" {
		s.ConversationID = id
	}
}

// reset zeroes the conversation fields in place, keeping identity.
func (s *Session) reset() {
	s.ConversationID = ""
	s.Turns = nil
	s.OpeningDone = false
	s.PendingInputSignature = ""
	s.LastAudioSignature = ""
	s.LastAgentUtterance = ""
	s.AttachmentID = ""
}
