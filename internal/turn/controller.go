package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/OdaKanta/DifyInterviewForm/internal/arbiter"
	"github.com/OdaKanta/DifyInterviewForm/internal/session"
)

// Opening policies. The source deployments disagree on how a conversation
// starts, so the choice is configuration rather than code.
const (
	// OpeningStatic injects a configured line as the first assistant turn
	// without calling the agent; the first remote call happens on the first
	// real user input.
	OpeningStatic = "static"
	// OpeningRemote sends a fixed trigger query and uses the agent's reply
	// as the opening turn, binding the conversation id from it.
	OpeningRemote = "remote"
	// OpeningParameters fetches the application's opening statement and
	// injects it like OpeningStatic.
	OpeningParameters = "parameters"
)

// Config selects controller behavior.
type Config struct {
	OpeningMode     string
	OpeningLine     string
	TriggerQuery    string
	KeepEmptyAnswer bool
	FileVariableKey string
	RequireMaterial bool
}

// Outcome reports what one interaction cycle produced.
type Outcome struct {
	State             State
	Answer            string
	Audio             []byte
	AssistantAppended bool
	Duplicate         bool
	NoInput           bool
}

// Controller drives exactly one exchange with the remote agent per cycle.
type Controller struct {
	agent   Agent
	sink    Sink
	arbiter *arbiter.Arbiter
	cfg     Config
}

// NewController constructs a Controller.
func NewController(agent Agent, sink Sink, arb *arbiter.Arbiter, cfg Config) *Controller {
	if cfg.FileVariableKey == "" {
		cfg.FileVariableKey = "material"
	}
	return &Controller{agent: agent, sink: sink, arbiter: arb, cfg: cfg}
}

// PhaseOf reports the session-level conversation phase.
func PhaseOf(sess *session.Session) Phase {
	switch {
	case len(sess.Turns) == 0:
		return PhaseIdle
	case sess.ConversationID == "":
		return PhaseAwaitingFirstTurn
	default:
		return PhaseSteady
	}
}

// documentInputs references the registered attachment under the workflow's
// input variable. Sent on the first remote call only; later turns rely on
// the bound conversation.
func (c *Controller) documentInputs(fileID string) map[string]any {
	return map[string]any{
		c.cfg.FileVariableKey: map[string]any{
			"type":            "document",
			"transfer_method": "local_file",
			"upload_file_id":  fileID,
		},
	}
}

// RegisterMaterial uploads a document to the agent and stores its id on the
// session for reuse. Failure is fatal to starting a document-grounded
// conversation.
func (c *Controller) RegisterMaterial(ctx context.Context, sess *session.Session, filename, contentType string, data []byte) error {
	if sess.AttachmentID != "" {
		return nil
	}
	id, err := c.agent.UploadFile(ctx, filename, contentType, data, sess.UserID)
	if err != nil {
		aerr := &AttachmentError{Err: err}
		c.sink.TurnError(aerr)
		return aerr
	}
	sess.AttachmentID = id
	log.Printf("turn: registered material %s for %s", id, sess.UserID)
	return nil
}

// Open performs the first-turn policy. It is a no-op once the transcript is
// non-empty, so it may be called at the top of every cycle.
func (c *Controller) Open(ctx context.Context, sess *session.Session, onFragment func(string)) (Outcome, error) {
	if sess.OpeningDone || len(sess.Turns) > 0 {
		return Outcome{NoInput: true}, nil
	}

	switch c.cfg.OpeningMode {
	case OpeningRemote:
		return c.openRemote(ctx, sess, onFragment)
	case OpeningParameters:
		stmt, err := c.agent.OpeningStatement(ctx, sess.UserID)
		if err != nil {
			c.sink.TurnError(err)
			return Outcome{State: StateFailed}, err
		}
		if strings.TrimSpace(stmt) == "" {
			stmt = c.cfg.OpeningLine
		}
		return c.openStatic(ctx, sess, stmt)
	default:
		return c.openStatic(ctx, sess, c.cfg.OpeningLine)
	}
}

func (c *Controller) openStatic(ctx context.Context, sess *session.Session, line string) (Outcome, error) {
	sess.OpeningDone = true
	if strings.TrimSpace(line) == "" {
		return Outcome{NoInput: true}, nil
	}
	t := sess.Append(session.RoleAssistant, line)
	sess.LastAgentUtterance = line
	c.sink.TranscriptAppend(t)
	out := Outcome{State: StateComplete, Answer: line, AssistantAppended: true}
	out.Audio = c.synthesize(ctx, line)
	return out, nil
}

func (c *Controller) openRemote(ctx context.Context, sess *session.Session, onFragment func(string)) (Outcome, error) {
	if c.cfg.RequireMaterial && sess.AttachmentID == "" {
		err := &AttachmentError{Err: errors.New("no material registered")}
		c.sink.TurnError(err)
		return Outcome{State: StateFailed}, err
	}
	req := Request{Query: c.cfg.TriggerQuery, User: sess.UserID}
	if sess.AttachmentID != "" {
		req.Inputs = c.documentInputs(sess.AttachmentID)
	}
	res, err := c.agent.Chat(ctx, req, c.trackStreaming(onFragment))
	if err != nil {
		c.sink.TurnError(err)
		return Outcome{State: StateFailed}, err
	}
	sess.OpeningDone = true
	sess.BindConversationID(res.ConversationID)
	return c.finishAssistant(ctx, sess, res.Answer), nil
}

// Submit runs one full interaction cycle: arbitrate input, call the agent,
// commit the exchange and flush the sinks before control returns to the
// host. Duplicate and empty inputs are no-ops.
func (c *Controller) Submit(ctx context.Context, sess *session.Session, speech []byte, text string, onFragment func(string)) (Outcome, error) {
	input, err := c.arbiter.Resolve(ctx, speech, text, sess)
	if err != nil {
		if errors.Is(err, arbiter.ErrDuplicateInput) {
			// Host redraw redelivering the previous utterance; suppressed.
			return Outcome{Duplicate: true}, nil
		}
		c.sink.TurnError(err)
		return Outcome{State: StateFailed}, err
	}
	if input == "" {
		return Outcome{NoInput: true}, nil
	}
	return c.runTurn(ctx, sess, input, onFragment)
}

func (c *Controller) runTurn(ctx context.Context, sess *session.Session, input string, onFragment func(string)) (Outcome, error) {
	// The user's turn is committed before the remote call so it survives a
	// slow or failed exchange.
	userTurn := sess.Append(session.RoleUser, input)
	c.sink.TranscriptAppend(userTurn)

	if c.cfg.RequireMaterial && sess.ConversationID == "" && sess.AttachmentID == "" {
		err := &AttachmentError{Err: errors.New("no material registered")}
		c.sink.TurnError(err)
		return Outcome{State: StateFailed}, err
	}

	prior := sess.LastAgentUtterance
	req := Request{Query: input, User: sess.UserID, ConversationID: sess.ConversationID}
	if sess.ConversationID == "" && sess.AttachmentID != "" {
		req.Inputs = c.documentInputs(sess.AttachmentID)
	}

	res, err := c.agent.Chat(ctx, req, c.trackStreaming(onFragment))
	if err != nil {
		// The user turn stays; only the assistant turn is omitted. The
		// conversation remains usable on the next input.
		c.sink.TurnError(fmt.Errorf("turn: agent call failed: %w", err))
		return Outcome{State: StateFailed}, err
	}

	sess.BindConversationID(res.ConversationID)
	out := c.finishAssistant(ctx, sess, res.Answer)
	sess.PendingInputSignature = ""
	c.sink.LogEntry(LogEntry{
		User:           sess.UserID,
		Material:       sess.AttachmentID,
		PriorQuestion:  prior,
		UserInput:      input,
		AgentAnswer:    res.Answer,
		ConversationID: sess.ConversationID,
	})
	return out, nil
}

// finishAssistant commits the assistant side of a successful exchange and
// requests synthesis. An empty answer is valid: it never reaches the
// speech collaborator, and whether it still appears in the transcript is
// the KeepEmptyAnswer policy.
func (c *Controller) finishAssistant(ctx context.Context, sess *session.Session, answer string) Outcome {
	out := Outcome{State: StateComplete, Answer: answer}
	empty := strings.TrimSpace(answer) == ""
	if !empty || c.cfg.KeepEmptyAnswer {
		t := sess.Append(session.RoleAssistant, answer)
		sess.LastAgentUtterance = answer
		c.sink.TranscriptAppend(t)
		out.AssistantAppended = true
	}
	if !empty {
		out.Audio = c.synthesize(ctx, answer)
	}
	return out
}

// trackStreaming notes the SUBMITTING -> STREAMING transition on the first
// fragment and forwards fragments to the caller's callback.
func (c *Controller) trackStreaming(onFragment func(string)) func(string) {
	streaming := false
	return func(s string) {
		if !streaming {
			streaming = true
			log.Printf("turn: %s -> %s", StateSubmitting, StateStreaming)
		}
		if onFragment != nil {
			onFragment(s)
		}
	}
}

func (c *Controller) synthesize(ctx context.Context, text string) []byte {
	audio, err := c.sink.SynthesizeSpeech(ctx, text)
	if err != nil {
		c.sink.TurnError(fmt.Errorf("turn: speech synthesis failed: %w", err))
		return nil
	}
	return audio
}
