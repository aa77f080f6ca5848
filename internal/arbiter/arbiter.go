package arbiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/OdaKanta/DifyInterviewForm/internal/session"
)

// ErrDuplicateInput marks an input whose fingerprint matches the one already
// submitted for processing. The host redelivers stale input on every redraw;
// without this guard a session resubmits its previous utterance forever.
var ErrDuplicateInput = errors.New("arbiter: duplicate input")

// Transcriber converts raw audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Arbiter resolves one cycle's input among transcribed speech, typed text
// and nothing, with de-duplication across cycles.
type Arbiter struct {
	transcriber Transcriber
}

// New constructs an Arbiter.
func New(t Transcriber) *Arbiter {
	return &Arbiter{transcriber: t}
}

// Fingerprint identifies a recording across cycles.
func Fingerprint(audio []byte) string {
	sum := sha256.Sum256(audio)
	return hex.EncodeToString(sum[:])
}

// Resolve returns the single input to submit this cycle, or "" when there is
// none. Speech wins over text. A recording matching the pending or the last
// processed audio fingerprint counts as no new speech; a text candidate
// matching the pending signature is rejected with ErrDuplicateInput. On
// acceptance the signature is stored on the session; the turn controller
// clears the pending one once the turn completes, while the audio
// fingerprint persists until a new recording arrives.
func (a *Arbiter) Resolve(ctx context.Context, speech []byte, text string, sess *session.Session) (string, error) {
	if len(speech) > 0 {
		fp := Fingerprint(speech)
		if fp != sess.PendingInputSignature && fp != sess.LastAudioSignature {
			if a.transcriber == nil {
				return "", fmt.Errorf("arbiter: speech input without a transcriber")
			}
			transcript, err := a.transcriber.Transcribe(ctx, speech)
			if err != nil {
				return "", fmt.Errorf("arbiter: transcribe: %w", err)
			}
			transcript = strings.TrimSpace(transcript)
			if transcript == "" {
				return "", nil
			}
			sess.PendingInputSignature = fp
			sess.LastAudioSignature = fp
			return transcript, nil
		}
		// Same recording redelivered by a redraw; fall through to text.
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	// Text candidates fingerprint as themselves.
	if text == sess.PendingInputSignature {
		return "", ErrDuplicateInput
	}
	sess.PendingInputSignature = text
	return text, nil
}
