package arbiter

import (
	"context"
	"errors"
	"testing"

	"github.com/OdaKanta/DifyInterviewForm/internal/session"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func newSess(t *testing.T) *session.Session {
	t.Helper()
	return session.NewStore().GetOrCreate("tanaka")
}

func TestResolve_SpeechTranscribedOnce(t *testing.T) {
	tr := &fakeTranscriber{text: "こんにちは"}
	a := New(tr)
	sess := newSess(t)
	audio := []byte{1, 2, 3}

	got, err := a.Resolve(context.Background(), audio, "", sess)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "こんにちは" {
		t.Fatalf("expected transcript, got %q", got)
	}
	if sess.PendingInputSignature != Fingerprint(audio) {
		t.Fatalf("expected audio fingerprint stored")
	}

	// Redelivered recording: no new input, transcriber not called again.
	got, err = a.Resolve(context.Background(), audio, "", sess)
	if err != nil || got != "" {
		t.Fatalf("expected no input on redelivery, got %q err %v", got, err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected 1 transcriber call, got %d", tr.calls)
	}

	// Still no resubmission after the controller cleared the pending
	// signature at turn completion; the host keeps sending the recording.
	sess.PendingInputSignature = ""
	got, err = a.Resolve(context.Background(), audio, "", sess)
	if err != nil || got != "" {
		t.Fatalf("expected no input after completion, got %q err %v", got, err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected still 1 transcriber call, got %d", tr.calls)
	}

	// A different recording is new input.
	if got, err = a.Resolve(context.Background(), []byte{4, 5, 6}, "", sess); err != nil || got == "" {
		t.Fatalf("expected new recording accepted, got %q err %v", got, err)
	}
	if tr.calls != 2 {
		t.Fatalf("expected 2 transcriber calls, got %d", tr.calls)
	}
}

func TestResolve_TextDuplicateRejected(t *testing.T) {
	a := New(nil)
	sess := newSess(t)

	got, err := a.Resolve(context.Background(), nil, "  answer one  ", sess)
	if err != nil || got != "answer one" {
		t.Fatalf("expected trimmed text accepted, got %q err %v", got, err)
	}
	_, err = a.Resolve(context.Background(), nil, "answer one", sess)
	if !errors.Is(err, ErrDuplicateInput) {
		t.Fatalf("expected ErrDuplicateInput, got %v", err)
	}

	// Cleared guard lets the same text through again (user sent it anew).
	sess.PendingInputSignature = ""
	got, err = a.Resolve(context.Background(), nil, "answer one", sess)
	if err != nil || got != "answer one" {
		t.Fatalf("expected accept after clear, got %q err %v", got, err)
	}
}

func TestResolve_NoInput(t *testing.T) {
	a := New(&fakeTranscriber{})
	sess := newSess(t)
	got, err := a.Resolve(context.Background(), nil, "   ", sess)
	if err != nil || got != "" {
		t.Fatalf("expected nothing, got %q err %v", got, err)
	}
	if sess.PendingInputSignature != "" {
		t.Fatalf("signature must not be set without input")
	}
}

func TestResolve_SpeechWinsOverText(t *testing.T) {
	tr := &fakeTranscriber{text: "spoken"}
	a := New(tr)
	sess := newSess(t)
	got, err := a.Resolve(context.Background(), []byte{9}, "typed", sess)
	if err != nil || got != "spoken" {
		t.Fatalf("expected speech candidate, got %q err %v", got, err)
	}
}

func TestResolve_RedeliveredSpeechFallsThroughToText(t *testing.T) {
	tr := &fakeTranscriber{text: "spoken"}
	a := New(tr)
	sess := newSess(t)
	audio := []byte{7, 7}
	if _, err := a.Resolve(context.Background(), audio, "", sess); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err := a.Resolve(context.Background(), audio, "typed instead", sess)
	if err != nil || got != "typed instead" {
		t.Fatalf("expected text candidate, got %q err %v", got, err)
	}
}

func TestResolve_TranscribeErrorSurfaced(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("boom")}
	a := New(tr)
	sess := newSess(t)
	if _, err := a.Resolve(context.Background(), []byte{1}, "", sess); err == nil {
		t.Fatalf("expected error")
	}
	if sess.PendingInputSignature != "" {
		t.Fatalf("failed transcription must not store a signature")
	}
}
