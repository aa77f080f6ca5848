package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OdaKanta/DifyInterviewForm/internal/session"
	"github.com/OdaKanta/DifyInterviewForm/internal/turn"
)

type fakeLogger struct {
	rows []Row
	err  error
}

func (f *fakeLogger) Append(ctx context.Context, row Row) error {
	f.rows = append(f.rows, row)
	return f.err
}

type fakeSpeech struct {
	calls int
	audio []byte
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.audio, nil
}

func TestFanout_SkipsSynthesisForEmptyText(t *testing.T) {
	sp := &fakeSpeech{audio: []byte{1}}
	f := NewFanout(nil, sp)
	for _, text := range []string{"", "   ", "\n\t"} {
		audio, err := f.SynthesizeSpeech(context.Background(), text)
		if err != nil || audio != nil {
			t.Fatalf("expected nil audio for %q, got %v err %v", text, audio, err)
		}
	}
	if sp.calls != 0 {
		t.Fatalf("speech provider must not see empty text, got %d calls", sp.calls)
	}
	if audio, _ := f.SynthesizeSpeech(context.Background(), "hello"); len(audio) == 0 {
		t.Fatalf("expected audio for non-empty text")
	}
}

func TestFanout_LogEntryRow(t *testing.T) {
	lg := &fakeLogger{}
	f := NewFanout(lg, nil)
	f.now = func() time.Time { return time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC) }
	f.LogEntry(turn.LogEntry{
		User:           "tanaka",
		Material:       "file-1",
		PriorQuestion:  "q?",
		UserInput:      "a",
		AgentAnswer:    "b",
		ConversationID: "c1",
	})
	if len(lg.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(lg.rows))
	}
	row := lg.rows[0]
	if row.CreatedAt != "2026-08-28 12:00:00" {
		t.Fatalf("expected JST timestamp, got %q", row.CreatedAt)
	}
	if row.UserID != "tanaka" || row.PriorQuestion != "q?" || row.ConversationID != "c1" {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestFanout_LogFailureDoesNotPropagate(t *testing.T) {
	lg := &fakeLogger{err: errors.New("sheet down")}
	f := NewFanout(lg, nil)
	// Must not panic or surface the error; the turn already completed.
	f.LogEntry(turn.LogEntry{User: "u"})
	if len(lg.rows) != 1 {
		t.Fatalf("append must still have been attempted")
	}
}

func TestFanout_NilCollaborators(t *testing.T) {
	f := NewFanout(nil, nil)
	f.TranscriptAppend(session.Turn{Role: session.RoleUser, Text: "x"})
	f.TurnError(errors.New("boom"))
	f.LogEntry(turn.LogEntry{})
	if audio, err := f.SynthesizeSpeech(context.Background(), "text"); audio != nil || err != nil {
		t.Fatalf("nil speech provider must be a no-op")
	}
}
