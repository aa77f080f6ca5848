package sheetlog

import (
	"context"
	"testing"

	"github.com/OdaKanta/DifyInterviewForm/internal/sink"
)

func TestNew_MissingConfig(t *testing.T) {
	if _, err := New("", "", "interview_log"); err == nil {
		t.Fatalf("expected constructor error without url and key")
	}
}

func TestAppend_CancelledContext(t *testing.T) {
	s, err := New("http://localhost:54321", "key", "interview_log")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Append(ctx, sink.Row{UserID: "u"}); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
