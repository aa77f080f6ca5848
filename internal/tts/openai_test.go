package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req["model"] != "tts-1" || req["voice"] != "alloy" || req["input"] != "hello" {
			t.Errorf("unexpected payload %v", req)
		}
		_, _ = w.Write([]byte("ID3mp3bytes"))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key1", "", "")
	c.BaseURL = srv.URL
	audio, err := c.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.HasPrefix(audio, []byte("ID3")) {
		t.Fatalf("expected audio bytes back")
	}
}

func TestSynthesize_TruncatesLongInput(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req["input"]
		_, _ = w.Write([]byte{1})
	}))
	defer srv.Close()

	c := NewOpenAIClient("key1", "", "")
	c.BaseURL = srv.URL
	long := strings.Repeat("あ", maxInputRunes+100)
	if _, err := c.Synthesize(context.Background(), long); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got := len([]rune(gotInput)); got != maxInputRunes {
		t.Fatalf("expected input cut to %d runes, got %d", maxInputRunes, got)
	}
}

func TestSynthesize_RejectsEmptyInput(t *testing.T) {
	c := NewOpenAIClient("key1", "", "")
	if _, err := c.Synthesize(context.Background(), "   "); err == nil {
		t.Fatalf("expected empty input rejected")
	}
}

func TestSynthesize_NoKey(t *testing.T) {
	c := NewOpenAIClient("", "", "")
	if _, err := c.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected api key error")
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("key1", "", "")
	c.BaseURL = srv.URL
	if _, err := c.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}
