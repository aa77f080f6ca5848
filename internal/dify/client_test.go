package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendChatMessage_Blocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key1" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseMode != "blocking" {
			t.Errorf("expected blocking mode, got %q", req.ResponseMode)
		}
		if req.ConversationID != "abc123" {
			t.Errorf("expected conversation id forwarded, got %q", req.ConversationID)
		}
		if req.Inputs == nil {
			t.Errorf("inputs must never be null")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"answer":          "hi",
			"conversation_id": "abc123",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key1")
	res, err := c.SendChatMessage(context.Background(), ChatRequest{
		Query:          "hello",
		User:           "tanaka",
		ConversationID: "abc123",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Answer != "hi" || res.ConversationID != "abc123" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSendChatMessage_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key1")
	if _, err := c.SendChatMessage(context.Background(), ChatRequest{Query: "q"}); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}

func TestStreamChatMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseMode != "streaming" {
			t.Errorf("expected streaming mode, got %q", req.ResponseMode)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"answer\":\"Hel\",\"conversation_id\":\"c1\"}\n\n")
		fmt.Fprint(w, "data: {\"answer\":\"lo\"}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"message_end\"}\n\n")
	}))
	defer srv.Close()

	var fragments []string
	c := NewClient(srv.URL, "key1")
	res, err := c.StreamChatMessage(context.Background(), ChatRequest{Query: "q", User: "u"}, func(s string) {
		fragments = append(fragments, s)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if res.Answer != "Hello" || res.ConversationID != "c1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %v", fragments)
	}
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("user"); got != "tanaka" {
			t.Errorf("expected user field, got %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			f.Close()
			if hdr.Filename != "slides.pdf" {
				t.Errorf("unexpected filename %q", hdr.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "file-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key1")
	id, err := c.UploadFile(context.Background(), "slides.pdf", "application/pdf", []byte("%PDF"), "tanaka")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "file-1" {
		t.Fatalf("expected file-1, got %q", id)
	}
}

func TestUploadFile_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad file", http.StatusUnsupportedMediaType)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key1")
	if _, err := c.UploadFile(context.Background(), "x.pdf", "application/pdf", nil, "u"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpeningStatement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parameters" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user"); got != "tanaka" {
			t.Errorf("expected user query param, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"opening_statement": "Welcome!"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key1")
	got, err := c.OpeningStatement(context.Background(), "tanaka")
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if got != "Welcome!" {
		t.Fatalf("expected Welcome!, got %q", got)
	}
}

func TestClient_MissingKey(t *testing.T) {
	c := NewClient("https://example.invalid", "")
	if _, err := c.SendChatMessage(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected api key error")
	}
	if _, err := c.UploadFile(context.Background(), "f", "t", nil, "u"); err == nil {
		t.Fatalf("expected api key error")
	}
}
