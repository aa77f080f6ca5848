package tts

import (
	"bytes"
	"context"
	"testing"
)

func TestDeepgram_NoKey(t *testing.T) {
	d := NewDeepgramClient("", "")
	if _, err := d.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestDeepgram_RejectsEmptyInput(t *testing.T) {
	d := NewDeepgramClient("key1", "")
	if _, err := d.Synthesize(context.Background(), " "); err == nil {
		t.Fatalf("expected empty input rejected")
	}
}

func TestDeepgram_DefaultModel(t *testing.T) {
	d := NewDeepgramClient("key1", "")
	if d.model == "" {
		t.Fatalf("expected default model")
	}
}

func TestWavFromPCM16(t *testing.T) {
	pcm := []byte{0, 0, 1, 0, 2, 0, 3, 0}
	wav := wavFromPCM16(pcm, 48000)
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad container header %q", wav[:12])
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected 44-byte header, got total %d", len(wav))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatalf("pcm payload altered")
	}
}
