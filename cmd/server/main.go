package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OdaKanta/DifyInterviewForm/internal/arbiter"
	"github.com/OdaKanta/DifyInterviewForm/internal/auth"
	"github.com/OdaKanta/DifyInterviewForm/internal/config"
	"github.com/OdaKanta/DifyInterviewForm/internal/dify"
	"github.com/OdaKanta/DifyInterviewForm/internal/httpserver"
	"github.com/OdaKanta/DifyInterviewForm/internal/session"
	"github.com/OdaKanta/DifyInterviewForm/internal/sheetlog"
	"github.com/OdaKanta/DifyInterviewForm/internal/sink"
	"github.com/OdaKanta/DifyInterviewForm/internal/stt"
	"github.com/OdaKanta/DifyInterviewForm/internal/tts"
	"github.com/OdaKanta/DifyInterviewForm/internal/turn"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	agent := &dify.Agent{
		Client:    dify.NewClient(cfg.DifyBaseURL, cfg.DifyAPIKey),
		Streaming: cfg.DifyResponseMode == "streaming",
		Timeout:   cfg.RequestTimeout,
	}

	var speech sink.Speech
	if cfg.TTSProvider == "deepgram" {
		speech = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel)
	} else {
		speech = tts.NewOpenAIClient(cfg.OpenAIKey, cfg.TTSModel, cfg.TTSVoice)
	}

	var logger sink.TurnLogger
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		sl, err := sheetlog.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable)
		if err != nil {
			log.Fatalf("sheetlog init failed: %v", err)
		}
		logger = sl
	}

	transcriber := stt.NewOpenAIClient(cfg.OpenAIKey, cfg.SttModel, cfg.SttLanguage)

	controller := turn.NewController(
		agent,
		sink.NewFanout(logger, speech),
		arbiter.New(transcriber),
		turn.Config{
			OpeningMode:     cfg.OpeningMode,
			OpeningLine:     cfg.OpeningLine,
			TriggerQuery:    cfg.TriggerQuery,
			KeepEmptyAnswer: cfg.KeepEmptyAnswer,
			FileVariableKey: cfg.FileVariableKey,
			RequireMaterial: cfg.RequireMaterial,
		},
	)

	gate := auth.New(auth.ParseUsers(cfg.Users))
	store := session.NewStore()
	srv := httpserver.New(gate, store, controller)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
