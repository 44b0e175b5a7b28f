package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/handler"
	"github.com/zhouzirui/z-tavern/widget/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/model/persona"
	"github.com/zhouzirui/z-tavern/widget/internal/service/ai"
	chatService "github.com/zhouzirui/z-tavern/widget/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	logr, closer, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Prefix: "api"})
	if err != nil {
		log.Fatal("failed to open log file", "err", err)
	}
	defer closer.Close()

	if envErr != nil {
		logr.Warn("failed to load .env file, continuing with system environment variables only", "err", envErr)
	}

	personas := persona.Seed()
	if cfg.Service.PersonaFile != "" {
		personas, err = persona.LoadFile(cfg.Service.PersonaFile)
		if err != nil {
			logr.Fatal("failed to load personas", "file", cfg.Service.PersonaFile, "err", err)
		}
		logr.Info("personas loaded", "file", cfg.Service.PersonaFile, "count", len(personas))
	}
	personaStore := persona.NewMemoryStore(personas)
	if _, ok := personaStore.FindByID(cfg.Service.DefaultPersona); !ok {
		logr.Fatal("default persona not found", "persona", cfg.Service.DefaultPersona)
	}

	var responder ai.Responder = ai.NewScripted()
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logr.WithPrefix("ai"))
		if err != nil {
			logr.Warn("failed to initialize AI service, using scripted replies", "err", err)
		} else {
			responder = ai.WithFallback(aiService, responder, logr)
			logr.Info("AI service initialized", "model", cfg.AI.Model)
		}
	} else {
		logr.Info("Ark credentials not configured, using scripted replies")
	}

	router := handler.NewRouter(handler.Deps{
		Personas:  personaStore,
		Chat:      chatService.NewService(),
		Responder: responder,
		Options: chat.Options{
			SuggestionFormat: cfg.Service.SuggestionFormat,
			DefaultPersona:   cfg.Service.DefaultPersona,
			MaxSuggestions:   cfg.Service.MaxSuggestions,
		},
		Logger: logr,
	})

	startServer(ctx, logr, cfg.Server, router)
}

func startServer(ctx context.Context, logr *log.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logr.Info("chatbot service listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		logr.Fatal("server error", "err", err)
	}
	logr.Info("chatbot service stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
