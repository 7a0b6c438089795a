package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/uphera/adachat/internal/handlers"
	"github.com/uphera/adachat/internal/services"
	"gopkg.in/yaml.v3"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "adachat")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFilePath := os.Getenv("ADACHAT_CONFIG")
	if cfgFilePath == "" {
		cfgFilePath = filepath.Join(cfgPath, "config.yaml")
	}
	cfgFile, err := os.Open(cfgFilePath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfgPath, "store.db")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))

	llm, err := cfg.LLM.llm(logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating llm: %w", err))
	}

	boltDB, err := services.NewBoltDB(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	m := handlers.NewMain(llm, boltDB, cfg.handlersConfig(), logger)

	mux := http.NewServeMux()
	chat := m.RateLimit(http.HandlerFunc(m.HandleChat))
	mux.Handle("/ai-coach/chat", chat)
	mux.Handle("/api/ai-coach/chat", chat)
	mux.Handle("/ai-coach/chat/stream", m.RateLimit(http.HandlerFunc(m.HandleChatStream)))
	mux.Handle("/ai-coach/chat/stream-get", m.RateLimit(http.HandlerFunc(m.HandleChatStreamGet)))
	mux.HandleFunc("/health", m.HandleHealth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown streams", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("err", err.Error()))
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
