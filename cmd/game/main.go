package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tatianab/prairie/internal/config"
	"github.com/tatianab/prairie/internal/engine"
	"github.com/tatianab/prairie/internal/interpreter"
	"github.com/tatianab/prairie/internal/journal"
	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/session"
	"github.com/tatianab/prairie/internal/store"
	"github.com/tatianab/prairie/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred closes happen before main exits.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to the TUI, so logs go to a file.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)

	kv, err := store.Open(cfg.Store, cfg.SaveDir, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("closing store", "err", err)
		}
	}()

	var recorder session.TurnRecorder
	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, "turns")
		defer func() {
			if err := jw.Close(); err != nil {
				logger.Error("closing journal", "err", err)
			}
		}()
		recorder = jw
	}

	r := tui.NewRenderer()
	ctrl := session.New(session.Config{
		World:       models.NewWorldState(kv, models.WithLogger(logger)),
		Client:      engine.NewEngine(cfg.EngineConfig()),
		Interpreter: interpreter.New(logger),
		Renderer:    r,
		Settings:    kv,
		Journal:     recorder,
		Logger:      logger,
	})

	if cfg.APIKey != "" {
		if err := ctrl.Configure(cfg.Provider, cfg.APIKey); err != nil {
			return fmt.Errorf("configuring provider: %w", err)
		}
	}

	if err := tui.Run(ctrl, r); err != nil {
		logger.Error("tui exited", "err", err)
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
