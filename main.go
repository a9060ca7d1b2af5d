// ollamadesk - a local web chat front end for Ollama.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/ollamadesk/internal/config"
	"github.com/jeranaias/ollamadesk/internal/ollama"
	"github.com/jeranaias/ollamadesk/internal/server"
	"github.com/jeranaias/ollamadesk/internal/status"
	"github.com/jeranaias/ollamadesk/internal/storage"
	"github.com/jeranaias/ollamadesk/internal/telemetry"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default ~/.ollamadesk/config.toml)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ollamadesk %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("CONFIG_ERROR | err=%v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := run(cfg, *configPath); err != nil {
		log.Fatalf("FATAL | err=%v", err)
	}
}

// loadConfig loads from an explicit path, or the default location.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(cfg *config.Config, configPath string) error {
	tracker := status.NewTracker()

	runtime := ollama.NewCLIRuntime(&ollama.Config{
		Binary:  cfg.Runtime.Binary,
		BaseURL: cfg.Runtime.OllamaURL,
	})
	manager := ollama.NewManager(runtime, tracker)

	store, err := storage.NewStore(cfg.Storage.ChatsDir)
	if err != nil {
		return fmt.Errorf("failed to open chat store: %w", err)
	}
	store.WithTitleFunc(titleFunc(runtime))

	srv := server.NewServer(cfg.Server.Addr, manager, tracker, store, cfg.Runtime.DefaultModel).
		WithRateLimiter(server.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	usage, err := telemetry.Open(cfg.Storage.UsageDBPath)
	if err != nil {
		// The usage log is a convenience; the server runs without it.
		log.Printf("USAGE_LOG_UNAVAILABLE | path=%s err=%v", cfg.Storage.UsageDBPath, err)
	} else {
		defer usage.Close()
		srv.WithUsageLog(usage)
	}

	if watcher := watchConfig(configPath, srv); watcher != nil {
		defer watcher.Close()
	}

	// Serve until interrupted.
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("SIGNAL_RECEIVED | signal=%v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// titleFunc builds the auto-title callback: a short chat request asking
// the model to name the conversation.
func titleFunc(runtime ollama.Runtime) storage.TitleFunc {
	return func(ctx context.Context, model, firstUserMessage string) (string, error) {
		prompt := "Reply with a 3-6 word title for a conversation that starts with this message. " +
			"Reply with the title only, no quotes or punctuation around it.\n\n" + firstUserMessage

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		title, err := runtime.Chat(ctx, model, []ollama.Message{ollama.NewUserMessage(prompt)})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(title), nil
	}
}

// watchConfig hot-reloads the mutable parts of the configuration. Only
// the default model takes effect live; address and storage changes need
// a restart.
func watchConfig(configPath string, srv *server.Server) *config.Watcher {
	path := configPath
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return nil
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil // nothing to watch
	}

	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		if cfg.Runtime.DefaultModel != "" {
			srv.SetCurrentModel(cfg.Runtime.DefaultModel)
		}
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_UNAVAILABLE | err=%v", err)
		return nil
	}

	if err := watcher.Watch(); err != nil {
		log.Printf("CONFIG_WATCH_UNAVAILABLE | err=%v", err)
		watcher.Close()
		return nil
	}

	return watcher
}
