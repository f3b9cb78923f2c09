// ABOUTME: Entry point for the pixelpals-chat gateway server
// ABOUTME: Wires config, store, registry, presence, typing, and the conversation service

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/auth"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/config"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/conversation"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/gateway"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/media"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/presence"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/store"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/typing"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: pixelpals-chat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the chat gateway server")
		fmt.Println("  health    Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	configPath := os.Getenv("PIXELPALS_CHAT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	setupLogging(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	resolver, err := media.NewDirResolver(cfg.Media.Dir, nil)
	if err != nil {
		return fmt.Errorf("initializing media resolver: %w", err)
	}

	reg := registry.New(nil)
	pres := presence.NewBroadcaster(reg, nil)
	typ := typing.NewCoordinator(reg, cfg.Typing.TTL, nil)
	go typ.Run(ctx)

	svc := conversation.New(st, reg, resolver, nil)
	defer svc.Close()
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	gw := gateway.New(cfg.Server.HTTPAddr, svc, reg, pres, typ, verifier, nil)
	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	addr := os.Getenv("PIXELPALS_CHAT_ADDR")
	if addr == "" {
		addr = "localhost:8080"
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
