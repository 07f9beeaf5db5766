package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/patterniq/patterniq-client/internal/app"
	"github.com/patterniq/patterniq-client/internal/config"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	modeOverride := flag.String("mode", "", "override backend mode: stub|live")
	tokenOverride := flag.String("token", "", "override identity token")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if v := strings.ToLower(strings.TrimSpace(*modeOverride)); v != "" {
		cfg.BackendMode = v
	}
	if v := strings.TrimSpace(*tokenOverride); v != "" {
		cfg.IdentityToken = v
	}

	log.Printf("patterniq-client starting (mode=%s backend=%s api=%t)",
		cfg.BackendMode, cfg.BackendURL, cfg.API.Enabled)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("run error: %v", err)
	}
	a.Shutdown(context.Background())
}
