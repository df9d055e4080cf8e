package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"applyq/internal/config"
	"applyq/internal/daemon"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	if err := daemon.Run(ctx, cfg); err != nil {
		log.Fatalf("applyqd: %v", err)
	}
}
