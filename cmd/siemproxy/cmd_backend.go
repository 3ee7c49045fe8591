package main

// ---------------------------------------------------------------------------
// cmd_backend.go: run the bundled demo backend on its own
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/backend"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
)

func cmdBackend(args []string) {
	fs := flag.NewFlagSet("backend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := core.NewLogger(cfg.Logging, os.Stderr)
	srv, err := backend.New(cfg.Backend, 0, logger)
	if err != nil {
		errorf("creating backend: %v", err)
	}
	if err := srv.Start(); err != nil {
		errorf("starting backend: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%s demo backend on %s (user %s)\n", green("✓"), srv.Addr(), cfg.Backend.Username)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := srv.Stop(); err != nil {
		warnf("stopping backend: %v", err)
	}
}
