package main

// ---------------------------------------------------------------------------
// cmd_up.go: start the validating proxy
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/backend"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/proxy"
)

func cmdUp(args []string) {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	upstream := fs.String("upstream", "", "Upstream URL override")
	withBackend := fs.Bool("with-backend", false, "Also start the bundled demo backend")
	dryRun := fs.Bool("dry-run", false, "Validate config, then exit")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	noColor := fs.Bool("no-color", false, "Disable color output")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *upstream != "" {
		cfg.Proxy.Upstream = *upstream
	}

	warnings, validationErrs := cfg.Validate()
	for _, w := range warnings {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), w)
		}
	}
	if len(validationErrs) > 0 {
		for _, e := range validationErrs {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), e)
		}
		errorf("config validation failed with %d error(s)", len(validationErrs))
	}

	if *dryRun {
		fmt.Fprintf(os.Stdout, "%s Config valid. Proxy %s -> %s, general %d/%s, login %d/%s.\n",
			green("✓"), cfg.ProxyAddr(), cfg.Proxy.Upstream,
			cfg.Limits.General.Max, cfg.Limits.General.Window,
			cfg.Limits.Login.Max, cfg.Limits.Login.Window)
		os.Exit(0)
	}

	if !cfg.AuthEnabled() && !*quiet {
		fmt.Fprintf(os.Stderr, "%s No API keys configured. /api/v1 is open.\n", yellow("⚠"))
		fmt.Fprintf(os.Stderr, "    Set proxy.api_keys in config or SIEMPROXY_API_KEY to protect it.\n")
	}

	engine := core.NewEngine(cfg)
	logger := core.NewLogger(cfg.Logging, os.Stderr)
	engine.Logger = logger.With().Str("component", "engine").Logger()

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Starting siemproxy...\n", dim("▸"))
	}

	if err := engine.Start(); err != nil {
		errorf("starting engine: %v", err)
	}

	var demo *backend.Server
	if *withBackend {
		demo, err = backend.New(cfg.Backend, 0, logger)
		if err != nil {
			engine.Shutdown()
			errorf("creating backend: %v", err)
		}
		if err := demo.Start(); err != nil {
			engine.Shutdown()
			errorf("starting backend: %v", err)
		}
	}

	srv, err := proxy.NewServer(engine)
	if err != nil {
		engine.Shutdown()
		errorf("creating proxy: %v", err)
	}
	if err := srv.Start(engine.Context()); err != nil {
		engine.Shutdown()
		errorf("starting proxy: %v", err)
	}

	if !*quiet {
		backendStatus := ""
		if demo != nil {
			backendStatus = fmt.Sprintf(", demo backend on %s", demo.Addr())
		}
		busStatus := ""
		if engine.Bus != nil {
			busStatus = fmt.Sprintf(", bus %s", green("connected"))
		}
		fmt.Fprintf(os.Stderr, "%s siemproxy running on %s -> %s%s%s\n",
			green("✓"), srv.Addr(), cfg.Proxy.Upstream, backendStatus, busStatus)
		fmt.Fprintf(os.Stderr, "%s Security logs in %s\n", dim("▸"), cfg.SecurityLog.Dir)
		fmt.Fprintf(os.Stderr, "%s Press Ctrl+C to stop\n", dim("▸"))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	if !*quiet {
		fmt.Fprintf(os.Stderr, "\n%s Received %s, shutting down...\n", dim("▸"), sig)
	}

	if err := srv.Stop(); err != nil {
		warnf("stopping proxy: %v", err)
	}
	if demo != nil {
		if err := demo.Stop(); err != nil {
			warnf("stopping backend: %v", err)
		}
	}
	if err := engine.Shutdown(); err != nil {
		warnf("stopping engine: %v", err)
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s siemproxy stopped.\n", green("✓"))
	}
}
