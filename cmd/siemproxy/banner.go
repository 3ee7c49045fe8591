package main

// ---------------------------------------------------------------------------
// banner.go: banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	text := `
    ┌──────────────────────────────────────────────┐
    │  siemproxy  ·  validating reverse proxy      │
    │  signatures · rate limits · escalation       │
    └──────────────────────────────────────────────┘
`
	return cyan(text)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "siemproxy v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s

Usage:
  siemproxy <command> [flags]

Commands:
  up        Start the validating proxy
  backend   Run the bundled demo backend on its own
  scan      Check a payload against the signature sets offline
  logs      Read a security log from a running proxy
  events    List recent security events from a running proxy
  status    Show health and counters of a running proxy
  config    Show, validate, or initialise configuration
  version   Print version information
  help      Show help for a command

Environment:
  SIEMPROXY_CONFIG    default config file path
  SIEMPROXY_HOST      API host override
  SIEMPROXY_PORT      API port override
  SIEMPROXY_API_KEY   API key for /api/v1
  SIEMPROXY_UPSTREAM  upstream URL override

Run 'siemproxy help <command>' for command flags.
`, bold("siemproxy v"+version))
}

var commandHelp = map[string]string{
	"up": `Start the validating proxy.

  --config PATH       Config file (default configs/default.yaml)
  --log-level LEVEL   debug, info, warn, error
  --upstream URL      Upstream override
  --with-backend      Also start the bundled demo backend
  --dry-run           Validate config and exit
  -q, --quiet         Suppress banner and non-essential output
  --no-color          Disable color output`,
	"backend": `Run the bundled demo backend.

  --config PATH       Config file (default configs/default.yaml)
  --log-level LEVEL   debug, info, warn, error`,
	"scan": `Check a payload against the signature sets without a running proxy.

  siemproxy scan [flags] [payload]

  --input FILE        Read payload from file (- for stdin)
  --format FORMAT     table or json
  --json              Shorthand for --format json
  --fail              Exit with status 2 when any pattern matches`,
	"logs": `Read a security log from a running proxy.

  --severity SEV      critical, high, medium (default high)
  --lines N           Show only the last N lines (0 for all)
  --follow, -f        Poll for new lines
  --interval DUR      Poll interval with --follow (default 2s)
  --host, --port      API address override
  --timeout DUR       Request timeout`,
	"events": `List recent security events from a running proxy.

  --limit N           Number of events (default 50, max 500)
  --format FORMAT     table or json
  --api-key KEY       API key for /api/v1
  --host, --port      API address override`,
	"status": `Show health and counters of a running proxy.

  --format FORMAT     table or json
  --api-key KEY       API key for /api/v1
  --host, --port      API address override`,
	"config": `Show, validate, or initialise configuration.

  siemproxy config [--format yaml|json]
  siemproxy config --validate
  siemproxy config init [--force]`,
}

func cmdHelp(cmd string) {
	text, ok := commandHelp[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "%s no help for %q\n", red("error:"), cmd)
		if s := suggest(cmd); s != "" {
			fmt.Fprintf(os.Stderr, "\n  Did you mean %s?\n", bold(s))
		}
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "%s %s\n\n%s\n", bold("siemproxy"), bold(cmd), text)
}
