package main

// ---------------------------------------------------------------------------
// main.go: command dispatcher for the siemproxy CLI
//
// Command implementations live in cmd_*.go. Shared helpers are in
// helpers.go, http.go, output.go, and banner.go.
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
)

var (
	version   = "0.3.0"
	commit    = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--version", "-V":
			printVersion(os.Stdout)
			os.Exit(0)
		case "--help", "-h", "help":
			if len(os.Args) >= 3 {
				cmdHelp(os.Args[2])
			} else {
				printUsage(os.Stdout)
			}
			os.Exit(0)
		}
	}

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	subcmd := os.Args[1]
	args := os.Args[2:]

	for _, a := range args {
		if a == "-h" || a == "--help" {
			cmdHelp(subcmd)
			os.Exit(0)
		}
	}

	switch subcmd {
	case "up":
		cmdUp(args)
	case "backend":
		cmdBackend(args)
	case "scan":
		cmdScan(args)
	case "logs":
		cmdLogs(args)
	case "events":
		cmdEvents(args)
	case "status":
		cmdStatus(args)
	case "config":
		cmdConfig(args)
	case "version":
		printVersion(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "%s unknown command %q\n", red("error:"), subcmd)
		if s := suggest(subcmd); s != "" {
			fmt.Fprintf(os.Stderr, "\n  Did you mean %s?\n", bold(s))
		}
		fmt.Fprintf(os.Stderr, "\n  Run 'siemproxy help' for usage.\n")
		os.Exit(1)
	}
}
