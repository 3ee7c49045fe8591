package main

// ---------------------------------------------------------------------------
// cmd_events.go: list recent security events from a running proxy
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
)

type eventsResponse struct {
	Events []core.SecurityEvent `json:"events"`
	Count  int                  `json:"count"`
}

func cmdEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	limit := fs.Int("limit", 50, "Number of events (max 500)")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)
	if *jsonOut {
		*format = "json"
	}
	if *limit <= 0 {
		errorf("--limit must be positive")
	}
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(*configPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)

	body, err := apiGet(fmt.Sprintf("%s/api/v1/events?limit=%d", base, *limit), apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if parseFormat(*format) == FormatJSON {
		os.Stdout.Write(body)
		return
	}

	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		errorf("decoding events: %v", err)
	}
	printEvents(os.Stdout, resp.Events)
}

func printEvents(w io.Writer, events []core.SecurityEvent) {
	if len(events) == 0 {
		fmt.Fprintf(w, "%s No security events recorded.\n", dim("▸"))
		return
	}
	tbl := NewTable(w, "TIME", "SEVERITY", "CLIENT", "TYPE", "DETAILS")
	for _, ev := range events {
		tbl.AddRow(
			ev.Timestamp.Local().Format("15:04:05"),
			ev.Severity.String(),
			ev.ClientKey,
			ev.Type,
			truncateCell(ev.Details, 70),
		)
	}
	tbl.Render()
}
