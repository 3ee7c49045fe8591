package main

// ---------------------------------------------------------------------------
// cmd_status.go: health and counters of a running proxy
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)
	if *jsonOut {
		*format = "json"
	}
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(*configPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)

	if _, err := apiGet(base+"/health", "", timeout); err != nil {
		fmt.Fprintf(os.Stderr, "%s siemproxy is not reachable at %s\n", red("✗"), base)
		errorf("%v", err)
	}

	body, err := apiGet(base+"/api/v1/stats", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if parseFormat(*format) == FormatJSON {
		os.Stdout.Write(body)
		return
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(body, &stats); err != nil {
		errorf("decoding stats: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s siemproxy healthy at %s\n\n", green("✓"), base)
	printStats(os.Stdout, stats)
}

// printStats flattens the nested stats object into a two-column table.
func printStats(w io.Writer, stats map[string]interface{}) {
	rows := map[string]string{}
	flattenStats("", stats, rows)

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tbl := NewTable(w, "METRIC", "VALUE")
	for _, k := range keys {
		tbl.AddRow(k, rows[k])
	}
	tbl.Render()
}

func flattenStats(prefix string, v interface{}, out map[string]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenStats(key, child, out)
		}
	case float64:
		if val == float64(int64(val)) {
			out[prefix] = fmt.Sprintf("%d", int64(val))
		} else {
			out[prefix] = fmt.Sprintf("%.2f", val)
		}
	default:
		out[prefix] = fmt.Sprint(val)
	}
}
