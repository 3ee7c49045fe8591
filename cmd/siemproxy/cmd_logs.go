package main

// ---------------------------------------------------------------------------
// cmd_logs.go: read a per-severity security log from a running proxy
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tanner253/ExtraHop-TakeHomeAssesment/internal/core"
)

type logReadResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	severity := fs.String("severity", "high", "Severity: critical, high, medium")
	lines := fs.Int("lines", 0, "Show only the last N lines (0 for all)")
	follow := fs.Bool("follow", false, "Poll for new lines")
	fs.BoolVar(follow, "f", false, "Poll for new lines")
	intervalStr := fs.String("interval", "2s", "Poll interval with --follow")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)
	base := apiBase(*configPath, envHost(*host), envPort(*port))

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}
	interval, err := time.ParseDuration(*intervalStr)
	if err != nil || interval <= 0 {
		errorf("invalid interval %q", *intervalStr)
	}

	filename, err := logFileName(*severity)
	if err != nil {
		errorf("%v", err)
	}
	url := fmt.Sprintf("%s/logs/%s/read", base, filename)

	content, err := fetchLog(url, timeout)
	if err != nil {
		errorf("%v", err)
	}
	printLines(os.Stdout, tailLines(content, *lines))

	if !*follow {
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := len(content)
	for {
		select {
		case <-sigCh:
			return
		case <-ticker.C:
			content, err := fetchLog(url, timeout)
			if err != nil {
				warnf("%v", err)
				continue
			}
			if len(content) < seen {
				// File was truncated or replaced; start over.
				seen = 0
			}
			printLines(os.Stdout, content[seen:])
			seen = len(content)
		}
	}
}

// logFileName maps a severity name to its log file.
func logFileName(sev string) (string, error) {
	switch strings.ToLower(sev) {
	case "critical", "high", "medium":
		return core.FileName(core.ParseSeverity(sev)), nil
	default:
		return "", fmt.Errorf("unknown severity %q (critical, high, medium)", sev)
	}
}

// fetchLog returns the log content, treating a not-yet-created file as empty.
func fetchLog(url string, timeout time.Duration) (string, error) {
	body, err := apiGet(url, "", timeout)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound && strings.Contains(apiErr.Body, "does not exist") {
			return "", nil
		}
		return "", err
	}
	var resp logReadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding log response: %w", err)
	}
	return resp.Content, nil
}

// tailLines returns the last n lines of content, or all of it when n <= 0.
func tailLines(content string, n int) string {
	if n <= 0 || content == "" {
		return content
	}
	trimmed := strings.TrimRight(content, "\n")
	parts := strings.Split(trimmed, "\n")
	if len(parts) <= n {
		return content
	}
	return strings.Join(parts[len(parts)-n:], "\n") + "\n"
}

func printLines(w io.Writer, content string) {
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintln(w, colorizeLogLine(line))
	}
}

// colorizeLogLine highlights the severity field of a security log line.
func colorizeLogLine(line string) string {
	for _, sev := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"} {
		marker := "] " + sev + " |"
		if i := strings.Index(line, marker); i >= 0 {
			return line[:i+2] + severityColor(sev) + line[i+2+len(sev):]
		}
	}
	return line
}
