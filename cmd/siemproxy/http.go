package main

// ---------------------------------------------------------------------------
// http.go: HTTP client helpers for the proxy's admin endpoints
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

func apiGet(url, apiKey string, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to siemproxy at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return body, fmt.Errorf("authentication failed (HTTP %d): provide --api-key or set SIEMPROXY_API_KEY", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return body, &apiError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// apiError is a non-auth HTTP failure from the proxy.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API returned HTTP %d: %s", e.Status, e.Body)
}
