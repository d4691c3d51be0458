// Package main provides a lightweight health check utility for Docker
// containers where standard tools (wget, curl) are unavailable.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	defaultPort    = "8080"
	requestTimeout = 5 * time.Second
	exitSuccess    = 0
	exitFailure    = 1
)

// healthURL builds the probe target. 127.0.0.1 rather than localhost so the
// check works in scratch images without /etc/hosts.
func healthURL(port string) string {
	if port == "" {
		port = defaultPort
	}
	return fmt.Sprintf("http://127.0.0.1:%s/health", port)
}

// checkHealth calls the health endpoint and verifies the server reports
// itself healthy. The endpoint answers 503 with status "degraded" when the
// database ping fails, so the body is inspected, not just the status code.
func checkHealth(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("health response not parseable: %w", err)
	}
	if body.Status != "healthy" {
		return fmt.Errorf("server reports status %q (database %q)", body.Status, body.Database)
	}
	return nil
}

func main() {
	client := &http.Client{
		Timeout: requestTimeout,
	}
	if err := checkHealth(client, healthURL(os.Getenv("PORT"))); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
