package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CoachForge/internal/domain/envelope"
)

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check /health of the orchestrator, manager and memory services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets := []struct{ name, url string }{
				{envelope.ServiceOrchestrator, opts.orchestrator},
				{envelope.ServiceManager, opts.manager},
				{envelope.ServiceMemory, opts.memory},
			}
			out := cmd.OutOrStdout()
			var failed []string
			for _, t := range targets {
				if t.url == "" {
					continue
				}
				st, err := fetchHealth(cmd.Context(), opts, healthURL(t.url))
				if err != nil {
					fmt.Fprintf(out, "%-14s down      %v\n", t.name, err)
					failed = append(failed, t.name)
					continue
				}
				fmt.Fprintf(out, "%-14s %-9s %s\n", t.name, st.Status, formatChecks(st.Checks))
				if st.Status != "ok" {
					failed = append(failed, t.name)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("unhealthy: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

// healthURL maps a service's /mcp URL to its /health URL.
func healthURL(mcpURL string) string {
	return strings.TrimSuffix(strings.TrimSuffix(mcpURL, "/"), "/mcp") + "/health"
}

func fetchHealth(ctx context.Context, opts *options, url string) (healthStatus, error) {
	var st healthStatus
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	return st, nil
}

func formatChecks(checks map[string]string) string {
	if len(checks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(checks))
	for name, v := range checks {
		parts = append(parts, name+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
