// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ComponentStatus holds the probe result for one endpoint of a running service.
type ComponentStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	Version   string `json:"version,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	apiURL     string
	metricsURL string
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return newStatusCmd(nil)
}

func newStatusCmd(deps *StatusDeps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Melodies service",
		Long:  `Query the API health route and the readiness probe of a running service.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps.withDefaults())
		},
	}

	cmd.Flags().StringVar(&cfg.apiURL, "api-url", "http://localhost:5000", "base URL of the API")
	cmd.Flags().StringVar(&cfg.metricsURL, "metrics-url", "http://127.0.0.1:9100", "base URL of the metrics and health server (empty to skip)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus probes the service and fails when any component is unhealthy.
func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *StatusDeps) error {
	ctx := cmd.Context()
	statuses := []ComponentStatus{queryAPI(ctx, deps.HTTPClient, cfg.apiURL)}
	if cfg.metricsURL != "" {
		statuses = append(statuses, queryReadiness(ctx, deps.HTTPClient, cfg.metricsURL))
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy {
			return oops.Code("SERVICE_UNHEALTHY").With("component", s.Component).Errorf("%s is not healthy", s.Component)
		}
	}
	return nil
}

type apiBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// queryAPI reads the version from the root route, then checks /api/health.
func queryAPI(ctx context.Context, client *http.Client, baseURL string) ComponentStatus {
	status := ComponentStatus{Component: "api"}
	base := strings.TrimRight(baseURL, "/")

	var root apiBody
	if _, _, err := get(ctx, client, base+"/", &root); err == nil {
		status.Version = root.Version
	}

	var health apiBody
	start := time.Now()
	code, _, err := get(ctx, client, base+"/api/health", &health)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = code == http.StatusOK && health.Success
	status.Detail = health.Message
	if !status.Healthy && status.Detail == "" {
		status.Detail = http.StatusText(code)
	}
	return status
}

// queryReadiness checks the readiness probe, which names failed checks.
func queryReadiness(ctx context.Context, client *http.Client, baseURL string) ComponentStatus {
	status := ComponentStatus{Component: "readiness"}

	start := time.Now()
	code, body, err := get(ctx, client, strings.TrimRight(baseURL, "/")+"/healthz/readiness", nil)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = code == http.StatusOK
	status.Detail = strings.TrimSpace(string(body))
	return status
}

// get fetches url and, when dst is non-nil, decodes the JSON body into it.
func get(ctx context.Context, client *http.Client, url string, dst any) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, oops.Wrap(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, oops.With("url", url).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, nil, oops.With("url", url).Wrap(err)
	}
	if dst != nil {
		if err := json.Unmarshal(body, dst); err != nil {
			return resp.StatusCode, body, oops.With("url", url).Wrapf(err, "decode response")
		}
	}
	return resp.StatusCode, body, nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []ComponentStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tSTATUS\tVERSION\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "---------\t------\t-------\t-------\t------")

	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		detail := s.Detail
		if s.Error != "" {
			state = "unreachable"
			detail = s.Error
		}
		version := s.Version
		if version == "" {
			version = "-"
		}
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", s.Component, state, version, s.LatencyMS, detail)
	}

	_ = w.Flush()
	return sb.String()
}
