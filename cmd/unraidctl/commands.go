package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/saturnines/unraid-connect/pkg/core"
	"github.com/saturnines/unraid-connect/pkg/observability"
	"github.com/saturnines/unraid-connect/pkg/observability/prom"
	"github.com/saturnines/unraid-connect/pkg/transport/graphql"
)

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	asJSON := fs.Bool("json", false, "print the outcome as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client, _, err := common.newClient(stderr, nil)
	if err != nil {
		printError(stderr, "probe", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	outcome, err := client.Discover(ctx)
	if err != nil {
		printError(stderr, "probe", err)
		return 1
	}

	ep := outcome.Endpoint
	if *asJSON {
		return writeJSON(stdout, stderr, map[string]any{
			"mode":          outcome.Mode,
			"url":           ep.URL(),
			"verify_tls":    ep.VerifyTLS,
			"header_domain": ep.HeaderDomain,
		})
	}
	fmt.Fprintf(stdout, "mode:          %s (%s)\n", outcome.Mode, outcome.Mode.Describe())
	fmt.Fprintf(stdout, "url:           %s\n", ep.URL())
	fmt.Fprintf(stdout, "verify tls:    %t\n", ep.VerifyTLS)
	fmt.Fprintf(stdout, "header domain: %s\n", ep.HeaderDomain)
	return 0
}

func runQuery(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	query := fs.String("q", "", "query text")
	file := fs.String("f", "", "file containing the query")
	vars := fs.String("vars", "", "variables as a JSON object")
	path := fs.String("path", "", "print only the value at this path (e.g. info.versions.core)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req, err := buildRequest(*query, *file, *vars)
	if err != nil {
		fmt.Fprintln(stderr, "query:", err)
		return 2
	}

	client, _, err := common.newClient(stderr, nil)
	if err != nil {
		printError(stderr, "query", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	data, err := client.Execute(ctx, req)
	if err != nil {
		printError(stderr, "query", err)
		return 1
	}

	var out any = data
	if *path != "" {
		v, ok := core.Lookup(data, *path)
		if !ok {
			fmt.Fprintf(stderr, "query: path %q not found in response\n", *path)
			return 1
		}
		out = v
	}
	return writeJSON(stdout, stderr, out)
}

// buildRequest reads the query from text or file and decodes the variables.
func buildRequest(query, file, vars string) (graphql.Request, error) {
	var req graphql.Request
	switch {
	case query != "" && file != "":
		return req, fmt.Errorf("use either -q or -f, not both")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("read query file: %w", err)
		}
		query = string(b)
	}
	if strings.TrimSpace(query) == "" {
		return req, fmt.Errorf("a query is required (-q or -f)")
	}
	req.Query = query

	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
			return req, fmt.Errorf("invalid -vars JSON object: %w", err)
		}
	}
	return req, nil
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client, _, err := common.newClient(stderr, nil)
	if err != nil {
		printError(stderr, "check", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	if err := client.CheckCompatibility(ctx); err != nil {
		printError(stderr, "check", err)
		return 1
	}
	cfg := client.Config()
	fmt.Fprintf(stdout, "compatible (minimum api %s, minimum unraid %s)\n", cfg.MinAPIVersion, cfg.MinPlatformVersion)
	return 0
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommon(fs)
	interval := fs.Duration("interval", 30*time.Second, "poll interval")
	metricsAddr := fs.String("metrics-addr", envOr("UNRAID_METRICS_ADDR", ""), "serve Prometheus metrics on this address (e.g. :9100)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *interval <= 0 {
		fmt.Fprintln(stderr, "watch: -interval must be positive")
		return 2
	}

	reg := prom.NewRegistry()
	var obs observability.ClientObserver = prom.NewClientObserver(reg)

	client, logger, err := common.newClient(stderr, obs)
	if err != nil {
		printError(stderr, "watch", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           metricsMux(prom.Handler(reg)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", *metricsAddr)
	}

	poll := func() {
		online, err := client.Online(ctx)
		if err != nil {
			logger.WarnContext(ctx, "poll failed", "error", err)
			return
		}
		fmt.Fprintf(stdout, "%s online=%t\n", time.Now().Format(time.RFC3339), online)
	}

	poll()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return 0
		case <-ticker.C:
			poll()
		}
	}
}

func metricsMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return mux
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, "encode output:", err)
		return 1
	}
	return 0
}
