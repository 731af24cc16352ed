// Command unraidctl discovers how to reach an Unraid server and runs GraphQL
// operations against it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// a missing .env is normal
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "probe":
		return runProbe(ctx, args[1:], stdout, stderr)
	case "query":
		return runQuery(ctx, args[1:], stdout, stderr)
	case "check":
		return runCheck(ctx, args[1:], stdout, stderr)
	case "watch":
		return runWatch(ctx, args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: unraidctl <command> [flags]

commands:
  probe   discover the server transport mode and print the endpoint
  query   run a GraphQL query or mutation (-q text or -f file, -vars JSON)
  check   verify the server API and platform versions are supported
  watch   poll the server and serve Prometheus metrics

common flags:
  -config FILE      YAML or TOML config file
  -host HOST        server address (UNRAID_HOST)
  -api-key KEY      API key (UNRAID_API_KEY, prompted when missing)
  -http-port N      HTTP port (UNRAID_HTTP_PORT)
  -https-port N     HTTPS port (UNRAID_HTTPS_PORT)
  -mode MODE        auto, none, yes or strict (UNRAID_MODE)
  -verify-tls BOOL  override certificate verification (UNRAID_VERIFY_TLS)
  -timeout DUR      per-operation timeout (UNRAID_TIMEOUT)
`)
}
