package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/core"
	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/logging"
	"github.com/saturnines/unraid-connect/pkg/observability"
)

// test seams
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// commonFlags are shared by every subcommand. Precedence is flag, then
// environment, then config file.
type commonFlags struct {
	configPath string
	host       string
	apiKey     string
	httpPort   int
	httpsPort  int
	mode       string
	verifyTLS  string
	timeout    time.Duration
	logLevel   string
	logFormat  string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", envOr("UNRAID_CONFIG", ""), "YAML or TOML config file")
	fs.StringVar(&f.host, "host", envOr("UNRAID_HOST", ""), "server address")
	fs.StringVar(&f.apiKey, "api-key", envOr("UNRAID_API_KEY", ""), "API key")
	fs.IntVar(&f.httpPort, "http-port", parseIntEnv("UNRAID_HTTP_PORT", 0), "HTTP port (default 80)")
	fs.IntVar(&f.httpsPort, "https-port", parseIntEnv("UNRAID_HTTPS_PORT", 0), "HTTPS port (default 443)")
	fs.StringVar(&f.mode, "mode", envOr("UNRAID_MODE", ""), "auto, none, yes or strict")
	fs.StringVar(&f.verifyTLS, "verify-tls", envOr("UNRAID_VERIFY_TLS", ""), "override certificate verification (true/false)")
	fs.DurationVar(&f.timeout, "timeout", parseDurationEnv("UNRAID_TIMEOUT", 0), "per-operation timeout")
	fs.StringVar(&f.logLevel, "log-level", envOr("UNRAID_LOG_LEVEL", ""), "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", envOr("UNRAID_LOG_FORMAT", ""), "text or json")
	return f
}

// config merges the config file with flags and environment.
func (f *commonFlags) config() (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		// no defaults or validators: the client finalizes the merged result
		loader := config.NewLoader(&config.EnvExpander{}, nil)
		loaded, err := loader.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	if f.host != "" {
		cfg.Host = f.host
	}
	if f.apiKey != "" {
		cfg.APIKey = f.apiKey
	}
	if f.httpPort != 0 {
		cfg.HTTPPort = f.httpPort
	}
	if f.httpsPort != 0 {
		cfg.HTTPSPort = f.httpsPort
	}
	if f.mode != "" {
		cfg.Mode = config.Mode(f.mode)
	}
	if f.verifyTLS != "" {
		v, err := strconv.ParseBool(f.verifyTLS)
		if err != nil {
			return cfg, fmt.Errorf("invalid -verify-tls value %q", f.verifyTLS)
		}
		cfg.VerifyTLS = &v
	}
	if f.timeout > 0 {
		cfg.Timeout.Duration = f.timeout
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	return cfg, nil
}

// promptAPIKey asks for the key on an interactive terminal.
func promptAPIKey(cfg *config.Config, stderr io.Writer) error {
	if cfg.APIKey != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil
	}
	fmt.Fprint(stderr, "API key: ")
	key, err := readPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(string(key))
	return nil
}

// newClient assembles config, logger and client for a subcommand.
func (f *commonFlags) newClient(stderr io.Writer, obs observability.ClientObserver) (*core.Client, *slog.Logger, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}
	if err := promptAPIKey(&cfg, stderr); err != nil {
		return nil, nil, err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	client, err := core.New(cfg,
		core.WithLogger(logger),
		core.WithObserver(obs),
		core.WithUserAgent("unraidctl"),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

func printError(w io.Writer, cmd string, err error) {
	if kind := errors.KindOf(err); kind != "" {
		fmt.Fprintf(w, "%s failed (%s): %v\n", cmd, kind, err)
		return
	}
	fmt.Fprintf(w, "%s failed: %v\n", cmd, err)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
