package config

import "time"

// Default ports and limits
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
	DefaultTimeout   = 30 * time.Second

	// Minimum versions the client is tested against
	DefaultMinAPIVersion      = "4.29.2"
	DefaultMinPlatformVersion = "7.2.3"
)

// Config holds everything needed to reach one Unraid server
type Config struct {
	Host   string `yaml:"host" toml:"host"`       // Required: hostname or IP, scheme prefix tolerated
	APIKey string `yaml:"api_key" toml:"api_key"` // Required: API key with sufficient role

	// Ports. Zero means the default; HTTPPort only counts as explicit when it
	// differs from DefaultHTTPPort.
	HTTPPort  int `yaml:"http_port,omitempty" toml:"http_port,omitempty"`
	HTTPSPort int `yaml:"https_port,omitempty" toml:"https_port,omitempty"`

	Mode Mode `yaml:"mode,omitempty" toml:"mode,omitempty"` // auto (default), none, yes, strict

	// VerifyTLS overrides the verification policy the detected mode implies.
	// Strict mode always verifies.
	VerifyTLS *bool `yaml:"verify_tls,omitempty" toml:"verify_tls,omitempty"`

	Timeout Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	MinAPIVersion      string `yaml:"min_api_version,omitempty" toml:"min_api_version,omitempty"`
	MinPlatformVersion string `yaml:"min_platform_version,omitempty" toml:"min_platform_version,omitempty"`

	Log Log `yaml:"log,omitempty" toml:"log,omitempty"`
}

// Log configures the slog handler used by the CLI
type Log struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // text or json
}

// Mode is the requested transport mode
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeNone   Mode = "none"
	ModeYes    Mode = "yes"
	ModeStrict Mode = "strict"
)

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeNone, ModeYes, ModeStrict:
		return true
	}
	return false
}

// HTTPPortExplicit reports whether the caller overrode the HTTP port
func (c *Config) HTTPPortExplicit() bool {
	return c.HTTPPort != 0 && c.HTTPPort != DefaultHTTPPort
}

// EffectiveHTTPPort returns the HTTP port with the default applied
func (c *Config) EffectiveHTTPPort() int {
	if c.HTTPPort == 0 {
		return DefaultHTTPPort
	}
	return c.HTTPPort
}

// EffectiveHTTPSPort returns the HTTPS port with the default applied
func (c *Config) EffectiveHTTPSPort() int {
	if c.HTTPSPort == 0 {
		return DefaultHTTPSPort
	}
	return c.HTTPSPort
}

// Duration is a time.Duration that decodes from strings like "30s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for yaml and toml
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
