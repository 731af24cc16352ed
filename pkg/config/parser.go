package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a config file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

type ValidationError struct {
	Field   string
	Message string
}

// Returns the string representation of validation error
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Validator interface {
	Validate(cfg *Config) []ValidationError
}

// DefaultValueSetter fills in unset fields
type DefaultValueSetter interface {
	SetDefaults(cfg *Config)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// Loader reads client configs from YAML or TOML
type Loader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

// NewLoader creates a new Loader with the given components
func NewLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *Loader {
	return &Loader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// NewDefaultLoader returns a Loader with env expansion, defaults and all validators
func NewDefaultLoader() *Loader {
	return NewLoader(
		&EnvExpander{},
		&Defaults{},
		&RequiredFieldValidator{},
		&PortValidator{},
		&ModeValidator{},
	)
}

// Load a config from a YAML or TOML file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return l.Parse(data, FormatFromPath(path))
}

// Parse parses a config in the given format
func (l *Loader) Parse(data []byte, format Format) (*Config, error) {
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := l.Finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and runs the validators on an already built Config
func (l *Loader) Finalize(cfg *Config) error {
	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(cfg)
	}

	var allErrors []ValidationError
	for _, validator := range l.validators {
		allErrors = append(allErrors, validator.Validate(cfg)...)
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("validation errors: %v", allErrors)
	}
	return nil
}

// Defaults implements DefaultValueSetter for Config
type Defaults struct{}

// SetDefaults sets default values for Config. HTTPPort stays zero when unset
// so an explicit override remains distinguishable.
func (d *Defaults) SetDefaults(cfg *Config) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	cfg.Mode = Mode(strings.ToLower(string(cfg.Mode)))
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = DefaultHTTPSPort
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout.Duration = DefaultTimeout
	}
	if cfg.MinAPIVersion == "" {
		cfg.MinAPIVersion = DefaultMinAPIVersion
	}
	if cfg.MinPlatformVersion == "" {
		cfg.MinPlatformVersion = DefaultMinPlatformVersion
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// RequiredFieldValidator validates required fields
type RequiredFieldValidator struct{}

// Validate checks that host and API key are present
func (v *RequiredFieldValidator) Validate(cfg *Config) []ValidationError {
	var errors []ValidationError

	if cfg.Host == "" {
		errors = append(errors, ValidationError{Field: "host", Message: "is required"})
	}
	if cfg.APIKey == "" {
		errors = append(errors, ValidationError{Field: "api_key", Message: "is required"})
	}

	return errors
}

// PortValidator validates port ranges
type PortValidator struct{}

// Validate checks that configured ports fit in a uint16
func (v *PortValidator) Validate(cfg *Config) []ValidationError {
	var errors []ValidationError

	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		errors = append(errors, ValidationError{Field: "http_port", Message: "must be between 1 and 65535"})
	}
	if cfg.HTTPSPort < 0 || cfg.HTTPSPort > 65535 {
		errors = append(errors, ValidationError{Field: "https_port", Message: "must be between 1 and 65535"})
	}

	return errors
}

// ModeValidator validates the requested mode
type ModeValidator struct{}

// Validate checks that mode is one of auto, none, yes, strict
func (v *ModeValidator) Validate(cfg *Config) []ValidationError {
	if cfg.Mode != "" && !cfg.Mode.Valid() {
		return []ValidationError{{Field: "mode", Message: fmt.Sprintf("unknown mode: %s", cfg.Mode)}}
	}
	return nil
}
