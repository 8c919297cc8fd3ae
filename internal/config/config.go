// Package config loads opsession settings. OPSESSION_* environment variables
// take precedence over the YAML file, which takes precedence over defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/opsession/internal/errors"
)

// Defaults applied when neither the file nor the environment sets a key.
const (
	DefaultBinary       = "op"
	DefaultTimeoutMS    = 30000
	DefaultVault        = "Private"
	DefaultAppDirectory = "opsession"
	DefaultFileName     = "config.yaml"
)

//go:embed schema.json
var schema string

// accountPattern mirrors the schema's account rule so environment values
// are held to it too.
var accountPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Config is the merged opsession configuration.
type Config struct {
	Binary       string `yaml:"op_binary,omitempty" env:"OP_BINARY"`
	Account      string `yaml:"account,omitempty" env:"ACCOUNT"`
	Domain       string `yaml:"domain,omitempty" env:"DOMAIN"`
	Email        string `yaml:"email,omitempty" env:"EMAIL"`
	Profile      string `yaml:"profile,omitempty" env:"PROFILE"`
	TimeoutMS    int    `yaml:"timeout_ms,omitempty" env:"TIMEOUT_MS"`
	DefaultVault string `yaml:"default_vault,omitempty" env:"DEFAULT_VAULT"`
	Keychain     bool   `yaml:"keychain,omitempty" env:"KEYCHAIN"`
	MetricsFile  string `yaml:"metrics_file,omitempty" env:"METRICS_FILE"`

	// Path is the file the configuration was read from, empty when none existed.
	Path string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Binary:       DefaultBinary,
		TimeoutMS:    DefaultTimeoutMS,
		DefaultVault: DefaultVault,
	}
}

// Timeout is the per wait point sign-in timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// DefaultPath returns $XDG_CONFIG_HOME/opsession/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, DefaultAppDirectory, DefaultFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", DefaultAppDirectory, DefaultFileName), nil
}

// Load reads path (or DefaultPath when empty), applies OPSESSION_*
// environment overrides and fills the remaining keys from Defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	fileCfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	envCfg, err := loadEnv()
	if err != nil {
		return nil, err
	}

	cfg := envCfg
	for _, layer := range []*Config{fileCfg, Defaults()} {
		if err := mergo.Merge(cfg, layer); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}
	cfg.Path = fileCfg.Path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the merged values.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return dserrors.ConfigError{
			Field:      "op_binary",
			Message:    "the 1Password CLI binary must not be empty",
			Suggestion: "Remove 'op_binary' to use 'op' from PATH",
		}
	}
	if c.TimeoutMS < 100 {
		return dserrors.ConfigError{
			Field:      "timeout_ms",
			Value:      c.TimeoutMS,
			Message:    "timeout must be at least 100 milliseconds",
			Suggestion: fmt.Sprintf("Use the default of %d", DefaultTimeoutMS),
		}
	}
	if !accountPattern.MatchString(c.Account) {
		return dserrors.ConfigError{
			Field:      "account",
			Value:      c.Account,
			Message:    "account shorthand may only contain letters, digits and underscores",
			Suggestion: "Use the shorthand shown by 'op account list', with '-' replaced by '_'",
		}
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Value:      path,
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, dserrors.ConfigError{
			Value:   path,
			Message: fmt.Sprintf("cannot decode configuration: %v", err),
		}
	}
	cfg.Path = path
	return &cfg, nil
}

func loadEnv() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "OPSESSION_"}); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid OPSESSION_* environment override: %v", err),
			Suggestion: "Check the values of the OPSESSION_* variables",
		}
	}
	return &cfg, nil
}

func validateSchema(raw map[string]interface{}) error {
	// An empty document decodes to nil, which the schema would reject as
	// not an object.
	if raw == nil {
		return nil
	}
	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	field := ""
	for _, desc := range result.Errors() {
		if field == "" {
			field = desc.Field()
		}
		messages = append(messages, desc.String())
	}
	return dserrors.ConfigError{
		Field:      field,
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Known keys: op_binary, account, domain, email, profile, timeout_ms, default_vault, keychain, metrics_file",
	}
}
