// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (RAGLET_* overrides)
//  2. Config file (~/.raglet/config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error built from the sentinel
// errors below, checkable with errors.Is().
//
// Security: the serve-mode JWT secret is masked in MarshalJSON and String;
// the config directory is created with 0750 permissions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidServerURL indicates the server URL is missing or unparseable.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrInvalidMode indicates the default chat mode is not "public" or "dual".
	ErrInvalidMode = errors.New("invalid chat mode")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrMissingJWTSecret indicates serve mode was requested without a signing secret.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrWeakJWTSecret indicates the serve-mode signing secret is too short.
	ErrWeakJWTSecret = errors.New("JWT secret too short")
)

// Chat mode identifiers used in Config.DefaultMode and on the wire.
const (
	ModePublic = "public"
	ModeDual   = "dual"
)

// Request timeout bounds in seconds.
const (
	minTimeoutSeconds = 1
	maxTimeoutSeconds = 600
)

// minJWTSecretLen is the minimum serve-mode secret length in bytes.
const minJWTSecretLen = 32

// ServeConfig holds settings for the reference dev server (raglet serve).
type ServeConfig struct {
	Addr       string `mapstructure:"addr" json:"addr"`
	JWTSecret  string `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	TokenTTL   int    `mapstructure:"token_ttl_minutes" json:"token_ttl_minutes"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Remote service configuration
	ServerURL      string `mapstructure:"server_url" json:"server_url"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`

	// Conversation defaults
	DefaultMode string `mapstructure:"default_mode" json:"default_mode"`

	// Local state (credential file, chat log). Empty means ~/.raglet.
	StateDir string `mapstructure:"state_dir" json:"state_dir"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Telemetry enables OpenTelemetry stdout tracing/metrics around requests.
	Telemetry bool `mapstructure:"telemetry" json:"telemetry"`

	// Serve holds dev server settings (see ServeConfig).
	Serve ServeConfig `mapstructure:"serve" json:"serve"`
}

// Load loads configuration from ~/.raglet, the current directory, and the
// environment. Priority: environment > config file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	return loadFrom(filepath.Join(home, ".raglet"))
}

// loadFrom is the testable core of Load. It reads config.yaml from dir and
// applies defaults and environment overrides.
func loadFrom(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	setDefaults(v, dir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, stateDir string) {
	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("default_mode", ModePublic)
	v.SetDefault("state_dir", stateDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("telemetry", false)

	v.SetDefault("serve.addr", "localhost:8000")
	v.SetDefault("serve.token_ttl_minutes", 30)
	v.SetDefault("serve.rate_burst", 60)
	v.SetDefault("serve.trust_proxy", false)
}

// bindEnvVariables binds environment overrides explicitly. The JWT secret is
// environment-only by convention so it never lands in a config file.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server_url", "RAGLET_SERVER_URL")
	mustBind("default_mode", "RAGLET_MODE")
	mustBind("log_level", "RAGLET_LOG_LEVEL")
	mustBind("telemetry", "RAGLET_TELEMETRY")
	mustBind("serve.addr", "RAGLET_SERVE_ADDR")
	mustBind("serve.jwt_secret", "RAGLET_JWT_SECRET")
	mustBind("serve.trust_proxy", "RAGLET_TRUST_PROXY")
}

// Validate checks ranges and formats. Serve-mode secrets are validated
// separately in ValidateServe because they are only required by the serve
// command.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidServerURL, u.Scheme)
	}

	if c.DefaultMode != ModePublic && c.DefaultMode != ModeDual {
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidMode, c.DefaultMode, ModePublic, ModeDual)
	}

	if c.RequestTimeout < minTimeoutSeconds || c.RequestTimeout > maxTimeoutSeconds {
		return fmt.Errorf("%w: %d (want %d-%d seconds)", ErrInvalidTimeout, c.RequestTimeout, minTimeoutSeconds, maxTimeoutSeconds)
	}

	return nil
}

// ValidateServe checks the settings the dev server requires.
func (c *Config) ValidateServe() error {
	if c.Serve.JWTSecret == "" {
		return fmt.Errorf("%w: set RAGLET_JWT_SECRET", ErrMissingJWTSecret)
	}
	if len(c.Serve.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("%w: %d bytes (want at least %d)", ErrWeakJWTSecret, len(c.Serve.JWTSecret), minJWTSecretLen)
	}
	return nil
}

// CredentialPath returns the credential file location under the state dir.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.StateDir, "credential.json")
}

// ChatLogPath returns the chat-mode log file location under the state dir.
func (c *Config) ChatLogPath() string {
	return filepath.Join(c.StateDir, "raglet.log")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against real secret characters.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Serve.JWTSecret = maskSecret(a.Serve.JWTSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
