package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadFrom(dir)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}

	if cfg.ServerURL != "http://localhost:8000" {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
	if cfg.DefaultMode != ModePublic {
		t.Errorf("DefaultMode = %q, want %q", cfg.DefaultMode, ModePublic)
	}
	if cfg.RequestTimeout != 60 {
		t.Errorf("RequestTimeout = %d, want 60", cfg.RequestTimeout)
	}
	if cfg.StateDir != dir {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, dir)
	}
	if cfg.Serve.TokenTTL != 30 {
		t.Errorf("Serve.TokenTTL = %d, want 30", cfg.Serve.TokenTTL)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "server_url: https://rag.example.com\ndefault_mode: dual\nrequest_timeout_seconds: 10\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(dir)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}

	if cfg.ServerURL != "https://rag.example.com" {
		t.Errorf("ServerURL = %q, want file value", cfg.ServerURL)
	}
	if cfg.DefaultMode != ModeDual {
		t.Errorf("DefaultMode = %q, want %q", cfg.DefaultMode, ModeDual)
	}
	if cfg.RequestTimeout != 10 {
		t.Errorf("RequestTimeout = %d, want 10", cfg.RequestTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "server_url: https://file.example.com\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGLET_SERVER_URL", "https://env.example.com")

	cfg, err := loadFrom(dir)
	if err != nil {
		t.Fatalf("loadFrom() error = %v", err)
	}

	if cfg.ServerURL != "https://env.example.com" {
		t.Errorf("ServerURL = %q, want env value", cfg.ServerURL)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ServerURL:      "http://localhost:8000",
		RequestTimeout: 60,
		DefaultMode:    ModePublic,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty URL", mutate: func(c *Config) { c.ServerURL = "" }, wantErr: ErrInvalidServerURL},
		{name: "no scheme", mutate: func(c *Config) { c.ServerURL = "localhost:8000" }, wantErr: ErrInvalidServerURL},
		{name: "bad scheme", mutate: func(c *Config) { c.ServerURL = "ftp://x" }, wantErr: ErrInvalidServerURL},
		{name: "bad mode", mutate: func(c *Config) { c.DefaultMode = "secret" }, wantErr: ErrInvalidMode},
		{name: "timeout too small", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "timeout too large", mutate: func(c *Config) { c.RequestTimeout = 601 }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Config{}

	if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("ValidateServe() error = %v, want ErrMissingJWTSecret", err)
	}

	cfg.Serve.JWTSecret = "short"
	if err := cfg.ValidateServe(); !errors.Is(err, ErrWeakJWTSecret) {
		t.Errorf("ValidateServe() error = %v, want ErrWeakJWTSecret", err)
	}

	cfg.Serve.JWTSecret = strings.Repeat("s", 32)
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("ValidateServe() error = %v, want nil", err)
	}
}

func TestSecretMasking(t *testing.T) {
	secret := "super_secret_signing_key_value_123"
	cfg := Config{Serve: ServeConfig{JWTSecret: secret}}

	out := cfg.String()
	if strings.Contains(out, secret) {
		t.Errorf("String() leaked the JWT secret: %q", out)
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("String() missing mask placeholder: %q", out)
	}

	t.Run("short secrets fully masked", func(t *testing.T) {
		if got := maskSecret("abcdefgh"); got != maskedValue {
			t.Errorf("maskSecret(short) = %q, want %q", got, maskedValue)
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		if got := maskSecret(""); got != "" {
			t.Errorf("maskSecret(\"\") = %q, want empty", got)
		}
	})
}
