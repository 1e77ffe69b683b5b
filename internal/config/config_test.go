package config

import (
	"testing"
	"time"
)

func TestGetTablePrefix(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		override string
		want     string
	}{
		{name: "prod environment", env: "prod", want: "prod_"},
		{name: "test environment", env: "test", want: "test_"},
		{name: "dev environment", env: "dev", want: "dev_"},
		{name: "unknown environment falls back to dev", env: "staging", want: "dev_"},
		{name: "explicit override wins", env: "prod", override: "custom_", want: "custom_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TABLE_PREFIX", tt.override)
			if got := getTablePrefix(tt.env); got != tt.want {
				t.Errorf("getTablePrefix(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("DEBUG", "")

	cfg := Load()

	if cfg.Port != "8080" && cfg.Port == "" {
		t.Errorf("Port should have a default")
	}
	if cfg.TablePrefix != "prod_" {
		t.Errorf("TablePrefix = %q, want prod_", cfg.TablePrefix)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %v, want 24h", cfg.JWTTTL)
	}
	if cfg.SMTPPort != 465 {
		t.Errorf("SMTPPort = %d, want fallback 465", cfg.SMTPPort)
	}
	if cfg.Debug {
		t.Error("Debug should default to false in prod")
	}
}

func TestMailEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.MailEnabled() {
		t.Error("MailEnabled() = true without SMTP host")
	}
	cfg.SMTPHost = "smtp.example.com"
	if !cfg.MailEnabled() {
		t.Error("MailEnabled() = false with SMTP host")
	}
}
