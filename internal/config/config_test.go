package config

import (
	"testing"
	"time"
)

func TestParseExpiresIn(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 24 * time.Hour},
		{"24h", 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseExpiresIn(tc.in)
		if err != nil {
			t.Fatalf("ParseExpiresIn(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseExpiresIn(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseExpiresIn_Rejects(t *testing.T) {
	for _, in := range []string{"xd", "0d", "-1h", "soon"} {
		if _, err := ParseExpiresIn(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h default ttl, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("secret not read")
	}
	if cfg.SMTP.Configured() {
		t.Fatalf("smtp should be unconfigured without host")
	}
	if !cfg.App.IsDevelopment() {
		t.Fatalf("default env should be development")
	}
	if cfg.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limit window %v", cfg.RateLimit.Window)
	}
}

func TestLoad_InvalidExpiresIn(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "forever")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error")
	}
}
