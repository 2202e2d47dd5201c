package config

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(zap.NewNop())

	if cfg.Port == "" {
		t.Error("Port must default")
	}
	if cfg.Language == "" || cfg.VoiceGender == "" {
		t.Error("Language and voice gender must default")
	}
	if cfg.JWTTTL == 0 {
		t.Error("JWT TTL must default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LANGUAGE", "en-US")
	t.Setenv("JWT_TTL", "1h")

	cfg := Load(zap.NewNop())
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.Language != "en-US" {
		t.Errorf("Expected language en-US, got %s", cfg.Language)
	}
	if cfg.JWTTTL != time.Hour {
		t.Errorf("Expected 1h TTL, got %s", cfg.JWTTTL)
	}
}

func TestLoadIgnoresBadDuration(t *testing.T) {
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg := Load(zap.NewNop())
	if cfg.JWTTTL != 7*24*time.Hour {
		t.Errorf("Bad duration must fall back to default, got %s", cfg.JWTTTL)
	}
}
