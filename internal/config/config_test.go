package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Load()
	cfg.AccountID = "acct"
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.InferenceAPIToken = "token"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts <= 0 {
		t.Errorf("MaxPollAttempts = %d, want a positive bound", cfg.MaxPollAttempts)
	}
	if cfg.TransportMode != TransportUpload {
		t.Errorf("TransportMode = %q, want upload default", cfg.TransportMode)
	}
	if cfg.ModelVersion == "" {
		t.Error("ModelVersion must be pinned")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("MAX_POLL_ATTEMPTS", "7")
	cfg := Load()
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts != 7 {
		t.Errorf("MaxPollAttempts = %d", cfg.MaxPollAttempts)
	}

	t.Setenv("POLL_INTERVAL", "garbage")
	t.Setenv("MAX_POLL_ATTEMPTS", "garbage")
	cfg = Load()
	if cfg.PollInterval != 5*time.Second || cfg.MaxPollAttempts != 240 {
		t.Errorf("invalid env should fall back to defaults, got %v / %d", cfg.PollInterval, cfg.MaxPollAttempts)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := validConfig()
	cfg.AccountID = ""
	if err := Validate(cfg); err == nil {
		t.Error("missing account id should fail validation")
	}

	cfg = validConfig()
	cfg.InferenceAPIToken = ""
	if err := Validate(cfg); err == nil {
		t.Error("missing inference token should fail validation")
	}

	cfg = validConfig()
	cfg.TransportMode = "carrier-pigeon"
	if err := Validate(cfg); err == nil {
		t.Error("unknown transport mode should fail validation")
	}

	cfg = validConfig()
	cfg.MaxPollAttempts = 0
	if err := Validate(cfg); err == nil {
		t.Error("unbounded polling should fail validation")
	}
}
