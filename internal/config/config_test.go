package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8787" {
		t.Errorf("Port = %q, want 8787", cfg.Port)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Provider)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != 2*time.Second {
		t.Errorf("BackoffBase = %v, want 2s", cfg.BackoffBase)
	}
	if cfg.ApprovalTTL != 5*time.Minute {
		t.Errorf("ApprovalTTL = %v, want 5m", cfg.ApprovalTTL)
	}
	if cfg.HistoryWindow != 40 {
		t.Errorf("HistoryWindow = %d, want 40", cfg.HistoryWindow)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("WORKERS", "8")
	t.Setenv("RETRY_BACKOFF_BASE", "500ms")
	t.Setenv("APPROVAL_TTL", "30s")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.BackoffBase != 500*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 500ms", cfg.BackoffBase)
	}
	if cfg.ApprovalTTL != 30*time.Second {
		t.Errorf("ApprovalTTL = %v, want 30s", cfg.ApprovalTTL)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("WORKERS", "minus one")
	t.Setenv("RETRY_BACKOFF_BASE", "-5s")

	cfg := Load()
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want default 4 for unparseable value", cfg.Workers)
	}
	if cfg.BackoffBase != 2*time.Second {
		t.Errorf("BackoffBase = %v, want default 2s for negative value", cfg.BackoffBase)
	}
}
