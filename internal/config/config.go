package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration. Values come from the
// environment (a .env file is loaded by the root command); every knob
// has a sane default so the binary runs out of the box against a local
// Homebox and Ollama.
type Config struct {
	// Port the HTTP server listens on.
	Port string

	// DataDir holds the SQLite database and uploaded images.
	DataDir string

	// HomeboxURL is the base URL of the Homebox instance.
	HomeboxURL string

	// HomeboxToken is the bearer token for the Homebox API.
	HomeboxToken string

	// Provider selects the default AI provider: ollama, openai or gemini.
	Provider string

	// Model is the default vision model for extraction.
	Model string

	// ChatModel is the model used by the conversational assistant.
	ChatModel string

	// Workers bounds concurrent image extractions.
	Workers int

	// MaxAttempts bounds extraction retries for transient failures.
	MaxAttempts int

	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration

	// ApprovalTTL is how long a pending approval stays resolvable.
	ApprovalTTL time.Duration

	// HistoryWindow is the max message count sent to the chat model
	// (the window may grow to keep tool call/result pairs together).
	HistoryWindow int
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:          envString("PORT", "8787"),
		DataDir:       envString("DATA_DIR", "data"),
		HomeboxURL:    envString("HOMEBOX_URL", "http://localhost:7745"),
		HomeboxToken:  os.Getenv("HOMEBOX_TOKEN"),
		Provider:      envString("AI_PROVIDER", "ollama"),
		Model:         envString("AI_MODEL", ""),
		ChatModel:     envString("AI_CHAT_MODEL", ""),
		Workers:       envInt("WORKERS", 4),
		MaxAttempts:   envInt("MAX_EXTRACTION_ATTEMPTS", 3),
		BackoffBase:   envDuration("RETRY_BACKOFF_BASE", 2*time.Second),
		ApprovalTTL:   envDuration("APPROVAL_TTL", 5*time.Minute),
		HistoryWindow: envInt("CHAT_HISTORY_WINDOW", 40),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
