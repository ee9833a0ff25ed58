package cmd

import (
	"fmt"
	"os"

	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/gemini"
	"github.com/synssins/homebox-companion/internal/ollama"
	"github.com/synssins/homebox-companion/internal/openai"
	"github.com/synssins/homebox-companion/internal/providers"
)

// buildExtractor selects the vision provider from config.
func buildExtractor(cfg *config.Config) (providers.Extractor, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_API_KEY")), nil
	case "ollama":
		return ollama.New(os.Getenv("OLLAMA_URL"), cfg.Model), nil
	case "gemini":
		return gemini.New(os.Getenv("GEMINI_API_KEY")), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// buildChatter selects the chat provider. Gemini has no tool-calling
// adapter here, so chat falls back to an OpenAI-compatible endpoint or
// Ollama.
func buildChatter(cfg *config.Config) (providers.Chatter, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(os.Getenv("OPENAI_BASE_URL"), os.Getenv("OPENAI_API_KEY")), nil
	case "ollama", "gemini":
		return ollama.New(os.Getenv("OLLAMA_URL"), cfg.ChatModel), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
