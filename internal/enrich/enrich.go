package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
)

// Enricher fetches supplementary product data for an extracted item.
type Enricher interface {
	Enrich(ctx context.Context, fields models.ItemFields) (*models.Enrichment, error)
}

// LLMEnricher asks the configured chat model for product details it
// knows about the manufacturer/model combination.
type LLMEnricher struct {
	chatter providers.Chatter
}

// NewLLMEnricher returns an Enricher backed by a chat provider.
func NewLLMEnricher(chatter providers.Chatter) *LLMEnricher {
	return &LLMEnricher{chatter: chatter}
}

const enrichPromptFormat = `You know consumer and networking products well. Provide supplementary data for this item:

Name: %s
Manufacturer: %s
Model number: %s

Return ONLY a JSON object:
{"description": "", "features": [], "price": 0.0, "release_year": 0, "category": ""}

Rules:
- description: one or two sentences about the product.
- features: up to 5 short bullet strings.
- price: approximate current USD price, 0 if unknown.
- release_year: 0 if unknown.
- category: a short category label like "networking", "tools", "kitchen".
- If you do not recognize the product, return {"description": "", "features": [], "price": 0, "release_year": 0, "category": ""}.`

// Enrich returns supplementary data for the given fields, or an
// Enrichment with Enriched=false when the model has nothing to offer.
func (e *LLMEnricher) Enrich(ctx context.Context, fields models.ItemFields) (*models.Enrichment, error) {
	prompt := fmt.Sprintf(enrichPromptFormat, fields.Name, fields.Manufacturer, fields.ModelNumber)

	completion, err := e.chatter.Complete(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: prompt},
	}, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Description string   `json:"description"`
		Features    []string `json:"features"`
		Price       float64  `json:"price"`
		ReleaseYear int      `json:"release_year"`
		Category    string   `json:"category"`
	}
	if err := json.Unmarshal([]byte(providers.CleanJSON(completion.Content)), &parsed); err != nil {
		return nil, apperrors.Newf(apperrors.KindInvalid, "malformed enrichment output: %v", err)
	}

	if parsed.Description == "" && parsed.Category == "" {
		return &models.Enrichment{Enriched: false}, nil
	}
	return &models.Enrichment{
		Enriched:    true,
		Source:      "llm",
		Description: parsed.Description,
		Features:    parsed.Features,
		Price:       parsed.Price,
		ReleaseYear: parsed.ReleaseYear,
		Category:    parsed.Category,
	}, nil
}
