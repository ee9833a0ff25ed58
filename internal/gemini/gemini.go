package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/providers"
)

const defaultModel = "gemini-2.0-flash"

// Client extracts inventory items using Google Gemini vision models.
type Client struct {
	apiKey string
}

// New returns a new Gemini client.
func New(apiKey string) *Client {
	return &Client{apiKey: apiKey}
}

// Detect extracts inventory items from an image.
func (c *Client) Detect(ctx context.Context, image []byte, opts providers.DetectOptions) ([]providers.DetectedItem, error) {
	if c.apiKey == "" {
		return nil, apperrors.New(apperrors.KindUnauthorized, "GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, apperrors.Newf(apperrors.KindUnavailable, "failed to create gemini client: %v", err)
	}
	defer client.Close()

	name := opts.Model
	if name == "" {
		name = defaultModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(float32(opts.Temperature))

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("jpeg", image),
		genai.Text(providers.DetectPrompt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "API key") {
			return nil, apperrors.Newf(apperrors.KindUnauthorized, "gemini rejected credentials: %v", err)
		}
		return nil, apperrors.Newf(apperrors.KindUnavailable, "failed to generate content: %v", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, apperrors.Invalid("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, apperrors.Invalid("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return nil, apperrors.Invalid(fmt.Sprintf("unexpected response format from Gemini: %T", candidate.Content.Parts[0]))
	}

	return providers.ParseDetectedItems(sb.String())
}
