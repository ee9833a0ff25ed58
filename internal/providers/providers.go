package providers

import (
	"context"
	"encoding/json"

	"github.com/synssins/homebox-companion/internal/models"
)

// DetectOptions configures one extraction request.
type DetectOptions struct {
	Model       string
	Temperature float64
}

// DetectedItem is one item an extraction provider found in an image.
type DetectedItem struct {
	Fields     models.ItemFields
	Confidence models.ConfidenceScores
	Raw        string
}

// Extractor detects inventory items in an image. Failures are typed
// apperrors: KindUnavailable for timeouts and upstream outages
// (retryable), KindUnauthorized for rejected credentials, KindInvalid
// for model output that cannot be parsed.
type Extractor interface {
	Detect(ctx context.Context, image []byte, opts DetectOptions) ([]DetectedItem, error)
}

// ToolDefinition describes one callable capability in the wire shape
// chat providers expect.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Completion is one model response: plain content, tool call requests,
// or both.
type Completion struct {
	Content   string
	ToolCalls []models.ToolCall
}

// Chatter produces chat completions with optional tool calling.
type Chatter interface {
	Complete(ctx context.Context, history []models.ChatMessage, tools []ToolDefinition) (*Completion, error)
}
