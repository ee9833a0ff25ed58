package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI chat completions API (or any compatible
// endpoint). Safe for concurrent use by multiple sessions.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a new OpenAI client. An empty baseURL targets the
// official API.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Detect extracts inventory items from an image using a vision model.
func (c *Client) Detect(ctx context.Context, image []byte, opts providers.DetectOptions) ([]providers.DetectedItem, error) {
	model := opts.Model
	if model == "" {
		model = "gpt-4o"
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": providers.DetectPrompt},
					{"type": "image_url", "image_url": map[string]any{"url": dataURI}},
				},
			},
		},
		"temperature": opts.Temperature,
	}

	var response chatResponse
	if err := c.post(ctx, "/chat/completions", body, &response); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, apperrors.Invalid("no choices returned from OpenAI")
	}

	return providers.ParseDetectedItems(response.Choices[0].Message.Content)
}

// Complete produces a chat completion, passing the tool definitions so
// the model can request tool calls.
func (c *Client) Complete(ctx context.Context, history []models.ChatMessage, tools []providers.ToolDefinition) (*providers.Completion, error) {
	messages := make([]map[string]any, 0, len(history))
	for _, msg := range history {
		m := map[string]any{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   call.ID,
					"type": "function",
					"function": map[string]any{
						"name":      call.Name,
						"arguments": call.Arguments,
					},
				})
			}
			m["tool_calls"] = calls
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		messages = append(messages, m)
	}

	body := map[string]any{
		"model":    "gpt-4o",
		"messages": messages,
	}
	if len(tools) > 0 {
		defs := make([]map[string]any, 0, len(tools))
		for _, tool := range tools {
			defs = append(defs, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  json.RawMessage(tool.Parameters),
				},
			})
		}
		body["tools"] = defs
	}

	var response chatResponse
	if err := c.post(ctx, "/chat/completions", body, &response); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, apperrors.Invalid("no choices returned from OpenAI")
	}

	choice := response.Choices[0].Message
	completion := &providers.Completion{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return completion, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if c.apiKey == "" {
		return apperrors.New(apperrors.KindUnauthorized, "OPENAI_API_KEY not set")
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.KindUnavailable, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return apperrors.Newf(apperrors.KindUnauthorized, "OpenAI rejected credentials: %s", string(respBody))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return apperrors.Newf(apperrors.KindUnavailable, "OpenAI returned status %d: %s", resp.StatusCode, string(respBody))
		default:
			return apperrors.Newf(apperrors.KindInvalid, "OpenAI returned status %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Newf(apperrors.KindInvalid, "failed to decode response body: %v", err)
	}
	return nil
}
