package ollama

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

const defaultModel = "qwen2.5vl:7b"

// Client talks to a local Ollama instance.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New returns a new Ollama client. An empty baseURL targets the
// default local instance.
func New(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Detect extracts inventory items from an image using a vision model.
func (c *Client) Detect(ctx context.Context, image []byte, opts providers.DetectOptions) ([]providers.DetectedItem, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	body := map[string]any{
		"model": model,
		"messages": []chatMessage{
			{
				Role:    "user",
				Content: providers.DetectPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(image)},
			},
		},
		"stream": false,
		"options": map[string]any{
			"temperature": opts.Temperature,
		},
	}

	var response chatResponse
	if err := c.post(ctx, "/api/chat", body, &response); err != nil {
		return nil, err
	}

	return providers.ParseDetectedItems(response.Message.Content)
}

// Complete produces a chat completion with tool calling.
func (c *Client) Complete(ctx context.Context, history []models.ChatMessage, tools []providers.ToolDefinition) (*providers.Completion, error) {
	messages := make([]chatMessage, 0, len(history))
	for _, msg := range history {
		m := chatMessage{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			var tc toolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = json.RawMessage(call.Arguments)
			m.ToolCalls = append(m.ToolCalls, tc)
		}
		messages = append(messages, m)
	}

	body := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
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
	if err := c.post(ctx, "/api/chat", body, &response); err != nil {
		return nil, err
	}

	completion := &providers.Completion{Content: response.Message.Content}
	for i, call := range response.Message.ToolCalls {
		// Ollama does not assign call IDs; synthesize stable ones.
		completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
			ID:        fmt.Sprintf("call_%d_%d", time.Now().UnixNano(), i),
			Name:      call.Function.Name,
			Arguments: string(call.Function.Arguments),
		})
	}
	return completion, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.KindUnavailable, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return apperrors.Newf(apperrors.KindUnavailable, "Ollama returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return apperrors.Newf(apperrors.KindInvalid, "Ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Newf(apperrors.KindInvalid, "failed to decode response body: %v", err)
	}
	return nil
}
