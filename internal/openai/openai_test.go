package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
)

func TestCompleteWireFormat(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
			{"id":"call_1","function":{"name":"search_items","arguments":"{\"query\":\"router\"}"}}
		]}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "find my router"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "call_0", Name: "list_locations", Arguments: "{}"}}},
		{Role: models.RoleTool, Content: "[]", ToolCallID: "call_0"},
	}
	tools := []providers.ToolDefinition{{
		Name:        "search_items",
		Description: "Search items",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}}

	completion, err := c.Complete(context.Background(), history, tools)
	require.NoError(t, err)
	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "call_1", completion.ToolCalls[0].ID)
	assert.Equal(t, "search_items", completion.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"router"}`, completion.ToolCalls[0].Arguments)

	// The request carried the assistant's tool calls and the tool
	// message's correlation ID.
	messages := captured["messages"].([]any)
	require.Len(t, messages, 3)
	assistant := messages[1].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_0", calls[0].(map[string]any)["id"])
	toolMsg := messages[2].(map[string]any)
	assert.Equal(t, "call_0", toolMsg["tool_call_id"])

	sentTools := captured["tools"].([]any)
	require.Len(t, sentTools, 1)
}

func TestDetectParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		w.Write([]byte(`{"choices":[{"message":{"content":"[{\"name\":\"Router\",\"quantity\":1,\"confidence\":{\"overall\":0.9}}]"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	items, err := c.Detect(context.Background(), []byte("jpeg"), providers.DetectOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Router", items[0].Fields.Name)
	assert.Equal(t, 0.9, items[0].Confidence.Overall)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   apperrors.Kind
	}{
		{http.StatusUnauthorized, apperrors.KindUnauthorized},
		{http.StatusTooManyRequests, apperrors.KindUnavailable},
		{http.StatusInternalServerError, apperrors.KindUnavailable},
		{http.StatusBadRequest, apperrors.KindInvalid},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		c := New(srv.URL, "key")
		_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, nil)
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.kind, apperrors.KindOf(err), "status %d", tt.status)
		srv.Close()
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := New("", "")
	_, err := c.Detect(context.Background(), []byte("jpeg"), providers.DetectOptions{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}
