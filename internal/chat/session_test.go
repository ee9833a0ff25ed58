package chat

import (
	"fmt"
	"testing"

	"github.com/synssins/homebox-companion/internal/models"
)

func user(text string) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleUser, Content: text}
}

func assistant(text string, callIDs ...string) models.ChatMessage {
	msg := models.ChatMessage{Role: models.RoleAssistant, Content: text}
	for _, id := range callIDs {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{ID: id, Name: "search_items", Arguments: "{}"})
	}
	return msg
}

func toolMsg(callID string) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleTool, Content: "{}", ToolCallID: callID}
}

func TestAddMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.ChatMessage
		wantErr bool
	}{
		{"user message", user("hello"), false},
		{"assistant with tool calls", assistant("", "call_1"), false},
		{"tool message with call id", toolMsg("call_1"), false},
		{"unknown role", models.ChatMessage{Role: "system2"}, true},
		{"tool calls on user", models.ChatMessage{Role: models.RoleUser, ToolCalls: []models.ToolCall{{ID: "x"}}}, true},
		{"tool_call_id on assistant", models.ChatMessage{Role: models.RoleAssistant, ToolCallID: "x"}, true},
		{"tool message without call id", models.ChatMessage{Role: models.RoleTool, Content: "{}"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s1")
			err := s.AddMessage(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddMessage(%+v) error = %v, wantErr %v", tt.msg, err, tt.wantErr)
			}
		})
	}
}

func TestHistoryWindowGrowsPastToolMessages(t *testing.T) {
	// [user, assistant(2 calls), tool, tool, assistant]
	history := []models.ChatMessage{
		user("find my router"),
		assistant("", "call_1", "call_2"),
		toolMsg("call_1"),
		toolMsg("call_2"),
		assistant("Found it in the garage."),
	}
	s := NewSessionWithHistory("s1", history)

	// A window of 3 would open on the second tool message; it must grow
	// back to the assistant message that issued both calls.
	got := s.History(3)
	if len(got) != 4 {
		t.Fatalf("History(3) returned %d messages, want 4", len(got))
	}
	if got[0].Role != models.RoleAssistant || len(got[0].ToolCalls) != 2 {
		t.Errorf("History(3) window opens on %q with %d tool calls, want assistant with 2", got[0].Role, len(got[0].ToolCalls))
	}

	// A window of 1 keeps just the trailing assistant message.
	got = s.History(1)
	if len(got) != 1 {
		t.Fatalf("History(1) returned %d messages, want 1", len(got))
	}
	if got[0].Content != "Found it in the garage." {
		t.Errorf("History(1)[0].Content = %q", got[0].Content)
	}
}

func TestHistoryWindowSingleToolTail(t *testing.T) {
	// [user, assistant(1 call), tool]
	history := []models.ChatMessage{
		user("list locations"),
		assistant("", "call_9"),
		toolMsg("call_9"),
	}
	s := NewSessionWithHistory("s1", history)

	// A window of 1 opens on the tool message and must grow back to
	// include the issuing assistant message.
	got := s.History(1)
	if len(got) != 2 {
		t.Fatalf("History(1) returned %d messages, want 2", len(got))
	}
	if got[0].Role != models.RoleAssistant {
		t.Errorf("History(1) window opens on %q, want assistant", got[0].Role)
	}
	if got[1].ToolCallID != "call_9" {
		t.Errorf("History(1)[1].ToolCallID = %q, want call_9", got[1].ToolCallID)
	}
}

// Every window size must produce a history where no tool message is
// separated from the assistant message that issued its call.
func TestHistoryPairingInvariantAllWindowSizes(t *testing.T) {
	history := []models.ChatMessage{
		user("u1"),
		assistant("", "c1"),
		toolMsg("c1"),
		assistant("a1"),
		user("u2"),
		assistant("", "c2", "c3"),
		toolMsg("c2"),
		toolMsg("c3"),
		assistant("", "c4"),
		toolMsg("c4"),
		assistant("a2"),
	}
	s := NewSessionWithHistory("s1", history)

	for max := 1; max <= len(history)+1; max++ {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			window := s.History(max)
			if len(window) == 0 {
				t.Fatal("empty window")
			}
			issued := map[string]bool{}
			for _, msg := range window {
				for _, call := range msg.ToolCalls {
					issued[call.ID] = true
				}
				if msg.Role == models.RoleTool && !issued[msg.ToolCallID] {
					t.Errorf("window for max=%d contains tool result %s without its call", max, msg.ToolCallID)
				}
			}
		})
	}
}

func TestHistoryFullWhenMaxExceedsLength(t *testing.T) {
	s := NewSessionWithHistory("s1", []models.ChatMessage{user("a"), assistant("b")})
	if got := s.History(10); len(got) != 2 {
		t.Errorf("History(10) returned %d messages, want 2", len(got))
	}
	if got := s.History(0); len(got) != 2 {
		t.Errorf("History(0) returned %d messages, want 2", len(got))
	}
}

func TestTruncateForStorage(t *testing.T) {
	history := []models.ChatMessage{
		user("u1"),
		assistant("a1"),
		user("u2"),
		assistant("", "c1"),
		toolMsg("c1"),
	}
	s := NewSessionWithHistory("s1", history)

	// keepLastN of 2 would open on the tool message; the retained slice
	// must grow to keep the pair.
	kept := s.TruncateForStorage(2)
	if len(kept) != 2 {
		t.Fatalf("TruncateForStorage(2) kept %d messages, want 2", len(kept))
	}
	if kept[0].Role != models.RoleAssistant || len(kept[0].ToolCalls) != 1 {
		t.Errorf("kept[0] = %+v, want assistant with one tool call", kept[0])
	}
	if s.Len() != 2 {
		t.Errorf("session length after truncation = %d, want 2", s.Len())
	}
}
