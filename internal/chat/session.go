package chat

import (
	"sync"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
)

// Session is an ordered, truncatable chat history. It guarantees that
// any window it hands out never contains a tool message without the
// assistant message that issued the corresponding tool call: chat
// providers reject a request outright when a tool result arrives
// without its originating call.
type Session struct {
	ID string

	mu       sync.Mutex
	messages []models.ChatMessage
}

// NewSession creates an empty chat session.
func NewSession(id string) *Session {
	return &Session{ID: id}
}

// NewSessionWithHistory creates a session seeded with persisted
// messages.
func NewSessionWithHistory(id string, messages []models.ChatMessage) *Session {
	return &Session{ID: id, messages: messages}
}

// AddMessage appends a message after checking structural
// well-formedness: tool calls only on assistant messages, tool-call
// references only on tool messages.
func (s *Session) AddMessage(msg models.ChatMessage) error {
	switch msg.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleTool:
	default:
		return apperrors.Invalid("unknown message role: " + string(msg.Role))
	}
	if len(msg.ToolCalls) > 0 && msg.Role != models.RoleAssistant {
		return apperrors.Invalid("tool calls are only valid on assistant messages")
	}
	if msg.ToolCallID != "" && msg.Role != models.RoleTool {
		return apperrors.Invalid("tool_call_id is only valid on tool messages")
	}
	if msg.Role == models.RoleTool && msg.ToolCallID == "" {
		return apperrors.Invalid("tool messages must reference a tool call")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Messages returns a copy of the full history.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// History returns at most the last maxMessages messages, grown
// backward as needed so no tool result is separated from its call.
// maxMessages <= 0 means the full history.
func (s *Session) History(maxMessages int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := windowStart(s.messages, maxMessages)
	out := make([]models.ChatMessage, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// TruncateForStorage compacts the in-memory history to roughly the
// last keepLastN messages, respecting the same pairing invariant, and
// returns the retained messages for persistence.
func (s *Session) TruncateForStorage(keepLastN int) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := windowStart(s.messages, keepLastN)
	s.messages = append([]models.ChatMessage(nil), s.messages[start:]...)
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// windowStart picks the start index of a window of at most max
// messages ending at the history's tail. If the window would open on a
// tool message, the boundary walks backward past that message's
// siblings to the assistant message that issued the call(s); the
// boundary only ever grows backward, never drops a paired result.
func windowStart(messages []models.ChatMessage, max int) int {
	if max <= 0 || max >= len(messages) {
		return 0
	}
	start := len(messages) - max
	for start > 0 && messages[start].Role == models.RoleTool {
		j := start - 1
		for j > 0 && messages[j].Role == models.RoleTool {
			j--
		}
		start = j
	}
	return start
}
