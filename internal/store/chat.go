package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/synssins/homebox-companion/internal/models"
)

// AppendChatMessage durably appends one message to a chat session's
// history at the next sequence number.
func (s *Store) AppendChatMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	var toolCalls *string
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		j := string(b)
		toolCalls = &j
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, seq, role, content, tool_calls_json, tool_call_id, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ?), ?, ?, ?, ?, ?)`,
		sessionID, sessionID, msg.Role, msg.Content, toolCalls, msg.ToolCallID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// LoadChatMessages returns a chat session's full history in order.
// A row that fails to parse is skipped with a warning.
func (s *Store) LoadChatMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls_json, tool_call_id
		FROM chat_messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var (
			msg        models.ChatMessage
			toolCalls  *string
			toolCallID *string
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &toolCallID); err != nil {
			slog.Warn("Skipping corrupted chat message", "session_id", sessionID, "err", err)
			continue
		}
		if toolCallID != nil {
			msg.ToolCallID = *toolCallID
		}
		if toolCalls != nil && *toolCalls != "" {
			if err := json.Unmarshal([]byte(*toolCalls), &msg.ToolCalls); err != nil {
				slog.Warn("Corrupted tool calls on message, treating as plain text", "session_id", sessionID, "err", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ReplaceChatMessages atomically rewrites a chat session's stored
// history, used after truncation for storage.
func (s *Store) ReplaceChatMessages(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}

	now := time.Now().Unix()
	for i, msg := range messages {
		var toolCalls *string
		if len(msg.ToolCalls) > 0 {
			b, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			j := string(b)
			toolCalls = &j
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (session_id, seq, role, content, tool_calls_json, tool_call_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, i+1, msg.Role, msg.Content, toolCalls, msg.ToolCallID, now); err != nil {
			return fmt.Errorf("failed to write chat message: %w", err)
		}
	}
	return tx.Commit()
}
