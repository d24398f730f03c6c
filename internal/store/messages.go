package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
)

// AppendMessage persists a chat message. The ID and timestamp are assigned
// here; IDs are ULIDs and therefore sort in append order.
func AppendMessage(ctx context.Context, db *sql.DB, conversationID string, sender, receiver identity.Identity, content string) (*model.Message, error) {
	msg := &model.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Receiver:       receiver,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, receiver, content, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Receiver, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in append order.
func ListMessages(ctx context.Context, db *sql.DB, conversationID string) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, conversation_id, sender, receiver, content, is_read, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Receiver, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessagesRead marks every message in the conversation addressed to
// receiver as read and returns how many changed.
func MarkMessagesRead(ctx context.Context, db *sql.DB, conversationID string, receiver identity.Identity) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1
		 WHERE conversation_id = ? AND receiver = ? AND is_read = 0`,
		conversationID, receiver,
	)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	return result.RowsAffected()
}
