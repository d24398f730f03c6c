package model

import (
	"time"

	"github.com/erazemk/najdeno/internal/identity"
)

// Message is a chat message between an item's finder and its approved
// applicant. ConversationID is the item ID.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Sender         identity.Identity `json:"sender"`
	Receiver       identity.Identity `json:"receiver"`
	Content        string            `json:"content"`
	Read           bool              `json:"is_read"`
	CreatedAt      time.Time         `json:"created_at"`
}

// MaxMessageLength bounds chat message content, in bytes.
const MaxMessageLength = 4000
