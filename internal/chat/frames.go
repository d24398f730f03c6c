package chat

import "github.com/erazemk/najdeno/internal/model"

// Frame types.
const (
	FrameJoin    = "join"
	FramePost    = "post"
	FrameJoined  = "joined"
	FrameMessage = "message"
	FrameError   = "error"
)

// Inbound is a frame sent by a client.
type Inbound struct {
	Type           string `json:"type"`
	ItemID         string `json:"itemId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Type    string         `json:"type"`
	ItemID  string         `json:"itemId,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}
