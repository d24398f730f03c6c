package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/erazemk/najdeno/internal/fault"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// ErrNotMember is returned when a client posts to a room it has not joined.
var ErrNotMember = fmt.Errorf("%w: not a member of this conversation", lifecycle.ErrUnauthorized)

// Relay forwards persisted messages to other server instances.
type Relay interface {
	Publish(ctx context.Context, msg *model.Message) error
}

// Hub tracks room membership and fans persisted messages out to members.
// Each item has one room, keyed by item ID.
type Hub struct {
	DB     *sql.DB
	Relay  Relay
	Logger *slog.Logger

	mu      sync.Mutex
	rooms   map[string]*room
	members map[*Client]map[string]struct{}
}

type room struct {
	// post serializes membership checks, persist and fan-out so members
	// observe the persisted order.
	post sync.Mutex

	// Guarded by Hub.mu. A room with refs > 0 is never removed from
	// Hub.rooms, so every holder of the lock sees the same room.
	clients map[*Client]struct{}
	refs    int
}

// NewHub returns a hub reading items and writing messages through db.
func NewHub(db *sql.DB) *Hub {
	return &Hub{
		DB:      db,
		Logger:  slog.Default().With("component", "chat"),
		rooms:   make(map[string]*room),
		members: make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to the item's room if its identity may participate, and
// acknowledges with a joined frame.
func (h *Hub) Join(ctx context.Context, c *Client, itemID string) error {
	unlock := h.lockRoom(itemID)
	defer unlock()

	item, err := store.GetItem(ctx, h.DB, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return lifecycle.ErrNotFound
	}
	if !CanParticipate(c.Identity, item) {
		return lifecycle.ErrUnauthorized
	}

	h.mu.Lock()
	h.rooms[itemID].clients[c] = struct{}{}
	if h.members[c] == nil {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][itemID] = struct{}{}
	h.mu.Unlock()

	h.send(c, Outbound{Type: FrameJoined, ItemID: itemID})
	h.Logger.Info("joined room", "item", itemID, "client", c.ID, "identity", c.Identity.String())
	return nil
}

// Post persists a message from c to the conversation and broadcasts the
// stored record to the room members that may still participate. The
// receiver is resolved from the item's current state.
func (h *Hub) Post(ctx context.Context, c *Client, conversationID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message is empty", fault.ErrBadRequest)
	}
	if len(content) > model.MaxMessageLength || !utf8.ValidString(content) {
		return nil, fmt.Errorf("%w: message is too long or not valid UTF-8", fault.ErrBadRequest)
	}

	unlock := h.lockRoom(conversationID)
	defer unlock()

	if !h.isMember(c, conversationID) {
		return nil, ErrNotMember
	}

	item, err := store.GetItem(ctx, h.DB, conversationID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, lifecycle.ErrNotFound
	}
	receiver, err := Counterparty(c.Identity, item)
	if err != nil {
		h.evict(c, conversationID)
		return nil, err
	}

	msg, err := store.AppendMessage(ctx, h.DB, conversationID, c.Identity, receiver, content)
	if err != nil {
		return nil, err
	}

	h.broadcast(item, msg)

	if h.Relay != nil {
		if err := h.Relay.Publish(ctx, msg); err != nil {
			h.Logger.Error("relaying message", "item", conversationID, "message", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// Deliver broadcasts a message persisted by another instance to the local
// members that may still participate.
func (h *Hub) Deliver(ctx context.Context, msg *model.Message) {
	if h.Members(msg.ConversationID) == 0 {
		return
	}

	unlock := h.lockRoom(msg.ConversationID)
	defer unlock()

	item, err := store.GetItem(ctx, h.DB, msg.ConversationID)
	if err != nil {
		h.Logger.Error("loading item for relayed message", "item", msg.ConversationID, "message", msg.ID, "error", err)
		return
	}
	if item == nil {
		return
	}
	h.broadcast(item, msg)
}

// Leave drops every membership of c.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for itemID := range h.members[c] {
		h.removeLocked(c, itemID)
	}
}

// Members returns the number of clients in the item's room.
func (h *Hub) Members(itemID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.rooms[itemID]; r != nil {
		return len(r.clients)
	}
	return 0
}

// Handle processes one inbound frame. Failures are reported to c as error
// frames; the connection stays open.
func (h *Hub) Handle(ctx context.Context, c *Client, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.sendError(c, "", fmt.Errorf("%w: malformed frame", fault.ErrBadRequest))
		return
	}

	switch in.Type {
	case FrameJoin:
		if err := h.Join(ctx, c, in.ItemID); err != nil {
			h.sendError(c, in.ItemID, err)
		}
	case FramePost:
		if _, err := h.Post(ctx, c, in.ConversationID, in.Content); err != nil {
			h.sendError(c, in.ConversationID, err)
		}
	default:
		h.sendError(c, "", fmt.Errorf("%w: unknown frame type %q", fault.ErrBadRequest, in.Type))
	}
}

// lockRoom takes the post lock of the item's room, creating the room if
// needed, and returns the matching unlock.
func (h *Hub) lockRoom(itemID string) func() {
	h.mu.Lock()
	r, ok := h.rooms[itemID]
	if !ok {
		r = &room{clients: make(map[*Client]struct{})}
		h.rooms[itemID] = r
	}
	r.refs++
	h.mu.Unlock()

	r.post.Lock()
	return func() {
		r.post.Unlock()

		h.mu.Lock()
		r.refs--
		if r.refs == 0 && len(r.clients) == 0 {
			delete(h.rooms, itemID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) isMember(c *Client, itemID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.members[c][itemID]
	return ok
}

func (h *Hub) evict(c *Client, itemID string) {
	h.mu.Lock()
	h.removeLocked(c, itemID)
	h.mu.Unlock()
	h.Logger.Info("removed from room", "item", itemID, "client", c.ID, "identity", c.Identity.String())
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *Client, itemID string) {
	if m := h.members[c]; m != nil {
		delete(m, itemID)
		if len(m) == 0 {
			delete(h.members, c)
		}
	}
	r := h.rooms[itemID]
	if r == nil {
		return
	}
	delete(r.clients, c)
	if len(r.clients) == 0 && r.refs == 0 {
		delete(h.rooms, itemID)
	}
}

// broadcast sends msg to the members of item's room that may participate
// in item's current state and removes the rest. It must be called with
// the room's post lock held.
func (h *Hub) broadcast(item *model.Item, msg *model.Message) {
	frame, err := json.Marshal(Outbound{Type: FrameMessage, ItemID: item.ID, Message: msg})
	if err != nil {
		h.Logger.Error("encoding message frame", "error", err)
		return
	}

	h.mu.Lock()
	var clients, revoked []*Client
	if r := h.rooms[item.ID]; r != nil {
		for c := range r.clients {
			if CanParticipate(c.Identity, item) {
				clients = append(clients, c)
			} else {
				revoked = append(revoked, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range revoked {
		h.evict(c, item.ID)
	}
	for _, c := range clients {
		if !c.enqueue(frame) {
			h.Logger.Warn("dropping slow client", "client", c.ID, "item", item.ID)
			h.Leave(c)
		}
	}
}

func (h *Hub) send(c *Client, out Outbound) {
	frame, err := json.Marshal(out)
	if err != nil {
		h.Logger.Error("encoding frame", "type", out.Type, "error", err)
		return
	}
	if !c.enqueue(frame) {
		h.Leave(c)
	}
}

func (h *Hub) sendError(c *Client, itemID string, err error) {
	kind, _ := fault.Kind(err)
	reason := err.Error()
	if kind == fault.KindInternal {
		h.Logger.Error("handling frame", "client", c.ID, "item", itemID, "error", err)
		reason = "internal server error"
	}
	h.send(c, Outbound{Type: FrameError, ItemID: itemID, Kind: kind, Reason: reason})
}
