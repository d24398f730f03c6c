// Package events publishes lifecycle notifications for other services.
// Publishing is best effort: a lost event never affects a committed transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types.
const (
	ClaimSubmitted   = "claim.submitted"
	ClaimRejected    = "claim.rejected"
	ClaimApproved    = "claim.approved"
	HandoverCanceled = "handover.canceled"
	ItemClaimed      = "item.claimed"
	ItemCreated      = "item.created"
)

// Event describes a committed change to an item.
type Event struct {
	Type    string    `json:"type"`
	ItemID  string    `json:"item_id"`
	ClaimID string    `json:"claim_id,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	Status  string    `json:"status"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// Publisher sends events somewhere. Implementations must not block for long.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// NATS publishes events as JSON on "<prefix>.<type>" subjects.
type NATS struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// DialNATS connects to the NATS server at url.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("najdeno"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	if prefix == "" {
		prefix = "najdeno"
	}
	return &NATS{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject an event of type t is published on.
func (n *NATS) Subject(t string) string {
	return n.prefix + "." + t
}

// Publish sends e. Failures are logged.
func (n *NATS) Publish(_ context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		n.logger.Error("encoding event", "type", e.Type, "error", err)
		return
	}
	if err := n.conn.Publish(n.Subject(e.Type), data); err != nil {
		n.logger.Error("publishing event", "type", e.Type, "item", e.ItemID, "error", err)
	}
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

// NewRecorder returns a Recorder that buffers up to size events; further
// events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Events returns the channel recorded events are delivered on.
func (r *Recorder) Events() <-chan Event {
	return r.ch
}
