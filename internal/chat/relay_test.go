package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

func TestRelayDeliversForeignMessages(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(db.NewTestDB(t))
	item := handoverItem(t, hub)

	f := NewClient(finder, 8)
	require.NoError(t, hub.Join(ctx, f, item.ID))
	nextFrame(t, f)

	r := &RedisRelay{origin: "here", logger: slog.Default()}
	msg := &model.Message{ID: "01J0000000000000000000000", ConversationID: item.ID, Sender: alice, Receiver: finder, Content: "relayed", CreatedAt: time.Now().UTC()}

	own, _ := json.Marshal(envelope{Origin: "here", Message: msg})
	r.deliver(ctx, hub, relayChannelPrefix+item.ID, string(own))
	assert.Len(t, f.Send(), 0, "own messages are already delivered locally")

	foreign, _ := json.Marshal(envelope{Origin: "elsewhere", Message: msg})
	r.deliver(ctx, hub, relayChannelPrefix+item.ID, string(foreign))
	out := nextFrame(t, f)
	assert.Equal(t, FrameMessage, out.Type)
	assert.Equal(t, "relayed", out.Message.Content)

	r.deliver(ctx, hub, relayChannelPrefix+"other", string(foreign))
	r.deliver(ctx, hub, relayChannelPrefix+item.ID, "garbage")
	assert.Len(t, f.Send(), 0)
}

func TestRelaySkipsRevokedMembers(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(db.NewTestDB(t))
	item := handoverItem(t, hub)

	a := NewClient(alice, 8)
	require.NoError(t, hub.Join(ctx, a, item.ID))
	nextFrame(t, a)

	_, err := lifecycle.NewService(hub.DB, nil).CancelHandover(ctx, item.ID, finder)
	require.NoError(t, err)

	r := &RedisRelay{origin: "here", logger: slog.Default()}
	msg := &model.Message{ID: "01J0000000000000000000001", ConversationID: item.ID, Sender: finder, Receiver: bob, Content: "private", CreatedAt: time.Now().UTC()}
	payload, _ := json.Marshal(envelope{Origin: "elsewhere", Message: msg})
	r.deliver(ctx, hub, relayChannelPrefix+item.ID, string(payload))

	assert.Len(t, a.Send(), 0)
	assert.Equal(t, 0, hub.Members(item.ID))
}
