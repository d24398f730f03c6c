package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/identity"
)

// DefaultSendBuffer is the number of frames queued for a client before it
// is considered too slow and disconnected.
const DefaultSendBuffer = 64

// Client is one authenticated connection. Its identity is fixed at connect
// time.
type Client struct {
	ID       string
	Identity identity.Identity

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient returns a client for an already verified identity.
func NewClient(id identity.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:       uuid.NewString(),
		Identity: id,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Send returns the channel of outgoing frames.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed when the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client as gone. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue queues a frame without blocking. A client whose buffer is full
// is closed and false is returned.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.Close()
		return false
	}
}
