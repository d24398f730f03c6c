package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erazemk/najdeno/internal/fault"
	"github.com/erazemk/najdeno/internal/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameLength = 16 << 10
)

// Signed handshake headers, used when the query parameters are absent.
const (
	HeaderSignature        = "X-Signature"
	HeaderSignatureMessage = "X-Signature-Message"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Connections authenticate with a signature, not cookies, so any origin
	// may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Authenticate recovers the identity proving itself in a websocket
// handshake.
func Authenticate(r *http.Request) (identity.Identity, error) {
	q := r.URL.Query()
	message, sig := q.Get("message"), q.Get("signature")
	if message == "" && sig == "" {
		message, sig = r.Header.Get(HeaderSignatureMessage), r.Header.Get(HeaderSignature)
	}
	if message == "" || sig == "" {
		return identity.Zero, fmt.Errorf("%w: missing message or signature", identity.ErrInvalidSignature)
	}
	return identity.Verify(message, sig, "")
}

// ServeWS authenticates the handshake, upgrades the connection and serves
// frames until the client goes away. A failed authentication is answered
// with 401 before any upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := Authenticate(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(fault.Body(err))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.Logger.Warn("upgrading connection", "error", err)
		return
	}

	c := NewClient(id, DefaultSendBuffer)
	h.Logger.Info("client connected", "client", c.ID, "identity", id.String())

	go writePump(conn, c)
	h.readPump(context.WithoutCancel(r.Context()), conn, c)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client) {
	defer func() {
		h.Leave(c)
		c.Close()
		h.Logger.Info("client disconnected", "client", c.ID)
	}()

	conn.SetReadLimit(maxFrameLength)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("reading frame", "client", c.ID, "error", err)
			}
			return
		}
		h.Handle(ctx, c, raw)

		select {
		case <-c.Done():
			return
		default:
		}
	}
}

func writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
