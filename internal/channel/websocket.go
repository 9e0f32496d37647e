package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket transport constants.
const (
	// wsMaxMessageSize bounds one inbound frame.
	wsMaxMessageSize = 64 * 1024

	// wsCloseGrace is how long Close waits to write the close frame.
	wsCloseGrace = time.Second

	// wsHandshakeTimeout bounds the opening handshake.
	wsHandshakeTimeout = 15 * time.Second
)

// WebSocketTransport dials the dashboard over gorilla/websocket.
type WebSocketTransport struct {
	Dialer *websocket.Dialer
}

// NewWebSocketTransport creates a transport with the default dialer
// settings.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}
}

// Dial opens a websocket connection.
func (t *WebSocketTransport) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake body is not used
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(wsMaxMessageSize)

	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	} else if err := c.conn.SetWriteDeadline(time.Time{}); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until a text frame arrives. Cancellation is done by
// closing the connection.
func (c *wsConn) Receive(_ context.Context) ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl( //nolint:errcheck // peer may already be gone
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseGrace),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
