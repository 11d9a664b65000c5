package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// readLimit caps a single inbound frame. Events are small JSON envelopes.
const readLimit = 64 * 1024

// Conn abstracts the WebSocket connection so the Manager can be tested
// without a real server. *websocket.Conn satisfies this interface.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	// Ping waits for the peer's pong. It needs a concurrent Read.
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a connection to url.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// WebSocketDialer dials with github.com/coder/websocket.
func WebSocketDialer(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}
