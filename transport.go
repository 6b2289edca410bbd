package wsrpc

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it;
// tests substitute dialers that fail or delay the handshake.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

func newDefaultDialer(cfg Config) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
}
