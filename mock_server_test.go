package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// rpcRequest is a request as seen by the mock server.
type rpcRequest struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// mockConn is one accepted client connection.
type mockConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *mockConn) send(v any) {
	data, _ := json.Marshal(v)
	c.sendRaw(data)
}

func (c *mockConn) sendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *mockConn) reply(req rpcRequest, result any) {
	c.send(map[string]any{"id": req.ID, "jsonrpc": "2.0", "result": result})
}

// closeWith sends a close frame with code and reason, then drops the socket.
func (c *mockConn) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.conn.Close()
}

// terminate drops the socket without a close handshake.
func (c *mockConn) terminate() {
	c.conn.UnderlyingConn().Close()
}

// mockRPCServer simulates a JSON-RPC WebSocket node. By default every request
// is answered with result true.
type mockRPCServer struct {
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      []*mockConn
	received   []rpcRequest
	handshakes int
	rejectNext int
	onRequest  func(c *mockConn, req rpcRequest)
}

func newMockRPCServer() *mockRPCServer {
	return &mockRPCServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *mockRPCServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.handshakes++
	if s.rejectNext > 0 {
		s.rejectNext--
		s.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	mc := &mockConn{conn: conn}
	s.mu.Lock()
	s.conns = append(s.conns, mc)
	s.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, req)
		handler := s.onRequest
		s.mu.Unlock()

		if handler != nil {
			handler(mc, req)
		} else {
			mc.reply(req, true)
		}
	}
}

func (s *mockRPCServer) setHandler(fn func(c *mockConn, req rpcRequest)) {
	s.mu.Lock()
	s.onRequest = fn
	s.mu.Unlock()
}

func (s *mockRPCServer) rejectHandshakes(n int) {
	s.mu.Lock()
	s.rejectNext = n
	s.mu.Unlock()
}

func (s *mockRPCServer) handshakeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

func (s *mockRPCServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *mockRPCServer) lastConn() *mockConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

// dropAll terminates every accepted connection.
func (s *mockRPCServer) dropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.terminate()
	}
}

func (s *mockRPCServer) requests(method string) []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rpcRequest
	for _, r := range s.received {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// methods returns the method of every received request in arrival order.
func (s *mockRPCServer) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	for i, r := range s.received {
		out[i] = r.Method
	}
	return out
}

func (s *mockRPCServer) count(method string) int {
	return len(s.requests(method))
}

func setupMockServer(t *testing.T) (*mockRPCServer, string) {
	t.Helper()
	mock := newMockRPCServer()
	server := httptest.NewServer(http.HandlerFunc(mock.handler))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/json_rpc"
	t.Cleanup(func() {
		mock.dropAll()
		server.Close()
	})
	return mock, wsURL
}

// failingDialer rejects every handshake.
type failingDialer struct {
	mu    sync.Mutex
	calls int
}

func (d *failingDialer) DialContext(ctx context.Context, urlStr string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return nil, nil, errors.New("dial refused")
}

func (d *failingDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
