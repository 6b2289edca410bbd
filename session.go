package wsrpc

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateClosed
)

var sessionStateNames = [...]string{
	stateConnecting: "connecting",
	stateOpen:       "open",
	stateClosed:     "closed",
}

func (s sessionState) String() string {
	if int(s) >= 0 && int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return "unknown"
}

const closeWriteTimeout = time.Second

// session owns one physical connection attempt. Its lifecycle fields are
// guarded by Client.mu, and every handler compares the session against
// Client.current before touching shared client state.
type session struct {
	id       string
	endpoint string
	auto     bool // created by the reconnect controller

	writeMu sync.Mutex
	conn    *websocket.Conn // guarded by writeMu

	// guarded by Client.mu
	state          sessionState
	closeRequested bool
}

func newSession(endpoint string, auto bool) *session {
	return &session{
		id:       uuid.NewString(),
		endpoint: endpoint,
		auto:     auto,
		state:    stateConnecting,
	}
}

func (s *session) attach(conn *websocket.Conn) {
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrTransportUnavailable
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// close sends a close frame and tears the socket down. The read loop observes
// the teardown and runs the client's close handling.
func (s *session) close(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(closeWriteTimeout))
	return s.conn.Close()
}

// handshakeError builds the error for a connection that never opened.
func handshakeError(endpoint string, err error, resp *http.Response) *ConnectionError {
	cerr := &ConnectionError{URL: endpoint, Reason: err.Error()}
	if resp != nil {
		cerr.Code = resp.StatusCode
		if errors.Is(err, websocket.ErrBadHandshake) {
			cerr.Reason = resp.Status
		}
		if resp.Body != nil {
			resp.Body.Close()
		}
	}
	return cerr
}

// lostError builds the error for an opened connection that dropped.
func lostError(endpoint string, err error) *ConnectionError {
	cerr := &ConnectionError{URL: endpoint, Reason: err.Error(), Lost: true}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		cerr.Code = ce.Code
		cerr.Reason = ce.Text
	}
	return cerr
}
