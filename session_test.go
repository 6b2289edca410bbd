package wsrpc

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "connecting", stateConnecting.String())
	assert.Equal(t, "open", stateOpen.String())
	assert.Equal(t, "closed", stateClosed.String())
	assert.Equal(t, "unknown", sessionState(42).String())
}

func TestNewSession(t *testing.T) {
	a := newSession("ws://node/json_rpc", true)
	b := newSession("ws://node/json_rpc", false)

	assert.NotEqual(t, a.id, b.id)
	assert.Equal(t, stateConnecting, a.state)
	assert.True(t, a.auto)
	assert.False(t, b.auto)
}

func TestSession_WriteBeforeAttach(t *testing.T) {
	s := newSession("ws://node/json_rpc", false)
	require.ErrorIs(t, s.write([]byte(`{}`)), ErrTransportUnavailable)
	assert.NoError(t, s.close(websocket.CloseNormalClosure, ""))
}

func TestHandshakeError_BadStatus(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Status:     "503 Service Unavailable",
		Body:       io.NopCloser(strings.NewReader("unavailable")),
	}
	cerr := handshakeError("ws://node/json_rpc", websocket.ErrBadHandshake, resp)

	assert.Equal(t, 503, cerr.Code)
	assert.Equal(t, "503 Service Unavailable", cerr.Reason)
	assert.False(t, cerr.Lost)
}

func TestHandshakeError_NoResponse(t *testing.T) {
	cerr := handshakeError("ws://node/json_rpc", errors.New("connection refused"), nil)
	assert.Zero(t, cerr.Code)
	assert.Equal(t, "connection refused", cerr.Reason)
}

func TestLostError(t *testing.T) {
	cerr := lostError("ws://node/json_rpc", &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "restart"})
	assert.True(t, cerr.Lost)
	assert.Equal(t, websocket.CloseGoingAway, cerr.Code)
	assert.Equal(t, "restart", cerr.Reason)

	cerr = lostError("ws://node/json_rpc", io.ErrUnexpectedEOF)
	assert.Zero(t, cerr.Code)
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), cerr.Reason)
}
