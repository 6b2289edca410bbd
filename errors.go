package wsrpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors for client state.
var (
	ErrTransportUnavailable = errors.New("socket is not open")
	ErrCallTimeout          = errors.New("call timed out")
	ErrClientClosed         = errors.New("client is closed")
	ErrSuperseded           = errors.New("connection superseded by a newer connect")
	ErrNoEndpoint           = errors.New("no endpoint configured")
)

// RPCError is an error object returned by the server in place of a result.
// Code and Message are surfaced verbatim.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error [%d]: %s", e.Code, e.Message)
}

// ConnectionError represents a failure to open a connection (Lost == false)
// or the loss of a connection that had opened (Lost == true).
// Code is the WebSocket close code or, for rejected handshakes, the HTTP status.
type ConnectionError struct {
	URL    string
	Code   int
	Reason string
	Lost   bool
}

func (e *ConnectionError) Error() string {
	kind := "connection failed"
	if e.Lost {
		kind = "connection lost"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s [%s]: %d %s", kind, e.URL, e.Code, e.Reason)
	}
	return fmt.Sprintf("%s [%s]: %s", kind, e.URL, e.Reason)
}

// SubscriptionError reports a failed subscribe or unsubscribe round trip.
type SubscriptionError struct {
	Event string
	Op    string // "subscribe" or "unsubscribe"
	Cause error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Event, e.Cause)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Cause
}

// ErrorKind classifies transport errors that cannot be returned to a caller.
type ErrorKind int

const (
	ErrParseFailure       ErrorKind = iota // inbound frame couldn't be decoded
	ErrResubscribe                         // subscribe after reconnect failed
	ErrUnsubscribe                         // grace-period unsubscribe failed
	ErrReconnectExhausted                  // retry budget used up
	ErrConnectionLost                      // established connection dropped
)

var errorKindNames = [...]string{
	ErrParseFailure:       "ErrParseFailure",
	ErrResubscribe:        "ErrResubscribe",
	ErrUnsubscribe:        "ErrUnsubscribe",
	ErrReconnectExhausted: "ErrReconnectExhausted",
	ErrConnectionLost:     "ErrConnectionLost",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// TransportError is an error the client could not deliver to a direct caller.
// These are routed to the ErrorHandler configured with WithErrorHandler.
type TransportError struct {
	Kind      ErrorKind
	Endpoint  string
	Event     string // event name, for subscription errors
	Attempt   int    // reconnect attempt, for reconnect errors
	Cause     error
	Raw       []byte // raw frame (for parse failures)
	Timestamp time.Time
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (endpoint=%s event=%s attempt=%d)", e.Kind, e.Cause, e.Endpoint, e.Event, e.Attempt)
	}
	return fmt.Sprintf("%s (endpoint=%s event=%s attempt=%d)", e.Kind, e.Endpoint, e.Event, e.Attempt)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ErrorHandler is called for every transport error that has no waiting caller.
type ErrorHandler func(TransportError)

// LogErrors returns an ErrorHandler that logs all transport errors to the given logger.
func LogErrors(logger zerolog.Logger) ErrorHandler {
	return func(e TransportError) {
		ev := logger.Error()
		if e.Kind == ErrConnectionLost {
			ev = logger.Warn()
		}
		ev.Str("kind", e.Kind.String()).
			Str("endpoint", e.Endpoint).
			Int("attempt", e.Attempt).
			Err(e.Cause)
		if e.Event != "" {
			ev = ev.Str("event", e.Event)
		}
		ev.Msg("wsrpc transport error")
	}
}
