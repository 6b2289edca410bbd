package wsrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a JSON-RPC client over one resilient WebSocket connection.
type Client struct {
	cfg     Config
	dialer  Dialer
	log     zerolog.Logger
	onError ErrorHandler
	backoff *backoff
	pending *pendingCalls

	onReconnectScheduled func(attempt int, delay time.Duration)

	mu       sync.Mutex
	deferred []func() // run by unlock after mu is released

	endpoint string
	current  *session
	stopped  bool // Close was called and no Connect since

	attempts       int
	reconnecting   bool
	reconnectTimer *time.Timer
	reconnectGen   uint64

	subs   *subscriptionTable
	events *eventQueue

	disconnectFn func(error)
	reconnectFn  func()
}

// ConnectionState is a point-in-time view of the connection.
type ConnectionState struct {
	Connected    bool
	Reconnecting bool
	Attempts     int
}

// NewClient creates a new client with the given configuration.
// The client is not connected until Connect() is called.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     resolved,
		log:     zerolog.Nop(),
		backoff: newBackoff(resolved.BaseReconnectDelay, resolved.MaxReconnectDelay),
		pending: newPendingCalls(),
		subs:    newSubscriptionTable(),
		events:  &eventQueue{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = newDefaultDialer(resolved)
	}
	if c.onError == nil {
		c.onError = LogErrors(c.log)
	}
	return c, nil
}

// Connect opens a connection to endpoint, or to Config.Endpoint when endpoint
// is empty, and blocks until the opening handshake completes or fails.
//
// Connect always starts a fresh session: switching endpoints, or calling
// Connect again for the current endpoint, drops every subscription and its
// listeners. Subscriptions survive only automatic reconnects.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	if endpoint == "" {
		return ErrNoEndpoint
	}
	return c.connect(ctx, endpoint, false)
}

func (c *Client) connect(ctx context.Context, endpoint string, auto bool) error {
	c.mu.Lock()
	if auto && c.stopped {
		c.unlock()
		return ErrClientClosed
	}
	c.cancelReconnectLocked()
	if !auto {
		c.stopped = false
	}

	endpointChange := c.endpoint != endpoint
	manual := !auto && !endpointChange
	if endpointChange || manual {
		if n := c.subs.reset(); n > 0 {
			c.log.Debug().
				Str("endpoint", endpoint).
				Bool("endpoint_change", endpointChange).
				Int("subscriptions", n).
				Msg("resetting subscriptions for fresh session")
		}
	}

	old := c.current
	if old != nil {
		old.closeRequested = true
	}
	s := newSession(endpoint, auto)
	c.current = s
	c.endpoint = endpoint
	c.unlock()

	if old != nil {
		old.close(websocket.CloseNormalClosure, "superseded")
	}

	c.log.Debug().Str("endpoint", endpoint).Str("session", s.id).Bool("auto", auto).Msg("connecting")

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, c.cfg.Header)
	if err != nil {
		return c.handleDialFailure(s, handshakeError(endpoint, err, resp))
	}
	return c.handleOpen(s, conn)
}

// handleOpen finishes a successful handshake. A session that was superseded
// or closed while dialing discards its socket.
func (c *Client) handleOpen(s *session, conn *websocket.Conn) error {
	c.mu.Lock()
	if c.current != s || s.closeRequested {
		s.state = stateClosed
		superseded := c.current != s
		c.unlock()
		conn.Close()
		if superseded {
			return ErrSuperseded
		}
		return ErrClientClosed
	}
	s.attach(conn)
	s.state = stateOpen
	c.attempts = 0
	c.reconnecting = false
	c.unlock()

	c.log.Info().Str("endpoint", s.endpoint).Str("session", s.id).Msg("connection opened")

	go c.readLoop(s, conn)
	return nil
}

// handleDialFailure handles a session whose handshake never completed.
// A failed reconnect attempt forces the next retry so the loop cannot stall
// behind the reconnecting flag.
func (c *Client) handleDialFailure(s *session, cerr *ConnectionError) error {
	c.mu.Lock()
	s.state = stateClosed
	if c.current != s {
		c.unlock()
		return cerr
	}
	switch {
	case s.auto && !s.closeRequested && !c.stopped:
		c.scheduleReconnectLocked(true)
	default:
		c.reconnecting = false
	}
	c.unlock()

	c.log.Warn().Err(cerr).Str("session", s.id).Bool("auto", s.auto).Msg("connection failed")
	return cerr
}

func (c *Client) readLoop(s *session, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(s, err)
			return
		}
		c.dispatch(s, data)
	}
}

// handleClose runs once per opened session, when its read loop ends.
func (c *Client) handleClose(s *session, err error) {
	cerr := lostError(s.endpoint, err)

	c.mu.Lock()
	s.state = stateClosed
	c.unlock()

	if n := c.pending.failSession(s, cerr); n > 0 {
		c.log.Debug().Str("session", s.id).Int("calls", n).Msg("failed in-flight calls")
	}

	c.mu.Lock()
	if c.current != s {
		c.unlock()
		c.log.Debug().Str("session", s.id).Msg("close from superseded socket ignored")
		return
	}

	intentional := s.closeRequested || c.stopped
	switch {
	case !intentional && c.cfg.ReconnectEnabled:
		c.reportLocked(TransportError{
			Kind:     ErrConnectionLost,
			Endpoint: s.endpoint,
			Cause:    cerr,
		})
		if !c.reconnecting {
			c.scheduleReconnectLocked(false)
		}
	default:
		c.reconnecting = false
	}
	disconnect := c.disconnectFn
	c.unlock()

	c.log.Info().Str("session", s.id).Bool("intentional", intentional).Err(cerr).Msg("connection closed")

	if disconnect != nil && !intentional {
		disconnect(cerr)
	}
}

// dispatch routes one inbound frame to its pending call or, for the current
// session only, to the listeners of the matching subscription. Listeners run
// on the event queue, never on the read loop.
func (c *Client) dispatch(s *session, data []byte) {
	resp, err := decodeResponse(data)
	if err != nil {
		c.mu.Lock()
		if c.current == s {
			c.reportLocked(TransportError{
				Kind:     ErrParseFailure,
				Endpoint: s.endpoint,
				Cause:    err,
				Raw:      data,
			})
		}
		c.unlock()
		return
	}

	if c.pending.resolve(s, resp) {
		return
	}
	if resp.ID == nil {
		return
	}

	c.mu.Lock()
	if c.current != s {
		c.unlock()
		return
	}
	sub, ok := c.subs.byID(*resp.ID)
	if !ok {
		c.unlock()
		return
	}
	d := delivery{fns: make([]Listener, len(sub.listeners))}
	for i, l := range sub.listeners {
		d.fns[i] = l.fn
	}
	if resp.Error != nil {
		d.err = resp.Error
	} else {
		d.data = resp.Result
	}
	// Queued under mu so frames keep their arrival order.
	c.events.push(d)
	c.unlock()
}

// Close shuts the current connection down and cancels any pending reconnect.
// Subscriptions are kept; the client can Connect again afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	c.cancelReconnectLocked()
	c.reconnecting = false
	c.stopped = true
	s := c.current
	if s == nil {
		c.unlock()
		return nil
	}
	s.closeRequested = true
	s.state = stateClosed
	c.unlock()

	c.log.Debug().Str("session", s.id).Msg("closing connection")
	return s.close(websocket.CloseNormalClosure, "client closed")
}

// ConnectionState reports whether the client is connected, whether a
// reconnect is pending and how many reconnect attempts have been made.
func (c *Client) ConnectionState() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionState{
		Connected:    c.current != nil && c.current.state == stateOpen,
		Reconnecting: c.reconnecting,
		Attempts:     c.attempts,
	}
}

// Endpoint returns the endpoint of the current or most recent connection.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// OnDisconnect registers a callback invoked when an established connection drops.
func (c *Client) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	c.disconnectFn = fn
	c.mu.Unlock()
}

// OnReconnect registers a callback invoked after a reconnect succeeded and
// subscriptions were replayed.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	c.reconnectFn = fn
	c.mu.Unlock()
}

func (c *Client) reconnectCallback() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectFn
}

// openSession returns the current session if it is open.
func (c *Client) openSession() (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.current
	if s == nil || s.state != stateOpen {
		return nil, false
	}
	return s, true
}

// Call sends a request and blocks until the correlated response arrives, the
// call times out or ctx is done. A server error object is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params any, opts ...CallOption) (*Response, error) {
	o := callDefaults(c.cfg)
	for _, opt := range opts {
		opt(&o)
	}

	s, ok := c.openSession()
	if !ok {
		return nil, ErrTransportUnavailable
	}

	id := c.pending.allocID()
	data, err := encodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	pc := c.pending.add(id, method, s)

	// The session may have closed between the check above and registration;
	// its close handling fails only calls it can already see.
	if !c.isOpen(s) {
		c.pending.remove(id)
		return nil, ErrTransportUnavailable
	}

	if err := s.write(data); err != nil {
		c.pending.remove(id)
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	var timeout <-chan time.Time
	if o.timeout > 0 {
		t := time.NewTimer(o.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-pc.done:
		return r.resp, r.err
	case <-timeout:
		if c.pending.remove(id) {
			return nil, fmt.Errorf("%w: %s after %s", ErrCallTimeout, method, o.timeout)
		}
	case <-ctx.Done():
		if c.pending.remove(id) {
			return nil, ctx.Err()
		}
	}
	// Resolved concurrently with the timeout; the result is already buffered.
	r := <-pc.done
	return r.resp, r.err
}

// CallResult calls method and decodes the result into out. A nil out discards it.
func (c *Client) CallResult(ctx context.Context, method string, params any, out any, opts ...CallOption) error {
	resp, err := c.Call(ctx, method, params, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// SendRaw writes data to the socket as-is, without correlation.
func (c *Client) SendRaw(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, ok := c.openSession()
	if !ok {
		return ErrTransportUnavailable
	}
	return s.write(data)
}

// isOpen reports whether s is still the current session and open.
func (c *Client) isOpen(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == s && s.state == stateOpen
}

// unlock releases mu and then runs callbacks queued while it was held.
func (c *Client) unlock() {
	fns := c.deferred
	c.deferred = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// deferLocked queues fn to run once mu is released. c.mu must be held.
func (c *Client) deferLocked(fn func()) {
	c.deferred = append(c.deferred, fn)
}

// reportLocked queues e for the ErrorHandler. c.mu must be held.
func (c *Client) reportLocked(e TransportError) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	handler := c.onError
	c.deferLocked(func() { handler(e) })
}

func (c *Client) report(e TransportError) {
	c.mu.Lock()
	c.reportLocked(e)
	c.unlock()
}
