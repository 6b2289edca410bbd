package wsrpc

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// backoff implements exponential backoff with a maximum delay and positive jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// base returns min(max, initial * 2^attempt).
func (b *backoff) base(attempt int) time.Duration {
	d := b.initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.max || d <= 0 {
			return b.max
		}
	}
	if d > b.max {
		d = b.max
	}
	return d
}

// next returns the delay before retry number attempt+1: the base delay plus
// up to 25% of it, uniformly distributed.
func (b *backoff) next(attempt int) time.Duration {
	d := b.base(attempt)
	b.mu.Lock()
	f := b.rng.Float64()
	b.mu.Unlock()
	return d + time.Duration(float64(d)*0.25*f)
}

// scheduleReconnectLocked arms the reconnect timer. Without force it is a
// no-op while a reconnect is already pending. c.mu must be held.
func (c *Client) scheduleReconnectLocked(force bool) {
	if c.reconnecting && !force {
		return
	}
	if c.cfg.MaxReconnectAttempts > 0 && c.attempts >= c.cfg.MaxReconnectAttempts {
		c.reconnecting = false
		c.log.Error().
			Str("endpoint", c.endpoint).
			Int("attempt", c.attempts).
			Msg("max reconnection attempts reached")
		c.reportLocked(TransportError{
			Kind:     ErrReconnectExhausted,
			Endpoint: c.endpoint,
			Attempt:  c.attempts,
		})
		return
	}

	c.reconnecting = true
	delay := c.backoff.next(c.attempts)

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectGen++
	gen := c.reconnectGen
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.fireReconnect(gen)
	})

	c.log.Info().
		Str("endpoint", c.endpoint).
		Int("attempt", c.attempts+1).
		Dur("delay", delay).
		Msg("scheduling reconnect")
	if hook := c.onReconnectScheduled; hook != nil {
		attempts := c.attempts
		c.deferLocked(func() { hook(attempts, delay) })
	}
}

// cancelReconnectLocked stops a pending reconnect timer. c.mu must be held.
func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectGen++
}

// fireReconnect runs when the reconnect timer expires. A failed attempt is
// rescheduled by the session's own failure handling, not here.
func (c *Client) fireReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.reconnectGen {
		c.unlock()
		return
	}
	c.reconnectTimer = nil
	c.attempts++
	attempt := c.attempts
	endpoint := c.endpoint
	c.unlock()

	c.log.Info().Str("endpoint", endpoint).Int("attempt", attempt).Msg("reconnecting")

	if err := c.connect(context.Background(), endpoint, true); err != nil {
		c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("reconnection failed")
		return
	}

	c.resubscribeAll()
	c.log.Info().Str("endpoint", endpoint).Msg("reconnected and resubscribed")

	if fn := c.reconnectCallback(); fn != nil {
		fn()
	}
}
