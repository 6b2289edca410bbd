package wsrpc

import (
	"context"
	"errors"
	"sync"
)

var errNilListener = errors.New("listener must not be nil")

// ListenEvent registers fn for notifications of the named event. The first
// listener for a name subscribes on the server; later listeners share that
// subscription. The returned Unsubscribe removes fn, and once the last
// listener is gone the server subscription is dropped after
// Config.UnsubscribeGracePeriod unless a new listener arrives first.
//
// Listeners are called from a single delivery goroutine, in arrival order,
// and may call back into the Client.
func (c *Client) ListenEvent(ctx context.Context, name string, fn Listener) (Unsubscribe, error) {
	if fn == nil {
		return nil, errNilListener
	}
	l := &listener{fn: fn}

	c.mu.Lock()
	for {
		sub, ok := c.subs.get(name)
		if !ok {
			break
		}
		if wait := sub.unsubscribing; wait != nil {
			// The server must see the unsubscribe before the new subscribe.
			c.unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, &SubscriptionError{Event: name, Op: methodSubscribe, Cause: ctx.Err()}
			}
			c.mu.Lock()
			continue
		}
		sub.stopGrace()
		sub.listeners = append(sub.listeners, l)
		c.unlock()
		return c.unsubscriber(name, l), nil
	}
	// Stored before the round trip so concurrent callers join this entry.
	sub := c.subs.create(name, l)
	c.unlock()

	resp, err := c.Call(ctx, methodSubscribe, notifyParams{Notify: name})

	c.mu.Lock()
	if err != nil {
		c.subs.delete(name, sub)
		c.unlock()
		return nil, &SubscriptionError{Event: name, Op: methodSubscribe, Cause: err}
	}
	if cur, ok := c.subs.get(name); ok && cur == sub && resp.ID != nil {
		sub.id = *resp.ID
		sub.hasID = true
		sub.subscribed = true
	}
	c.unlock()

	c.log.Debug().Str("event", name).Msg("subscribed")
	return c.unsubscriber(name, l), nil
}

func (c *Client) unsubscriber(name string, l *listener) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() { c.removeListener(name, l) })
	}
}

func (c *Client) removeListener(name string, l *listener) {
	c.mu.Lock()
	defer c.unlock()

	sub, ok := c.subs.get(name)
	if !ok || !sub.removeListener(l) || len(sub.listeners) > 0 {
		return
	}

	if c.current != nil && c.current.state == stateOpen {
		sub.armGrace(c.cfg.UnsubscribeGracePeriod, func(gen uint64) {
			c.expireSubscription(name, sub, gen)
		})
		return
	}
	// Nothing to tell a dead connection.
	c.subs.delete(name, sub)
}

// expireSubscription runs when a grace timer fires. It unsubscribes unless a
// listener arrived or the timer was replaced in the meantime.
func (c *Client) expireSubscription(name string, sub *subscription, gen uint64) {
	c.mu.Lock()
	cur, ok := c.subs.get(name)
	if !ok || cur != sub || sub.graceGen != gen || len(sub.listeners) > 0 {
		c.unlock()
		return
	}
	sub.grace = nil
	if c.current == nil || c.current.state != stateOpen {
		c.subs.delete(name, sub)
		c.unlock()
		return
	}
	// The entry stays in the table until the server has answered, so a
	// concurrent ListenEvent queues behind this unsubscribe.
	done := make(chan struct{})
	sub.unsubscribing = done
	c.unlock()

	_, err := c.Call(context.Background(), methodUnsubscribe, notifyParams{Notify: name})

	c.mu.Lock()
	c.subs.delete(name, sub)
	sub.unsubscribing = nil
	close(done)
	c.unlock()

	if err != nil {
		c.report(TransportError{
			Kind:     ErrUnsubscribe,
			Endpoint: c.Endpoint(),
			Event:    name,
			Cause:    &SubscriptionError{Event: name, Op: methodUnsubscribe, Cause: err},
		})
		return
	}
	c.log.Debug().Str("event", name).Msg("unsubscribed")
}

// CloseAllListens unsubscribes the named event right away and drops all of
// its listeners. On failure the subscription is left in place.
func (c *Client) CloseAllListens(ctx context.Context, name string) error {
	c.mu.Lock()
	sub, ok := c.subs.get(name)
	unsubscribing := ok && sub.unsubscribing != nil
	c.unlock()
	if !ok || unsubscribing {
		return nil
	}

	if _, err := c.Call(ctx, methodUnsubscribe, notifyParams{Notify: name}); err != nil {
		return &SubscriptionError{Event: name, Op: methodUnsubscribe, Cause: err}
	}

	c.mu.Lock()
	c.subs.delete(name, sub)
	c.unlock()
	return nil
}

// resubscribeAll replays every acknowledged subscription on the current
// session. Each failure is reported on its own and does not stop the rest;
// the failed event stays without delivery until the next reconnect.
func (c *Client) resubscribeAll() {
	c.mu.Lock()
	var subs []*subscription
	for _, sub := range c.subs.snapshot() {
		if sub.subscribed && sub.unsubscribing == nil {
			sub.hasID = false
			subs = append(subs, sub)
		}
	}
	endpoint := c.endpoint
	c.unlock()

	c.log.Debug().Int("subscriptions", len(subs)).Msg("resubscribing")

	for _, sub := range subs {
		resp, err := c.Call(context.Background(), methodSubscribe, notifyParams{Notify: sub.name})
		if err != nil {
			c.log.Warn().Err(err).Str("event", sub.name).Msg("resubscribe failed")
			c.report(TransportError{
				Kind:     ErrResubscribe,
				Endpoint: endpoint,
				Event:    sub.name,
				Cause:    &SubscriptionError{Event: sub.name, Op: methodSubscribe, Cause: err},
			})
			continue
		}

		c.mu.Lock()
		if cur, ok := c.subs.get(sub.name); ok && cur == sub && resp.ID != nil {
			sub.id = *resp.ID
			sub.hasID = true
		}
		c.unlock()
	}
}
