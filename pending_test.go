package wsrpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respWithID(id uint64) *Response {
	return &Response{ID: &id, Result: []byte(`true`)}
}

func TestPendingCalls_AllocIDStartsAtZero(t *testing.T) {
	p := newPendingCalls()
	assert.Equal(t, uint64(0), p.allocID())
	assert.Equal(t, uint64(1), p.allocID())
	assert.Equal(t, uint64(2), p.allocID())
}

func TestPendingCalls_ResolveOnce(t *testing.T) {
	p := newPendingCalls()
	s := newSession("ws://node", false)
	pc := p.add(p.allocID(), "get_version", s)

	require.True(t, p.resolve(s, respWithID(pc.id)))
	assert.False(t, p.resolve(s, respWithID(pc.id)), "second response for the same id must be ignored")

	r := <-pc.done
	require.NoError(t, r.err)
	assert.Equal(t, uint64(0), *r.resp.ID)
	assert.Len(t, pc.done, 0)
	assert.Zero(t, p.count())
}

func TestPendingCalls_LateResponseAfterRemove(t *testing.T) {
	p := newPendingCalls()
	s := newSession("ws://node", false)
	pc := p.add(p.allocID(), "slow_method", s)

	require.True(t, p.remove(pc.id))
	assert.False(t, p.remove(pc.id))
	assert.False(t, p.resolve(s, respWithID(pc.id)), "late response must be discarded")
	assert.Len(t, pc.done, 0)
}

func TestPendingCalls_OtherSessionCannotResolve(t *testing.T) {
	p := newPendingCalls()
	s1 := newSession("ws://node", false)
	s2 := newSession("ws://node", true)
	pc := p.add(p.allocID(), "get_info", s1)

	assert.False(t, p.resolve(s2, respWithID(pc.id)))
	assert.True(t, p.resolve(s1, respWithID(pc.id)))
}

func TestPendingCalls_RemoteError(t *testing.T) {
	p := newPendingCalls()
	s := newSession("ws://node", false)
	pc := p.add(p.allocID(), "bad", s)

	id := pc.id
	p.resolve(s, &Response{ID: &id, Error: &RPCError{Code: -1, Message: "nope"}})
	r := <-pc.done
	var rpcErr *RPCError
	require.True(t, errors.As(r.err, &rpcErr))
	assert.Equal(t, "nope", rpcErr.Message)
	assert.Nil(t, r.resp)
}

func TestPendingCalls_FailSession(t *testing.T) {
	p := newPendingCalls()
	s1 := newSession("ws://node", false)
	s2 := newSession("ws://node", true)
	a := p.add(p.allocID(), "a", s1)
	b := p.add(p.allocID(), "b", s1)
	other := p.add(p.allocID(), "c", s2)

	lost := &ConnectionError{URL: "ws://node", Reason: "EOF", Lost: true}
	assert.Equal(t, 2, p.failSession(s1, lost))

	for _, pc := range []*pendingCall{a, b} {
		r := <-pc.done
		assert.Same(t, lost, r.err)
	}
	assert.Equal(t, 1, p.count())
	assert.True(t, p.resolve(s2, respWithID(other.id)))
}

func TestResolve_NullIDIgnored(t *testing.T) {
	p := newPendingCalls()
	s := newSession("ws://node", false)
	assert.False(t, p.resolve(s, &Response{}))
}
