package wsrpc

import (
	"sync"
	"sync/atomic"
)

type callResult struct {
	resp *Response
	err  error
}

// pendingCall is one in-flight request awaiting its response.
type pendingCall struct {
	id      uint64
	method  string
	session *session
	done    chan callResult // buffered, receives exactly one result
}

// pendingCalls correlates responses to outstanding calls by id.
// An entry is resolved by whoever removes it from the map first.
type pendingCalls struct {
	nextID atomic.Uint64

	mu    sync.Mutex
	calls map[uint64]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{
		calls: make(map[uint64]*pendingCall),
	}
}

// allocID returns the next correlation id. Ids start at 0 and are never reused.
func (p *pendingCalls) allocID() uint64 {
	return p.nextID.Add(1) - 1
}

func (p *pendingCalls) add(id uint64, method string, s *session) *pendingCall {
	pc := &pendingCall{
		id:      id,
		method:  method,
		session: s,
		done:    make(chan callResult, 1),
	}
	p.mu.Lock()
	p.calls[id] = pc
	p.mu.Unlock()
	return pc
}

// remove drops the entry without resolving it. It reports whether the entry
// was still outstanding.
func (p *pendingCalls) remove(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.calls[id]; !ok {
		return false
	}
	delete(p.calls, id)
	return true
}

// resolve delivers a response to the call with the response's id, if that call
// was sent on s. Unknown or already resolved ids report false.
func (p *pendingCalls) resolve(s *session, resp *Response) bool {
	if resp.ID == nil {
		return false
	}
	p.mu.Lock()
	pc, ok := p.calls[*resp.ID]
	if !ok || pc.session != s {
		p.mu.Unlock()
		return false
	}
	delete(p.calls, pc.id)
	p.mu.Unlock()

	if resp.Error != nil {
		pc.done <- callResult{err: resp.Error}
	} else {
		pc.done <- callResult{resp: resp}
	}
	return true
}

// failSession rejects every outstanding call that was sent on s.
func (p *pendingCalls) failSession(s *session, err error) int {
	p.mu.Lock()
	var failed []*pendingCall
	for id, pc := range p.calls {
		if pc.session == s {
			delete(p.calls, id)
			failed = append(failed, pc)
		}
	}
	p.mu.Unlock()

	for _, pc := range failed {
		pc.done <- callResult{err: err}
	}
	return len(failed)
}

func (p *pendingCalls) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
