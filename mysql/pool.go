package mysql

import "sync"

// Pool is a session-scoped, fixed-capacity LIFO of idle connections
// (§4.7). It never blocks: Acquire returns the most recently released
// connection or nil when empty, and Release either parks a connection
// or, once at capacity, tells the caller to destroy it instead.
//
// Invariant: 0 <= len(free) <= size at all times.
type Pool struct {
	mu   sync.Mutex
	free []*conn
	size int
}

// newPool builds a Pool of the given capacity; a size of 0 defaults to
// 1, since a session with no usable idle slot would defeat pooling
// entirely.
func newPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size}
}

// Acquire pops the most recently released connection, or returns nil
// if the pool is empty.
func (p *Pool) Acquire() *conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil
	}
	c := p.free[n-1]
	p.free = p.free[:n-1]
	return c
}

// Release parks c if there's room and reports true, or reports false
// if the pool is at capacity, in which case the caller must destroy c.
func (p *Pool) Release(c *conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.size {
		return false
	}
	p.free = append(p.free, c)
	return true
}

// DestroyAll empties the pool, destroying every idle connection it
// held (§4.7, used by Session.Close).
func (p *Pool) DestroyAll() {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	for _, c := range free {
		c.destroy()
	}
}
