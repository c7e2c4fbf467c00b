package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// ErrNoDialer is returned by Acquire when the pool was built without a
// DialFunc and has no idle connection to hand out.
var ErrNoDialer = errors.New("connection pool has no dialer configured")

// Pool maintains a bounded set of reusable connections to the execution
// service. Acquire blocks once the bound is reached, applying backpressure
// instead of unbounded fan-out; the bound is the sole admission-control knob
// for how many attempts are in true network flight at once.
type Pool struct {
	dial    DialFunc
	permits chan struct{}

	mu     sync.Mutex
	idle   []Conn
	closed bool
}

// NewPool creates a pool bounded at size connections. Connections are
// established lazily on Acquire.
func NewPool(size int, dial DialFunc) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		dial:    dial,
		permits: make(chan struct{}, size),
	}
}

// Acquire yields an exclusive connection, blocking while the pool is at its
// bound. The caller must hand the connection back through Release or
// Discard, never both.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	select {
	case p.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "acquiring connection")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.permits
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	if p.dial == nil {
		<-p.permits
		return nil, ErrNoDialer
	}
	conn, err := p.dial(ctx)
	if err != nil {
		<-p.permits
		return nil, errors.Wrap(err, "dialing execution service")
	}
	return conn, nil
}

// Release returns a healthy connection for reuse.
func (p *Pool) Release(conn Conn) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		<-p.permits
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	<-p.permits
}

// Discard drops a broken connection. A replacement is dialed lazily on the
// next Acquire.
func (p *Pool) Discard(conn Conn) {
	_ = conn.Close()
	<-p.permits
}

// Close closes all idle connections and fails subsequent Acquires.
// Connections currently held by callers are closed as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var first error
	for _, conn := range p.idle {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.idle = nil
	return first
}
