// Package clientpool implements a fixed-size pool of upstream Sessions: a
// collection of upstream/Session values checked out one-per-in-flight-HTTP-
// request, with a reserved slot for order-mutating operations so their
// openOrder/orderStatus event stream is never multiplexed with read-only
// queries. Adapted from the teacher's internal/wsconn/pool.go, restructured
// from lazy-growth + instrument-assignment to a fixed-size take/release
// discipline — there is no instrument-subscription concept here.
package clientpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibgw/gateway/internal/upstream"
)

// PollInterval and DefaultWaitBudget implement the pool-wait budget: 20
// polling intervals of 500 ms each, 10 s total.
const (
	PollInterval      = 500 * time.Millisecond
	DefaultWaitBudget = 20
)

// ErrExhausted is returned by Acquire when no clientId became available
// within the wait budget. Callers map it to the reserved sentinel id -2.
var ErrExhausted = errors.New("no client id available within pool-wait timeout")

// Pool holds every Session the gateway owns, split into the reserved order
// client and the fungible read-client pool.
type Pool struct {
	mu sync.Mutex

	all map[int64]*upstream.Session

	// available is the FIFO of free, non-reserved clientIds: acquire pops
	// the head, release appends to the tail, so load rotates across
	// connections (a policy, not a correctness requirement).
	available []int64

	orderClientID   int64
	orderClientFree bool

	waitBudget int
}

// New builds a Pool from sessions, none of which are yet connected.
// orderClientID must be one of the keys in sessions; it is withheld from
// the general read-client rotation and handed out only to
// AcquireOrderClient.
func New(sessions map[int64]*upstream.Session, orderClientID int64, waitBudget int) (*Pool, error) {
	if _, ok := sessions[orderClientID]; !ok {
		return nil, fmt.Errorf("orderClientID %d is not among the pool's sessions", orderClientID)
	}
	p := &Pool{
		all:             sessions,
		orderClientID:   orderClientID,
		orderClientFree: true,
		waitBudget:      waitBudget,
	}
	for id := range sessions {
		if id == orderClientID {
			continue
		}
		p.available = append(p.available, id)
	}
	return p, nil
}

// Size returns the total number of clientIds the pool manages.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Acquire hands out any free non-reserved Session, blocking up to the
// pool-wait budget and polling every PollInterval, FIFO over the order
// connections became free.
func (p *Pool) Acquire(ctx context.Context) (*upstream.Session, error) {
	return p.acquire(ctx, false)
}

// AcquireOrderClient hands out the single reserved order-client Session.
func (p *Pool) AcquireOrderClient(ctx context.Context) (*upstream.Session, error) {
	return p.acquire(ctx, true)
}

func (p *Pool) acquire(ctx context.Context, wantOrderClient bool) (*upstream.Session, error) {
	for iter := 0; iter < p.waitBudget; iter++ {
		if sess, ok := p.tryAcquire(wantOrderClient); ok {
			return sess, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
	return nil, ErrExhausted
}

func (p *Pool) tryAcquire(wantOrderClient bool) (*upstream.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wantOrderClient {
		if !p.orderClientFree {
			return nil, false
		}
		p.orderClientFree = false
		return p.all[p.orderClientID], true
	}

	if len(p.available) == 0 {
		return nil, false
	}
	id := p.available[0]
	p.available = p.available[1:]
	return p.all[id], true
}

// Release returns sess to the pool: the order client goes back to its
// reserved slot, everything else to the tail of the FIFO.
func (p *Pool) Release(sess *upstream.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess.ClientID() == p.orderClientID {
		p.orderClientFree = true
		return
	}
	p.available = append(p.available, sess.ClientID())
}

// Healthcheck reports whether sess is currently connected upstream,
// attempting one reconnect first if it is not (original_source/connection.py's
// get_client only dials when not already connected; mirrored here so a
// transient disconnect doesn't immediately fail every request on that
// clientId).
func (p *Pool) Healthcheck(sess *upstream.Session) bool {
	if sess.IsConnected() {
		return true
	}
	_ = sess.Connect()
	return sess.IsConnected()
}

// Snapshot reports connectedness per clientId and which clientIds are
// currently free, for GET /clients. Available lists the free read clients in
// FIFO order, followed by the reserved order client when it is free.
type Snapshot struct {
	Connected map[int64]bool
	Available []int64
}

func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	connected := make(map[int64]bool, len(p.all))
	for id, sess := range p.all {
		connected[id] = sess.IsConnected()
	}
	available := append([]int64(nil), p.available...)
	if p.orderClientFree {
		available = append(available, p.orderClientID)
	}
	return Snapshot{Connected: connected, Available: available}
}
