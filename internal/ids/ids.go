// Package ids allocates the two monotonic identifier spaces the gateway
// correlates upstream events against: tickerId and orderId.
package ids

import "sync/atomic"

// TickerAllocator hands out process-wide unique tickerIds. 64-bit width
// makes wraparound unreachable within any realistic process lifetime.
type TickerAllocator struct {
	next int64
}

// Next returns a fresh tickerId, incrementing before use so the zero value
// is never handed out.
func (a *TickerAllocator) Next() int64 {
	return atomic.AddInt64(&a.next, 1)
}

// OrderIDAllocator tracks nextOrderId: the id Next will hand out next,
// seeded from the upstream's nextValidId event and thereafter advanced
// locally on every placeOrder that consumes one.
type OrderIDAllocator struct {
	next int64
}

// Advance raises nextOrderId to max(current, n), matching the upstream's
// nextValidId(n) semantics: n is the id to use next, and the counter only
// ever moves forward.
func (a *OrderIDAllocator) Advance(n int64) {
	for {
		cur := atomic.LoadInt64(&a.next)
		if n <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&a.next, cur, n) {
			return
		}
	}
}

// Next atomically consumes and returns nextOrderId, the id a seeded
// nextValidId(n) names as the one to use — fetch-then-increment, not
// increment-then-fetch, so a fresh Advance(n) makes the very next Next()
// call return n itself.
func (a *OrderIDAllocator) Next() int64 {
	for {
		cur := atomic.LoadInt64(&a.next)
		if atomic.CompareAndSwapInt64(&a.next, cur, cur+1) {
			return cur
		}
	}
}

// Peek returns the current value without consuming it, for diagnostics.
func (a *OrderIDAllocator) Peek() int64 {
	return atomic.LoadInt64(&a.next)
}
