// Package waiter implements the bounded polling loop every request
// operation blocks on: the upstream is event-driven, but the demultiplexer
// only mutates shared mailboxes, so the HTTP-handler side must poll them.
// Grounded on original_source/app/sync.py's
// `while ... and timeout > 0: time.sleep(0.25); timeout -= 1` loops.
package waiter

import "time"

// Interval is the fixed polling interval every Wait call uses (250 ms).
const Interval = 250 * time.Millisecond

// Outcome describes why a Wait call returned.
type Outcome int

const (
	// Completed means the completion predicate returned true.
	Completed Outcome = iota
	// Errored means an ErrorSlot entry for the request's id was observed.
	Errored
	// Disconnected means the Connection reported disconnected mid-wait.
	Disconnected
	// TimedOut means the budget was exhausted with no completion or error.
	TimedOut
)

// ErrorCheck reports an upstream error for the request's id, if one has
// arrived.
type ErrorCheck func() (code int, message string, ok bool)

// Params configures one Wait call.
type Params struct {
	// Budget is the number of Interval-spaced polls to attempt before
	// giving up. placeOrder uses a shorter budget (8) than the default (20).
	Budget int
	// Done reports whether the operation's completion predicate holds.
	Done func() bool
	// CheckError reports an ErrorSlot entry for the request's id.
	CheckError ErrorCheck
	// Connected reports whether the Connection is still connected; a false
	// return mid-wait ends the wait with Disconnected.
	Connected func() bool
}

// Result is what Wait returns.
type Result struct {
	Outcome Outcome
	Code    int
	Message string
}

// Wait polls Done/CheckError/Connected every Interval until one resolves the
// request or the budget is exhausted. It never sleeps past a successful
// first check: Done and CheckError are consulted before the first sleep, so
// an already-satisfied predicate resolves with zero latency.
func Wait(p Params) Result {
	for iter := 0; iter < p.Budget; iter++ {
		if code, msg, ok := p.CheckError(); ok {
			return Result{Outcome: Errored, Code: code, Message: msg}
		}
		if p.Done() {
			return Result{Outcome: Completed}
		}
		if p.Connected != nil && !p.Connected() {
			return Result{Outcome: Disconnected}
		}
		if iter < p.Budget-1 {
			time.Sleep(Interval)
		}
	}
	return Result{Outcome: TimedOut}
}
