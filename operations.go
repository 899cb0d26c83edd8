package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/upstream"
	"github.com/ibgw/gateway/internal/waiter"
)

// runWait wraps internal/waiter.Wait with this request's id, budget, and
// Connection, translating the outcome into the gateway's error taxonomy.
// timedOut is true only for waiter.TimedOut, distinguishing it from the
// other failure outcomes for callers (placeOrder) that treat a timeout as
// provisional success rather than failure.
func (g *Gateway) runWait(sess *upstream.Session, id int64, budget int, done func() bool) (timedOut bool, gerr *GatewayError) {
	res := waiter.Wait(waiter.Params{
		Budget: budget,
		Done:   done,
		CheckError: func() (int, string, bool) {
			return g.reg.GetError(id)
		},
		Connected: sess.IsConnected,
	})

	switch res.Outcome {
	case waiter.Completed:
		return false, nil
	case waiter.Errored:
		return false, ErrUpstream(id, res.Code, res.Message)
	case waiter.Disconnected:
		return false, ErrNotConnected()
	case waiter.TimedOut:
		return true, ErrTimeout(id)
	default:
		return true, ErrTimeout(id)
	}
}

// send issues cmd on sess, translating a transport-level send failure into
// NotConnected since a send failure means the connection is not currently
// usable.
func (g *Gateway) send(ctx context.Context, sess *upstream.Session, cmd upstream.Command) *GatewayError {
	if err := sess.Send(ctx, cmd); err != nil {
		g.log.Warn().Err(err).Str("command", cmd.Name).Int64("clientId", sess.ClientID()).Msg("send to upstream failed")
		return ErrNotConnected()
	}
	return nil
}
