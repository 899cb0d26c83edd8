package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// PositionsResult is the response body for GET /account/positions.
type PositionsResult struct {
	Positions []mailbox.Position
}

// GetPositions requests the full portfolio position stream, waiting for
// positionEnd, then tears down with cancelPositions. The mailbox is keyed by
// the acquiring clientId, like GetAccountSummary: position callbacks carry
// no reqId of their own, so two concurrent callers on different read
// clients would otherwise clobber one singleton.
func (g *Gateway) GetPositions(ctx context.Context) (*PositionsResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, false)
	if gerr != nil {
		return nil, gerr
	}

	clientID := sess.ClientID()
	g.reg.ResetPositions(clientID)
	g.reg.ClearError(clientID)

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdReqPositions}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, clientID, g.cfg.PollBudget, func() bool {
		return g.reg.PositionsComplete(clientID)
	})

	_ = g.send(ctx, sess, upstream.Command{Name: upstream.CmdCancelPositions})

	_, positions := g.reg.PositionsSnapshot(clientID)
	g.pool.Release(sess)

	result := &PositionsResult{Positions: positions}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}
