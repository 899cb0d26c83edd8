package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// HistoryResult is the response body for GET /history.
type HistoryResult struct {
	Bars []mailbox.Bar
}

// GetHistory requests historical bars for a caller-supplied contract field
// bag. The caller's fields are authoritative: unlike
// original_source/app/sync.py's get_history, which silently overwrites the
// contract with a hard-coded AAPL stub, nothing here substitutes a fixed
// contract over what was passed in.
func (g *Gateway) GetHistory(ctx context.Context, fields map[string]interface{}) (*HistoryResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, false)
	if gerr != nil {
		return nil, gerr
	}

	tickerID := g.tickerAlloc.Next()
	g.reg.ResetHistory(tickerID)
	g.reg.ClearError(tickerID)

	cmdFields := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		cmdFields[k] = v
	}
	cmdFields["tickerId"] = tickerID

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdReqHistoricalData, Fields: cmdFields}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, tickerID, g.cfg.PollBudget, func() bool {
		return g.reg.HistoryNonEmpty(tickerID)
	})

	_ = g.send(ctx, sess, upstream.Command{Name: upstream.CmdCancelHistoricalData, Fields: map[string]interface{}{"tickerId": tickerID}})

	bars := g.reg.HistorySnapshot(tickerID)
	g.pool.Release(sess)

	if gerr != nil {
		return &HistoryResult{Bars: bars}, gerr
	}
	return &HistoryResult{Bars: bars}, nil
}
