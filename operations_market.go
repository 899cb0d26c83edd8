package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// MarketResult is the response body for GET /market/{symbol}.
type MarketResult struct {
	Ticks []mailbox.Tick
}

// GetMarket requests streaming market data for symbol until K ticks have
// accumulated (K configured, baseline 5, per original_source/feeds.py's
// get_market_data) or an error/timeout resolves the wait.
func (g *Gateway) GetMarket(ctx context.Context, symbol string) (*MarketResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, false)
	if gerr != nil {
		return nil, gerr
	}

	tickerID := g.tickerAlloc.Next()
	g.reg.ResetMarket(tickerID)
	g.reg.ClearError(tickerID)

	contract := map[string]interface{}{
		"symbol":   symbol,
		"secType":  "STK",
		"exchange": "SMART",
		"currency": "USD",
	}
	cmdFields := map[string]interface{}{"tickerId": tickerID, "contract": contract}

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdReqMktData, Fields: cmdFields}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, tickerID, g.cfg.PollBudget, func() bool {
		return g.reg.MarketTickCount(tickerID) >= g.cfg.MarketTickThreshold
	})

	_ = g.send(ctx, sess, upstream.Command{Name: upstream.CmdCancelMktData, Fields: map[string]interface{}{"tickerId": tickerID}})

	ticks := g.reg.MarketSnapshot(tickerID)
	g.pool.Release(sess)

	if gerr != nil {
		return &MarketResult{Ticks: ticks}, gerr
	}
	return &MarketResult{Ticks: ticks}, nil
}
