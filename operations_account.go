package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// AccountSummaryResult is the response body for GET /account/summary.
type AccountSummaryResult struct {
	Tags map[string]string
}

// KnownAccountSummaryTags is the closed vocabulary §6 allows for the tag/
// tags query parameters.
var KnownAccountSummaryTags = map[string]bool{
	"AccountType": true, "NetLiquidation": true, "TotalCashValue": true,
	"SettledCash": true, "AccruedCash": true, "BuyingPower": true,
	"EquityWithLoanValue": true, "PreviousDayEquityWithLoanValue": true,
	"GrossPositionValue": true, "RegTEquity": true, "RegTMargin": true,
	"SMA": true, "InitMarginReq": true, "MaintMarginReq": true,
	"AvailableFunds": true, "ExcessLiquidity": true, "Cushion": true,
	"FullInitMarginReq": true, "FullMaintMarginReq": true,
	"FullAvailableFunds": true, "FullExcessLiquidity": true,
	"LookAheadNextChange": true, "LookAheadInitMarginReq": true,
	"LookAheadMaintMarginReq": true, "LookAheadAvailableFunds": true,
	"LookAheadExcessLiquidity": true, "HighestSeverity": true,
	"DayTradesRemaining": true, "Leverage": true,
}

// GetAccountSummary requests the given tags, keying the singleton
// AccountSummaryMailbox by the acquiring clientId, avoiding the race two
// concurrent callers sharing one singleton mailbox would hit.
func (g *Gateway) GetAccountSummary(ctx context.Context, tags []string) (*AccountSummaryResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, false)
	if gerr != nil {
		return nil, gerr
	}

	reqID := sess.ClientID()
	g.reg.ResetAccountSummary(reqID)
	g.reg.ClearError(reqID)

	if gerr := g.send(ctx, sess, upstream.Command{
		Name: upstream.CmdReqAccountSummary,
		Fields: map[string]interface{}{
			"reqId": reqID,
			"group": "All",
			"tags":  tags,
		},
	}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, reqID, g.cfg.PollBudget, func() bool {
		return g.reg.AccountSummaryComplete(reqID)
	})

	_ = g.send(ctx, sess, upstream.Command{Name: upstream.CmdCancelAccountSummary, Fields: map[string]interface{}{"reqId": reqID}})

	_, snapshot := g.reg.AccountSummarySnapshot(reqID)
	g.pool.Release(sess)

	result := &AccountSummaryResult{Tags: snapshot}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}

// AccountUpdateResult is the response body for GET /account/update.
type AccountUpdateResult struct {
	Time      string
	Values    map[string]string
	Portfolio []mailbox.Position
}

// GetAccountUpdate subscribes to account-update events for acctCode (or the
// first managed account if acctCode is blank, per
// original_source/globals.py's implicit single-account assumption), waits
// for accountDownloadEnd, and tears down with the dedicated
// cancelAccountUpdates call, not cancelAccountSummary: the two subscriptions
// are independent and only the matching cancel actually unwinds this one.
// Like GetAccountSummary, the mailbox is keyed by the acquiring clientId:
// accountUpdate callbacks carry no reqId of their own, so two concurrent
// callers on different read clients would otherwise clobber one singleton.
func (g *Gateway) GetAccountUpdate(ctx context.Context, acctCode string) (*AccountUpdateResult, *GatewayError) {
	if acctCode == "" {
		if accts := g.ManagedAccounts(); len(accts) > 0 {
			acctCode = accts[0]
		}
	}

	sess, gerr := g.acquireAndCheck(ctx, false)
	if gerr != nil {
		return nil, gerr
	}

	clientID := sess.ClientID()
	g.reg.ResetAccountUpdate(clientID)
	g.reg.ClearError(clientID)

	if gerr := g.send(ctx, sess, upstream.Command{
		Name:   upstream.CmdReqAccountUpdates,
		Fields: map[string]interface{}{"subscribe": true, "acctCode": acctCode},
	}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, clientID, g.cfg.PollBudget, func() bool {
		return g.reg.AccountUpdateComplete(clientID)
	})

	_ = g.send(ctx, sess, upstream.Command{
		Name:   upstream.CmdCancelAccountUpdates,
		Fields: map[string]interface{}{"subscribe": false, "acctCode": acctCode},
	})

	_, t, values, portfolio := g.reg.AccountUpdateSnapshot(clientID)
	g.pool.Release(sess)

	result := &AccountUpdateResult{Time: t, Values: values, Portfolio: portfolio}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}
