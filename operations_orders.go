package gateway

import (
	"context"

	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// OrderListResult is the response body for GET /order.
type OrderListResult struct {
	OpenOrders []mailbox.Order
	Statuses   []mailbox.OrderStatus
}

// GetOpenOrders lists every open order, waiting for openOrderEnd.
func (g *Gateway) GetOpenOrders(ctx context.Context) (*OrderListResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, true)
	if gerr != nil {
		return nil, gerr
	}

	g.reg.ResetOrderList()
	g.reg.ClearError(-1)

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdReqAllOpenOrders}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	// openOrderEnd carries no per-request id of its own; errors during this
	// request are connection-scope (-1).
	_, gerr = g.runWait(sess, -1, g.cfg.PollBudget, g.reg.OrderListComplete)

	_, open, statuses := g.reg.OrderListSnapshot()
	g.pool.Release(sess)

	result := &OrderListResult{OpenOrders: open, Statuses: statuses}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}

// knownContractFields and knownOrderFields enumerate the caller-supplied
// field bag's finite vocabulary, replacing the source's dynamic m_-prefixed
// attribute matching with an explicit mapping.
var knownContractFields = map[string]bool{
	"symbol": true, "secType": true, "exchange": true, "currency": true,
}

var knownOrderFields = map[string]bool{
	"action": true, "totalQuantity": true, "orderType": true, "tif": true,
	"stopPrice": true, "trailingPercent": true,
}

func splitOrderFields(fields map[string]interface{}) (contract, order map[string]interface{}) {
	contract = make(map[string]interface{})
	order = make(map[string]interface{})
	for k, v := range fields {
		if knownContractFields[k] {
			contract[k] = v
		}
		if knownOrderFields[k] {
			order[k] = v
		}
	}
	if _, ok := contract["secType"]; !ok {
		contract["secType"] = "STK"
	}
	if _, ok := contract["exchange"]; !ok {
		contract["exchange"] = "SMART"
	}
	if _, ok := contract["currency"]; !ok {
		contract["currency"] = "USD"
	}
	return contract, order
}

// PlaceOrderResult is the response body for POST/DELETE /order.
type PlaceOrderResult struct {
	OrderID     int64
	OpenOrder   *mailbox.Order
	OrderStatus *mailbox.OrderStatus
	// Error carries an upstream error event observed alongside a status
	// update, e.g. IB's informational "Order Canceled" (code 202) that
	// arrives on a successful cancel. Present only for CancelOrder.
	Error *UpstreamErrorInfo
}

// UpstreamErrorInfo is the optional `error` field in the DELETE /order
// success body.
type UpstreamErrorInfo struct {
	Code    int
	Message string
}

// PlaceOrder submits a new order, or modifies an existing one when fields
// already contains "orderId" (a modify is a place with an explicit id that
// must already exist upstream). A field matching both a Contract and an
// Order attribute populates both.
func (g *Gateway) PlaceOrder(ctx context.Context, fields map[string]interface{}) (*PlaceOrderResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, true)
	if gerr != nil {
		return nil, gerr
	}

	var orderID int64
	if raw, ok := fields["orderId"]; ok {
		orderID = toInt64(raw)
	} else {
		orderID = g.orderAlloc.Next()
	}

	g.reg.ResetOrder(orderID)
	g.reg.ClearError(orderID)

	contractFields, orderFields := splitOrderFields(fields)
	// The Order's embedded client-identifier field is always overridden to
	// the reserved order-client's identifier: the upstream requires every
	// order to originate from the same clientId across its lifetime.
	orderFields["clientId"] = sess.ClientID()

	cmdFields := map[string]interface{}{
		"orderId":  orderID,
		"contract": contractFields,
		"order":    orderFields,
	}

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdPlaceOrder, Fields: cmdFields}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	// placeOrder uses the shorter budget: absence of an error within the
	// window is itself the success signal.
	timedOut, gerr := g.runWait(sess, orderID, g.cfg.PlaceOrderBudget, func() bool {
		return g.reg.OrderHasStatus(orderID)
	})

	openOrder, status := g.reg.OrderSnapshot(orderID)
	g.pool.Release(sess)

	result := &PlaceOrderResult{OrderID: orderID, OpenOrder: openOrder, OrderStatus: status}
	if gerr != nil && gerr.Kind == KindTimeout && timedOut {
		// A timeout with no error is provisional success: return the
		// partial snapshot without surfacing it as a failure.
		return result, nil
	}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}

// CancelOrder cancels orderId. The ErrorSlot is read keyed by the caller's
// explicit orderId, never a sentinel that might not match it.
func (g *Gateway) CancelOrder(ctx context.Context, orderID int64) (*PlaceOrderResult, *GatewayError) {
	sess, gerr := g.acquireAndCheck(ctx, true)
	if gerr != nil {
		return nil, gerr
	}

	g.reg.ClearError(orderID)

	if gerr := g.send(ctx, sess, upstream.Command{Name: upstream.CmdCancelOrder, Fields: map[string]interface{}{"orderId": orderID}}); gerr != nil {
		g.pool.Release(sess)
		return nil, gerr
	}

	_, gerr = g.runWait(sess, orderID, g.cfg.PollBudget, func() bool {
		return g.reg.OrderHasStatus(orderID)
	})

	openOrder, status := g.reg.OrderSnapshot(orderID)
	g.pool.Release(sess)

	result := &PlaceOrderResult{OrderID: orderID, OpenOrder: openOrder, OrderStatus: status}

	// Per the HTTP surface's DELETE /order contract, `error` is an optional
	// part of a 200 body, not necessarily a failure: the upstream's cancel
	// acknowledgement is itself often delivered as an error event (e.g. IB's
	// code 202 "Order Canceled") alongside a genuine orderStatus update. Only
	// surface the error as a hard failure when no status ever arrived.
	if gerr != nil && gerr.Kind == KindUpstreamError {
		result.Error = &UpstreamErrorInfo{Code: gerr.Code, Message: gerr.Message}
		if status != nil {
			return result, nil
		}
		return result, gerr
	}
	if gerr != nil {
		return result, gerr
	}
	return result, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
