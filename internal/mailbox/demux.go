package mailbox

import "github.com/ibgw/gateway/internal/ids"

// Demux is the sole writer into a Registry. One Demux is bound to a single
// upstream Session and consumes its event channel; per-Connection ordering
// from the upstream is preserved because Dispatch is called serially by the
// session's read loop, never concurrently for the same session. clientID
// identifies that bound session: positions and account-update callbacks
// carry no request id of their own in the upstream protocol, so Demux keys
// those mailboxes by the clientID of the connection they arrived on instead.
type Demux struct {
	reg      *Registry
	orderID  *ids.OrderIDAllocator
	clientID int64
}

// NewDemux binds a Demux to the Registry and OrderIDAllocator it mutates,
// and to the clientID of the Session whose events it will receive.
func NewDemux(reg *Registry, orderID *ids.OrderIDAllocator, clientID int64) *Demux {
	return &Demux{reg: reg, orderID: orderID, clientID: clientID}
}

// Dispatch routes one upstream event into the mailbox(es) that event kind
// belongs to.
func (d *Demux) Dispatch(ev Event) {
	switch e := ev.(type) {
	case NextValidID:
		d.orderID.Advance(e.OrderID)

	case ManagedAccounts:
		d.reg.acctMu.Lock()
		d.reg.managedAccounts = e.Accounts
		d.reg.acctMu.Unlock()

	case HistoricalData:
		d.reg.historyMu.Lock()
		d.reg.history[e.TickerID] = append(d.reg.history[e.TickerID], e.Bar)
		d.reg.historyMu.Unlock()

	case OpenOrderEvent:
		d.reg.orderList.mu.Lock()
		d.reg.orderList.openOrders = append(d.reg.orderList.openOrders, e.Order)
		d.reg.orderList.mu.Unlock()

		d.reg.orderMu.Lock()
		m, ok := d.reg.orders[e.Order.OrderID]
		if !ok {
			m = &orderMailbox{}
			d.reg.orders[e.Order.OrderID] = m
		}
		order := e.Order
		m.openOrder = &order
		d.reg.orderMu.Unlock()

	case OrderStatusEventMsg:
		d.reg.orderList.mu.Lock()
		d.reg.orderList.statuses = append(d.reg.orderList.statuses, e.Status)
		d.reg.orderList.mu.Unlock()

		d.reg.orderMu.Lock()
		m, ok := d.reg.orders[e.Status.OrderID]
		if !ok {
			m = &orderMailbox{}
			d.reg.orders[e.Status.OrderID] = m
		}
		status := e.Status
		m.status = &status
		d.reg.orderMu.Unlock()

	case OpenOrderEnd:
		d.reg.orderList.mu.Lock()
		d.reg.orderList.complete = true
		d.reg.orderList.mu.Unlock()

	case PositionEvent:
		d.reg.positionsMu.Lock()
		entry, ok := d.reg.positions[d.clientID]
		if !ok {
			entry = &positionsEntry{}
			d.reg.positions[d.clientID] = entry
		}
		entry.positions = append(entry.positions, e.Position)
		d.reg.positionsMu.Unlock()

	case PositionEnd:
		d.reg.positionsMu.Lock()
		if entry, ok := d.reg.positions[d.clientID]; ok {
			entry.complete = true
		}
		d.reg.positionsMu.Unlock()

	case AccountSummaryEvent:
		d.reg.acctSummaryMu.Lock()
		entry, ok := d.reg.acctSummary[e.ReqID]
		if !ok {
			entry = &accountSummaryEntry{tags: make(map[string]string)}
			d.reg.acctSummary[e.ReqID] = entry
		}
		entry.tags[e.Tag] = e.Value
		d.reg.acctSummaryMu.Unlock()

	case AccountSummaryEnd:
		d.reg.acctSummaryMu.Lock()
		if entry, ok := d.reg.acctSummary[e.ReqID]; ok {
			entry.complete = true
		}
		d.reg.acctSummaryMu.Unlock()

	case UpdateAccountTime:
		d.reg.acctUpdateMu.Lock()
		d.acctUpdateEntryLocked().time = e.Time
		d.reg.acctUpdateMu.Unlock()

	case UpdateAccountValue:
		d.reg.acctUpdateMu.Lock()
		d.acctUpdateEntryLocked().values[e.Key] = e.Value
		d.reg.acctUpdateMu.Unlock()

	case UpdateAccountPortfolio:
		d.reg.acctUpdateMu.Lock()
		entry := d.acctUpdateEntryLocked()
		entry.portfolio = append(entry.portfolio, e.Position)
		d.reg.acctUpdateMu.Unlock()

	case AccountDownloadEnd:
		d.reg.acctUpdateMu.Lock()
		d.acctUpdateEntryLocked().complete = true
		d.reg.acctUpdateMu.Unlock()

	case TickPrice:
		d.reg.marketMu.Lock()
		d.reg.market[e.TickerID] = append(d.reg.market[e.TickerID], Tick{TickerID: e.TickerID, Field: e.Field, Price: e.Price})
		d.reg.marketMu.Unlock()

	case TickSize:
		d.reg.marketMu.Lock()
		d.reg.market[e.TickerID] = append(d.reg.market[e.TickerID], Tick{TickerID: e.TickerID, Field: e.Field, Size: e.Size})
		d.reg.marketMu.Unlock()

	case ErrorEvent:
		d.reg.errMu.Lock()
		d.reg.errors[e.ID] = &errorInfo{Code: e.Code, Message: e.Message}
		d.reg.errMu.Unlock()
	}
}

// acctUpdateEntryLocked returns this Demux's accountUpdateEntry, creating it
// if ResetAccountUpdate hasn't already (e.g. an update slips in between
// teardown of one request and reset of the next). Caller must hold
// reg.acctUpdateMu.
func (d *Demux) acctUpdateEntryLocked() *accountUpdateEntry {
	entry, ok := d.reg.acctUpdate[d.clientID]
	if !ok {
		entry = &accountUpdateEntry{values: make(map[string]string)}
		d.reg.acctUpdate[d.clientID] = entry
	}
	return entry
}
