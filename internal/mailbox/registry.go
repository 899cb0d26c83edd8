// Package mailbox holds the per-request response accumulators (spec
// "RequestMailbox" variants) and the Demux that is the sole writer into
// them. Registry is owned by a Gateway and shared across all in-flight
// requests; callers reset the relevant mailbox before sending an upstream
// command and read a snapshot after the wait primitive resolves.
package mailbox

import "sync"

// orderListMailbox is the singleton OrderListMailbox.
type orderListMailbox struct {
	mu         sync.Mutex
	complete   bool
	openOrders []Order
	statuses   []OrderStatus
}

// orderMailbox is one OrderMailbox entry, keyed by orderId.
type orderMailbox struct {
	openOrder *Order
	status    *OrderStatus
}

// positionsEntry is one PositionsMailbox entry, keyed by the acquiring
// clientId: two concurrent GET /account/positions callers land on different
// read clients and must not clobber each other's in-flight accumulation.
type positionsEntry struct {
	complete  bool
	positions []Position
}

// accountSummaryEntry is one AccountSummaryMailbox entry, keyed by clientId.
type accountSummaryEntry struct {
	complete bool
	tags     map[string]string
}

// accountUpdateEntry is one AccountUpdateMailbox entry, keyed by the
// acquiring clientId for the same reason as positionsEntry.
type accountUpdateEntry struct {
	complete  bool
	time      string
	values    map[string]string
	portfolio []Position
}

// errorInfo is one ErrorSlot entry.
type errorInfo struct {
	Code    int
	Message string
}

// Registry owns every mailbox variant plus the identifier-adjacent process
// state (managedAccounts) that the demultiplexer also mutates.
type Registry struct {
	orderList orderListMailbox

	orderMu sync.Mutex
	orders  map[int64]*orderMailbox

	positionsMu sync.Mutex
	positions   map[int64]*positionsEntry

	acctSummaryMu sync.Mutex
	acctSummary   map[int64]*accountSummaryEntry

	acctUpdateMu sync.Mutex
	acctUpdate   map[int64]*accountUpdateEntry

	historyMu sync.Mutex
	history   map[int64][]Bar

	marketMu sync.Mutex
	market   map[int64][]Tick

	errMu  sync.Mutex
	errors map[int64]*errorInfo

	acctMu          sync.Mutex
	managedAccounts []string
}

// NewRegistry returns an empty Registry with every mailbox at its baseline.
func NewRegistry() *Registry {
	return &Registry{
		orders:      make(map[int64]*orderMailbox),
		positions:   make(map[int64]*positionsEntry),
		acctSummary: make(map[int64]*accountSummaryEntry),
		acctUpdate:  make(map[int64]*accountUpdateEntry),
		history:     make(map[int64][]Bar),
		market:      make(map[int64][]Tick),
		errors:      make(map[int64]*errorInfo),
	}
}

// --- reset-before-send API (one per request operation) ---

func (r *Registry) ResetOrderList() {
	r.orderList.mu.Lock()
	defer r.orderList.mu.Unlock()
	r.orderList.complete = false
	r.orderList.openOrders = nil
	r.orderList.statuses = nil
}

func (r *Registry) ResetOrder(orderID int64) {
	r.orderMu.Lock()
	defer r.orderMu.Unlock()
	r.orders[orderID] = &orderMailbox{}
}

// ResetPositions starts a fresh accumulation for clientID, the session that
// is about to send reqPositions. Keying by clientID (rather than a single
// shared mailbox) keeps two concurrent GetPositions calls on different read
// clients from clobbering each other's in-flight accumulation.
func (r *Registry) ResetPositions(clientID int64) {
	r.positionsMu.Lock()
	defer r.positionsMu.Unlock()
	r.positions[clientID] = &positionsEntry{}
}

func (r *Registry) ResetAccountSummary(clientID int64) {
	r.acctSummaryMu.Lock()
	defer r.acctSummaryMu.Unlock()
	r.acctSummary[clientID] = &accountSummaryEntry{tags: make(map[string]string)}
}

// ResetAccountUpdate starts a fresh accumulation for clientID, for the same
// reason as ResetPositions.
func (r *Registry) ResetAccountUpdate(clientID int64) {
	r.acctUpdateMu.Lock()
	defer r.acctUpdateMu.Unlock()
	r.acctUpdate[clientID] = &accountUpdateEntry{values: make(map[string]string)}
}

func (r *Registry) ResetHistory(tickerID int64) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	delete(r.history, tickerID)
}

func (r *Registry) ResetMarket(tickerID int64) {
	r.marketMu.Lock()
	defer r.marketMu.Unlock()
	delete(r.market, tickerID)
}

func (r *Registry) ClearError(id int64) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	delete(r.errors, id)
}

// GetError returns the ErrorSlot entry for id, if one has been populated.
func (r *Registry) GetError(id int64) (code int, message string, ok bool) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	e, ok := r.errors[id]
	if !ok {
		return 0, "", false
	}
	return e.Code, e.Message, true
}

// --- snapshot API (read after wait resolves) ---

func (r *Registry) OrderListSnapshot() (complete bool, openOrders []Order, statuses []OrderStatus) {
	r.orderList.mu.Lock()
	defer r.orderList.mu.Unlock()
	return r.orderList.complete, append([]Order(nil), r.orderList.openOrders...), append([]OrderStatus(nil), r.orderList.statuses...)
}

func (r *Registry) OrderSnapshot(orderID int64) (openOrder *Order, status *OrderStatus) {
	r.orderMu.Lock()
	defer r.orderMu.Unlock()
	m, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	return m.openOrder, m.status
}

func (r *Registry) PositionsSnapshot(clientID int64) (complete bool, positions []Position) {
	r.positionsMu.Lock()
	defer r.positionsMu.Unlock()
	e, ok := r.positions[clientID]
	if !ok {
		return false, nil
	}
	return e.complete, append([]Position(nil), e.positions...)
}

func (r *Registry) AccountSummarySnapshot(clientID int64) (complete bool, tags map[string]string) {
	r.acctSummaryMu.Lock()
	defer r.acctSummaryMu.Unlock()
	e, ok := r.acctSummary[clientID]
	if !ok {
		return false, nil
	}
	out := make(map[string]string, len(e.tags))
	for k, v := range e.tags {
		out[k] = v
	}
	return e.complete, out
}

func (r *Registry) AccountUpdateSnapshot(clientID int64) (complete bool, t string, values map[string]string, portfolio []Position) {
	r.acctUpdateMu.Lock()
	defer r.acctUpdateMu.Unlock()
	e, ok := r.acctUpdate[clientID]
	if !ok {
		return false, "", nil, nil
	}
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return e.complete, e.time, out, append([]Position(nil), e.portfolio...)
}

func (r *Registry) HistorySnapshot(tickerID int64) []Bar {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	return append([]Bar(nil), r.history[tickerID]...)
}

func (r *Registry) MarketSnapshot(tickerID int64) []Tick {
	r.marketMu.Lock()
	defer r.marketMu.Unlock()
	return append([]Tick(nil), r.market[tickerID]...)
}

func (r *Registry) ManagedAccounts() []string {
	r.acctMu.Lock()
	defer r.acctMu.Unlock()
	return append([]string(nil), r.managedAccounts...)
}

// --- completion predicates (used by internal/waiter) ---

func (r *Registry) OrderListComplete() bool {
	r.orderList.mu.Lock()
	defer r.orderList.mu.Unlock()
	return r.orderList.complete
}

func (r *Registry) OrderHasStatus(orderID int64) bool {
	r.orderMu.Lock()
	defer r.orderMu.Unlock()
	m, ok := r.orders[orderID]
	return ok && m.status != nil
}

func (r *Registry) PositionsComplete(clientID int64) bool {
	r.positionsMu.Lock()
	defer r.positionsMu.Unlock()
	e, ok := r.positions[clientID]
	return ok && e.complete
}

func (r *Registry) AccountSummaryComplete(clientID int64) bool {
	r.acctSummaryMu.Lock()
	defer r.acctSummaryMu.Unlock()
	e, ok := r.acctSummary[clientID]
	return ok && e.complete
}

func (r *Registry) AccountUpdateComplete(clientID int64) bool {
	r.acctUpdateMu.Lock()
	defer r.acctUpdateMu.Unlock()
	e, ok := r.acctUpdate[clientID]
	return ok && e.complete
}

func (r *Registry) HistoryNonEmpty(tickerID int64) bool {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	return len(r.history[tickerID]) > 0
}

func (r *Registry) MarketTickCount(tickerID int64) int {
	r.marketMu.Lock()
	defer r.marketMu.Unlock()
	return len(r.market[tickerID])
}
