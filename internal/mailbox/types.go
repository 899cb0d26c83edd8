package mailbox

// Bar is one historical-data bar for a tickerId.
type Bar struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Tick is one market-data tick (a single tickPrice or tickSize field) for a
// tickerId.
type Tick struct {
	TickerID int64   `json:"tickerId"`
	Field    int     `json:"field"`
	Price    float64 `json:"price,omitempty"`
	Size     float64 `json:"size,omitempty"`
}

// Order is the openOrder snapshot: embedded contract and order attributes
// are materialized into plain maps so callers never see live upstream
// references.
type Order struct {
	OrderID  int64                  `json:"orderId"`
	Contract map[string]interface{} `json:"contract"`
	Fields   map[string]interface{} `json:"order"`
}

// OrderStatus is the latest orderStatus snapshot for an orderId.
type OrderStatus struct {
	OrderID       int64   `json:"orderId"`
	Status        string  `json:"status"`
	Filled        float64 `json:"filled"`
	Remaining     float64 `json:"remaining"`
	AvgFillPrice  float64 `json:"avgFillPrice"`
}

// Position is one portfolio position, from either the positions stream or
// the account-update portfolio stream.
type Position struct {
	Account  string                 `json:"account"`
	Symbol   string                 `json:"symbol"`
	Contract map[string]interface{} `json:"contract"`
	Quantity float64                `json:"quantity"`
	AvgCost  float64                `json:"avgCost"`
}
