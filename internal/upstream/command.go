package upstream

// Command is a typed outbound request to the upstream Gateway. The core
// never constructs raw wire bytes; it builds a Command and hands it to a
// Session, which owns the on-the-wire encoding.
type Command struct {
	Name   string
	Fields map[string]interface{}
}

// Common command names the gateway issues. These mirror the upstream
// Gateway's own request names so that request operations and the
// demultiplexer's routing table read as two halves of one protocol.
const (
	CmdReqHistoricalData    = "reqHistoricalData"
	CmdCancelHistoricalData = "cancelHistoricalData"
	CmdReqAllOpenOrders     = "reqAllOpenOrders"
	CmdPlaceOrder           = "placeOrder"
	CmdCancelOrder          = "cancelOrder"
	CmdReqPositions         = "reqPositions"
	CmdCancelPositions      = "cancelPositions"
	CmdReqAccountSummary    = "reqAccountSummary"
	CmdCancelAccountSummary = "cancelAccountSummary"
	CmdReqAccountUpdates    = "reqAccountUpdates"
	CmdCancelAccountUpdates = "cancelAccountUpdates"
	CmdReqMktData           = "reqMktData"
	CmdCancelMktData        = "cancelMktData"
)
