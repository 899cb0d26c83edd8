package gateway

// ClientsResult is the response body for GET /clients.
type ClientsResult struct {
	Connected map[int64]bool
	Available []int64
}

// ListClients reports every clientId's connectedness and which are
// currently free for checkout (original_source/app.py's ClientStates
// resource). No upstream round-trip is made; this reads pool state only.
func (g *Gateway) ListClients() *ClientsResult {
	snap := g.pool.Snapshot()
	return &ClientsResult{Connected: snap.Connected, Available: snap.Available}
}
