// Package httpapi is the external surface adapter: HTTP routing, argument
// parsing, and JSON rendering around a *gateway.Gateway. It is not part of
// the correlation-engine core; it is the one concrete HTTP adapter this
// module ships.
package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ibgw/gateway"
)

// api holds the dependencies every handler needs.
type api struct {
	gw  *gateway.Gateway
	log zerolog.Logger
}

// NewServer builds an *http.Server wired to every gateway endpoint, plus
// the /healthz liveness probe.
func NewServer(addr string, gw *gateway.Gateway, log zerolog.Logger) *http.Server {
	a := &api{gw: gw, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /market/{symbol}", a.handleGetMarket)
	mux.HandleFunc("GET /history", a.handleGetHistory)
	mux.HandleFunc("GET /order", a.handleGetOpenOrders)
	mux.HandleFunc("POST /order", a.handlePlaceOrder)
	mux.HandleFunc("DELETE /order", a.handleCancelOrder)
	mux.HandleFunc("GET /account/positions", a.handleGetPositions)
	mux.HandleFunc("GET /account/summary", a.handleGetAccountSummary)
	mux.HandleFunc("GET /account/update", a.handleGetAccountUpdate)
	mux.HandleFunc("GET /clients", a.handleListClients)
	mux.HandleFunc("GET /healthz", a.handleHealthz)

	return &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// withMiddleware stamps each request with a correlation id and logs it,
// grounded on the teacher's middleware/http.go RoundTripper-chaining idiom
// applied to http.Handler instead of http.RoundTripper.
func withMiddleware(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		l := log.With().Str("requestId", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()

		start := time.Now()
		l.Debug().Msg("request received")
		next.ServeHTTP(w, r)
		l.Debug().Dur("elapsed", time.Since(start)).Msg("request handled")
	})
}
