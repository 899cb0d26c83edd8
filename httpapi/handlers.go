package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ibgw/gateway"
)

// writeJSON renders v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the {errorMsg, errorCode, id} shape every error response
// renders.
type errorBody struct {
	ErrorMsg  string `json:"errorMsg"`
	ErrorCode *int   `json:"errorCode"`
	ID        int64  `json:"id"`
}

// statusForKind maps a gateway.Kind to its HTTP status. KindTimeout is
// deliberately absent: a timeout is rendered as a 200 with whatever partial
// mailbox contents exist, never as an HTTP error.
func statusForKind(k gateway.Kind) int {
	switch k {
	case gateway.KindPoolExhausted:
		return http.StatusTooManyRequests
	case gateway.KindNotConnected, gateway.KindUpstreamError, gateway.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// writeGatewayError renders a hard failure (every Kind but Timeout, which
// callers handle by still emitting a 200 body).
func writeGatewayError(w http.ResponseWriter, gerr *gateway.GatewayError) {
	var code *int
	if gerr.Code != 0 {
		c := gerr.Code
		code = &c
	}
	writeJSON(w, statusForKind(gerr.Kind), errorBody{ErrorMsg: gerr.Message, ErrorCode: code, ID: gerr.ID})
}

// isHardFailure reports whether gerr should short-circuit the handler with
// an error response rather than a 200 with partial/embedded data.
func isHardFailure(gerr *gateway.GatewayError) bool {
	return gerr != nil && gerr.Kind != gateway.KindTimeout
}

func (a *api) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "symbol is required"})
		return
	}

	res, gerr := a.gw.GetMarket(r.Context(), symbol)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ticks": res.Ticks})
}

func (a *api) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]interface{}, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	if _, ok := fields["symbol"]; !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "symbol query parameter is required"})
		return
	}

	res, gerr := a.gw.GetHistory(r.Context(), fields)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bars": res.Bars})
}

func (a *api) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	res, gerr := a.gw.GetOpenOrders(r.Context())
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"openOrder": res.OpenOrders, "orderStatus": res.Statuses})
}

func (a *api) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "invalid JSON body: " + err.Error()})
		return
	}
	if gerr := validatePlaceOrder(fields); gerr != nil {
		writeGatewayError(w, gerr)
		return
	}

	res, gerr := a.gw.PlaceOrder(r.Context(), fields)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writePlaceOrderResult(w, res)
}

func validatePlaceOrder(fields map[string]interface{}) *gateway.GatewayError {
	required := []string{"orderType", "action", "totalQuantity", "symbol"}
	for _, f := range required {
		if _, ok := fields[f]; !ok {
			return gateway.ErrValidation(f + " is required")
		}
	}
	action, _ := fields["action"].(string)
	switch action {
	case "BUY", "SELL", "SSHORT":
	default:
		return gateway.ErrValidation("action must be one of BUY, SELL, SSHORT")
	}
	return nil
}

func (a *api) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("orderId")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "orderId is required"})
		return
	}
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "orderId must be an integer"})
		return
	}

	res, gerr := a.gw.CancelOrder(r.Context(), orderID)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writePlaceOrderResult(w, res)
}

func writePlaceOrderResult(w http.ResponseWriter, res *gateway.PlaceOrderResult) {
	body := map[string]interface{}{"openOrder": res.OpenOrder, "orderStatus": res.OrderStatus}
	if res.Error != nil {
		body["error"] = map[string]interface{}{"errorCode": res.Error.Code, "errorMsg": res.Error.Message}
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	res, gerr := a.gw.GetPositions(r.Context())
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": res.Positions})
}

// parseAccountSummaryTags unions the repeatable `tag` param with the CSV
// `tags` param, deduplicating, per original_source/app.py's AccountSummary
// resource.
func parseAccountSummaryTags(q map[string][]string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}
	for _, t := range q["tag"] {
		add(t)
	}
	for _, csv := range q["tags"] {
		for _, t := range strings.Split(csv, ",") {
			add(t)
		}
	}
	return out
}

func (a *api) handleGetAccountSummary(w http.ResponseWriter, r *http.Request) {
	tags := parseAccountSummaryTags(r.URL.Query())
	if len(tags) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "at least one tag is required"})
		return
	}
	for _, t := range tags {
		if !gateway.KnownAccountSummaryTags[t] {
			writeJSON(w, http.StatusBadRequest, errorBody{ErrorMsg: "unknown account summary tag: " + t})
			return
		}
	}

	res, gerr := a.gw.GetAccountSummary(r.Context(), tags)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	body := map[string]interface{}{"accountSummaryEnd": gerr == nil}
	for k, v := range res.Tags {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) handleGetAccountUpdate(w http.ResponseWriter, r *http.Request) {
	acctCode := r.URL.Query().Get("acctCode")

	res, gerr := a.gw.GetAccountUpdate(r.Context(), acctCode)
	if isHardFailure(gerr) {
		writeGatewayError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"time": res.Time, "values": res.Values, "portfolio": res.Portfolio,
	})
}

func (a *api) handleListClients(w http.ResponseWriter, r *http.Request) {
	res := a.gw.ListClients()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected": res.Connected, "available": res.Available,
	})
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
