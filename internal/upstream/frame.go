package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/ibgw/gateway/internal/mailbox"
)

// The upstream Gateway's own wire codec is out of scope for this module —
// the core consumes a typed event stream and emits typed commands.
// encodeFrame/decodeEvent are the narrow translation layer a Session needs
// to actually put bytes on a socket, not a specification of the upstream
// protocol.

func encodeFrame(cmd Command) ([]byte, error) {
	frame := make(map[string]interface{}, len(cmd.Fields)+1)
	for k, v := range cmd.Fields {
		frame[k] = v
	}
	frame["type"] = cmd.Name
	return json.Marshal(frame)
}

func decodeEvent(raw []byte) (mailbox.Event, error) {
	var frame map[string]interface{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode upstream frame: %w", err)
	}
	kind, _ := frame["type"].(string)

	switch kind {
	case "nextValidId":
		return mailbox.NextValidID{OrderID: asInt64(frame["orderId"])}, nil
	case "managedAccounts":
		accounts, _ := frame["accounts"].([]interface{})
		out := make([]string, 0, len(accounts))
		for _, a := range accounts {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return mailbox.ManagedAccounts{Accounts: out}, nil
	case "historicalData":
		return mailbox.HistoricalData{
			TickerID: asInt64(frame["reqId"]),
			Bar: mailbox.Bar{
				Time:   asString(frame["time"]),
				Open:   asFloat(frame["open"]),
				High:   asFloat(frame["high"]),
				Low:    asFloat(frame["low"]),
				Close:  asFloat(frame["close"]),
				Volume: asFloat(frame["volume"]),
			},
		}, nil
	case "openOrder":
		order, _ := frame["order"].(map[string]interface{})
		contract, _ := frame["contract"].(map[string]interface{})
		return mailbox.OpenOrderEvent{Order: mailbox.Order{
			OrderID:  asInt64(frame["orderId"]),
			Contract: contract,
			Fields:   order,
		}}, nil
	case "orderStatus":
		return mailbox.OrderStatusEventMsg{Status: mailbox.OrderStatus{
			OrderID:      asInt64(frame["orderId"]),
			Status:       asString(frame["status"]),
			Filled:       asFloat(frame["filled"]),
			Remaining:    asFloat(frame["remaining"]),
			AvgFillPrice: asFloat(frame["avgFillPrice"]),
		}}, nil
	case "openOrderEnd":
		return mailbox.OpenOrderEnd{}, nil
	case "position":
		contract, _ := frame["contract"].(map[string]interface{})
		return mailbox.PositionEvent{Position: mailbox.Position{
			Account:  asString(frame["account"]),
			Symbol:   asString(frame["symbol"]),
			Contract: contract,
			Quantity: asFloat(frame["quantity"]),
			AvgCost:  asFloat(frame["avgCost"]),
		}}, nil
	case "positionEnd":
		return mailbox.PositionEnd{}, nil
	case "accountSummary":
		return mailbox.AccountSummaryEvent{
			ReqID: asInt64(frame["reqId"]),
			Tag:   asString(frame["tag"]),
			Value: asString(frame["value"]),
		}, nil
	case "accountSummaryEnd":
		return mailbox.AccountSummaryEnd{ReqID: asInt64(frame["reqId"])}, nil
	case "updateAccountTime":
		return mailbox.UpdateAccountTime{Time: asString(frame["time"])}, nil
	case "updateAccountValue":
		return mailbox.UpdateAccountValue{Key: asString(frame["key"]), Value: asString(frame["value"])}, nil
	case "updatePortfolio":
		contract, _ := frame["contract"].(map[string]interface{})
		return mailbox.UpdateAccountPortfolio{Position: mailbox.Position{
			Account:  asString(frame["account"]),
			Symbol:   asString(frame["symbol"]),
			Contract: contract,
			Quantity: asFloat(frame["quantity"]),
			AvgCost:  asFloat(frame["avgCost"]),
		}}, nil
	case "accountDownloadEnd":
		return mailbox.AccountDownloadEnd{}, nil
	case "tickPrice":
		return mailbox.TickPrice{
			TickerID: asInt64(frame["tickerId"]),
			Field:    int(asFloat(frame["field"])),
			Price:    asFloat(frame["price"]),
		}, nil
	case "tickSize":
		return mailbox.TickSize{
			TickerID: asInt64(frame["tickerId"]),
			Field:    int(asFloat(frame["field"])),
			Size:     asFloat(frame["size"]),
		}, nil
	case "error":
		return mailbox.ErrorEvent{
			ID:      asInt64(frame["id"]),
			Code:    int(asFloat(frame["code"])),
			Message: asString(frame["message"]),
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized upstream event type %q", kind)
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	if n, ok := v.(float64); ok {
		return n
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
