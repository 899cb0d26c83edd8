package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/ibgw/gateway/internal/mailbox"
)

func newTestGateway(t *testing.T, fake *fakeUpstream, poolSize int) *Gateway {
	t.Helper()
	host, port := fake.hostPort(t)
	gw, err := New(WithUpstream(host, port), WithPoolSize(poolSize), WithPollBudget(6))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gw.Start()
	t.Cleanup(gw.Close)
	return gw
}

// GetMarket: GET /market/AAPL with 5 injected tickPrice events
// returns 5 ticks and a matching cancelMktData is observed upstream.
func TestScenario_GetMarket_FiveTicksAndTeardown(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	fake.on("reqMktData", func(cmd map[string]interface{}, reply func(map[string]interface{})) {
		tickerID := cmd["tickerId"]
		for i := 0; i < 5; i++ {
			reply(map[string]interface{}{"type": "tickPrice", "tickerId": tickerID, "field": 4, "price": 150.0})
		}
	})

	gw := newTestGateway(t, fake, 2)

	res, gerr := gw.GetMarket(context.Background(), "AAPL")
	if gerr != nil {
		t.Fatalf("GetMarket returned error: %+v", gerr)
	}
	if len(res.Ticks) != 5 {
		t.Fatalf("got %d ticks, want 5", len(res.Ticks))
	}

	eventuallyTrue(t, time.Second, func() bool { return fake.sawCommand("cancelMktData") })
}

// PlaceOrder: POST /order with nextValidId=42 seeded and an
// injected orderStatus(id=42, status=PreSubmitted) returns orderId=42 with
// that status, and nextOrderId advances to 43.
func TestScenario_PlaceOrder_UsesSeededNextValidID(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	fake.on("placeOrder", func(cmd map[string]interface{}, reply func(map[string]interface{})) {
		reply(map[string]interface{}{"type": "orderStatus", "orderId": cmd["orderId"], "status": "PreSubmitted"})
	})

	gw := newTestGateway(t, fake, 2)

	// Seed nextValidId=42 the way the upstream would on connect. Any
	// session's demux works here: NextValidID advances the shared allocator
	// and isn't clientId-keyed.
	gw.demuxs[gw.orderClientID].Dispatch(mailbox.NextValidID{OrderID: 42})

	res, gerr := gw.PlaceOrder(context.Background(), map[string]interface{}{
		"orderType": "MKT", "action": "BUY", "totalQuantity": 100, "symbol": "AAPL",
	})
	if gerr != nil {
		t.Fatalf("PlaceOrder returned error: %+v", gerr)
	}
	if res.OrderID != 42 {
		t.Fatalf("OrderID = %d, want 42", res.OrderID)
	}
	if res.OrderStatus == nil || res.OrderStatus.Status != "PreSubmitted" {
		t.Fatalf("OrderStatus = %+v, want PreSubmitted", res.OrderStatus)
	}
	if next := gw.orderAlloc.Peek(); next != 43 {
		t.Fatalf("nextOrderId = %d, want 43", next)
	}
}

// CancelOrder: DELETE /order?orderId=42 with both an error(code=202)
// and an orderStatus(Cancelled) for id 42 returns 200 with the status and
// the embedded error, per the DELETE /order success body contract.
func TestScenario_CancelOrder_StatusAndInformationalErrorBothSurface(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	fake.on("cancelOrder", func(cmd map[string]interface{}, reply func(map[string]interface{})) {
		reply(map[string]interface{}{"type": "error", "id": cmd["orderId"], "code": 202, "message": "Order Canceled"})
		reply(map[string]interface{}{"type": "orderStatus", "orderId": cmd["orderId"], "status": "Cancelled"})
	})

	gw := newTestGateway(t, fake, 2)

	res, gerr := gw.CancelOrder(context.Background(), 42)
	if gerr != nil {
		t.Fatalf("CancelOrder returned error: %+v", gerr)
	}
	if res.OrderStatus == nil || res.OrderStatus.Status != "Cancelled" {
		t.Fatalf("OrderStatus = %+v, want Cancelled", res.OrderStatus)
	}
	if res.Error == nil || res.Error.Code != 202 {
		t.Fatalf("Error = %+v, want code 202", res.Error)
	}
}

// GetAccountSummary: GET /account/summary?tag=NetLiquidation&tag=BuyingPower
// returns both tags and observes cancelAccountSummary.
func TestScenario_GetAccountSummary_TagsAndTeardown(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	fake.on("reqAccountSummary", func(cmd map[string]interface{}, reply func(map[string]interface{})) {
		reqID := cmd["reqId"]
		reply(map[string]interface{}{"type": "accountSummary", "reqId": reqID, "tag": "NetLiquidation", "value": "100000"})
		reply(map[string]interface{}{"type": "accountSummary", "reqId": reqID, "tag": "BuyingPower", "value": "50000"})
		reply(map[string]interface{}{"type": "accountSummaryEnd", "reqId": reqID})
	})

	gw := newTestGateway(t, fake, 2)

	res, gerr := gw.GetAccountSummary(context.Background(), []string{"NetLiquidation", "BuyingPower"})
	if gerr != nil {
		t.Fatalf("GetAccountSummary returned error: %+v", gerr)
	}
	if res.Tags["NetLiquidation"] != "100000" || res.Tags["BuyingPower"] != "50000" {
		t.Fatalf("Tags = %+v", res.Tags)
	}
	eventuallyTrue(t, time.Second, func() bool { return fake.sawCommand("cancelAccountSummary") })
}

// GetMarket: pool drained, no release within budget -> 429-class
// PoolExhausted with id -2.
func TestScenario_GetMarket_PoolExhausted(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	// poolSize=2 means exactly one non-reserved read client; hold it, then
	// a second concurrent GetMarket call must observe PoolExhausted.
	gw := newTestGateway(t, fake, 2)

	sess, err := gw.pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("priming Acquire: %v", err)
	}
	defer gw.pool.Release(sess)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, gerr := gw.GetMarket(ctx, "AAPL")
	if gerr == nil || gerr.Kind != KindPoolExhausted || gerr.ID != -2 {
		t.Fatalf("gerr = %+v, want PoolExhausted id -2", gerr)
	}
}

// Reset-before-send: reading the target mailbox immediately after a
// request is issued and before any event arrives yields the empty
// baseline, never a prior request's leftovers.
func TestProperty_ResetBeforeSend_NoLeakageAcrossRequests(t *testing.T) {
	fake := newFakeUpstream(t)
	defer fake.close()

	fake.on("reqMktData", func(cmd map[string]interface{}, reply func(map[string]interface{})) {
		reply(map[string]interface{}{"type": "tickPrice", "tickerId": cmd["tickerId"], "field": 4, "price": 1})
	})

	gw := newTestGateway(t, fake, 2)

	// One tick is below the 5-tick threshold, so each call runs out its
	// budget and returns a timeout alongside the partial ticks.
	first, gerr := gw.GetMarket(context.Background(), "AAPL")
	if gerr == nil || gerr.Kind != KindTimeout {
		t.Fatalf("first GetMarket: gerr = %+v, want a timeout", gerr)
	}
	if len(first.Ticks) != 1 {
		t.Fatalf("first ticks = %d, want 1", len(first.Ticks))
	}

	// A distinct tickerId is allocated per call, so the second call's
	// mailbox must start empty regardless of the first call's contents.
	second, gerr := gw.GetMarket(context.Background(), "MSFT")
	if gerr == nil || gerr.Kind != KindTimeout {
		t.Fatalf("second GetMarket: gerr = %+v, want a timeout", gerr)
	}
	if len(second.Ticks) != 1 {
		t.Fatalf("second ticks = %d, want 1 (no leakage from first request)", len(second.Ticks))
	}
}
