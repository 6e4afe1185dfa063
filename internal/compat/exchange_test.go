package compat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"extended-hl-adapter/internal/extended"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func restingStatus(t *testing.T, resp map[string]any, idx int) map[string]any {
	t.Helper()
	statuses := resp["response"].(map[string]any)["data"].(map[string]any)["statuses"].([]any)
	resting, ok := statuses[idx].(map[string]any)["resting"].(map[string]any)
	if !ok {
		t.Fatalf("status %d is not resting: %v", idx, statuses[idx])
	}
	return resting
}

func TestOrderPlacesAndWrapsEnvelope(t *testing.T) {
	var captured map[string]any
	var mu sync.Mutex
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/user/order" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		captured = decodeBody(t, r)
		mu.Unlock()
		writeOK(w, map[string]any{"id": 12345, "externalId": "cl-1"})
	}))

	resp := c.Exchange().Order("BTC", true, 0.5, 50000, nil, false, "cl-1", nil)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v (%v)", resp["status"], resp["response"])
	}
	resting := restingStatus(t, resp, 0)
	if resting["oid"] != int64(12345) || resting["cloid"] != "cl-1" {
		t.Fatalf("resting = %v", resting)
	}

	mu.Lock()
	defer mu.Unlock()
	if captured["market"] != "BTC-USD" || captured["side"] != "BUY" {
		t.Errorf("market/side = %v/%v", captured["market"], captured["side"])
	}
	if captured["qty"] != "0.5" || captured["price"] != "50000" {
		t.Errorf("qty/price = %v/%v", captured["qty"], captured["price"])
	}
	if captured["timeInForce"] != "GTT" || captured["postOnly"] != false {
		t.Errorf("tif/postOnly = %v/%v", captured["timeInForce"], captured["postOnly"])
	}
}

func TestOrderAloBecomesPostOnly(t *testing.T) {
	var postOnly atomic.Bool
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		postOnly.Store(body["postOnly"] == true && body["timeInForce"] == "GTT")
		writeOK(w, map[string]any{"id": 1, "externalId": "x"})
	}))

	orderType := map[string]any{"limit": map[string]any{"tif": "Alo"}}
	resp := c.Exchange().Order("BTC", true, 1, 50000, orderType, false, "", nil)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v", resp["status"])
	}
	if !postOnly.Load() {
		t.Fatal("Alo should submit a post-only GTT order")
	}
}

func TestOrderValidationFailsBeforeIO(t *testing.T) {
	var hits atomic.Int64
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeOK(w, map[string]any{"id": 1})
	}))

	resp := c.Exchange().Order("BTC", true, 0.123456789, 50000, nil, false, "", nil)
	if resp["status"] != "err" {
		t.Fatalf("status = %v", resp["status"])
	}
	msg, _ := resp["response"].(string)
	if !strings.Contains(msg, "float_to_wire") {
		t.Fatalf("response = %q", msg)
	}
	if hits.Load() != 0 {
		t.Fatalf("validation failure still hit the API %d times", hits.Load())
	}
}

func TestOrderUpstreamRejectionBecomesErrEnvelope(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFault(w, http.StatusBadRequest, 1120, "order would cross")
	}))

	resp := c.Exchange().Order("BTC", true, 1, 50000, nil, false, "", nil)
	if resp["status"] != "err" {
		t.Fatalf("status = %v", resp["status"])
	}
	if resp["response"] != "[400] order would cross" {
		t.Fatalf("response = %v", resp["response"])
	}
}

func TestCancelValidatesBeforeIO(t *testing.T) {
	var hits atomic.Int64
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeOK(w, nil)
	}))

	_, err := c.Exchange().Cancel("BTC", 0, "")
	var verr *extended.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("validation failure still hit the API %d times", hits.Load())
	}
}

func TestCancelByOid(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/user/order/777" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeOK(w, nil)
	}))

	resp, err := c.Exchange().Cancel("BTC", 777, "")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	statuses := resp["response"].(map[string]any)["data"].(map[string]any)["statuses"].([]any)
	if len(statuses) != 1 || statuses[0] != "success" {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestCancelByCloid(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/order" || r.URL.Query().Get("externalId") != "cl-9" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		writeOK(w, nil)
	}))

	resp, err := c.Exchange().CancelByCloid("BTC", "cl-9")
	if err != nil {
		t.Fatalf("CancelByCloid: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status = %v", resp["status"])
	}
}

func TestCancelUpstreamFailureBecomesErrEnvelope(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFault(w, http.StatusNotFound, 404, "order not found")
	}))

	resp, err := c.Exchange().Cancel("BTC", 42, "")
	if err != nil {
		t.Fatalf("Cancel returned error instead of envelope: %v", err)
	}
	if resp["status"] != "err" || resp["response"] != "[404] order not found" {
		t.Fatalf("envelope = %v", resp)
	}
}

func TestBulkOrdersPartialFailure(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		switch body["id"] {
		case "ok-1":
			writeOK(w, map[string]any{"id": 1, "externalId": "ok-1"})
		case "bad-1":
			writeFault(w, http.StatusBadRequest, 400, "rejected")
		default:
			t.Errorf("unexpected order id %v", body["id"])
			writeFault(w, http.StatusBadRequest, 400, "unknown order")
		}
	}))

	resp := c.Exchange().BulkOrders([]OrderSpec{
		{Name: "BTC", IsBuy: true, Sz: 1, LimitPx: 50000, Cloid: "ok-1"},
		{Name: "BTC", IsBuy: false, Sz: 1, LimitPx: 50000, Cloid: "bad-1"},
	}, nil)

	if resp["status"] != "ok" {
		t.Fatalf("outer status = %v", resp["status"])
	}
	statuses := resp["response"].(map[string]any)["data"].(map[string]any)["statuses"].([]any)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	resting := restingStatus(t, resp, 0)
	if resting["oid"] != int64(1) {
		t.Errorf("first order = %v", resting)
	}
	errStatus := statuses[1].(map[string]any)
	if errStatus["error"] != "[400] rejected" {
		t.Errorf("second order = %v", errStatus)
	}
}

func TestBulkCancelGroupsIDs(t *testing.T) {
	var captured map[string]any
	var mu sync.Mutex
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/order/massCancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		mu.Lock()
		captured = decodeBody(t, r)
		mu.Unlock()
		writeOK(w, nil)
	}))

	resp := c.Exchange().BulkCancel([]CancelSpec{
		{Coin: "BTC", Oid: 1},
		{Coin: "BTC", Oid: 2},
		{Coin: "ETH", Cloid: "c3"},
	})

	statuses := resp["response"].(map[string]any)["data"].(map[string]any)["statuses"].([]any)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	mu.Lock()
	defer mu.Unlock()
	ids := captured["orderIds"].([]any)
	if len(ids) != 2 || ids[0] != float64(1) || ids[1] != float64(2) {
		t.Errorf("orderIds = %v", ids)
	}
	cloids := captured["externalOrderIds"].([]any)
	if len(cloids) != 1 || cloids[0] != "c3" {
		t.Errorf("externalOrderIds = %v", cloids)
	}
}

func TestUpdateLeverage(t *testing.T) {
	var captured map[string]any
	var mu sync.Mutex
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/user/leverage" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		captured = decodeBody(t, r)
		mu.Unlock()
		writeOK(w, nil)
	}))

	resp := c.Exchange().UpdateLeverage(10, "BTC", false)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v (%v)", resp["status"], resp["response"])
	}
	if resp["response"].(map[string]any)["type"] != "leverage" {
		t.Fatalf("response = %v", resp["response"])
	}
	mu.Lock()
	defer mu.Unlock()
	if captured["market"] != "BTC-USD" || captured["leverage"] != "10" {
		t.Errorf("payload = %v", captured)
	}
}

func TestMarketOpenDerivesIOCPrice(t *testing.T) {
	var captured map[string]any
	var mu sync.Mutex
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/markets":
			writeOK(w, []map[string]any{{
				"name":   "BTC-USD",
				"active": true,
				"tradingConfig": map[string]any{
					"minPriceChange":     "0.1",
					"minOrderSizeChange": "0.001",
				},
			}})
		case "/info/markets/BTC-USD/stats":
			writeOK(w, map[string]any{"markPrice": "50000"})
		case "/info/markets/BTC-USD/orderbook":
			writeOK(w, map[string]any{
				"market": "BTC-USD",
				"bid":    []map[string]any{{"price": "49990", "qty": "1"}},
				"ask":    []map[string]any{{"price": "50010", "qty": "1"}},
			})
		case "/user/order":
			mu.Lock()
			captured = decodeBody(t, r)
			mu.Unlock()
			writeOK(w, map[string]any{"id": 9, "externalId": "mo-1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	resp := c.Exchange().MarketOpen("BTC", true, 0.5, 0, 0.01, "mo-1", nil)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v (%v)", resp["status"], resp["response"])
	}
	mu.Lock()
	defer mu.Unlock()
	if captured["price"] != "50510.1" {
		t.Errorf("derived price = %v", captured["price"])
	}
	if captured["timeInForce"] != "IOC" || captured["side"] != "BUY" {
		t.Errorf("tif/side = %v/%v", captured["timeInForce"], captured["side"])
	}
}

func TestMarketOpenUsesGivenPrice(t *testing.T) {
	var bookHits atomic.Int64
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/info/") {
			bookHits.Add(1)
			writeOK(w, nil)
			return
		}
		body := decodeBody(t, r)
		if body["price"] != "48000" {
			t.Errorf("price = %v", body["price"])
		}
		writeOK(w, map[string]any{"id": 5, "externalId": "x"})
	}))

	resp := c.Exchange().MarketOpen("BTC", true, 1, 48000, 0, "", nil)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v (%v)", resp["status"], resp["response"])
	}
	if bookHits.Load() != 0 {
		t.Fatalf("explicit price still fetched market data %d times", bookHits.Load())
	}
}

func TestMarketCloseNoPosition(t *testing.T) {
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/positions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeOK(w, []map[string]any{})
	}))

	resp := c.Exchange().MarketClose("BTC", 0, 47000, 0, "", nil)
	if resp["status"] != "err" {
		t.Fatalf("status = %v", resp["status"])
	}
	if resp["response"] != "No open position found for BTC" {
		t.Fatalf("response = %v", resp["response"])
	}
}

func TestMarketCloseShortBuysBack(t *testing.T) {
	var captured map[string]any
	var mu sync.Mutex
	c, _ := newFacade(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/positions":
			if r.URL.Query().Get("market") != "BTC-USD" {
				t.Errorf("positions query = %s", r.URL.RawQuery)
			}
			writeOK(w, []map[string]any{{
				"market": "BTC-USD",
				"side":   "SHORT",
				"size":   "0.5",
				"value":  "25000",
			}})
		case "/user/order":
			mu.Lock()
			captured = decodeBody(t, r)
			mu.Unlock()
			writeOK(w, map[string]any{"id": 11, "externalId": "mc-1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	resp := c.Exchange().MarketClose("BTC", 0, 47000, 0, "", nil)
	if resp["status"] != "ok" {
		t.Fatalf("status = %v (%v)", resp["status"], resp["response"])
	}
	mu.Lock()
	defer mu.Unlock()
	if captured["side"] != "BUY" {
		t.Errorf("close side = %v", captured["side"])
	}
	if captured["qty"] != "0.5" {
		t.Errorf("close qty = %v", captured["qty"])
	}
	if captured["reduceOnly"] != true || captured["timeInForce"] != "IOC" {
		t.Errorf("flags = %v/%v", captured["reduceOnly"], captured["timeInForce"])
	}
}
