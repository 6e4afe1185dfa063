package recorder

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// fillFromMap reads a fill from either wire shape: the adapter's info
// surface renders Hyperliquid keys (px, sz, oid, tid, time, side "B"/"A")
// with decimal strings, while stream frames carry Extended trade objects
// (price, qty, orderId, id, createdTime, side "BUY"/"SELL"). The market
// argument fills in when the map has no market of its own.
func fillFromMap(market string, m map[string]any) (Fill, bool) {
	ts := int64FromMap(m, "time", "createdTime")
	tid := int64FromMap(m, "tid", "id")
	price := floatFromMap(m, "px", "price")
	if ts <= 0 || tid == 0 || price <= 0 {
		return Fill{}, false
	}
	if name := stringFromMap(m, "market"); name != "" {
		market = name
	}
	return Fill{
		Time:        time.UnixMilli(ts).UTC(),
		Market:      market,
		Side:        sideName(stringFromMap(m, "side")),
		Price:       price,
		Size:        floatFromMap(m, "sz", "qty"),
		Fee:         floatFromMap(m, "fee"),
		OrderID:     int64FromMap(m, "oid", "orderId"),
		TradeID:     tid,
		Crossed:     boolFromMap(m, "crossed", "isTaker"),
		Liquidation: boolFromMap(m, "liquidation") || strings.EqualFold(stringFromMap(m, "tradeType"), "LIQUIDATION"),
	}, true
}

// snapshotFromUserState reads the margin figures out of a clearinghouse
// state map as served by the info surface.
func snapshotFromUserState(now time.Time, userState map[string]any) (AccountSnapshot, bool) {
	summary, ok := toMap(userState["marginSummary"])
	if !ok {
		return AccountSnapshot{}, false
	}
	return AccountSnapshot{
		Time:         now,
		Equity:       floatFromMap(summary, "accountValue"),
		Balance:      floatFromMap(summary, "totalRawUsd"),
		Withdrawable: floatFromMap(userState, "withdrawable"),
		MarginUsed:   floatFromMap(summary, "totalMarginUsed"),
		NotionalUSD:  floatFromMap(summary, "totalNtlPos"),
	}, true
}

func sideName(side string) string {
	switch strings.ToUpper(strings.TrimSpace(side)) {
	case "B", "BUY":
		return "BUY"
	case "A", "S", "SELL":
		return "SELL"
	}
	return strings.ToUpper(strings.TrimSpace(side))
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringFromMap(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func floatFromMap(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := floatFromAny(v); ok {
				return f
			}
		}
	}
	return 0
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func int64FromMap(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if n, ok := int64FromAny(v); ok {
				return n
			}
		}
	}
	return 0
}

func int64FromAny(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func boolFromMap(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if b, ok := m[key].(bool); ok {
			return b
		}
	}
	return false
}
