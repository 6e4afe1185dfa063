package compat

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"extended-hl-adapter/internal/extended"
)

// Tif mirrors the Hyperliquid time-in-force names accepted in order
// type specs. Alo maps to a post-only GTT order on Extended.
type Tif string

const (
	TifGtc Tif = "Gtc"
	TifIoc Tif = "Ioc"
	TifAlo Tif = "Alo"
)

// DefaultSlippage bounds simulated market orders at 5%.
const DefaultSlippage = 0.05

// Extended rejects orders priced outside a collar around mark price:
// buys above mark*1.05, sells below mark*0.95.
var (
	marketPriceCap   = decimal.RequireFromString("1.05")
	marketPriceFloor = decimal.RequireFromString("0.95")
)

var intervalNames = map[string]string{
	"1m":  "PT1M",
	"5m":  "PT5M",
	"15m": "PT15M",
	"30m": "PT30M",
	"1h":  "PT1H",
	"2h":  "PT2H",
	"4h":  "PT4H",
	"1d":  "P1D",
}

var intervalMillis = map[string]int64{
	"1m":  60000,
	"5m":  300000,
	"15m": 900000,
	"30m": 1800000,
	"1h":  3600000,
	"2h":  7200000,
	"4h":  14400000,
	"1d":  86400000,
}

// normalizeMarketName maps a Hyperliquid-style coin ("BTC") to an
// Extended market name ("BTC-USD"). Names already containing a dash
// pass through unchanged.
func normalizeMarketName(name string) string {
	if strings.Contains(name, "-") {
		return name
	}
	return name + "-USD"
}

// coinName maps an Extended market name back to the Hyperliquid coin.
func coinName(market string) string {
	return strings.ReplaceAll(market, "-USD", "")
}

// compactSide renders an Extended order or position side in the
// single-letter Hyperliquid form: B for buys and longs, A otherwise.
func compactSide(side string) string {
	switch strings.ToUpper(side) {
	case "SELL", "SHORT":
		return "A"
	}
	return "B"
}

// sizeDecimals derives szDecimals from the minimum size increment,
// e.g. 0.001 -> 3.
func sizeDecimals(minSizeChange decimal.Decimal) int {
	f, _ := minSizeChange.Float64()
	if f <= 0 {
		return 0
	}
	lg := math.Log10(f)
	if r := math.Round(lg); math.Abs(lg-r) < 1e-9 {
		lg = r
	}
	d := int(lg)
	if d < 0 {
		d = -d
	}
	return d
}

// wireDecimal converts a caller-supplied float into an exact decimal,
// refusing values that do not survive the 8-decimal wire rounding.
func wireDecimal(x float64) (decimal.Decimal, error) {
	s, err := floatToWire(x)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.RequireFromString(s), nil
}

func floatToWire(x float64) (string, error) {
	rounded := fmt.Sprintf("%.8f", x)
	parsed, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", err
	}
	if math.Abs(parsed-x) >= 1e-12 {
		return "", fmt.Errorf("float_to_wire causes rounding: %f", x)
	}
	trimmed := strings.TrimRight(rounded, "0")
	trimmed = strings.TrimRight(trimmed, ".")
	if trimmed == "" || trimmed == "-0" {
		trimmed = "0"
	}
	return trimmed, nil
}

// parseOrderType extracts the time-in-force from a Hyperliquid order
// type spec such as {"limit": {"tif": "Ioc"}}. A nil or unknown spec
// defaults to Gtc. Alo becomes a post-only GTT order.
func parseOrderType(orderType map[string]any) (extended.TimeInForce, bool) {
	tif := TifGtc
	if limit, ok := orderType["limit"].(map[string]any); ok {
		if s, ok := limit["tif"].(string); ok && s != "" {
			tif = Tif(s)
		}
	}
	switch tif {
	case TifIoc:
		return extended.TifIOC, false
	case TifAlo:
		return extended.TifGTT, true
	}
	return extended.TifGTT, false
}

// parseBuilder extracts the builder id and fee from Hyperliquid-style
// builder info {"b": id, "f": feeTenthsBps}. Extended expects the fee
// as a fraction, so f is divided by 1e5.
func parseBuilder(builder map[string]any) (int64, decimal.Decimal, error) {
	if builder == nil {
		return 0, decimal.Decimal{}, nil
	}
	rawID, ok := builder["b"]
	if !ok {
		return 0, decimal.Decimal{}, nil
	}
	id, err := int64FromAny(rawID)
	if err != nil {
		return 0, decimal.Decimal{}, fmt.Errorf("builder id: %w", err)
	}
	fee, err := int64FromAny(builder["f"])
	if err != nil {
		return 0, decimal.Decimal{}, fmt.Errorf("builder fee: %w", err)
	}
	return id, decimal.NewFromInt(fee).Div(decimal.NewFromInt(100000)), nil
}

func int64FromAny(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}
