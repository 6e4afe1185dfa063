package compat

import (
	"github.com/shopspring/decimal"

	"extended-hl-adapter/internal/extended"
)

var two = decimal.NewFromInt(2)

// metaFromMarkets renders the instrument universe in the Hyperliquid
// meta shape. Inactive markets are skipped. onlyIsolated is always
// false because Extended supports cross margin only.
func metaFromMarkets(markets []extended.Market) map[string]any {
	universe := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		if !m.Active {
			continue
		}
		universe = append(universe, map[string]any{
			"name":         coinName(m.Name),
			"szDecimals":   sizeDecimals(m.TradingConfig.MinOrderSizeChange),
			"maxLeverage":  int(m.TradingConfig.MaxLeverage.IntPart()),
			"onlyIsolated": false,
		})
	}
	return map[string]any{"universe": universe}
}

// allMidsFromMarkets keys mids the same way metaFromMarkets keys the
// universe, so the two stay joinable.
func allMidsFromMarkets(markets []extended.Market) map[string]string {
	mids := make(map[string]string, len(markets))
	for _, m := range markets {
		if !m.Active {
			continue
		}
		stats := m.MarketStats
		mid := stats.BidPrice.Add(stats.AskPrice).Div(two)
		mids[coinName(m.Name)] = mid.String()
	}
	return mids
}

// l2SnapshotFrom renders an orderbook in the Hyperliquid l2 shape:
// levels[0] bids, levels[1] asks. Extended does not report per-level
// order counts, so n is always 1.
func l2SnapshotFrom(book extended.Orderbook, timestamp int64) map[string]any {
	return map[string]any{
		"coin":   coinName(book.Market),
		"levels": []any{l2Levels(book.Bid), l2Levels(book.Ask)},
		"time":   timestamp,
	}
}

func l2Levels(levels []extended.OrderbookLevel) []map[string]any {
	out := make([]map[string]any, 0, len(levels))
	for _, l := range levels {
		out = append(out, map[string]any{
			"px": l.Price.String(),
			"sz": l.Qty.String(),
			"n":  1,
		})
	}
	return out
}

func candlesFrom(candles []extended.Candle, coin, interval string) []map[string]any {
	ms, ok := intervalMillis[interval]
	if !ok {
		ms = 60000
	}
	out := make([]map[string]any, 0, len(candles))
	for _, c := range candles {
		volume := "0"
		if !c.Volume.IsZero() {
			volume = c.Volume.String()
		}
		out = append(out, map[string]any{
			"t": c.Timestamp,
			"T": c.Timestamp + ms,
			"s": coin,
			"i": interval,
			"o": c.Open.String(),
			"c": c.Close.String(),
			"h": c.High.String(),
			"l": c.Low.String(),
			"v": volume,
			"n": 0,
		})
	}
	return out
}

// fundingHistoryFrom renders funding rates in the Hyperliquid
// fundingHistory shape. Extended has no premium series.
func fundingHistoryFrom(rates []extended.FundingRate) []map[string]any {
	out := make([]map[string]any, 0, len(rates))
	for _, r := range rates {
		out = append(out, map[string]any{
			"coin":        coinName(r.Market),
			"fundingRate": r.FundingRate.String(),
			"premium":     "0",
			"time":        r.Timestamp,
		})
	}
	return out
}
