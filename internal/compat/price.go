package compat

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"extended-hl-adapter/internal/extended"
)

var one = decimal.NewFromInt(1)

// marketOrderPrice derives the limit price for a simulated market
// order. Buys aim at best ask plus slippage, sells at best bid minus
// slippage, clamped to the exchange collar around mark price and then
// rounded to the market's tick: up for buys, down for sells. When one
// side of the book is empty the mark price stands in for the missing
// quote.
//
// The collar clamps before tick rounding, so a capped buy on an
// off-tick collar can land up to one tick beyond mark*1.05 (and the
// mirror for sells). The exchange accepts that.
func marketOrderPrice(ctx context.Context, c *extended.Client, market string, isBuy bool, slippage float64) (decimal.Decimal, error) {
	var (
		book  extended.Orderbook
		stats extended.MarketStats
		inst  extended.Market
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, err = c.OrderbookSnapshot(ctx, market)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = c.MarketStatsFor(ctx, market)
		return err
	})
	g.Go(func() error {
		var err error
		inst, err = c.Market(ctx, market)
		return err
	})
	if err := g.Wait(); err != nil {
		return decimal.Decimal{}, err
	}

	mark := stats.MarkPrice
	tick := inst.TradingConfig.MinPriceChange
	slip := decimal.NewFromFloat(slippage)

	if isBuy {
		bestAsk := mark
		if len(book.Ask) > 0 {
			bestAsk = book.Ask[0].Price
		}
		target := bestAsk.Mul(one.Add(slip))
		maxPrice := mark.Mul(marketPriceCap)
		return roundUpToTick(decimal.Min(target, maxPrice), tick), nil
	}

	bestBid := mark
	if len(book.Bid) > 0 {
		bestBid = book.Bid[0].Price
	}
	target := bestBid.Mul(one.Sub(slip))
	minPrice := mark.Mul(marketPriceFloor)
	return roundDownToTick(decimal.Max(target, minPrice), tick), nil
}

func roundUpToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	rem := price.Mod(tick)
	if rem.IsZero() {
		return price
	}
	return price.Sub(rem).Add(tick)
}

func roundDownToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Sub(price.Mod(tick))
}
