package compat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"extended-hl-adapter/internal/bridge"
	"extended-hl-adapter/internal/extended"
)

// Info mirrors the read-only half of the Hyperliquid client surface.
// Methods block the calling goroutine and propagate upstream errors
// unchanged; a run that outlives the configured budget fails with
// bridge.ErrTimeout.
type Info struct {
	c *Client
}

// UserState returns the clearinghouse state for the authenticated
// account. Extended cannot serve other accounts, so a foreign address
// is logged and ignored.
func (i *Info) UserState(address string) (map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	i.warnForeignAddress(address)
	task := bridge.NewTask(func(ctx context.Context) (map[string]any, error) {
		var (
			balance   extended.Balance
			positions []extended.Position
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			balance, err = i.c.ext.Balance(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			positions, err = i.c.ext.Positions(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return userStateFromAccount(balance, positions), nil
	})
	return runSync(i.c, task)
}

func (i *Info) OpenOrders(address string) ([]map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	i.warnForeignAddress(address)
	task := bridge.NewTask(func(ctx context.Context) ([]map[string]any, error) {
		orders, err := i.c.ext.OpenOrders(ctx)
		if err != nil {
			return nil, err
		}
		return openOrdersFrom(orders), nil
	})
	return runSync(i.c, task)
}

func (i *Info) Meta() (map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	task := bridge.NewTask(func(ctx context.Context) (map[string]any, error) {
		markets, err := i.c.ext.Markets(ctx)
		if err != nil {
			return nil, err
		}
		return metaFromMarkets(markets), nil
	})
	return runSync(i.c, task)
}

func (i *Info) AllMids() (map[string]string, error) {
	i.c.metrics.InfoRequests.Inc()
	task := bridge.NewTask(func(ctx context.Context) (map[string]string, error) {
		markets, err := i.c.ext.Markets(ctx)
		if err != nil {
			return nil, err
		}
		return allMidsFromMarkets(markets), nil
	})
	return runSync(i.c, task)
}

func (i *Info) L2Snapshot(name string) (map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	market := normalizeMarketName(name)
	task := bridge.NewTask(func(ctx context.Context) (map[string]any, error) {
		book, err := i.c.ext.OrderbookSnapshot(ctx, market)
		if err != nil {
			return nil, err
		}
		return l2SnapshotFrom(book, time.Now().UnixMilli()), nil
	})
	return runSync(i.c, task)
}

// CandlesSnapshot returns candles for [startTime, endTime]. Extended
// pages by a trailing limit rather than a start time, so the newest
// 1000 candles ending at endTime are fetched and trimmed client side.
func (i *Info) CandlesSnapshot(name, interval string, startTime, endTime int64) ([]map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	market := normalizeMarketName(name)
	extInterval, ok := intervalNames[interval]
	if !ok {
		extInterval = "PT1M"
	}
	task := bridge.NewTask(func(ctx context.Context) ([]map[string]any, error) {
		candles, err := i.c.ext.Candles(ctx, market, extended.CandlesTrades, extInterval, 1000, endTime)
		if err != nil {
			return nil, err
		}
		kept := candles[:0]
		for _, c := range candles {
			if c.Timestamp >= startTime {
				kept = append(kept, c)
			}
		}
		return candlesFrom(kept, coinName(name), interval), nil
	})
	return runSync(i.c, task)
}

// UserFills returns the account's fills on one market, newest first as
// served upstream. Extended requires the market; there is no
// account-wide fills endpoint. Zero start or end leaves that bound
// open.
func (i *Info) UserFills(coin string, startTime, endTime int64) ([]map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	market := normalizeMarketName(coin)
	task := bridge.NewTask(func(ctx context.Context) ([]map[string]any, error) {
		trades, err := i.c.ext.Trades(ctx, market)
		if err != nil {
			return nil, err
		}
		kept := trades[:0]
		for _, t := range trades {
			if startTime > 0 && t.CreatedTime < startTime {
				continue
			}
			if endTime > 0 && t.CreatedTime > endTime {
				continue
			}
			kept = append(kept, t)
		}
		return fillsFrom(kept), nil
	})
	return runSync(i.c, task)
}

func (i *Info) FundingHistory(coin string, startTime, endTime int64) ([]map[string]any, error) {
	i.c.metrics.InfoRequests.Inc()
	market := normalizeMarketName(coin)
	task := bridge.NewTask(func(ctx context.Context) ([]map[string]any, error) {
		rates, err := i.c.ext.FundingHistory(ctx, market, startTime, endTime)
		if err != nil {
			return nil, err
		}
		return fundingHistoryFrom(rates), nil
	})
	return runSync(i.c, task)
}

type leverageResult struct {
	value int64
	ok    bool
}

// PositionLeverage returns the configured leverage for a market, with
// ok false when the account has no leverage setting there.
func (i *Info) PositionLeverage(coin string) (int64, bool, error) {
	i.c.metrics.InfoRequests.Inc()
	market := normalizeMarketName(coin)
	task := bridge.NewTask(func(ctx context.Context) (leverageResult, error) {
		levs, err := i.c.ext.Leverage(ctx, market)
		if err != nil {
			return leverageResult{}, err
		}
		for _, l := range levs {
			if l.Market == market {
				return leverageResult{value: l.Leverage.IntPart(), ok: true}, nil
			}
		}
		return leverageResult{}, nil
	})
	res, err := runSync(i.c, task)
	return res.value, res.ok, err
}

func (i *Info) warnForeignAddress(address string) {
	if address != "" && !strings.EqualFold(address, i.c.Address()) {
		i.c.log.Warn("cannot query other accounts, using own", zap.String("address", address))
	}
}
