package compat

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"extended-hl-adapter/internal/bridge"
	"extended-hl-adapter/internal/extended"
)

// Exchange mirrors the trading half of the Hyperliquid client surface.
// Methods return the envelope dict; failures of any kind, validation
// and upstream alike, land in an err envelope rather than an error.
// Cancel is the exception: a call with neither id fails synchronously
// before any I/O.
type Exchange struct {
	c *Client
}

// OrderSpec is one order inside a BulkOrders call.
type OrderSpec struct {
	Name       string
	IsBuy      bool
	Sz         float64
	LimitPx    float64
	OrderType  map[string]any
	ReduceOnly bool
	Cloid      string
	Builder    map[string]any
}

// CancelSpec is one cancel inside a BulkCancel call.
type CancelSpec struct {
	Coin  string
	Oid   int64
	Cloid string
}

// Order places a limit order. The order type spec follows the
// Hyperliquid form, e.g. {"limit": {"tif": "Ioc"}}; nil means Gtc.
func (e *Exchange) Order(name string, isBuy bool, sz, limitPx float64, orderType map[string]any, reduceOnly bool, cloid string, builder map[string]any) map[string]any {
	qty, err := wireDecimal(sz)
	if err != nil {
		return e.orderFailed(err)
	}
	price, err := wireDecimal(limitPx)
	if err != nil {
		return e.orderFailed(err)
	}
	builderID, builderFee, err := parseBuilder(builder)
	if err != nil {
		return e.orderFailed(err)
	}
	tif, postOnly := parseOrderType(orderType)

	req := extended.OrderRequest{
		Market:      normalizeMarketName(name),
		Side:        sideFor(isBuy),
		Qty:         qty,
		Price:       price,
		TimeInForce: tif,
		PostOnly:    postOnly,
		ReduceOnly:  reduceOnly,
		ExternalID:  cloid,
		BuilderID:   builderID,
		BuilderFee:  builderFee,
	}
	task := bridge.NewTask(func(ctx context.Context) (extended.PlacedOrder, error) {
		return e.c.ext.PlaceOrder(ctx, req)
	})
	placed, err := runSync(e.c, task)
	if err != nil {
		return e.orderFailed(err)
	}
	e.c.metrics.OrdersPlaced.Inc()
	return orderEnvelope(placed)
}

// BulkOrders places orders in parallel. Extended has no atomic batch
// endpoint, so orders may partially fail; each failure shows up as an
// error status at its index while the outer envelope stays ok. A
// bulk-level builder overrides any per-order builder.
func (e *Exchange) BulkOrders(specs []OrderSpec, builder map[string]any) map[string]any {
	task := bridge.NewTask(func(ctx context.Context) (map[string]any, error) {
		placed := make([]extended.PlacedOrder, len(specs))
		errs := make([]error, len(specs))
		var wg sync.WaitGroup
		for idx := range specs {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				placed[idx], errs[idx] = e.placeOne(ctx, specs[idx], builder)
			}(idx)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				e.c.metrics.OrdersFailed.Inc()
			} else {
				e.c.metrics.OrdersPlaced.Inc()
			}
		}
		return bulkOrderEnvelope(placed, errs), nil
	})
	resp, err := runSync(e.c, task)
	if err != nil {
		e.c.metrics.OrdersFailed.Inc()
		return errorEnvelope(err.Error())
	}
	return resp
}

func (e *Exchange) placeOne(ctx context.Context, spec OrderSpec, builder map[string]any) (extended.PlacedOrder, error) {
	qty, err := wireDecimal(spec.Sz)
	if err != nil {
		return extended.PlacedOrder{}, err
	}
	price, err := wireDecimal(spec.LimitPx)
	if err != nil {
		return extended.PlacedOrder{}, err
	}
	if builder == nil {
		builder = spec.Builder
	}
	builderID, builderFee, err := parseBuilder(builder)
	if err != nil {
		return extended.PlacedOrder{}, err
	}
	tif, postOnly := parseOrderType(spec.OrderType)
	return e.c.ext.PlaceOrder(ctx, extended.OrderRequest{
		Market:      normalizeMarketName(spec.Name),
		Side:        sideFor(spec.IsBuy),
		Qty:         qty,
		Price:       price,
		TimeInForce: tif,
		PostOnly:    postOnly,
		ReduceOnly:  spec.ReduceOnly,
		ExternalID:  spec.Cloid,
		BuilderID:   builderID,
		BuilderFee:  builderFee,
	})
}

// Cancel cancels one order by oid or cloid. Calling it with neither
// returns a validation error synchronously; every other failure lands
// in an err envelope.
func (e *Exchange) Cancel(name string, oid int64, cloid string) (map[string]any, error) {
	if oid <= 0 && cloid == "" {
		return nil, &extended.ValidationError{Message: "either oid or cloid must be provided"}
	}
	e.c.metrics.CancelsRequested.Inc()
	task := bridge.NewTask(func(ctx context.Context) (struct{}, error) {
		if oid > 0 {
			return struct{}{}, e.c.ext.CancelOrder(ctx, oid)
		}
		return struct{}{}, e.c.ext.CancelOrderByExternalID(ctx, cloid)
	})
	if _, err := runSync(e.c, task); err != nil {
		return errorEnvelope(err.Error()), nil
	}
	return cancelEnvelope(1), nil
}

func (e *Exchange) CancelByCloid(name, cloid string) (map[string]any, error) {
	return e.Cancel(name, 0, cloid)
}

// BulkCancel groups the requests into a single mass-cancel call. The
// venue reports no per-order outcome, so success yields one "success"
// status per request.
func (e *Exchange) BulkCancel(cancels []CancelSpec) map[string]any {
	var oids []int64
	var cloids []string
	for _, c := range cancels {
		switch {
		case c.Oid > 0:
			oids = append(oids, c.Oid)
		case c.Cloid != "":
			cloids = append(cloids, c.Cloid)
		}
	}
	e.c.metrics.CancelsRequested.Inc()
	task := bridge.NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.c.ext.MassCancel(ctx, oids, cloids)
	})
	if _, err := runSync(e.c, task); err != nil {
		return errorEnvelope(err.Error())
	}
	return cancelEnvelope(len(cancels))
}

// UpdateLeverage sets the leverage for a market. Extended supports
// cross margin only; isCross false is logged and ignored.
func (e *Exchange) UpdateLeverage(leverage int, name string, isCross bool) map[string]any {
	if !isCross {
		e.c.log.Warn("isolated margin not supported, applying cross leverage", zap.String("market", name))
	}
	market := normalizeMarketName(name)
	task := bridge.NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.c.ext.UpdateLeverage(ctx, market, decimal.NewFromInt(int64(leverage)))
	})
	if _, err := runSync(e.c, task); err != nil {
		return errorEnvelope(err.Error())
	}
	return leverageEnvelope()
}

// MarketOpen opens a position with a simulated market order: an IOC
// limit order at px when given, otherwise at a price derived from the
// book with the given slippage (Client default when 0).
func (e *Exchange) MarketOpen(name string, isBuy bool, sz, px, slippage float64, cloid string, builder map[string]any) map[string]any {
	qty, err := wireDecimal(sz)
	if err != nil {
		return e.orderFailed(err)
	}
	var price decimal.Decimal
	if px > 0 {
		price, err = wireDecimal(px)
		if err != nil {
			return e.orderFailed(err)
		}
	}
	builderID, builderFee, err := parseBuilder(builder)
	if err != nil {
		return e.orderFailed(err)
	}
	if slippage <= 0 {
		slippage = e.c.slippage
	}
	market := normalizeMarketName(name)
	task := bridge.NewTask(func(ctx context.Context) (extended.PlacedOrder, error) {
		limitPrice := price
		if px <= 0 {
			var err error
			limitPrice, err = marketOrderPrice(ctx, e.c.ext, market, isBuy, slippage)
			if err != nil {
				return extended.PlacedOrder{}, err
			}
		}
		return e.c.ext.PlaceOrder(ctx, extended.OrderRequest{
			Market:      market,
			Side:        sideFor(isBuy),
			Qty:         qty,
			Price:       limitPrice,
			TimeInForce: extended.TifIOC,
			ExternalID:  cloid,
			BuilderID:   builderID,
			BuilderFee:  builderFee,
		})
	})
	placed, err := runSync(e.c, task)
	if err != nil {
		return e.orderFailed(err)
	}
	e.c.metrics.OrdersPlaced.Inc()
	return orderEnvelope(placed)
}

type closeResult struct {
	placed     extended.PlacedOrder
	noPosition bool
}

// MarketClose closes a position with a simulated market order on the
// opposite side. Zero sz closes the whole position; zero px derives
// the price from the book.
func (e *Exchange) MarketClose(coin string, sz, px, slippage float64, cloid string, builder map[string]any) map[string]any {
	var qty, price decimal.Decimal
	var err error
	if sz > 0 {
		qty, err = wireDecimal(sz)
		if err != nil {
			return e.orderFailed(err)
		}
	}
	if px > 0 {
		price, err = wireDecimal(px)
		if err != nil {
			return e.orderFailed(err)
		}
	}
	builderID, builderFee, err := parseBuilder(builder)
	if err != nil {
		return e.orderFailed(err)
	}
	if slippage <= 0 {
		slippage = e.c.slippage
	}
	market := normalizeMarketName(coin)
	task := bridge.NewTask(func(ctx context.Context) (closeResult, error) {
		positions, err := e.c.ext.Positions(ctx, market)
		if err != nil {
			return closeResult{}, err
		}
		if len(positions) == 0 {
			return closeResult{noPosition: true}, nil
		}
		position := positions[0]
		isBuy := position.Side == extended.PositionShort
		closeQty := qty
		if sz <= 0 {
			closeQty = position.Size
		}
		limitPrice := price
		if px <= 0 {
			limitPrice, err = marketOrderPrice(ctx, e.c.ext, market, isBuy, slippage)
			if err != nil {
				return closeResult{}, err
			}
		}
		placed, err := e.c.ext.PlaceOrder(ctx, extended.OrderRequest{
			Market:      market,
			Side:        sideFor(isBuy),
			Qty:         closeQty,
			Price:       limitPrice,
			TimeInForce: extended.TifIOC,
			ReduceOnly:  true,
			ExternalID:  cloid,
			BuilderID:   builderID,
			BuilderFee:  builderFee,
		})
		if err != nil {
			return closeResult{}, err
		}
		return closeResult{placed: placed}, nil
	})
	res, err := runSync(e.c, task)
	if err != nil {
		return e.orderFailed(err)
	}
	if res.noPosition {
		e.c.metrics.OrdersFailed.Inc()
		return errorEnvelope(fmt.Sprintf("No open position found for %s", coin))
	}
	e.c.metrics.OrdersPlaced.Inc()
	return orderEnvelope(res.placed)
}

func (e *Exchange) orderFailed(err error) map[string]any {
	e.c.metrics.OrdersFailed.Inc()
	return errorEnvelope(err.Error())
}

func sideFor(isBuy bool) extended.Side {
	if isBuy {
		return extended.SideBuy
	}
	return extended.SideSell
}
