package compat

import (
	"strconv"

	"extended-hl-adapter/internal/extended"
)

func openOrdersFrom(orders []extended.OpenOrder) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, openOrderFrom(o))
	}
	return out
}

func openOrderFrom(order extended.OpenOrder) map[string]any {
	var cloid any
	if order.ExternalID != "" {
		cloid = order.ExternalID
	}
	return map[string]any{
		"coin":      coinName(order.Market),
		"side":      compactSide(string(order.Side)),
		"limitPx":   order.Price.String(),
		"sz":        order.Qty.Sub(order.FilledQty).String(),
		"oid":       order.ID,
		"timestamp": order.CreatedTime,
		"origSz":    order.Qty.String(),
		"cloid":     cloid,
	}
}

func fillsFrom(trades []extended.Trade) []map[string]any {
	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		out = append(out, fillFrom(t))
	}
	return out
}

// fillFrom renders a trade in the Hyperliquid fill shape. Extended's
// trades endpoint does not report position context or the client order
// id, so startPosition, dir, closedPnl and cloid carry fixed values.
func fillFrom(trade extended.Trade) map[string]any {
	return map[string]any{
		"coin":          coinName(trade.Market),
		"px":            trade.Price.String(),
		"sz":            trade.Qty.String(),
		"side":          compactSide(string(trade.Side)),
		"time":          trade.CreatedTime,
		"startPosition": "0",
		"dir":           "Trade",
		"closedPnl":     "0",
		"hash":          strconv.FormatInt(trade.ID, 10),
		"oid":           trade.OrderID,
		"crossed":       trade.IsTaker,
		"fee":           trade.Fee.String(),
		"tid":           trade.ID,
		"liquidation":   trade.TradeType == extended.TradeTypeLiquidation,
		"cloid":         nil,
	}
}

func orderEnvelope(placed extended.PlacedOrder) map[string]any {
	return map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []any{
					map[string]any{
						"resting": map[string]any{
							"oid":   placed.ID,
							"cloid": placed.ExternalID,
						},
					},
				},
			},
		},
	}
}

// bulkOrderEnvelope combines per-order outcomes into one envelope. The
// outer status is ok even when individual orders failed; failures show
// up as error statuses in order.
func bulkOrderEnvelope(placed []extended.PlacedOrder, errs []error) map[string]any {
	statuses := make([]any, 0, len(placed))
	for i, p := range placed {
		if errs[i] != nil {
			statuses = append(statuses, map[string]any{"error": errs[i].Error()})
			continue
		}
		statuses = append(statuses, map[string]any{
			"resting": map[string]any{
				"oid":   p.ID,
				"cloid": p.ExternalID,
			},
		})
	}
	return map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{"statuses": statuses},
		},
	}
}

func cancelEnvelope(count int) map[string]any {
	statuses := make([]any, 0, count)
	for i := 0; i < count; i++ {
		statuses = append(statuses, "success")
	}
	return map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "cancel",
			"data": map[string]any{"statuses": statuses},
		},
	}
}

func leverageEnvelope() map[string]any {
	return map[string]any{
		"status":   "ok",
		"response": map[string]any{"type": "leverage"},
	}
}

func errorEnvelope(message string) map[string]any {
	return map[string]any{
		"status":   "err",
		"response": message,
	}
}
