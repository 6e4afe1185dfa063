package compat

import (
	"github.com/shopspring/decimal"

	"extended-hl-adapter/internal/extended"
)

// userStateFromAccount renders a balance plus positions in the
// Hyperliquid clearinghouse state shape. Extended reports a single
// cross-margin account, so both margin summaries carry the same
// figures and maintenance margin falls back to initial margin.
func userStateFromAccount(balance extended.Balance, positions []extended.Position) map[string]any {
	totalPositionValue := decimal.Zero
	assetPositions := make([]map[string]any, 0, len(positions))
	for _, pos := range positions {
		totalPositionValue = totalPositionValue.Add(pos.Value)
		assetPositions = append(assetPositions, assetPositionFrom(pos))
	}
	return map[string]any{
		"assetPositions":             assetPositions,
		"crossMaintenanceMarginUsed": balance.InitialMargin.String(),
		"crossMarginSummary": map[string]any{
			"accountValue":    balance.Equity.String(),
			"totalMarginUsed": balance.InitialMargin.String(),
			"totalNtlPos":     totalPositionValue.String(),
			"totalRawUsd":     balance.Balance.String(),
		},
		"marginSummary": map[string]any{
			"accountValue":    balance.Equity.String(),
			"totalMarginUsed": balance.InitialMargin.String(),
			"totalNtlPos":     totalPositionValue.String(),
			"totalRawUsd":     balance.Balance.String(),
			"withdrawable":    balance.AvailableForTrade.String(),
		},
		"withdrawable": balance.AvailableForTrade.String(),
	}
}

func assetPositionFrom(pos extended.Position) map[string]any {
	szi := pos.Size.String()
	if pos.Side == extended.PositionShort {
		szi = pos.Size.Neg().String()
	}

	leverage := pos.Leverage.IntPart()
	marginUsed := decimal.Zero
	if leverage > 0 {
		marginUsed = pos.Value.Div(decimal.NewFromInt(leverage))
	}
	roe := decimal.Zero
	if marginUsed.IsPositive() {
		roe = pos.UnrealisedPnl.Div(marginUsed)
	}

	var liquidationPx any
	if pos.LiquidationPrice != nil && !pos.LiquidationPrice.IsZero() {
		liquidationPx = pos.LiquidationPrice.String()
	}

	return map[string]any{
		"position": map[string]any{
			"coin":           coinName(pos.Market),
			"szi":            szi,
			"leverage":       map[string]any{"type": "cross", "value": leverage},
			"entryPx":        pos.OpenPrice.String(),
			"positionValue":  pos.Value.String(),
			"unrealizedPnl":  pos.UnrealisedPnl.String(),
			"liquidationPx":  liquidationPx,
			"marginUsed":     marginUsed.String(),
			"returnOnEquity": roe.String(),
		},
		"type": "oneWay",
	}
}
