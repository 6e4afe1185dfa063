package extended

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

func (c *Client) Balance(ctx context.Context) (Balance, error) {
	var balance Balance
	if err := c.get(ctx, "/user/balance", nil, true, &balance); err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// Positions returns open positions, optionally restricted to markets.
func (c *Client) Positions(ctx context.Context, markets ...string) ([]Position, error) {
	query := url.Values{}
	for _, m := range markets {
		query.Add("market", m)
	}
	var positions []Position
	if err := c.get(ctx, "/user/positions", query, true, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *Client) Leverage(ctx context.Context, markets ...string) ([]MarketLeverage, error) {
	query := url.Values{}
	for _, m := range markets {
		query.Add("market", m)
	}
	var leverage []MarketLeverage
	if err := c.get(ctx, "/user/leverage", query, true, &leverage); err != nil {
		return nil, err
	}
	return leverage, nil
}

func (c *Client) UpdateLeverage(ctx context.Context, market string, leverage decimal.Decimal) error {
	if market == "" {
		return &ValidationError{Message: "market is required"}
	}
	if !leverage.IsPositive() {
		return &ValidationError{Message: "leverage must be positive"}
	}
	payload := leveragePayload{Market: market, Leverage: leverage.String()}
	return c.patch(ctx, "/user/leverage", payload, nil)
}
