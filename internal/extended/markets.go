package extended

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	var markets []Market
	if err := c.get(ctx, "/info/markets", nil, false, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// Market fetches a single market's definition, including its embedded
// stats and trading config.
func (c *Client) Market(ctx context.Context, name string) (Market, error) {
	query := url.Values{"market": {name}}
	var markets []Market
	if err := c.get(ctx, "/info/markets", query, false, &markets); err != nil {
		return Market{}, err
	}
	if len(markets) == 0 {
		return Market{}, &NotFoundError{APIError: APIError{
			Status:  404,
			Message: fmt.Sprintf("market %s not found", name),
		}}
	}
	return markets[0], nil
}

func (c *Client) MarketStatsFor(ctx context.Context, market string) (MarketStats, error) {
	var stats MarketStats
	if err := c.get(ctx, "/info/markets/"+market+"/stats", nil, false, &stats); err != nil {
		return MarketStats{}, err
	}
	return stats, nil
}

func (c *Client) OrderbookSnapshot(ctx context.Context, market string) (Orderbook, error) {
	var book Orderbook
	if err := c.get(ctx, "/info/markets/"+market+"/orderbook", nil, false, &book); err != nil {
		return Orderbook{}, err
	}
	if book.Market == "" {
		book.Market = market
	}
	return book, nil
}

// Candles fetches up to limit candles of the given price series ending at
// endTime (milliseconds, 0 = now).
func (c *Client) Candles(ctx context.Context, market string, price CandlePrice, interval string, limit int, endTime int64) ([]Candle, error) {
	if price == "" {
		price = CandlesTrades
	}
	query := url.Values{"interval": {interval}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if endTime > 0 {
		query.Set("endTime", strconv.FormatInt(endTime, 10))
	}
	var candles []Candle
	if err := c.get(ctx, "/info/candles/"+market+"/"+string(price), query, false, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

func (c *Client) FundingHistory(ctx context.Context, market string, startTime, endTime int64) ([]FundingRate, error) {
	query := url.Values{}
	if startTime > 0 {
		query.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		query.Set("endTime", strconv.FormatInt(endTime, 10))
	}
	var rates []FundingRate
	if err := c.get(ctx, "/info/markets/"+market+"/funding", query, false, &rates); err != nil {
		return nil, err
	}
	for i := range rates {
		if rates[i].Market == "" {
			rates[i].Market = market
		}
	}
	return rates, nil
}
