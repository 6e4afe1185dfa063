package extended

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOrderExpiry is the validity window stamped on orders when the
// request does not carry one.
const DefaultOrderExpiry = time.Hour

// defaultOrderFee is the taker fee rate quoted in the payload.
const defaultOrderFee = "0.0005"

func (c *Client) OpenOrders(ctx context.Context, markets ...string) ([]OpenOrder, error) {
	query := url.Values{}
	for _, m := range markets {
		query.Add("market", m)
	}
	var orders []OpenOrder
	if err := c.get(ctx, "/user/orders", query, true, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Trades returns the account's fills for one market, newest first.
func (c *Client) Trades(ctx context.Context, market string) ([]Trade, error) {
	if market == "" {
		return nil, &ValidationError{Message: "market is required"}
	}
	query := url.Values{"market": {market}}
	var trades []Trade
	if err := c.get(ctx, "/user/trades", query, true, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// PlaceOrder signs and submits a limit order. A request without an external
// id gets a generated one; a request with one is idempotent when a store is
// attached: resubmitting returns the recorded placement without touching
// the API.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error) {
	if req.Market == "" {
		return PlacedOrder{}, &ValidationError{Message: "market is required"}
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return PlacedOrder{}, &ValidationError{Message: "side must be BUY or SELL"}
	}
	if !req.Qty.IsPositive() {
		return PlacedOrder{}, &ValidationError{Message: "qty must be positive"}
	}
	if !req.Price.IsPositive() {
		return PlacedOrder{}, &ValidationError{Message: "price must be positive"}
	}
	if req.TimeInForce == "" {
		req.TimeInForce = TifGTT
	}
	if req.ExpiryMs <= 0 {
		req.ExpiryMs = time.Now().Add(c.orderExpiry).UnixMilli()
	}

	callerID := req.ExternalID
	if callerID != "" {
		if placed, ok := c.recordedOrder(ctx, callerID); ok {
			c.log.Debug("order already recorded, skipping resubmit",
				zap.String("external_id", callerID), zap.Int64("order_id", placed.ID))
			return placed, nil
		}
	} else {
		req.ExternalID = uuid.NewString()
	}

	nonce := c.nextNonce()
	sett, err := c.signer.SignOrder(req, c.creds.Vault, nonce)
	if err != nil {
		return PlacedOrder{}, err
	}

	payload := orderPayload{
		ID:                req.ExternalID,
		Market:            req.Market,
		Type:              "LIMIT",
		Side:              req.Side,
		Qty:               req.Qty.String(),
		Price:             req.Price.String(),
		TimeInForce:       string(req.TimeInForce),
		ExpiryEpochMillis: req.ExpiryMs,
		Fee:               defaultOrderFee,
		Nonce:             nonce,
		Settlement:        sett,
		ReduceOnly:        req.ReduceOnly,
		PostOnly:          req.PostOnly,
	}
	if req.BuilderID > 0 {
		payload.BuilderID = req.BuilderID
		payload.BuilderFee = req.BuilderFee.String()
	}

	var placed PlacedOrder
	if err := c.post(ctx, "/user/order", payload, &placed); err != nil {
		return PlacedOrder{}, err
	}
	if placed.ExternalID == "" {
		placed.ExternalID = req.ExternalID
	}
	if callerID != "" {
		c.recordOrder(ctx, callerID, placed)
	}
	return placed, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if orderID <= 0 {
		return &ValidationError{Message: "order id is required"}
	}
	return c.delete(ctx, "/user/order/"+strconv.FormatInt(orderID, 10), nil, nil)
}

func (c *Client) CancelOrderByExternalID(ctx context.Context, externalID string) error {
	if externalID == "" {
		return &ValidationError{Message: "external id is required"}
	}
	query := url.Values{"externalId": {externalID}}
	return c.delete(ctx, "/user/order", query, nil)
}

// MassCancel cancels by internal ids and/or external ids in one request.
// Both empty cancels everything open.
func (c *Client) MassCancel(ctx context.Context, orderIDs []int64, externalIDs []string) error {
	payload := massCancelPayload{OrderIDs: orderIDs, ExternalIDs: externalIDs}
	return c.post(ctx, "/user/order/massCancel", payload, nil)
}
