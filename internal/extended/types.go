package extended

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

type TimeInForce string

const (
	TifGTT TimeInForce = "GTT"
	TifIOC TimeInForce = "IOC"
)

type TradeType string

const (
	TradeTypeTrade       TradeType = "TRADE"
	TradeTypeLiquidation TradeType = "LIQUIDATION"
	TradeTypeDeleverage  TradeType = "DELEVERAGE"
)

// CandlePrice selects which price series /info/candles serves.
type CandlePrice string

const (
	CandlesTrades CandlePrice = "trades"
	CandlesMark   CandlePrice = "mark-prices"
	CandlesIndex  CandlePrice = "index-prices"
)

type Market struct {
	Name          string        `json:"name"`
	AssetName     string        `json:"assetName"`
	Active        bool          `json:"active"`
	Status        string        `json:"status"`
	MarketStats   MarketStats   `json:"marketStats"`
	TradingConfig TradingConfig `json:"tradingConfig"`
}

type TradingConfig struct {
	MinOrderSize        decimal.Decimal `json:"minOrderSize"`
	MinOrderSizeChange  decimal.Decimal `json:"minOrderSizeChange"`
	MinPriceChange      decimal.Decimal `json:"minPriceChange"`
	MaxMarketOrderValue decimal.Decimal `json:"maxMarketOrderValue"`
	MaxLimitOrderValue  decimal.Decimal `json:"maxLimitOrderValue"`
	MaxPositionValue    decimal.Decimal `json:"maxPositionValue"`
	MaxLeverage         decimal.Decimal `json:"maxLeverage"`
}

type MarketStats struct {
	LastPrice        decimal.Decimal `json:"lastPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	IndexPrice       decimal.Decimal `json:"indexPrice"`
	BidPrice         decimal.Decimal `json:"bidPrice"`
	AskPrice         decimal.Decimal `json:"askPrice"`
	FundingRate      decimal.Decimal `json:"fundingRate"`
	OpenInterest     decimal.Decimal `json:"openInterest"`
	DailyVolume      decimal.Decimal `json:"dailyVolume"`
	DailyPriceChange decimal.Decimal `json:"dailyPriceChange"`
}

type OrderbookLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

type Orderbook struct {
	Market string           `json:"market"`
	Bid    []OrderbookLevel `json:"bid"`
	Ask    []OrderbookLevel `json:"ask"`
}

type Candle struct {
	Open      decimal.Decimal `json:"open"`
	Low       decimal.Decimal `json:"low"`
	High      decimal.Decimal `json:"high"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp int64           `json:"timestamp"`
}

type FundingRate struct {
	Market      string          `json:"market"`
	FundingRate decimal.Decimal `json:"fundingRate"`
	Timestamp   int64           `json:"timestamp"`
}

type Balance struct {
	CollateralName         string          `json:"collateralName"`
	Balance                decimal.Decimal `json:"balance"`
	Equity                 decimal.Decimal `json:"equity"`
	AvailableForTrade      decimal.Decimal `json:"availableForTrade"`
	AvailableForWithdrawal decimal.Decimal `json:"availableForWithdrawal"`
	UnrealisedPnl          decimal.Decimal `json:"unrealisedPnl"`
	InitialMargin          decimal.Decimal `json:"initialMargin"`
	MarginRatio            decimal.Decimal `json:"marginRatio"`
	UpdatedTime            int64           `json:"updatedTime"`
}

type Position struct {
	ID               int64            `json:"id"`
	Market           string           `json:"market"`
	Side             PositionSide     `json:"side"`
	Leverage         decimal.Decimal  `json:"leverage"`
	Size             decimal.Decimal  `json:"size"`
	Value            decimal.Decimal  `json:"value"`
	OpenPrice        decimal.Decimal  `json:"openPrice"`
	MarkPrice        decimal.Decimal  `json:"markPrice"`
	LiquidationPrice *decimal.Decimal `json:"liquidationPrice,omitempty"`
	UnrealisedPnl    decimal.Decimal  `json:"unrealisedPnl"`
	RealisedPnl      decimal.Decimal  `json:"realisedPnl"`
	CreatedAt        int64            `json:"createdAt"`
	UpdatedAt        int64            `json:"updatedAt"`
}

type OpenOrder struct {
	ID          int64           `json:"id"`
	ExternalID  string          `json:"externalId"`
	Market      string          `json:"market"`
	Type        string          `json:"type"`
	Side        Side            `json:"side"`
	Status      string          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	FilledQty   decimal.Decimal `json:"filledQty"`
	ReduceOnly  bool            `json:"reduceOnly"`
	PostOnly    bool            `json:"postOnly"`
	CreatedTime int64           `json:"createdTime"`
	UpdatedTime int64           `json:"updatedTime"`
	ExpiryTime  int64           `json:"expiryTime"`
}

type Trade struct {
	ID          int64           `json:"id"`
	Market      string          `json:"market"`
	OrderID     int64           `json:"orderId"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	Value       decimal.Decimal `json:"value"`
	Fee         decimal.Decimal `json:"fee"`
	IsTaker     bool            `json:"isTaker"`
	TradeType   TradeType       `json:"tradeType"`
	CreatedTime int64           `json:"createdTime"`
}

type PlacedOrder struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"externalId"`
}

type MarketLeverage struct {
	Market   string          `json:"market"`
	Leverage decimal.Decimal `json:"leverage"`
}

// OrderRequest is the caller-facing order shape. Price and Qty are already
// rounded to the market's precision by the caller.
type OrderRequest struct {
	Market      string
	Side        Side
	Qty         decimal.Decimal
	Price       decimal.Decimal
	TimeInForce TimeInForce
	PostOnly    bool
	ReduceOnly  bool
	ExternalID  string
	ExpiryMs    int64
	BuilderID   int64
	BuilderFee  decimal.Decimal
}

type starkSignature struct {
	R string `json:"r"`
	S string `json:"s"`
}

type settlement struct {
	Signature          starkSignature `json:"signature"`
	StarkKey           string         `json:"starkKey"`
	CollateralPosition string         `json:"collateralPosition"`
}

// orderPayload is the POST /user/order body.
type orderPayload struct {
	ID                string     `json:"id"`
	Market            string     `json:"market"`
	Type              string     `json:"type"`
	Side              Side       `json:"side"`
	Qty               string     `json:"qty"`
	Price             string     `json:"price"`
	TimeInForce       string     `json:"timeInForce"`
	ExpiryEpochMillis int64      `json:"expiryEpochMillis"`
	Fee               string     `json:"fee"`
	Nonce             uint64     `json:"nonce"`
	Settlement        settlement `json:"settlement"`
	ReduceOnly        bool       `json:"reduceOnly"`
	PostOnly          bool       `json:"postOnly"`
	BuilderID         int64      `json:"builderId,omitempty"`
	BuilderFee        string     `json:"builderFee,omitempty"`
}

type massCancelPayload struct {
	OrderIDs    []int64  `json:"orderIds,omitempty"`
	ExternalIDs []string `json:"externalOrderIds,omitempty"`
}

type leveragePayload struct {
	Market   string `json:"market"`
	Leverage string `json:"leverage"`
}
