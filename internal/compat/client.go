// Package compat re-exposes the Extended exchange through the
// Hyperliquid SDK client surface: a synchronous Info/Exchange pair
// whose methods accept and return Hyperliquid-shaped values while the
// orders settle on Extended. Upstream calls run on per-goroutine
// schedulers, so code written against the blocking interface keeps
// working unchanged, including from many goroutines at once.
package compat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"extended-hl-adapter/internal/bridge"
	"extended-hl-adapter/internal/extended"
	"extended-hl-adapter/internal/metrics"
)

// Config tunes the facade. Zero values fall back to defaults.
type Config struct {
	Environment extended.Environment
	HTTPTimeout time.Duration // per-request budget on the upstream client
	RunTimeout  time.Duration // overall budget per synchronous call
	Slippage    float64       // market order slippage, DefaultSlippage when 0
	OrderExpiry time.Duration
}

// Client owns the upstream connection and the scheduler registry shared
// by its Info and Exchange handles. One Client is safe for concurrent
// use from many goroutines.
type Client struct {
	ext      *extended.Client
	bridge   *bridge.Bridge
	info     *Info
	exchange *Exchange
	metrics  *metrics.Metrics
	log      *zap.Logger
	slippage float64
}

func New(cfg Config, creds extended.Credentials, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ext, err := extended.NewClient(cfg.Environment, creds, cfg.HTTPTimeout, log)
	if err != nil {
		return nil, err
	}
	if cfg.OrderExpiry > 0 {
		ext.SetOrderExpiry(cfg.OrderExpiry)
	}
	slippage := cfg.Slippage
	if slippage <= 0 {
		slippage = DefaultSlippage
	}
	c := &Client{
		ext:      ext,
		bridge:   bridge.New(nil, cfg.RunTimeout),
		metrics:  metrics.NewNoop(),
		log:      log,
		slippage: slippage,
	}
	c.info = &Info{c: c}
	c.exchange = &Exchange{c: c}
	return c, nil
}

// Setup builds a client and returns the pieces code written against the
// Hyperliquid SDK expects: the account address plus the Info and
// Exchange handles. The underlying client stays alive for the process
// lifetime; use New directly when you need to close it.
func Setup(cfg Config, creds extended.Credentials, log *zap.Logger) (string, *Info, *Exchange, error) {
	c, err := New(cfg, creds, log)
	if err != nil {
		return "", nil, nil, err
	}
	return c.Address(), c.Info(), c.Exchange(), nil
}

func (c *Client) Info() *Info         { return c.info }
func (c *Client) Exchange() *Exchange { return c.exchange }

// Address is the account identity exposed to callers. Extended has no
// EVM address, so the L2 public key stands in.
func (c *Client) Address() string { return c.ext.PublicKey() }

// Extended exposes the raw upstream client for callers that need the
// native models rather than the compatibility shapes.
func (c *Client) Extended() *extended.Client { return c.ext }

func (c *Client) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// InitStore enables nonce persistence and idempotent order resubmission
// through the given store.
func (c *Client) InitStore(ctx context.Context, store extended.Store) error {
	return c.ext.InitStore(ctx, store)
}

// Close tears down the scheduler registry. In-flight calls fail with
// bridge.ErrSchedulerClosed.
func (c *Client) Close() {
	c.bridge.Close()
}

// runSync executes one upstream task on the caller's scheduler.
func runSync[T any](c *Client, task *bridge.Task[T]) (T, error) {
	v, err := bridge.Run(c.bridge, task, 0)
	if err != nil && errors.Is(err, bridge.ErrTimeout) {
		c.metrics.BridgeTimeouts.Inc()
	}
	return v, err
}
