package extended

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NonceState is a diagnostic snapshot of the nonce counters.
type NonceState struct {
	Key       string
	Last      uint64
	Persisted uint64
}

// InitStore attaches a key-value store and seeds the nonce from it. The
// store also enables idempotent resubmission: a repeated PlaceOrder with an
// already recorded external id returns the stored placement.
func (c *Client) InitStore(ctx context.Context, store Store) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := c.scopedKey("nonce")
	seed := uint64(time.Now().UnixMilli())
	if raw, ok, err := store.Get(ctx, key); err != nil {
		return err
	} else if ok {
		parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stored nonce %q: %w", raw, err)
		}
		if parsed > seed {
			seed = parsed
		}
	}
	if current := c.lastNonce.Load(); current > seed {
		seed = current
	}
	c.store = store
	c.nonceKey = key
	c.lastNonce.Store(seed)
	c.lastPersisted.Store(seed)
	return nil
}

func (c *Client) Nonce() (NonceState, bool) {
	if c.store == nil || c.nonceKey == "" {
		return NonceState{}, false
	}
	return NonceState{
		Key:       c.nonceKey,
		Last:      c.lastNonce.Load(),
		Persisted: c.lastPersisted.Load(),
	}, true
}

// nextNonce returns a strictly increasing millisecond-scale nonce; wall
// clock when it moved forward, previous+1 otherwise.
func (c *Client) nextNonce() uint64 {
	now := uint64(time.Now().UnixMilli())
	for {
		prev := c.lastNonce.Load()
		next := now
		if prev >= next {
			next = prev + 1
		}
		if c.lastNonce.CompareAndSwap(prev, next) {
			c.persistNonce(next)
			return next
		}
	}
}

func (c *Client) persistNonce(nonce uint64) {
	if c.store == nil || c.nonceKey == "" {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if nonce <= c.lastPersisted.Load() {
		return
	}
	if err := c.store.Set(context.Background(), c.nonceKey, strconv.FormatUint(nonce, 10)); err != nil {
		c.logPersistError(err)
		return
	}
	c.lastPersisted.Store(nonce)
	c.persistWarned.Store(false)
}

func (c *Client) logPersistError(err error) {
	if c.persistWarned.CompareAndSwap(false, true) {
		c.log.Warn("nonce persistence failed", zap.String("nonce_key", c.nonceKey), zap.Error(err))
	}
}

func (c *Client) recordedOrder(ctx context.Context, externalID string) (PlacedOrder, bool) {
	if c.store == nil || externalID == "" {
		return PlacedOrder{}, false
	}
	raw, ok, err := c.store.Get(ctx, c.scopedKey("order:"+externalID))
	if err != nil || !ok {
		return PlacedOrder{}, false
	}
	var placed PlacedOrder
	if err := json.Unmarshal([]byte(raw), &placed); err != nil {
		return PlacedOrder{}, false
	}
	return placed, true
}

func (c *Client) recordOrder(ctx context.Context, externalID string, placed PlacedOrder) {
	if c.store == nil || externalID == "" {
		return
	}
	raw, err := json.Marshal(placed)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.scopedKey("order:"+externalID), string(raw)); err != nil {
		c.log.Warn("order record failed", zap.String("external_id", externalID), zap.Error(err))
	}
}

func (c *Client) scopedKey(suffix string) string {
	return fmt.Sprintf("extended:%s:%s:%d:%s",
		strings.ToLower(strings.TrimSpace(c.env.BaseURL)),
		strings.ToLower(c.creds.PublicKey),
		c.creds.Vault,
		suffix,
	)
}
