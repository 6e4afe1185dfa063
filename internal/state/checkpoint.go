package state

import (
	"context"
	"encoding/json"
	"strings"
)

const RecorderCheckpointKey = "recorder:last_checkpoint"

// MarketCheckpoint marks the newest fill already recorded for one market.
// The trade id disambiguates fills sharing a timestamp.
type MarketCheckpoint struct {
	LastTradeTime int64 `json:"last_trade_time_ms"`
	LastTradeID   int64 `json:"last_trade_id"`
}

type RecorderCheckpoint struct {
	Markets     map[string]MarketCheckpoint `json:"markets"`
	UpdatedAtMS int64                       `json:"updated_at_ms"`
}

func (c RecorderCheckpoint) Market(name string) MarketCheckpoint {
	if c.Markets == nil {
		return MarketCheckpoint{}
	}
	return c.Markets[name]
}

func LoadRecorderCheckpoint(ctx context.Context, store Store) (RecorderCheckpoint, bool, error) {
	if store == nil {
		return RecorderCheckpoint{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, RecorderCheckpointKey)
	if err != nil {
		return RecorderCheckpoint{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return RecorderCheckpoint{}, false, nil
	}
	var checkpoint RecorderCheckpoint
	if err := json.Unmarshal([]byte(raw), &checkpoint); err != nil {
		return RecorderCheckpoint{}, false, err
	}
	return checkpoint, true, nil
}

func SaveRecorderCheckpoint(ctx context.Context, store Store, checkpoint RecorderCheckpoint) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return err
	}
	return store.Set(ctx, RecorderCheckpointKey, string(payload))
}
