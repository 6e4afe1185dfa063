package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"extended-hl-adapter/internal/config"
	"extended-hl-adapter/internal/metrics"
	"extended-hl-adapter/internal/state"

	"go.uber.org/zap"
)

// Source is the slice of the adapter's info surface the recorder reads.
// *compat.Info satisfies it.
type Source interface {
	UserFills(coin string, startTime, endTime int64) ([]map[string]any, error)
	UserState(address string) (map[string]any, error)
}

// Sink receives parsed rows. *Writer satisfies it.
type Sink interface {
	EnqueueFill(Fill)
	EnqueueSnapshot(AccountSnapshot)
}

// Notifier delivers outage alerts. *alerts.Telegram satisfies it.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Service polls account fills and margin state through the adapter's own
// info surface and feeds them to a Sink. Progress is checkpointed through
// the state store so restarts resume where the previous run stopped
// instead of replaying history.
type Service struct {
	cfg      config.RecorderConfig
	source   Source
	sink     Sink
	store    state.Store
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	checkpoint state.RecorderCheckpoint
	failures   int
	alerted    bool
}

func NewService(cfg config.RecorderConfig, source Source, sink Sink, store state.Store, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		source:   source,
		sink:     sink,
		store:    store,
		notifier: notifier,
		metrics:  metrics.NewNoop(),
		log:      log,
	}
}

// SetMetrics replaces the no-op counters. Call before Run.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	if m == nil {
		return
	}
	s.metrics = m
}

// Run polls until ctx is done. The first poll and snapshot fire
// immediately so a fresh start does not wait out a full interval.
func (s *Service) Run(ctx context.Context) error {
	checkpoint, ok, err := state.LoadRecorderCheckpoint(ctx, s.store)
	if err != nil {
		s.log.Warn("recorder checkpoint load failed", zap.Error(err))
	}
	if ok {
		s.checkpoint = checkpoint
		s.log.Info("recorder checkpoint restored",
			zap.Int("markets", len(checkpoint.Markets)),
			zap.Int64("updated_at_ms", checkpoint.UpdatedAtMS))
	}

	s.poll(ctx)
	s.snapshot(ctx)

	pollTicker := time.NewTicker(s.cfg.PollInterval)
	defer pollTicker.Stop()
	snapshotTicker := time.NewTicker(s.cfg.SnapshotInterval)
	defer snapshotTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			s.poll(ctx)
		case <-snapshotTicker.C:
			s.snapshot(ctx)
		}
	}
}

// HandleStreamFrame ingests one frame from the account trades channel.
// The poll loop stays authoritative for checkpoints; frames only shorten
// the latency between execution and the fills table, and the writer's
// conflict key absorbs the overlap. Safe to call from the stream
// goroutine while Run is looping.
func (s *Service) HandleStreamFrame(frame map[string]any) {
	if !strings.EqualFold(stringFromMap(frame, "type"), "TRADE") {
		return
	}
	items, ok := toSlice(frame["data"])
	if !ok {
		single, ok := toMap(frame["data"])
		if !ok {
			return
		}
		items = []any{single}
	}
	for _, item := range items {
		trade, ok := toMap(item)
		if !ok {
			continue
		}
		fill, ok := fillFromMap("", trade)
		if !ok || fill.Market == "" {
			continue
		}
		s.sink.EnqueueFill(fill)
	}
}

func (s *Service) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	failed := false
	advanced := false
	for _, market := range s.cfg.Markets {
		count, err := s.pollMarket(market)
		if err != nil {
			failed = true
			s.metrics.RecorderPollError.Inc()
			s.log.Warn("recorder poll failed", zap.String("market", market), zap.Error(err))
			continue
		}
		if count > 0 {
			advanced = true
			s.log.Debug("recorder fills enqueued", zap.String("market", market), zap.Int("count", count))
		}
	}
	if advanced {
		s.saveCheckpoint(ctx)
	}
	if failed {
		s.failures++
		s.maybeAlert(ctx)
		return
	}
	if s.alerted {
		s.log.Info("recorder poll recovered", zap.Int("misses", s.failures))
	}
	s.failures = 0
	s.alerted = false
}

// pollMarket fetches fills at or after the market's checkpoint and
// enqueues the unseen ones. Re-reading from the checkpoint timestamp
// rather than past it keeps fills that share a millisecond with the
// boundary; trade ids break the tie.
func (s *Service) pollMarket(market string) (int, error) {
	last := s.checkpoint.Market(market)
	fills, err := s.source.UserFills(market, last.LastTradeTime, 0)
	if err != nil {
		return 0, err
	}
	newest := last
	count := 0
	for _, raw := range fills {
		fill, ok := fillFromMap(market, raw)
		if !ok {
			continue
		}
		ms := fill.Time.UnixMilli()
		if ms < last.LastTradeTime || (ms == last.LastTradeTime && fill.TradeID <= last.LastTradeID) {
			continue
		}
		s.sink.EnqueueFill(fill)
		count++
		if ms > newest.LastTradeTime || (ms == newest.LastTradeTime && fill.TradeID > newest.LastTradeID) {
			newest = state.MarketCheckpoint{LastTradeTime: ms, LastTradeID: fill.TradeID}
		}
	}
	if newest != last {
		if s.checkpoint.Markets == nil {
			s.checkpoint.Markets = make(map[string]state.MarketCheckpoint)
		}
		s.checkpoint.Markets[market] = newest
		s.checkpoint.UpdatedAtMS = time.Now().UnixMilli()
	}
	return count, nil
}

func (s *Service) snapshot(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	userState, err := s.source.UserState("")
	if err != nil {
		s.metrics.RecorderPollError.Inc()
		s.log.Warn("recorder snapshot failed", zap.Error(err))
		return
	}
	snapshot, ok := snapshotFromUserState(time.Now().UTC(), userState)
	if !ok {
		s.log.Warn("recorder snapshot missing margin summary")
		return
	}
	s.sink.EnqueueSnapshot(snapshot)
}

func (s *Service) saveCheckpoint(ctx context.Context) {
	if err := state.SaveRecorderCheckpoint(ctx, s.store, s.checkpoint); err != nil {
		s.log.Warn("recorder checkpoint save failed", zap.Error(err))
	}
}

// maybeAlert fires once per outage, after the configured number of
// consecutive failed polls. The flag resets when a poll succeeds.
func (s *Service) maybeAlert(ctx context.Context) {
	if s.alerted || s.notifier == nil || s.failures < s.cfg.OutageThreshold {
		return
	}
	s.alerted = true
	message := fmt.Sprintf("extended-hl-adapter: recorder poll failed %d times in a row", s.failures)
	if err := s.notifier.Send(ctx, message); err != nil {
		s.log.Warn("recorder outage alert failed", zap.Error(err))
	}
}
