package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"extended-hl-adapter/internal/config"
	"extended-hl-adapter/internal/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Fill is one executed trade on the account.
type Fill struct {
	Time        time.Time
	Market      string
	Side        string
	Price       float64
	Size        float64
	Fee         float64
	OrderID     int64
	TradeID     int64
	Crossed     bool
	Liquidation bool
}

// AccountSnapshot is a point-in-time view of the account margin figures.
type AccountSnapshot struct {
	Time         time.Time
	Equity       float64
	Balance      float64
	Withdrawable float64
	MarginUsed   float64
	NotionalUSD  float64
}

// Writer persists fills and account snapshots to TimescaleDB. A nil
// *Writer is valid and drops everything, so callers wire it
// unconditionally and let config decide.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	metrics   *metrics.Metrics
	schema    string
	fills     chan Fill
	snapshots chan AccountSnapshot
	started   atomic.Bool
	dropFill  atomic.Uint64
	dropSnap  atomic.Uint64
}

func NewWriter(cfg config.RecorderConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("recorder dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		metrics:   metrics.NewNoop(),
		schema:    schema,
		fills:     make(chan Fill, queueSize),
		snapshots: make(chan AccountSnapshot, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

// SetMetrics replaces the no-op counters. Call before Start.
func (w *Writer) SetMetrics(m *metrics.Metrics) {
	if w == nil || m == nil {
		return
	}
	w.metrics = m
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueFill(fill Fill) {
	if w == nil {
		return
	}
	select {
	case w.fills <- fill:
		return
	default:
		if w.dropFill.Add(1) == 1 && w.log != nil {
			w.log.Warn("recorder fill queue full")
		}
	}
}

func (w *Writer) EnqueueSnapshot(snapshot AccountSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.snapshots <- snapshot:
		return
	default:
		if w.dropSnap.Add(1) == 1 && w.log != nil {
			w.log.Warn("recorder snapshot queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill := <-w.fills:
			w.writeFill(ctx, fill)
		case snap := <-w.snapshots:
			w.writeSnapshot(ctx, snap)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("recorder db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		px DOUBLE PRECISION NOT NULL,
		sz DOUBLE PRECISION NOT NULL,
		fee DOUBLE PRECISION NOT NULL DEFAULT 0,
		oid BIGINT NOT NULL,
		tid BIGINT NOT NULL,
		crossed BOOLEAN NOT NULL,
		liquidation BOOLEAN NOT NULL,
		PRIMARY KEY (ts, tid)
	)`, w.table("account_fills"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		equity DOUBLE PRECISION NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		withdrawable DOUBLE PRECISION NOT NULL,
		margin_used DOUBLE PRECISION NOT NULL,
		notional_usd DOUBLE PRECISION NOT NULL
	)`, w.table("account_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("account_fills"))); err != nil && w.log != nil {
		w.log.Warn("account_fills hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("account_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("account_snapshots hypertable create failed", zap.Error(err))
	}
	return nil
}

// writeFill inserts one fill. The (ts, tid) key absorbs replays from the
// poll loop re-reading the checkpoint boundary and from stream frames.
func (w *Writer) writeFill(ctx context.Context, fill Fill) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, market, side, px, sz, fee, oid, tid, crossed, liquidation
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)
	ON CONFLICT (ts, tid) DO NOTHING`, w.table("account_fills"))
	if _, err := w.db.ExecContext(ctx, query,
		fill.Time,
		fill.Market,
		fill.Side,
		fill.Price,
		fill.Size,
		fill.Fee,
		fill.OrderID,
		fill.TradeID,
		fill.Crossed,
		fill.Liquidation,
	); err != nil {
		w.metrics.RecorderWriteError.Inc()
		if w.log != nil {
			w.log.Warn("recorder fill insert failed", zap.Error(err))
		}
		return
	}
	w.metrics.FillsRecorded.Inc()
}

func (w *Writer) writeSnapshot(ctx context.Context, snap AccountSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, equity, balance, withdrawable, margin_used, notional_usd
	) VALUES (
		$1,$2,$3,$4,$5,$6
	)`, w.table("account_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Equity,
		snap.Balance,
		snap.Withdrawable,
		snap.MarginUsed,
		snap.NotionalUSD,
	); err != nil {
		w.metrics.RecorderWriteError.Inc()
		if w.log != nil {
			w.log.Warn("recorder snapshot insert failed", zap.Error(err))
		}
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
