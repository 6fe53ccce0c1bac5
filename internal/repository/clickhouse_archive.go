package repository

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	pkgch "StockForecaster/pkg/clickhouse"
	applogger "StockForecaster/pkg/logger"
)

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_closes (
        date       Date,
        symbol     LowCardinality(String),
        close      Float64,
        source     LowCardinality(String),
        fetched_at DateTime
    ) ENGINE = ReplacingMergeTree(fetched_at)
    ORDER BY (symbol, date)`,
	`CREATE TABLE IF NOT EXISTS predictions (
        id              UUID,
        symbol          LowCardinality(String),
        predicted_price Float64,
        last_close      Float64,
        as_of           Date,
        window_size     UInt16,
        source          LowCardinality(String),
        created_at      DateTime64(3)
    ) ENGINE = MergeTree
    ORDER BY (symbol, created_at)`,
}

const (
	insertCloseSQL      = `INSERT INTO daily_closes (date, symbol, close, source, fetched_at) VALUES (?, ?, ?, ?, ?)`
	insertPredictionSQL = `INSERT INTO predictions (id, symbol, predicted_price, last_close, as_of, window_size, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// batchStore is the subset of the ClickHouse client the archive needs.
type batchStore interface {
	InitSchema(ctx context.Context, stmts []string) error
	InsertBatch(ctx context.Context, query string, rows [][]any) error
	Health(ctx context.Context) error
	Close() error
}

// ClickHouseArchive implements PriceArchive.
type ClickHouseArchive struct {
	ch  batchStore
	l   *applogger.Logger
	now func() time.Time
}

var _ domrepo.PriceArchive = (*ClickHouseArchive)(nil)

func NewClickHouseArchive(ch *pkgch.Client, l *applogger.Logger) *ClickHouseArchive {
	return newClickHouseArchive(ch, l)
}

func newClickHouseArchive(ch batchStore, l *applogger.Logger) *ClickHouseArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseArchive{ch: ch, l: l, now: time.Now}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	return a.ch.InitSchema(ctx, archiveSchema)
}

// SaveSeries appends every point; ReplacingMergeTree collapses refetched days.
func (a *ClickHouseArchive) SaveSeries(ctx context.Context, series models.PriceSeries) error {
	if series.Empty() {
		return nil
	}
	start := time.Now()
	fetched := a.now().UTC()
	rows := make([][]any, 0, series.Len())
	for _, p := range series.Points {
		rows = append(rows, []any{p.Date, series.Symbol, p.Close, series.Source, fetched})
	}
	if err := a.ch.InsertBatch(ctx, insertCloseSQL, rows); err != nil {
		return fmt.Errorf("archive series %s: %w", series.Symbol, err)
	}
	a.l.Debug("clickhouse save_series ok",
		applogger.String("symbol", series.Symbol),
		applogger.String("source", series.Source),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (a *ClickHouseArchive) SavePrediction(ctx context.Context, ev models.PredictionEvent) error {
	row := []any{ev.ID, ev.Symbol, ev.PredictedPrice, ev.LastClose, ev.AsOf, uint16(ev.Window), ev.Source, ev.CreatedAt}
	if err := a.ch.InsertBatch(ctx, insertPredictionSQL, [][]any{row}); err != nil {
		return fmt.Errorf("archive prediction %s: %w", ev.ID, err)
	}
	return nil
}

func (a *ClickHouseArchive) Health(ctx context.Context) error { return a.ch.Health(ctx) }

func (a *ClickHouseArchive) Close() error { return a.ch.Close() }
