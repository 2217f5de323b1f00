package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

// ClickHouseLogSchema returns the DDL for the computation log in database.
func ClickHouseLogSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.computation_log (
			ts          DateTime64(3, 'UTC'),
			ticker      LowCardinality(String),
			signal      LowCardinality(String),
			final_score Float64
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (ticker, ts)`, database),
	}
}

// CHComputationLog implements ComputationLog backed by ClickHouse.
type CHComputationLog struct {
	db    *sql.DB
	table string
	opts  storeOptions
	l     *applogger.Logger
}

var _ domrepo.ComputationLog = (*CHComputationLog)(nil)

func NewCHComputationLog(ch *pkgch.Client, database string, opts ...StoreOption) *CHComputationLog {
	return newCHComputationLog(ch.DB(), database, opts...)
}

func newCHComputationLog(db *sql.DB, database string, opts ...StoreOption) *CHComputationLog {
	return &CHComputationLog{
		db:    db,
		table: database + ".computation_log",
		opts:  buildStoreOptions(opts),
	}
}

// SetLogger injects a structured logger.
func (s *CHComputationLog) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHComputationLog) Append(ctx context.Context, e models.LogEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.opts.now()
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, ticker, signal, final_score) VALUES (?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q, ts.UTC(), normTicker(e.Ticker), string(e.Signal), e.FinalScore); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse computation_log insert error",
				applogger.String("ticker", e.Ticker),
				applogger.Error(err),
			)
		}
		return logErr("append", err)
	}
	return nil
}

func (s *CHComputationLog) Trending(ctx context.Context, limit int) ([]models.TickerCount, error) {
	return s.TrendingSince(ctx, time.Unix(0, 0).UTC(), limit)
}

func (s *CHComputationLog) TrendingSince(ctx context.Context, since time.Time, limit int) ([]models.TickerCount, error) {
	start := time.Now()
	const qtpl = `
        SELECT ticker, count() AS c
        FROM %s
        WHERE ts >= ?
        GROUP BY ticker
        ORDER BY c DESC, ticker ASC
        LIMIT ?
    `
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), since.UTC(), limit)
	if err != nil {
		return nil, logErr("trending", err)
	}
	defer rows.Close()

	out := make([]models.TickerCount, 0, limit)
	for rows.Next() {
		var (
			tc models.TickerCount
			c  uint64
		)
		if err := rows.Scan(&tc.Ticker, &c); err != nil {
			return nil, logErr("trending scan", err)
		}
		tc.Count = int64(c)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, logErr("trending rows", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse trending ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHComputationLog) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n uint64
	q := fmt.Sprintf("SELECT count() FROM %s WHERE ts >= ?", s.table)
	if err := s.db.QueryRowContext(ctx, q, since.UTC()).Scan(&n); err != nil {
		return 0, logErr("count", err)
	}
	return int64(n), nil
}

// Close is a no-op; the pool is owned by pkg/clickhouse.Client.
func (s *CHComputationLog) Close() error {
	return nil
}
