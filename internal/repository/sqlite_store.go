package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
)

// SQLiteSchema creates the cache and log tables.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS signal_cache (
		ticker       TEXT PRIMARY KEY,
		final_score  REAL NOT NULL,
		signal       TEXT NOT NULL,
		regime       TEXT NOT NULL,
		result       TEXT NOT NULL,
		last_updated INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS computation_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker      TEXT NOT NULL,
		signal      TEXT NOT NULL,
		final_score REAL NOT NULL,
		ts          INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_computation_log_ticker_ts ON computation_log (ticker, ts)`,
	`CREATE INDEX IF NOT EXISTS idx_computation_log_ts ON computation_log (ts)`,
}

// SQLiteStore implements ResultCache and ComputationLog over one SQLite database.
// Every write is a single statement, so readers see a row either before or after it.
type SQLiteStore struct {
	db   *sql.DB
	opts storeOptions
}

var (
	_ repository.ResultCache    = (*SQLiteStore)(nil)
	_ repository.ComputationLog = (*SQLiteStore)(nil)
)

// NewSQLiteStore wraps db. The schema must already exist (see SQLiteSchema).
func NewSQLiteStore(db *sql.DB, opts ...StoreOption) *SQLiteStore {
	return &SQLiteStore{db: db, opts: buildStoreOptions(opts)}
}

func cacheErr(op string, err error) error {
	return &models.StageError{Stage: models.StageCache, Kind: models.ErrCache, Err: fmt.Errorf("%s: %w", op, err)}
}

func logErr(op string, err error) error {
	return &models.StageError{Stage: models.StageLog, Kind: models.ErrCache, Err: fmt.Errorf("%s: %w", op, err)}
}

func normTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func (s *SQLiteStore) IsFresh(ctx context.Context, ticker string, maxAge time.Duration) (bool, error) {
	var lu int64
	err := s.db.QueryRowContext(ctx, `SELECT last_updated FROM signal_cache WHERE ticker = ?`, normTicker(ticker)).Scan(&lu)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, cacheErr("is fresh", err)
	}
	return s.opts.now().Sub(time.Unix(0, lu)) < maxAge, nil
}

func (s *SQLiteStore) Get(ctx context.Context, ticker string) (*models.CacheEntry, error) {
	var (
		raw []byte
		lu  int64
	)
	t := normTicker(ticker)
	err := s.db.QueryRowContext(ctx, `SELECT result, last_updated FROM signal_cache WHERE ticker = ?`, t).Scan(&raw, &lu)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get", err)
	}
	var res models.FinalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, cacheErr("decode result", err)
	}
	return &models.CacheEntry{Ticker: t, Result: res, LastUpdated: time.Unix(0, lu).UTC()}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, ticker string, result models.FinalResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return cacheErr("encode result", err)
	}
	const q = `INSERT INTO signal_cache (ticker, final_score, signal, regime, result, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			final_score = excluded.final_score,
			signal = excluded.signal,
			regime = excluded.regime,
			result = excluded.result,
			last_updated = excluded.last_updated`
	_, err = s.db.ExecContext(ctx, q,
		normTicker(ticker),
		result.FinalScore,
		string(result.Signal),
		string(result.Regime),
		string(raw),
		s.opts.now().UnixNano(),
	)
	if err != nil {
		return cacheErr("upsert", err)
	}
	return nil
}

func (s *SQLiteStore) Invalidate(ctx context.Context, ticker string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM signal_cache WHERE ticker = ?`, normTicker(ticker))
	if err != nil {
		return false, cacheErr("invalidate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, cacheErr("invalidate rows", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, freshWithin time.Duration) (models.CacheStats, error) {
	var (
		st     models.CacheStats
		oldest sql.NullInt64
	)
	cutoff := s.opts.now().Add(-freshWithin).UnixNano()
	const q = `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN last_updated > ? THEN 1 ELSE 0 END), 0),
		MIN(last_updated)
		FROM signal_cache`
	if err := s.db.QueryRowContext(ctx, q, cutoff).Scan(&st.Total, &st.Fresh, &oldest); err != nil {
		return models.CacheStats{}, cacheErr("stats", err)
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		st.OldestEntry = &t
	}
	return st, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e models.LogEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.opts.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO computation_log (ticker, signal, final_score, ts) VALUES (?, ?, ?, ?)`,
		normTicker(e.Ticker), string(e.Signal), e.FinalScore, ts.UnixNano(),
	)
	if err != nil {
		return logErr("append", err)
	}
	return nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s *SQLiteStore) Trending(ctx context.Context, limit int) ([]models.TickerCount, error) {
	return s.trending(ctx, `SELECT ticker, COUNT(*) AS c FROM computation_log
		GROUP BY ticker ORDER BY c DESC, ticker ASC LIMIT ?`, sqlLimit(limit))
}

func (s *SQLiteStore) TrendingSince(ctx context.Context, since time.Time, limit int) ([]models.TickerCount, error) {
	return s.trending(ctx, `SELECT ticker, COUNT(*) AS c FROM computation_log WHERE ts >= ?
		GROUP BY ticker ORDER BY c DESC, ticker ASC LIMIT ?`, since.UnixNano(), sqlLimit(limit))
}

func (s *SQLiteStore) trending(ctx context.Context, q string, args ...interface{}) ([]models.TickerCount, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, logErr("trending", err)
	}
	defer rows.Close()

	out := make([]models.TickerCount, 0)
	for rows.Next() {
		var tc models.TickerCount
		if err := rows.Scan(&tc.Ticker, &tc.Count); err != nil {
			return nil, logErr("trending scan", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, logErr("trending rows", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM computation_log WHERE ts >= ?`, since.UnixNano()).Scan(&n); err != nil {
		return 0, logErr("count", err)
	}
	return n, nil
}

// Close is a no-op; the connection is owned by pkg/sqlite.Client.
func (s *SQLiteStore) Close() error {
	return nil
}
