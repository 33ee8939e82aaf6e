// Package postgres provides a PostgreSQL-backed Ledger for tierrouter.
//
// Cost records are stored in a single table with costs as NUMERIC, so sums
// are exact. Appends are idempotent on the record id. This makes it safe for
// multi-instance deployments and provides durability across restarts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ineyio/tierrouter"
)

// Store is a PostgreSQL-backed Ledger.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ tierrouter.Ledger = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "tierrouter_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed Ledger.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "tierrouter_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) recordsTable() string { return s.tablePrefix + "cost_records" }

// EnsureSchema creates the required tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			provider TEXT NOT NULL,
			tier TEXT NOT NULL,
			requested_tier TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens BIGINT NOT NULL,
			output_tokens BIGINT NOT NULL,
			cost NUMERIC(20, 10) NOT NULL,
			baseline NUMERIC(20, 10) NOT NULL DEFAULT 0,
			fallback BOOLEAN NOT NULL DEFAULT false,
			estimated BOOLEAN NOT NULL DEFAULT false
		);
		CREATE INDEX IF NOT EXISTS %[1]s_user_ts ON %[1]s (user_id, ts);
	`, s.recordsTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("tierrouter/postgres: ensure schema: %w", err)
	}
	return nil
}

// Append stores rec. A record id already stored is ignored.
func (s *Store) Append(ctx context.Context, rec tierrouter.CostRecord) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s
			(id, user_id, ts, provider, tier, requested_tier, model,
			 input_tokens, output_tokens, cost, baseline, fallback, estimated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12, $13)
			ON CONFLICT (id) DO NOTHING`, s.recordsTable()),
		rec.ID, rec.UserID, rec.Timestamp.UTC(), string(rec.Provider),
		rec.Tier.String(), rec.RequestedTier.String(), rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.Cost.String(), rec.Baseline.String(),
		rec.Fallback, rec.Estimated,
	)
	if err != nil {
		return fmt.Errorf("tierrouter/postgres: append: %w", err)
	}
	return nil
}

// Records returns a user's records at or after since, oldest first.
func (s *Store) Records(ctx context.Context, userID string, since time.Time) ([]tierrouter.CostRecord, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, user_id, ts, provider, tier, requested_tier, model,
			input_tokens, output_tokens, cost::text, baseline::text, fallback, estimated
			FROM %s WHERE user_id = $1 AND ts >= $2 ORDER BY ts, id`, s.recordsTable()),
		userID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("tierrouter/postgres: records: %w", err)
	}
	defer rows.Close()

	var out []tierrouter.CostRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tierrouter/postgres: records: %w", err)
	}
	return out, nil
}

func scanRecord(rows pgx.Rows) (tierrouter.CostRecord, error) {
	var (
		rec                     tierrouter.CostRecord
		provider, tier, reqTier string
		cost, baseline          string
	)
	err := rows.Scan(&rec.ID, &rec.UserID, &rec.Timestamp, &provider, &tier, &reqTier, &rec.Model,
		&rec.InputTokens, &rec.OutputTokens, &cost, &baseline, &rec.Fallback, &rec.Estimated)
	if err != nil {
		return rec, fmt.Errorf("tierrouter/postgres: scan: %w", err)
	}

	rec.Provider = tierrouter.Provider(provider)
	if rec.Tier, err = tierrouter.ParseTier(tier); err != nil {
		return rec, fmt.Errorf("tierrouter/postgres: record %s: %w", rec.ID, err)
	}
	if rec.RequestedTier, err = tierrouter.ParseTier(reqTier); err != nil {
		return rec, fmt.Errorf("tierrouter/postgres: record %s: %w", rec.ID, err)
	}
	if rec.Cost, err = decimal.NewFromString(cost); err != nil {
		return rec, fmt.Errorf("tierrouter/postgres: record %s cost: %w", rec.ID, err)
	}
	if rec.Baseline, err = decimal.NewFromString(baseline); err != nil {
		return rec, fmt.Errorf("tierrouter/postgres: record %s baseline: %w", rec.ID, err)
	}
	return rec, nil
}

// Total returns the sum of a user's record costs.
func (s *Store) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(SUM(cost), 0)::text FROM %s WHERE user_id = $1`, s.recordsTable()),
		userID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tierrouter/postgres: total: %w", err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tierrouter/postgres: total: %w", err)
	}
	return d, nil
}

// Users returns every user with at least one record, sorted.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT user_id FROM %s ORDER BY user_id`, s.recordsTable()))
	if err != nil {
		return nil, fmt.Errorf("tierrouter/postgres: users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tierrouter/postgres: users: %w", err)
	}
	return users, nil
}

// Prune deletes records older than the retention window.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE ts < $1`, s.recordsTable()),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("tierrouter/postgres: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
