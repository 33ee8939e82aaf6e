// Package sqlite provides a SQLite-backed Ledger for tierrouter, for
// single-host tools such as the tierroute CLI.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ineyio/tierrouter"
)

// Store is a SQLite-backed Ledger. Costs are stored as decimal strings and
// summed in Go so totals stay exact.
type Store struct {
	db *sql.DB
}

var _ tierrouter.Ledger = (*Store)(nil)

// Open opens (creating if needed) the ledger database at path. The parent
// directory is created if it doesn't exist. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tierrouter/sqlite: open: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tierrouter/sqlite: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tierrouter/sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cost_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		provider TEXT NOT NULL,
		tier TEXT NOT NULL,
		requested_tier TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost TEXT NOT NULL,
		baseline TEXT NOT NULL,
		fallback INTEGER NOT NULL DEFAULT 0,
		estimated INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cost_records_user_ts ON cost_records(user_id, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores rec. A record id already stored is ignored.
func (s *Store) Append(ctx context.Context, rec tierrouter.CostRecord) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO cost_records
		(id, user_id, ts, provider, tier, requested_tier, model,
		 input_tokens, output_tokens, cost, baseline, fallback, estimated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.UserID, rec.Timestamp.UnixNano(), string(rec.Provider),
		rec.Tier.String(), rec.RequestedTier.String(), rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.Cost.String(), rec.Baseline.String(),
		rec.Fallback, rec.Estimated,
	)
	if err != nil {
		return fmt.Errorf("tierrouter/sqlite: append: %w", err)
	}
	return nil
}

// Records returns a user's records at or after since, oldest first.
func (s *Store) Records(ctx context.Context, userID string, since time.Time) ([]tierrouter.CostRecord, error) {
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, user_id, ts, provider, tier, requested_tier, model,
		input_tokens, output_tokens, cost, baseline, fallback, estimated
	FROM cost_records
	WHERE user_id = ? AND ts >= ?
	ORDER BY ts, id`, userID, from)
	if err != nil {
		return nil, fmt.Errorf("tierrouter/sqlite: records: %w", err)
	}
	defer rows.Close()

	var out []tierrouter.CostRecord
	for rows.Next() {
		var (
			rec                     tierrouter.CostRecord
			ts                      int64
			provider, tier, reqTier string
			cost, baseline          string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &ts, &provider, &tier, &reqTier, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &cost, &baseline, &rec.Fallback, &rec.Estimated); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: scan: %w", err)
		}

		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.Provider = tierrouter.Provider(provider)
		if rec.Tier, err = tierrouter.ParseTier(tier); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: record %s: %w", rec.ID, err)
		}
		if rec.RequestedTier, err = tierrouter.ParseTier(reqTier); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: record %s: %w", rec.ID, err)
		}
		if rec.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: record %s cost: %w", rec.ID, err)
		}
		if rec.Baseline, err = decimal.NewFromString(baseline); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: record %s baseline: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tierrouter/sqlite: records: %w", err)
	}
	return out, nil
}

// Total returns the sum of a user's record costs.
func (s *Store) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cost FROM cost_records WHERE user_id = ?`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tierrouter/sqlite: total: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return decimal.Zero, fmt.Errorf("tierrouter/sqlite: total: %w", err)
		}
		d, err := decimal.NewFromString(c)
		if err != nil {
			return decimal.Zero, fmt.Errorf("tierrouter/sqlite: total: %w", err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// Users returns every user with at least one record, sorted.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM cost_records ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("tierrouter/sqlite: users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("tierrouter/sqlite: users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
