// Package redis provides a Redis-backed Ledger for tierrouter.
//
// Records are stored as JSON in a per-user list. Appends run as an atomic Lua
// script that claims the record id in a persistent id set first, so a
// retried append never double-counts, however late it arrives.
// Safe for multi-instance deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ineyio/tierrouter"
)

// Store is a Redis-backed Ledger.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ tierrouter.Ledger = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "tierrouter:ledger:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed Ledger.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "tierrouter:ledger:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userKey(userID string) string { return s.keyPrefix + "user:" + userID }
func (s *Store) idsKey() string                { return s.keyPrefix + "ids" }
func (s *Store) usersKey() string              { return s.keyPrefix + "users" }

// appendScript is a Lua script for atomic append.
// KEYS[1] = record id set (never expires)
// KEYS[2] = user list key
// KEYS[3] = users set key
// ARGV[1] = record JSON
// ARGV[2] = record id
// ARGV[3] = user id
//
// Returns:
//
//	1 = appended
//	0 = duplicate record id
var appendScript = goredis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[2]) == 0 then
    return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[3])
return 1
`)

// Append stores rec. A record id already stored is ignored.
func (s *Store) Append(ctx context.Context, rec tierrouter.CostRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("tierrouter/redis: encode record: %w", err)
	}

	_, err = appendScript.Run(ctx, s.client,
		[]string{s.idsKey(), s.userKey(rec.UserID), s.usersKey()},
		string(data), rec.ID, rec.UserID,
	).Int64()
	if err != nil {
		return fmt.Errorf("tierrouter/redis: append: %w", err)
	}
	return nil
}

// Records returns a user's records at or after since, oldest first.
func (s *Store) Records(ctx context.Context, userID string, since time.Time) ([]tierrouter.CostRecord, error) {
	vals, err := s.client.LRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tierrouter/redis: records: %w", err)
	}

	out := make([]tierrouter.CostRecord, 0, len(vals))
	for _, v := range vals {
		var rec tierrouter.CostRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("tierrouter/redis: decode record: %w", err)
		}
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Total returns the sum of a user's record costs. Costs are summed in Go
// with exact decimal arithmetic, not in Lua.
func (s *Store) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	recs, err := s.Records(ctx, userID, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range recs {
		total = total.Add(r.Cost)
	}
	return total, nil
}

// Users returns every user with at least one record, sorted.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	users, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("tierrouter/redis: users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}
