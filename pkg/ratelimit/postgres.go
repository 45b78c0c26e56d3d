package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS progress_rate_buckets (
  bucket_key TEXT PRIMARY KEY,
  count BIGINT NOT NULL,
  reset_at TIMESTAMPTZ NOT NULL
)`

const postgresConsume = `
INSERT INTO progress_rate_buckets(bucket_key,count,reset_at)
VALUES($1,1,$2)
ON CONFLICT (bucket_key) DO UPDATE SET
  count = CASE WHEN progress_rate_buckets.reset_at <= $3 THEN 1 ELSE progress_rate_buckets.count + 1 END,
  reset_at = CASE WHEN progress_rate_buckets.reset_at <= $3 THEN EXCLUDED.reset_at ELSE progress_rate_buckets.reset_at END
RETURNING count, reset_at
`

// Postgres keeps buckets in a table so every instance sees one counter per
// key. The upsert applies the reset-or-increment rule in a single statement.
type Postgres struct {
	DB  Querier
	now func() time.Time
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{DB: db, now: time.Now}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create progress_rate_buckets: %w", err)
	}
	return nil
}

func (p *Postgres) Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := p.now().UTC()
	var count int64
	var resetAt time.Time
	err := p.DB.QueryRow(ctx, postgresConsume, normalizeKey(key), now.Add(window), now).Scan(&count, &resetAt)
	if err != nil {
		return Result{}, fmt.Errorf("postgres rate limit %q: %w", key, err)
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining(limit, count),
		ResetAt:   resetAt,
	}, nil
}
