package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Counter is a scoped, time-bucketed rate counter backed by the relational
// store. Counts live in fixed windows keyed by (key, bucket start), so every
// instance sharing the database shares the limit without extra coordination.
type Counter struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New returns a Counter using the provided pool.
func New(pool *pgxpool.Pool) *Counter {
	return &Counter{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CheckAndIncrement consumes one unit from the bucket for key in the current
// window. It reports false once limit increments have landed in the window;
// the conditional upsert makes check and increment a single atomic statement.
func (c *Counter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c == nil || c.pool == nil {
		return false, errors.New("ratelimit: nil counter")
	}
	if key == "" {
		return false, errors.New("ratelimit: key is required")
	}
	if limit <= 0 || window <= 0 {
		return false, errors.New("ratelimit: limit and window must be positive")
	}

	bucket := BucketStart(c.now(), window)

	query := `
        INSERT INTO rate_counters (key, bucket_start, count)
        VALUES ($1, $2, 1)
        ON CONFLICT (key, bucket_start) DO UPDATE
            SET count = rate_counters.count + 1
            WHERE rate_counters.count < $3
        RETURNING count;
    `

	var count int
	err := c.pool.QueryRow(ctx, query, key, bucket, limit).Scan(&count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Conditional update declined: the bucket is full.
		return false, nil
	case err != nil:
		return false, err
	}

	return count <= limit, nil
}

// Prune removes buckets older than the retention horizon.
func (c *Counter) Prune(ctx context.Context, retain time.Duration) error {
	if c == nil || c.pool == nil {
		return errors.New("ratelimit: nil counter")
	}
	_, err := c.pool.Exec(ctx, `DELETE FROM rate_counters WHERE bucket_start < $1`, c.now().Add(-retain))
	return err
}

// BucketStart truncates t to the start of its window.
func BucketStart(t time.Time, window time.Duration) time.Time {
	return t.Truncate(window)
}
