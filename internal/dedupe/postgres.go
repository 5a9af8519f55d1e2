package dedupe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_objects (
	object_key TEXT PRIMARY KEY,
	claimed_at TIMESTAMPTZ NOT NULL
)`

// PostgresLedger keeps claims in the processed_objects table.
type PostgresLedger struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenPostgres opens a lib/pq connection pool and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresLedger(db *sql.DB, ttl time.Duration) *PostgresLedger {
	return &PostgresLedger{db: db, ttl: ttl, now: time.Now}
}

// EnsureSchema creates the claims table if needed.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create processed_objects: %w", err)
	}
	return nil
}

// Claim inserts the key. An existing claim older than the TTL is taken over.
func (l *PostgresLedger) Claim(ctx context.Context, key string) (bool, error) {
	now := l.now().UTC()
	var (
		res sql.Result
		err error
	)
	if l.ttl > 0 {
		res, err = l.db.ExecContext(ctx, `
			INSERT INTO processed_objects (object_key, claimed_at) VALUES ($1, $2)
			ON CONFLICT (object_key) DO UPDATE SET claimed_at = EXCLUDED.claimed_at
			WHERE processed_objects.claimed_at <= $3`,
			key, now, now.Add(-l.ttl))
	} else {
		res, err = l.db.ExecContext(ctx, `
			INSERT INTO processed_objects (object_key, claimed_at) VALUES ($1, $2)
			ON CONFLICT (object_key) DO NOTHING`,
			key, now)
	}
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *PostgresLedger) Release(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM processed_objects WHERE object_key = $1`, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
