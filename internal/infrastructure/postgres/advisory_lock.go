package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock wraps a single pinned connection holding a Postgres session
// advisory lock. Advisory locks are
// session-scoped, so the lock must be taken on — and released from — the
// same *pgxpool.Conn; handing the lock back to the pool would silently
// release it.
type AdvisoryLock struct {
	conn *pgxpool.Conn
	key  int64
}

// AcquireAdvisoryLock blocks until the named lock is held. The caller must
// call Release to return the connection to the pool.
func AcquireAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, name string) (*AdvisoryLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire pinned conn: %w", err)
	}
	key := lockKey(name)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pg_advisory_lock(%s): %w", name, err)
	}
	return &AdvisoryLock{conn: conn, key: key}, nil
}

// TryAcquireAdvisoryLock is the non-blocking form used where a busy lock
// means "another worker already owns this, skip" rather than "wait".
func TryAcquireAdvisoryLock(ctx context.Context, pool *pgxpool.Pool, name string) (*AdvisoryLock, bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire pinned conn: %w", err)
	}
	key := lockKey(name)
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("pg_try_advisory_lock(%s): %w", name, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &AdvisoryLock{conn: conn, key: key}, true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	l.conn.Release()
	l.conn = nil
	return err
}

// lockKey folds a human-readable lock name into the int64 key
// pg_advisory_lock requires.
func lockKey(name string) int64 {
	sum := sha256.Sum256([]byte(name))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
