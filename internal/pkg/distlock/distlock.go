package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context or wait budget ran out.
var ErrNotAcquired = errors.New("distlock: lock not acquired")

// DistLock is the interface for a single distributed lock.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker serializes work on a key. fn runs only while the lock is held.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NewLocker picks the best available backend.
// Redis is preferred for cross-host locking, then PostgreSQL advisory locks,
// then an in-process keyed mutex for single-node and test setups.
func NewLocker(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Locker {
	if redisClient != nil {
		return NewRedisLocker(redisClient, ttl)
	}
	if db != nil {
		return NewPGLocker(db)
	}
	return NewLocalLocker()
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Advisory locks are session-scoped, so both acquire and release run on one
// dedicated connection taken from the pool. The lock is released
// automatically if that connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{db: db, lockID: advisoryID(key)}
}

func advisoryID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

// PGLocker implements Locker with blocking advisory locks.
type PGLocker struct {
	db *sql.DB
}

// NewPGLocker creates a Locker backed by PostgreSQL advisory locks.
func NewPGLocker(db *sql.DB) *PGLocker {
	return &PGLocker{db: db}
}

// WithLock blocks in pg_advisory_lock until the lock is granted or ctx ends.
func (p *PGLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("advisory lock conn: %w", err)
	}
	defer conn.Close()

	id := advisoryID(key)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	defer conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", id)

	return fn(ctx)
}
