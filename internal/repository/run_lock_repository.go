package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// escalatorLockKey is the advisory lock key for the escalation pass.
// One key for the whole service: passes are single-flight across replicas.
const escalatorLockKey = 744210031

// RunLockRepository guards the escalation pass with a Postgres session
// advisory lock, so overlapping scheduler firings (or a second replica)
// skip instead of double-processing.
//
// Advisory locks are bound to the session, so the repository pins one
// pooled connection for the lifetime of the lock.
type RunLockRepository struct {
	db *database.DB

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewRunLockRepository creates a new RunLockRepository.
func NewRunLockRepository(db *database.DB) *RunLockRepository {
	return &RunLockRepository{db: db}
}

// TryAcquire attempts to take the pass lock without blocking. Returns false
// when another invocation holds it.
func (r *RunLockRepository) TryAcquire(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return false, errors.New(errors.ErrCodeConflict, "escalation run lock already held by this process")
	}

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to acquire connection for run lock")
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, escalatorLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to acquire escalation run lock")
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	r.conn = conn
	return true, nil
}

// Release frees the pass lock and returns the pinned connection to the pool.
func (r *RunLockRepository) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	var released bool
	err := r.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, escalatorLockKey).Scan(&released)
	r.conn.Release()
	r.conn = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to release escalation run lock")
	}
	return nil
}
