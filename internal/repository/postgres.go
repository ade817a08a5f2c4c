package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
)

// PostgresStore implements Store against the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the shared connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// compile-time check
var _ Store = (*PostgresStore)(nil)

// pgTx adapts a pgx transaction to the Tx interface.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

// WithTx runs fn inside a transaction. Store-level failures (connection
// loss, deadlock, serialization) are rolled back and retried once; the
// second failure surfaces as STORE_UNAVAILABLE. Application errors from
// fn abort without retry.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.runTx(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}

	logger.Warn("transaction failed, retrying once", zap.Error(err))
	retryErr := s.runTx(ctx, fn)
	if retryErr == nil {
		return nil
	}
	if _, ok := apperrors.IsAppError(retryErr); ok {
		return retryErr
	}
	return apperrors.ErrStoreUnavailable(retryErr)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// noRows reports whether err is the pgx empty-result sentinel.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation reports a unique-constraint failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
