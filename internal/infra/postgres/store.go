// Package postgres is a direct pgx connection to the Supabase database.
// It backs the stores whose invariants need a transaction: one default
// address per user, and an order inserted together with its items.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements port.AddressStore and port.OrderStore.
type Store struct {
	db     DB
	logger *zap.Logger
}

// New wraps an open connection pool.
func New(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Connect opens a pool for dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("postgres pool ready",
		zap.String("host", cfg.ConnConfig.Host),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return New(pool, logger), nil
}

func (s *Store) Close() { s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	ctx, span := tracer.Start(ctx, "Postgres."+op)
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return mapError(op, "", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(op, "", err)
	}
	return nil
}

// mapError converts pgx errors into domain errors. id names the row for
// ErrNotFound.
func mapError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resourceFor(op), ID: id}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &domain.ErrConflict{Message: pgErr.Message}
		case "23503":
			return &domain.ErrValidation{Field: "reference", Message: pgErr.Message}
		case "22P02":
			return &domain.ErrValidation{Field: "id", Message: pgErr.Message}
		}
	}
	return &domain.ErrExternalService{Service: "postgres/" + op, Err: err}
}

func resourceFor(op string) string {
	switch op {
	case "GetAddress", "UpdateAddress", "DeleteAddress", "SetDefaultAddress":
		return "address"
	default:
		return "order"
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
