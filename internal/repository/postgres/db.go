// Package postgres implements the ledger Store on PostgreSQL via pgx.
// Dispatch and approval commits run in serializable transactions; row locks
// on the association serialize writers per tenant while a CHECK constraint
// on the balance backstops the no-overdraft invariant.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
)

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Migrate applies pending SQL migrations from migrationsPath. It opens a
// short-lived database/sql connection for golang-migrate and closes it when
// done.
func Migrate(databaseURL, migrationsPath string) error {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// InTransaction runs fn inside one serializable transaction. Serialization
// failures, deadlocks and lock timeouts surface as Conflict so the caller can
// retry from fresh reads.
func (db *DB) InTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// mapPgError translates low-level postgres failures into the ledger's error
// kinds. Coded errors pass through untouched.
func mapPgError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return apperr.Conflict("transaction could not be serialized, retry")
		case "23505":
			return apperr.InvalidState("a conflicting row already exists: " + pgErr.ConstraintName)
		case "23514":
			// balance CHECK constraint; concurrent writer won the race
			return apperr.Conflict("constraint violated by concurrent update: " + pgErr.ConstraintName)
		}
	}
	return err
}
