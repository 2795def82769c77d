// Package dbtest provides a transaction-less db.DB double for service
// tests that mock the repository layer.
package dbtest

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

// Stub satisfies db.DB. WithinTx simply invokes fn with a nil Querier;
// mocked repositories never touch it.
type Stub struct{}

func (Stub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (Stub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (Stub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (Stub) WithinTx(ctx context.Context, fn func(q db.Querier) error) error {
	return fn(nil)
}
