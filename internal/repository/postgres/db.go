// internal/repository/postgres/db.go
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

// querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is a querier that can also open transactions.
type beginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies the embedded schema. Every statement in it is idempotent,
// so it runs on each start.
func Migrate(ctx context.Context, q querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
