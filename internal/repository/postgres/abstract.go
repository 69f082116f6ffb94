package postgres

import (
	"context"

	pgconn "github.com/jackc/pgx/v5/pgconn"
)

// querier — общий интерфейс *pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
