package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"sheetpipe/internal/failure"
)

const closeTimeout = 5 * time.Second

// Conn is the part of *pgx.Conn used to run the load script.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Dialer opens a warehouse connection.
type Dialer func(ctx context.Context, connString string) (Conn, error)

// Dial connects with pgx. Redshift accepts the Postgres wire protocol.
func Dial(ctx context.Context, connString string) (Conn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run executes stmt in a single transaction and commits it. The transaction
// is rolled back on any failure and the connection is closed on every path.
func Run(ctx context.Context, dial Dialer, connString, stmt string) (err error) {
	conn, err := dial(ctx, connString)
	if err != nil {
		return failure.New(failure.KindConnection, "connect", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = conn.Close(cctx)
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return failure.New(failure.KindConnection, "begin", err)
	}
	defer func() {
		if err == nil {
			return
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = tx.Rollback(rctx)
	}()

	if _, err := tx.Exec(ctx, stmt); err != nil {
		return failure.New(failure.KindExecution, "exec", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return failure.New(failure.KindExecution, "commit", err)
	}
	return nil
}
