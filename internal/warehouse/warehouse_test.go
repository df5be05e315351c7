package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetpipe/internal/failure"
)

type fakeTx struct {
	pgx.Tx
	execErr, commitErr error
	executed           []string
	args               [][]any
	committed          bool
	rolledBack         bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.executed = append(t.executed, sql)
	t.args = append(t.args, args)
	return pgconn.NewCommandTag("CALL"), t.execErr
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	tx       *fakeTx
	beginErr error
	closed   bool
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

func dialer(c *fakeConn, dialErr error, seen *string) Dialer {
	return func(_ context.Context, connString string) (Conn, error) {
		if seen != nil {
			*seen = connString
		}
		if dialErr != nil {
			return nil, dialErr
		}
		return c, nil
	}
}

func TestRun(t *testing.T) {
	const stmt = "CALL s3_csv_import();"

	t.Run("execute the script verbatim then commit and close", func(t *testing.T) {
		// given
		conn := &fakeConn{tx: &fakeTx{}}
		var dsn string

		// when
		err := Run(context.Background(), dialer(conn, nil, &dsn), "postgres://u:p@h:5439/dev", stmt)

		// then
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@h:5439/dev", dsn)
		assert.Equal(t, []string{stmt}, conn.tx.executed)
		assert.Empty(t, conn.tx.args[0])
		assert.True(t, conn.tx.committed)
		assert.False(t, conn.tx.rolledBack)
		assert.True(t, conn.closed)
	})
	t.Run("roll back and close when the procedure fails", func(t *testing.T) {
		conn := &fakeConn{tx: &fakeTx{execErr: errors.New("ERROR: S3ServiceException")}}

		err := Run(context.Background(), dialer(conn, nil, nil), "dsn", stmt)

		assert.Equal(t, failure.KindExecution, failure.KindOf(err))
		assert.False(t, conn.tx.committed)
		assert.True(t, conn.tx.rolledBack)
		assert.True(t, conn.closed)
	})
	t.Run("roll back and close when commit fails", func(t *testing.T) {
		conn := &fakeConn{tx: &fakeTx{commitErr: errors.New("serialization failure")}}

		err := Run(context.Background(), dialer(conn, nil, nil), "dsn", stmt)

		assert.Equal(t, failure.KindExecution, failure.KindOf(err))
		assert.True(t, conn.tx.rolledBack)
		assert.True(t, conn.closed)
	})
	t.Run("close when begin fails", func(t *testing.T) {
		conn := &fakeConn{beginErr: errors.New("conn busy")}

		err := Run(context.Background(), dialer(conn, nil, nil), "dsn", stmt)

		assert.Equal(t, failure.KindConnection, failure.KindOf(err))
		assert.True(t, conn.closed)
	})
	t.Run("return connection error when dial fails", func(t *testing.T) {
		err := Run(context.Background(), dialer(nil, errors.New("dial tcp: i/o timeout"), nil), "dsn", stmt)

		assert.Equal(t, failure.KindConnection, failure.KindOf(err))
	})
}
