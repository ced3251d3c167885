package composables

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	name      string
	log       *[]string
	commitErr error
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	*f.log = append(*f.log, f.name+":savepoint")
	return &fakeTx{name: f.name + "/sp", log: f.log}, nil
}

func (f *fakeTx) Commit(ctx context.Context) error {
	*f.log = append(*f.log, f.name+":commit")
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	*f.log = append(*f.log, f.name+":rollback")
	return nil
}

func (f *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (f *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (f *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (f *fakeTx) Conn() *pgx.Conn                                              { return nil }

func TestUseTx_WithoutTxOrPool(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)

	_, err = BeginTx(context.Background())
	require.ErrorIs(t, err, ErrNoPool)
}

func TestUseTx_PrefersTransaction(t *testing.T) {
	var log []string
	tx := &fakeTx{name: "root", log: &log}
	got, err := UseTx(WithTx(context.Background(), tx))
	require.NoError(t, err)
	require.Same(t, tx, got)
}

func TestInTx_NestsAsSavepoint(t *testing.T) {
	var log []string
	root := &fakeTx{name: "root", log: &log}
	ctx := WithTx(context.Background(), root)

	err := InTx(ctx, func(ctx context.Context) error {
		inner, err := UseTx(ctx)
		require.NoError(t, err)
		require.NotSame(t, root, inner)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"root:savepoint", "root/sp:commit"}, log)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	var log []string
	ctx := WithTx(context.Background(), &fakeTx{name: "root", log: &log})
	boom := errors.New("boom")

	err := InTx(ctx, func(ctx context.Context) error {
		return InTx(ctx, func(context.Context) error { return boom })
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{
		"root:savepoint",
		"root/sp:savepoint",
		"root/sp/sp:rollback",
		"root/sp:rollback",
	}, log)
}

func TestInTx_InnerFailureSwallowedKeepsOuter(t *testing.T) {
	var log []string
	ctx := WithTx(context.Background(), &fakeTx{name: "root", log: &log})

	err := InTx(ctx, func(ctx context.Context) error {
		_ = InTx(ctx, func(context.Context) error { return errors.New("audit failed") })
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"root:savepoint",
		"root/sp:savepoint",
		"root/sp/sp:rollback",
		"root/sp:commit",
	}, log)
}

func TestUseLogger(t *testing.T) {
	require.Nil(t, UseLogger(context.Background()))

	entry := logrus.NewEntry(logrus.New()).WithField("run_id", "r1")
	got := UseLogger(WithLogger(context.Background(), entry))
	require.Same(t, entry, got)
}
