package session_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/config"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/docdb"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/flags"
	"github.com/leftmike/pggate/session"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
	"github.com/leftmike/pggate/testutil"
)

func openStore(t *testing.T) *docdb.Store {
	t.Helper()

	st, err := docdb.Open("btree", "",
		testutil.SetupLogger(filepath.Join("testdata", "session.log")))
	require.NoError(t, err)
	return st
}

func constant(t *testing.T, v int64) *expr.Expr {
	t.Helper()

	e, err := expr.NewConstant(sql.Int32Type, sql.Int64Value(v))
	require.NoError(t, err)
	return e
}

func createKV(t *testing.T, sess *session.Session) *catalog.TableDesc {
	t.Helper()

	td, err := sess.CreateTable(context.Background(), "kv", true,
		[]catalog.ColumnDesc{
			{Name: "key", Type: sql.Int32Type, Key: true},
			{Name: "value", Type: sql.Int32Type},
		})
	require.NoError(t, err)
	return td
}

func insertKV(t *testing.T, sess *session.Session, td *catalog.TableDesc, key, val int64) {
	t.Helper()

	ins, err := sess.NewInsert(td.ID)
	require.NoError(t, err)
	require.NoError(t, ins.BindColumn(1, constant(t, key)))
	require.NoError(t, ins.BindColumn(2, constant(t, val)))
	n, err := ins.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

type kvRow struct {
	key, value int64
	oid        uint32
	rowID      []byte
}

func selectKV(t *testing.T, sess *session.Session, td *catalog.TableDesc,
	bind func(sel interface{ BindColumn(int, *expr.Expr) error })) ([]kvRow, error) {

	t.Helper()

	sel, err := sess.NewSelect(td.ID)
	require.NoError(t, err)
	err = sel.AppendSystemTargets(
		func() error {
			for _, attrNum := range []int{1, 2} {
				err := sel.AppendTarget(expr.NewColumnRef(attrNum, sql.UnknownType))
				if err != nil {
					return err
				}
			}
			return nil
		})
	require.NoError(t, err)
	if bind != nil {
		bind(sel)
	}

	ctx := context.Background()
	err = sel.Exec(ctx)
	if err != nil {
		return nil, err
	}

	var rows []kvRow
	values := make([]sql.Value, 2)
	nulls := make([]bool, 2)
	for {
		var sys docdata.SysColumns
		ok, err := sel.Fetch(ctx, 2, values, nulls, &sys)
		if err != nil {
			return nil, err
		}
		if !ok {
			require.Equal(t, []bool{true, true}, nulls)
			break
		}
		require.Equal(t, []bool{false, false}, nulls)
		rows = append(rows,
			kvRow{
				key:   int64(values[0].(sql.Int64Value)),
				value: int64(values[1].(sql.Int64Value)),
				oid:   sys.OID,
				rowID: sys.RowID,
			})
	}
	require.Equal(t, int64(len(rows)), sel.RowsFetched())
	return rows, nil
}

func keysValues(rows []kvRow) [][2]int64 {
	var kvs [][2]int64
	for _, r := range rows {
		kvs = append(kvs, [2]int64{r.key, r.value})
	}
	return kvs
}

func TestSession(t *testing.T) {
	st := openStore(t)
	defer st.Close()

	cfg := config.Default()
	cfg.PrefetchLimit = 2
	sess := session.New(st, cfg)
	td := createKV(t, sess)

	for key := int64(1); key <= 5; key += 1 {
		insertKV(t, sess, td, key, key*10)
	}

	rows, err := selectKV(t, sess, td, nil)
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{1, 10}, {2, 20}, {3, 30}, {4, 40}, {5, 50}}, keysValues(rows))
	for _, r := range rows {
		require.GreaterOrEqual(t, r.oid, uint32(docdb.FirstOID))
		require.Equal(t, docdb.EncodeRowID([]sql.Value{sql.Int64Value(r.key)}), r.rowID)
	}

	rows, err = selectKV(t, sess, td,
		func(sel interface{ BindColumn(int, *expr.Expr) error }) {
			require.NoError(t, sel.BindColumn(2, constant(t, 50)))
		})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{5, 50}}, keysValues(rows))

	rows, err = selectKV(t, sess, td,
		func(sel interface{ BindColumn(int, *expr.Expr) error }) {
			require.NoError(t, sel.BindColumn(1, constant(t, 3)))
		})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{3, 30}}, keysValues(rows))

	upd, err := sess.NewUpdate(td.ID)
	require.NoError(t, err)
	require.NoError(t, upd.BindColumn(1, constant(t, 2)))
	require.NoError(t, upd.AssignColumn(2, constant(t, 200)))
	n, err := upd.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	del, err := sess.NewDelete(td.ID)
	require.NoError(t, err)
	require.NoError(t, del.BindColumn(catalog.RowIDAttrNum,
		func() *expr.Expr {
			e, err := expr.NewConstant(sql.BinaryType,
				sql.BytesValue(docdb.EncodeRowID([]sql.Value{sql.Int64Value(4)})))
			require.NoError(t, err)
			return e
		}()))
	n, err = del.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = del.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	rows, err = selectKV(t, sess, td, nil)
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{1, 10}, {2, 200}, {3, 30}, {5, 50}}, keysValues(rows))

	require.NoError(t, sess.DropTable(context.Background(), td.ID))
	_, err = sess.NewSelect(td.ID)
	require.True(t, status.IsNotFound(err))
}

func TestFlags(t *testing.T) {
	st := openStore(t)
	defer st.Close()

	cfg := config.Default()
	cfg.PrefetchLimit = 1
	cfg.Flags.SetFlag(flags.PruneColumns, false)
	cfg.Flags.SetFlag(flags.PointLookup, false)
	sess := session.New(st, cfg)
	td := createKV(t, sess)

	for key := int64(1); key <= 3; key += 1 {
		insertKV(t, sess, td, key, -key)
	}

	rows, err := selectKV(t, sess, td,
		func(sel interface{ BindColumn(int, *expr.Expr) error }) {
			require.NoError(t, sel.BindColumn(1, constant(t, 3)))
		})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{3, -3}}, keysValues(rows))
}

func TestTransaction(t *testing.T) {
	st := openStore(t)
	defer st.Close()

	sess1 := session.New(st, nil)
	sess2 := session.New(st, nil)
	td := createKV(t, sess1)
	insertKV(t, sess1, td, 1, 10)
	insertKV(t, sess1, td, 2, 20)

	require.True(t, status.Is(sess1.Commit(), status.IllegalState))
	require.NoError(t, sess1.Begin())
	require.True(t, status.Is(sess1.Begin(), status.IllegalState))
	require.True(t, sess1.InTransaction())

	rows, err := selectKV(t, sess1, td, nil)
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{1, 10}, {2, 20}}, keysValues(rows))

	upd, err := sess2.NewUpdate(td.ID)
	require.NoError(t, err)
	require.NoError(t, upd.BindColumn(1, constant(t, 1)))
	require.NoError(t, upd.AssignColumn(2, constant(t, 11)))
	_, err = upd.Exec(context.Background())
	require.NoError(t, err)

	_, err = selectKV(t, sess1, td, nil)
	require.True(t, status.Is(err, status.TryAgain), "select got %v", err)
	require.True(t, status.IsRetryable(err))

	rows, err = selectKV(t, sess1, td,
		func(sel interface{ BindColumn(int, *expr.Expr) error }) {
			require.NoError(t, sel.BindColumn(2, constant(t, 20)))
		})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{2, 20}}, keysValues(rows))

	upd, err = sess1.NewUpdate(td.ID)
	require.NoError(t, err)
	require.NoError(t, upd.BindColumn(1, constant(t, 1)))
	require.NoError(t, upd.AssignColumn(2, constant(t, 12)))
	_, err = upd.Exec(context.Background())
	require.True(t, status.Is(err, status.TryAgain), "update got %v", err)

	require.NoError(t, upd.BindColumn(1, constant(t, 2)))
	n, err := upd.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, sess1.Abort())
	require.False(t, sess1.InTransaction())

	require.NoError(t, upd.BindColumn(1, constant(t, 1)))
	n, err = upd.Exec(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err = selectKV(t, sess2, td, nil)
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{1, 12}, {2, 12}}, keysValues(rows))
}

func TestTimeout(t *testing.T) {
	st := openStore(t)
	defer st.Close()

	sess := session.New(st, nil)
	td := createKV(t, sess)
	insertKV(t, sess, td, 1, 10)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	ins, err := sess.NewInsert(td.ID)
	require.NoError(t, err)
	require.NoError(t, ins.BindColumn(1, constant(t, 2)))
	require.NoError(t, ins.BindColumn(2, constant(t, 20)))
	_, err = ins.Exec(ctx)
	require.True(t, status.Is(err, status.TimedOut), "insert got %v", err)
	require.True(t, status.IsRetryable(err))

	sel, err := sess.NewSelect(td.ID)
	require.NoError(t, err)
	require.NoError(t, sel.AppendTarget(expr.NewColumnRef(1, sql.UnknownType)))
	require.NoError(t, sel.Exec(context.Background()))
	_, err = sel.Fetch(ctx, 2, make([]sql.Value, 2), make([]bool, 2), nil)
	require.True(t, status.Is(err, status.TimedOut), "fetch got %v", err)
}
