package expr_test

import (
	"bytes"
	"testing"

	"github.com/lib/pq/oid"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

type tableContext struct {
	tbl *catalog.Table
}

func (tc tableContext) PrepareColumnForRead(attrNum int, slot *docapi.Expression) (
	*catalog.Column, error) {

	col, err := tc.tbl.FindColumn(attrNum)
	if err != nil {
		return nil, err
	}
	slot.ColumnID = col.ID
	col.SetReadRequested(true)
	return col, nil
}

func newContext() tableContext {
	return tableContext{
		tbl: catalog.NewTable(catalog.NewTableDesc(1, "t", true,
			[]catalog.ColumnDesc{
				{Name: "i", Type: sql.Int32Type},
				{Name: "s", Type: sql.StringType},
			})),
	}
}

func mustConstant(t *testing.T, typ sql.InternalType, v sql.Value) *expr.Expr {
	t.Helper()

	e, err := expr.NewConstant(typ, v)
	if err != nil {
		t.Fatalf("NewConstant(%s, %v) failed with %s", typ, v, err)
	}
	return e
}

func TestConstant(t *testing.T) {
	ctx := newContext()

	e := mustConstant(t, sql.Int32Type, sql.Int64Value(12))
	if !e.IsConstant() || e.InternalType() != sql.Int32Type || e.Kind() != expr.Constant {
		t.Errorf("NewConstant() got %s %s", e.Kind(), e.InternalType())
	}

	var slot docapi.Expression
	err := e.PrepareForRead(ctx, &slot)
	if err != nil {
		t.Fatalf("PrepareForRead() failed with %s", err)
	}
	err = e.Eval(ctx, &slot)
	if err != nil {
		t.Fatalf("Eval() failed with %s", err)
	}
	if !slot.IsValue || slot.Value != sql.Int64Value(12) {
		t.Errorf("Eval() got %v want 12", slot)
	}

	_, err = expr.NewConstant(sql.Int16Type, sql.Int64Value(100000))
	if !status.Is(err, status.InvalidArgument) {
		t.Errorf("NewConstant(INT16, 100000) got %v want invalid argument", err)
	}

	e, err = expr.NewConstantOid(oid.T_bytea, sql.BytesValue{1, 2, 3})
	if err != nil {
		t.Fatalf("NewConstantOid(bytea) failed with %s", err)
	}
	if e.InternalType() != sql.BinaryType || !bytes.Equal(e.BinaryValue(), []byte{1, 2, 3}) {
		t.Errorf("NewConstantOid(bytea) got %s %v", e.InternalType(), e.BinaryValue())
	}

	e = mustConstant(t, sql.StringType, nil)
	if e.Value() != nil || e.String() != "NULL" {
		t.Errorf("NewConstant(NULL) got %s", e)
	}
}

func TestColumnRef(t *testing.T) {
	ctx := newContext()

	e := expr.NewColumnRef(2, sql.UnknownType)
	var slot docapi.Expression
	err := e.PrepareForRead(ctx, &slot)
	if err != nil {
		t.Fatalf("PrepareForRead() failed with %s", err)
	}
	if e.InternalType() != sql.StringType || slot.ColumnID != catalog.FirstUserColumnID+1 ||
		slot.IsValue {
		t.Errorf("PrepareForRead() got %s %v", e.InternalType(), slot)
	}

	before := slot
	err = e.Eval(ctx, &slot)
	if err != nil || slot != before {
		t.Errorf("Eval() got %v, %v want %v", slot, err, before)
	}

	e, err = expr.NewColumnRefOid(1, oid.T_text)
	if err != nil {
		t.Fatal(err)
	}
	err = e.PrepareForRead(ctx, &slot)
	if !status.Is(err, status.Corruption) {
		t.Errorf("PrepareForRead(int column as text) got %v want corruption", err)
	}

	e = expr.NewColumnRef(5, sql.UnknownType)
	err = e.PrepareForRead(ctx, &slot)
	if !status.IsNotFound(err) {
		t.Errorf("PrepareForRead(missing column) got %v want not found", err)
	}
}

func TestPlaceholder(t *testing.T) {
	ctx := newContext()

	e := expr.NewPlaceholder(sql.StringType)
	if e.IsConstant() {
		t.Errorf("placeholder is constant")
	}

	var slot docapi.Expression
	err := e.PrepareForRead(ctx, &slot)
	if err != nil {
		t.Fatal(err)
	}
	err = e.Eval(ctx, &slot)
	if !status.Is(err, status.InvalidArgument) {
		t.Errorf("Eval(unbound) got %v want invalid argument", err)
	}

	for _, s := range []string{"abc", "def"} {
		err = e.BindValue(sql.StringValue(s))
		if err != nil {
			t.Fatal(err)
		}
		err = e.Eval(ctx, &slot)
		if err != nil || slot.Value != sql.StringValue(s) {
			t.Errorf("Eval() got %v, %v want %s", slot.Value, err, s)
		}
	}

	err = e.BindValue(sql.Int64Value(1))
	if err == nil {
		t.Errorf("BindValue(1) on a string placeholder did not fail")
	}
}

func TestOperator(t *testing.T) {
	ctx := newContext()

	cases := []struct {
		op   expr.Op
		args []*expr.Expr
		v    sql.Value
	}{
		{
			op: expr.OpAdd,
			args: []*expr.Expr{mustConstant(t, sql.Int32Type, sql.Int64Value(2)),
				mustConstant(t, sql.Int32Type, sql.Int64Value(3))},
			v: sql.Int64Value(5),
		},
		{
			op: expr.OpMul,
			args: []*expr.Expr{mustConstant(t, sql.DoubleType, sql.Float64Value(1.5)),
				mustConstant(t, sql.DoubleType, sql.Float64Value(2))},
			v: sql.Float64Value(3),
		},
		{
			op: expr.OpSub,
			args: []*expr.Expr{mustConstant(t, sql.Int64Type, sql.Int64Value(2)),
				mustConstant(t, sql.Int64Type, nil)},
			v: nil,
		},
		{
			op: expr.OpConcat,
			args: []*expr.Expr{mustConstant(t, sql.StringType, sql.StringValue("ab")),
				mustConstant(t, sql.StringType, sql.StringValue("cd"))},
			v: sql.StringValue("abcd"),
		},
	}

	for _, c := range cases {
		e, err := expr.NewOperator(c.op, c.args...)
		if err != nil {
			t.Errorf("NewOperator(%s) failed with %s", c.op, err)
			continue
		}
		var slot docapi.Expression
		err = e.PrepareForRead(ctx, &slot)
		if err != nil {
			t.Errorf("%s.PrepareForRead() failed with %s", e, err)
			continue
		}
		err = e.Eval(ctx, &slot)
		if err != nil {
			t.Errorf("%s.Eval() failed with %s", e, err)
		} else if !slot.IsValue || slot.Value != c.v {
			t.Errorf("%s.Eval() got %v want %v", e, slot.Value, c.v)
		}
	}

	_, err := expr.NewOperator(expr.OpAdd, mustConstant(t, sql.Int32Type, sql.Int64Value(2)),
		mustConstant(t, sql.Int64Type, sql.Int64Value(3)))
	if !status.Is(err, status.InvalidArgument) {
		t.Errorf("NewOperator(INT32 + INT64) got %v want invalid argument", err)
	}

	_, err = expr.NewOperator(expr.OpAdd, mustConstant(t, sql.Int32Type, sql.Int64Value(2)),
		mustConstant(t, sql.Int32Type, sql.Int64Value(3)),
		mustConstant(t, sql.Int32Type, sql.Int64Value(4)))
	if !status.Is(err, status.InvalidArgument) {
		t.Errorf("NewOperator(3 args) got %v want invalid argument", err)
	}

	e, err := expr.NewOperator(expr.OpAdd, expr.NewColumnRef(1, sql.Int32Type),
		mustConstant(t, sql.Int32Type, sql.Int64Value(3)))
	if err != nil {
		t.Fatal(err)
	}
	var slot docapi.Expression
	err = e.PrepareForRead(ctx, &slot)
	if !status.Is(err, status.NotSupported) {
		t.Errorf("PrepareForRead(column + 3) got %v want not supported", err)
	}

	e, err = expr.NewOperator(expr.OpAdd, mustConstant(t, sql.Int16Type, sql.Int64Value(30000)),
		mustConstant(t, sql.Int16Type, sql.Int64Value(30000)))
	if err != nil {
		t.Fatal(err)
	}
	err = e.Eval(ctx, &slot)
	if !status.Is(err, status.InvalidArgument) {
		t.Errorf("Eval(INT16 overflow) got %v want invalid argument", err)
	}
}

func TestTranslateData(t *testing.T) {
	ctx := newContext()

	var buf []byte
	var err error
	buf, err = docdata.EncodeRow(buf,
		[]sql.InternalType{sql.Uint32Type, sql.StringType, sql.Int32Type, sql.BinaryType},
		[]sql.Value{sql.Int64Value(77), sql.StringValue("abc"), nil, sql.BytesValue{5}})
	if err != nil {
		t.Fatal(err)
	}

	targets := []*expr.Expr{
		expr.NewColumnRef(catalog.ObjectIDAttrNum, sql.UnknownType),
		expr.NewColumnRef(2, sql.UnknownType),
		expr.NewColumnRef(1, sql.UnknownType),
		expr.NewColumnRef(catalog.RowIDAttrNum, sql.UnknownType),
	}
	for _, e := range targets {
		var slot docapi.Expression
		err = e.PrepareForRead(ctx, &slot)
		if err != nil {
			t.Fatal(err)
		}
	}

	var sys docdata.SysColumns
	tup := docdata.Tuple{
		Values: []sql.Value{sql.Int64Value(1), nil},
		Nulls:  []bool{false, true},
		Sys:    &sys,
	}
	var cur docdata.Cursor
	cur.Reset(buf)
	for _, e := range targets {
		hdr, err := cur.ReadHeader()
		if err != nil {
			t.Fatal(err)
		}
		err = e.TranslateData(&cur, hdr, e.AttrNum()-1, &tup)
		if err != nil {
			t.Fatalf("%s.TranslateData() failed with %s", e, err)
		}
	}

	if tup.Values[0] != nil || !tup.Nulls[0] || tup.Values[1] != sql.StringValue("abc") ||
		tup.Nulls[1] {
		t.Errorf("TranslateData() got %v %v", tup.Values, tup.Nulls)
	}
	if sys.OID != 77 || !bytes.Equal(sys.RowID, []byte{5}) {
		t.Errorf("TranslateData() got system columns %v", sys)
	}
	if !cur.Empty() {
		t.Errorf("TranslateData() left %d bytes", cur.Remaining())
	}

	e := mustConstant(t, sql.Int32Type, sql.Int64Value(1))
	err = e.TranslateData(&cur, docdata.Header{}, 0, &tup)
	if status.CodeOf(err) != status.InternalError {
		t.Errorf("constant TranslateData() got %v want internal error", err)
	}
}
