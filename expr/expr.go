// Package expr implements the expressions a statement binds, assigns, and targets.
//
// An Expr is a tagged union: its Kind selects an entry in a dispatch table that supplies the
// behavior for preparing, evaluating, and decoding that kind of expression.
package expr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

type Kind int

const (
	Constant Kind = iota + 1
	ColumnRef
	Placeholder
	Operator
)

func (k Kind) String() string {
	if k > 0 && int(k) < len(dispatch) {
		return dispatch[k].name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Context is what an expression needs from the statement it is prepared for.
type Context interface {
	PrepareColumnForRead(attrNum int, slot *docapi.Expression) (*catalog.Column, error)
}

type Op string

const (
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpConcat Op = "||"
)

type Expr struct {
	kind Kind
	typ  sql.InternalType

	value sql.Value // Constant and Placeholder
	bound bool      // Placeholder

	attrNum int // ColumnRef

	op   Op // Operator
	args []*Expr
}

type kindOps struct {
	name           string
	prepareForRead func(e *Expr, ctx Context, slot *docapi.Expression) error
	eval           func(e *Expr, ctx Context, slot *docapi.Expression) error
	translateData  func(e *Expr, cur *docdata.Cursor, hdr docdata.Header, idx int,
		tup *docdata.Tuple) error
}

var dispatch [Operator + 1]kindOps

func init() {
	dispatch[Constant] = kindOps{
		name:           "constant",
		prepareForRead: prepareValue,
		eval:           evalConstant,
		translateData:  translateNotSupported,
	}
	dispatch[ColumnRef] = kindOps{
		name:           "column reference",
		prepareForRead: prepareColumnRef,
		eval:           evalColumnRef,
		translateData:  translateColumnRef,
	}
	dispatch[Placeholder] = kindOps{
		name:           "placeholder",
		prepareForRead: prepareValue,
		eval:           evalPlaceholder,
		translateData:  translateNotSupported,
	}
	dispatch[Operator] = kindOps{
		name:           "operator",
		prepareForRead: prepareOperator,
		eval:           evalOperator,
		translateData:  translateNotSupported,
	}
}

// NewConstant returns a constant of type typ; a nil v is a NULL constant.
func NewConstant(typ sql.InternalType, v sql.Value) (*Expr, error) {
	v, err := sql.ConvertValue(typ, v)
	if err != nil {
		return nil, status.InvalidArgumentf("expr: constant: %s", err)
	}
	return &Expr{
		kind:  Constant,
		typ:   typ,
		value: v,
	}, nil
}

func NewConstantOid(o oid.Oid, v sql.Value) (*Expr, error) {
	typ, err := sql.TypeFromOid(o)
	if err != nil {
		return nil, status.InvalidArgumentf("expr: constant: %s", err)
	}
	return NewConstant(typ, v)
}

// NewColumnRef returns a reference to the column with attribute number attrNum. If typ is
// sql.UnknownType, the column's type is used once the reference is prepared.
func NewColumnRef(attrNum int, typ sql.InternalType) *Expr {
	return &Expr{
		kind:    ColumnRef,
		typ:     typ,
		attrNum: attrNum,
	}
}

// NewColumnRefOid is NewColumnRef with the type given as a type oid; oid.Oid(0) leaves the
// type to the column.
func NewColumnRefOid(attrNum int, o oid.Oid) (*Expr, error) {
	if o == 0 {
		return NewColumnRef(attrNum, sql.UnknownType), nil
	}
	typ, err := sql.TypeFromOid(o)
	if err != nil {
		return nil, status.InvalidArgumentf("expr: column reference: %s", err)
	}
	return NewColumnRef(attrNum, typ), nil
}

func NewPlaceholder(typ sql.InternalType) *Expr {
	return &Expr{
		kind: Placeholder,
		typ:  typ,
	}
}

func NewOperator(op Op, args ...*Expr) (*Expr, error) {
	if len(args) != 2 {
		return nil, status.InvalidArgumentf("expr: operator %s: want 2 arguments; got %d", op,
			len(args))
	}

	typ := args[0].InternalType()
	switch op {
	case OpAdd, OpSub, OpMul:
		switch typ {
		case sql.Int16Type, sql.Int32Type, sql.Int64Type, sql.FloatType, sql.DoubleType:
		default:
			return nil, status.InvalidArgumentf("expr: operator %s: want numeric arguments; "+
				"got %s", op, typ)
		}
		if args[1].InternalType() != typ {
			return nil, status.InvalidArgumentf("expr: operator %s: %s and %s do not match", op,
				typ, args[1].InternalType())
		}
	case OpConcat:
		for _, arg := range args {
			if !sql.Compatible(sql.StringType, arg.InternalType()) {
				return nil, status.InvalidArgumentf("expr: operator %s: want text arguments; "+
					"got %s", op, arg.InternalType())
			}
		}
		typ = sql.StringType
	default:
		return nil, status.NotSupportedf("expr: operator %s not supported", op)
	}

	return &Expr{
		kind: Operator,
		typ:  typ,
		op:   op,
		args: args,
	}, nil
}

func (e *Expr) Kind() Kind {
	return e.kind
}

// IsConstant reports whether e is a constant; placeholders are not constants because their
// value changes between executions.
func (e *Expr) IsConstant() bool {
	return e.kind == Constant
}

func (e *Expr) InternalType() sql.InternalType {
	return e.typ
}

func (e *Expr) AttrNum() int {
	if e.kind != ColumnRef {
		panic(fmt.Sprintf("expr: attribute number of %s", e.kind))
	}
	return e.attrNum
}

// Value returns the value of a constant or of a bound placeholder.
func (e *Expr) Value() sql.Value {
	return e.value
}

// BinaryValue returns the raw bytes of a constant.
func (e *Expr) BinaryValue() []byte {
	switch v := e.value.(type) {
	case sql.BytesValue:
		return append(make([]byte, 0, len(v)), v...)
	case sql.StringValue:
		return []byte(v)
	}
	return nil
}

// BindValue sets the value of a placeholder for the following executions.
func (e *Expr) BindValue(v sql.Value) error {
	if e.kind != Placeholder {
		return status.InvalidArgumentf("expr: bind value of %s", e.kind)
	}
	v, err := sql.ConvertValue(e.typ, v)
	if err != nil {
		return status.InvalidArgumentf("expr: placeholder: %s", err)
	}
	e.value = v
	e.bound = true
	return nil
}

// PrepareForRead sets up slot to be read from e; this is done once, when the statement is
// built.
func (e *Expr) PrepareForRead(ctx Context, slot *docapi.Expression) error {
	return dispatch[e.kind].prepareForRead(e, ctx, slot)
}

// Eval writes the current value of e into slot; this is done before every execution.
func (e *Expr) Eval(ctx Context, slot *docapi.Expression) error {
	return dispatch[e.kind].eval(e, ctx, slot)
}

// TranslateData decodes the value described by hdr from cur into tup: system columns go to
// tup.Sys and user columns to position idx.
func (e *Expr) TranslateData(cur *docdata.Cursor, hdr docdata.Header, idx int,
	tup *docdata.Tuple) error {

	return dispatch[e.kind].translateData(e, cur, hdr, idx, tup)
}

func (e *Expr) String() string {
	switch e.kind {
	case Constant:
		return sql.Format(e.value)
	case ColumnRef:
		return fmt.Sprintf("$attr%d", e.attrNum)
	case Placeholder:
		if e.bound {
			return fmt.Sprintf("?(%s)", sql.Format(e.value))
		}
		return "?"
	case Operator:
		args := make([]string, len(e.args))
		for adx, arg := range e.args {
			args[adx] = arg.String()
		}
		return fmt.Sprintf("(%s)", strings.Join(args, fmt.Sprintf(" %s ", e.op)))
	}
	return e.kind.String()
}

func prepareValue(e *Expr, ctx Context, slot *docapi.Expression) error {
	slot.IsValue = true
	return nil
}

func evalConstant(e *Expr, ctx Context, slot *docapi.Expression) error {
	slot.IsValue = true
	slot.Value = e.value
	return nil
}

func evalPlaceholder(e *Expr, ctx Context, slot *docapi.Expression) error {
	if !e.bound {
		return status.InvalidArgumentf("expr: placeholder not bound")
	}
	slot.IsValue = true
	slot.Value = e.value
	return nil
}

func prepareColumnRef(e *Expr, ctx Context, slot *docapi.Expression) error {
	col, err := ctx.PrepareColumnForRead(e.attrNum, slot)
	if err != nil {
		return err
	}
	if e.typ == sql.UnknownType {
		e.typ = col.Type
	} else if !sql.Compatible(col.Type, e.typ) {
		return status.Corruptionf("expr: column %s: reference type %s does not match", col,
			e.typ)
	}
	return nil
}

func evalColumnRef(e *Expr, ctx Context, slot *docapi.Expression) error {
	return nil
}

func translateColumnRef(e *Expr, cur *docdata.Cursor, hdr docdata.Header, idx int,
	tup *docdata.Tuple) error {

	var v sql.Value
	if !hdr.Null {
		var err error
		v, err = cur.ReadValue(e.typ)
		if err != nil {
			return err
		}
	}

	switch e.attrNum {
	case catalog.ObjectIDAttrNum:
		tup.SetOID(v)
	case catalog.RowIDAttrNum:
		tup.SetRowID(v)
	default:
		return tup.Set(idx, v)
	}
	return nil
}

func translateNotSupported(e *Expr, cur *docdata.Cursor, hdr docdata.Header, idx int,
	tup *docdata.Tuple) error {

	return errors.AssertionFailedf("expr: %s %s can not translate data", e.kind, e)
}

func prepareOperator(e *Expr, ctx Context, slot *docapi.Expression) error {
	for _, arg := range e.args {
		if arg.kind == ColumnRef {
			return status.NotSupportedf("expr: operator %s: column references are not "+
				"supported as arguments", e.op)
		}
		var argSlot docapi.Expression
		err := arg.PrepareForRead(ctx, &argSlot)
		if err != nil {
			return err
		}
	}
	slot.IsValue = true
	return nil
}

func evalOperator(e *Expr, ctx Context, slot *docapi.Expression) error {
	var vals [2]sql.Value
	for adx, arg := range e.args {
		var argSlot docapi.Expression
		err := arg.Eval(ctx, &argSlot)
		if err != nil {
			return err
		}
		vals[adx] = argSlot.Value
	}

	slot.IsValue = true
	if vals[0] == nil || vals[1] == nil {
		slot.Value = nil
		return nil
	}

	var v sql.Value
	switch e.op {
	case OpConcat:
		v = sql.StringValue(textOf(vals[0]) + textOf(vals[1]))
	case OpAdd, OpSub, OpMul:
		switch a := vals[0].(type) {
		case sql.Int64Value:
			b := vals[1].(sql.Int64Value)
			switch e.op {
			case OpAdd:
				v = a + b
			case OpSub:
				v = a - b
			default:
				v = a * b
			}
		case sql.Float64Value:
			b := vals[1].(sql.Float64Value)
			switch e.op {
			case OpAdd:
				v = a + b
			case OpSub:
				v = a - b
			default:
				v = a * b
			}
		}
	}

	v, err := sql.ConvertValue(e.typ, v)
	if err != nil {
		return status.InvalidArgumentf("expr: operator %s: %s", e.op, err)
	}
	slot.Value = v
	return nil
}

func textOf(v sql.Value) string {
	switch v := v.(type) {
	case sql.StringValue:
		return string(v)
	case sql.BytesValue:
		return string(v)
	}
	return v.String()
}
