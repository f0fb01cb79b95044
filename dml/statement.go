// Package dml binds values and targets to the columns of a table, builds the requests sent to
// the document store, and decodes the rows it streams back.
package dml

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// Operation executes a request against the document store and returns its results a batch
// at a time.
type Operation interface {
	Execute(ctx context.Context) error
	EndOfResult() bool
	GetResult(ctx context.Context, batch *docapi.RowBatch) error
}

// Session is what statements need from the session that created them. The session fills in
// the read time, prefetch limit, and other per session options of each request.
type Session interface {
	ReadOp(req *docapi.ReadRequest) Operation
	ApplyWrite(ctx context.Context, req *docapi.WriteRequest) (*docapi.WriteResponse, error)
}

type State int

const (
	Unprepared State = iota
	Prepared
	Executed
	Streaming
	Exhausted
)

func (st State) String() string {
	switch st {
	case Unprepared:
		return "unprepared"
	case Prepared:
		return "prepared"
	case Executed:
		return "executed"
	case Streaming:
		return "streaming"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("State(%d)", int(st))
}

// Statement is the part common to every kind of statement: the columns of the table, the
// slots allocated for the request, the expressions bound and assigned to those slots, the
// targets, and the cursor over the current batch of results.
//
// A Statement is used by one caller at a time.
type Statement struct {
	sess  Session
	tbl   *catalog.Table
	state State

	slots       []docapi.Expression
	targets     []*expr.Expr
	targetSlots []docapi.Slot
	binds       map[docapi.Slot]*expr.Expr
	assigns     map[docapi.Slot]*expr.Expr
	rowID       []byte
	columnRefs  []int32

	op          Operation
	cur         docdata.Cursor
	rowsLoaded  int64
	rowsFetched int64
}

func (stmt *Statement) init(sess Session, td *catalog.TableDesc) {
	stmt.sess = sess
	stmt.tbl = catalog.NewTable(td)
	stmt.state = Prepared
	stmt.binds = map[docapi.Slot]*expr.Expr{}
	stmt.assigns = map[docapi.Slot]*expr.Expr{}
}

func (stmt *Statement) State() State {
	return stmt.state
}

func (stmt *Statement) Table() *catalog.Table {
	return stmt.tbl
}

// Slot returns the current contents of slot.
func (stmt *Statement) Slot(slot docapi.Slot) docapi.Expression {
	return *stmt.slot(slot)
}

func (stmt *Statement) NumSlots() int {
	return len(stmt.slots)
}

func (stmt *Statement) Targets() []*expr.Expr {
	return stmt.targets
}

// RowID returns the row identifier bound to the statement, if any.
func (stmt *Statement) RowID() []byte {
	return stmt.rowID
}

func (stmt *Statement) ColumnRefIDs() []int32 {
	return stmt.columnRefs
}

// RowsFetched returns the number of rows returned by Fetch over the life of the statement.
func (stmt *Statement) RowsFetched() int64 {
	return stmt.rowsFetched
}

func (stmt *Statement) allocSlot() docapi.Slot {
	stmt.slots = append(stmt.slots, docapi.Expression{})
	return docapi.Slot(len(stmt.slots))
}

// The returned pointer is only valid until the next allocSlot.
func (stmt *Statement) slot(slot docapi.Slot) *docapi.Expression {
	if slot <= docapi.NoSlot || int(slot) > len(stmt.slots) {
		panic(fmt.Sprintf("dml: slot %d out of range [1, %d]", slot, len(stmt.slots)))
	}
	return &stmt.slots[slot-1]
}

func (stmt *Statement) checkState(op string) error {
	if stmt.state == Unprepared {
		return status.IllegalStatef("dml: %s: statement not prepared", op)
	} else if stmt.state != Prepared {
		return status.IllegalStatef("dml: %s: statement already %s", op, stmt.state)
	}
	return nil
}

func (stmt *Statement) FindColumn(attrNum int) (*catalog.Column, error) {
	if stmt.tbl == nil {
		return nil, status.IllegalStatef("dml: find column %d: statement not prepared", attrNum)
	}
	return stmt.tbl.FindColumn(attrNum)
}

// PrepareColumnForRead points slot at the column and marks the column as read.
func (stmt *Statement) PrepareColumnForRead(attrNum int, slot *docapi.Expression) (
	*catalog.Column, error) {

	col, err := stmt.FindColumn(attrNum)
	if err != nil {
		return nil, err
	}
	slot.ColumnID = col.ID
	if !col.Virtual {
		col.SetReadRequested(true)
	}
	return col, nil
}

func (stmt *Statement) prepareColumnForWrite(col *catalog.Column, slot *docapi.Expression) {
	slot.ColumnID = col.ID
	col.SetWriteRequested(true)
}

// AppendTarget adds e to the values returned for each row.
func (stmt *Statement) AppendTarget(e *expr.Expr) error {
	err := stmt.checkState("append target")
	if err != nil {
		return err
	}

	slot := stmt.allocSlot()
	err = e.PrepareForRead(stmt, stmt.slot(slot))
	if err != nil {
		return err
	}
	stmt.targets = append(stmt.targets, e)
	stmt.targetSlots = append(stmt.targetSlots, slot)
	stmt.binds[slot] = e
	return nil
}

func checkColumnValue(col *catalog.Column, e *expr.Expr) error {
	if e.Kind() == expr.ColumnRef {
		return status.NotSupportedf("dml: column %s: binding to a column reference is not "+
			"supported", col.Name)
	}
	if !sql.Compatible(col.Type, e.InternalType()) {
		return status.Corruptionf("dml: column %s: type %s does not match expression type %s",
			col.Name, col.Type, e.InternalType())
	}
	return nil
}

// BindColumn binds e to the column: an equality condition for reads, the row to change for
// updates and deletes, or the value to insert. Binding a column a second time replaces the
// expression bound to it.
func (stmt *Statement) BindColumn(attrNum int, e *expr.Expr) error {
	col, err := stmt.FindColumn(attrNum)
	if err != nil {
		return err
	}
	err = checkColumnValue(col, e)
	if err != nil {
		return err
	}
	if attrNum == catalog.RowIDAttrNum && !e.IsConstant() {
		return status.InvalidArgumentf("dml: column %s must be bound to a constant", col.Name)
	}

	slot := col.BindSlot()
	if slot == docapi.NoSlot {
		err = stmt.checkState("bind column")
		if err != nil {
			return err
		}
		slot = stmt.allocSlot()
		col.SetBindSlot(slot)
		stmt.slot(slot).ColumnID = col.ID
	} else if prev, ok := stmt.binds[slot]; ok {
		log.WithFields(log.Fields{
			"table":  stmt.tbl.Desc().Name,
			"column": col.Name,
			"slot":   slot,
			"prev":   prev,
			"expr":   e,
		}).Warn("dml: column already bound; replacing")
	}

	if !col.Virtual {
		col.SetReadRequested(true)
	}
	err = e.PrepareForRead(stmt, stmt.slot(slot))
	if err != nil {
		return err
	}
	stmt.binds[slot] = e

	if attrNum == catalog.RowIDAttrNum {
		stmt.rowID = e.BinaryValue()
	}
	return nil
}

// AssignColumn assigns e as the new value of the column; a column can only be assigned once.
func (stmt *Statement) AssignColumn(attrNum int, e *expr.Expr) error {
	col, err := stmt.FindColumn(attrNum)
	if err != nil {
		return err
	}
	err = checkColumnValue(col, e)
	if err != nil {
		return err
	}
	if col.Virtual || col.Key {
		return status.InvalidArgumentf("dml: column %s can not be assigned", col.Name)
	}

	slot := col.AssignSlot()
	if slot == docapi.NoSlot {
		err = stmt.checkState("assign column")
		if err != nil {
			return err
		}
		slot = stmt.allocSlot()
		col.SetAssignSlot(slot)
	} else if _, ok := stmt.assigns[slot]; ok {
		return status.InvalidArgumentf("dml: column %s is already assigned", col.Name)
	}

	stmt.prepareColumnForWrite(col, stmt.slot(slot))
	err = e.PrepareForRead(stmt, stmt.slot(slot))
	if err != nil {
		return err
	}
	stmt.assigns[slot] = e
	return nil
}

// ClearBinds is not supported: a prepared statement keeps the columns it was bound with.
func (stmt *Statement) ClearBinds() error {
	return status.NotSupportedf("dml: clearing binds is not supported")
}

// UpdateBindPBs evaluates every bound expression into its slot; it must be done before each
// execution.
func (stmt *Statement) UpdateBindPBs() error {
	for slot, e := range stmt.binds {
		err := e.Eval(stmt, stmt.slot(slot))
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateAssignPBs evaluates every assigned expression into its slot.
func (stmt *Statement) UpdateAssignPBs() error {
	for slot, e := range stmt.assigns {
		err := e.Eval(stmt, stmt.slot(slot))
		if err != nil {
			return err
		}
	}
	return nil
}

// SetColumnRefIds collects the ids of the columns the statement reads or writes.
func (stmt *Statement) SetColumnRefIds() {
	stmt.columnRefs = stmt.columnRefs[:0]
	for _, col := range stmt.tbl.Columns() {
		if col.ReadRequested() || col.WriteRequested() {
			stmt.columnRefs = append(stmt.columnRefs, col.ID)
		}
	}
}

// boundValues returns the values bound to stored columns, split into key columns and other
// columns. The row identifier is not included.
func (stmt *Statement) boundValues() ([]docapi.ColumnValue, []docapi.ColumnValue) {
	var keys, others []docapi.ColumnValue
	for _, col := range stmt.tbl.Columns() {
		slot := col.BindSlot()
		if slot == docapi.NoSlot || col.Virtual {
			continue
		}
		cv := docapi.ColumnValue{
			ColumnID: col.ID,
			Expr:     stmt.Slot(slot),
		}
		if col.Key {
			keys = append(keys, cv)
		} else {
			others = append(others, cv)
		}
	}
	return keys, others
}

func (stmt *Statement) assignedValues() []docapi.ColumnValue {
	var vals []docapi.ColumnValue
	for _, col := range stmt.tbl.Columns() {
		slot := col.AssignSlot()
		if slot == docapi.NoSlot {
			continue
		}
		vals = append(vals,
			docapi.ColumnValue{
				ColumnID: col.ID,
				Expr:     stmt.Slot(slot),
			})
	}
	return vals
}

func (stmt *Statement) execute(ctx context.Context, op Operation) error {
	stmt.op = nil
	stmt.cur.Reset(nil)

	err := op.Execute(ctx)
	if err != nil {
		return err
	}
	stmt.op = op
	stmt.state = Executed
	return nil
}

// Fetch decodes the next row into values and nulls, which must have at least natts entries,
// and into syscols. It returns false when there are no more rows; values and nulls are then
// left as all NULL.
func (stmt *Statement) Fetch(ctx context.Context, natts int, values []sql.Value,
	nulls []bool, syscols *docdata.SysColumns) (bool, error) {

	if natts < 0 || natts > len(values) || natts > len(nulls) {
		return false, status.InvalidArgumentf("dml: fetch: %d attributes for %d values and "+
			"%d nulls", natts, len(values), len(nulls))
	}
	for idx := 0; idx < natts; idx += 1 {
		values[idx] = nil
		nulls[idx] = true
	}
	if syscols != nil {
		*syscols = docdata.SysColumns{}
	}

	switch stmt.state {
	case Unprepared, Prepared:
		return false, status.IllegalStatef("dml: fetch: statement not executed")
	case Exhausted:
		return false, nil
	}
	if stmt.op == nil {
		return false, status.IllegalStatef("dml: fetch: statement returns no rows")
	}

	for stmt.cur.Empty() {
		if stmt.op.EndOfResult() {
			stmt.state = Exhausted
			return false, nil
		}

		var batch docapi.RowBatch
		err := stmt.op.GetResult(ctx, &batch)
		if err != nil {
			return false, err
		}
		n, err := docdata.LoadCache(&batch, &stmt.cur)
		if err != nil {
			return false, err
		}
		stmt.rowsLoaded += n
		log.WithFields(log.Fields{
			"table": stmt.tbl.Desc().Name,
			"rows":  n,
			"bytes": len(batch.Data),
		}).Debug("dml: batch loaded")
	}

	tup := docdata.Tuple{
		Values: values[:natts],
		Nulls:  nulls[:natts],
		Sys:    syscols,
	}
	err := stmt.writeTuple(&tup)
	if err != nil {
		return false, err
	}

	stmt.rowsFetched += 1
	stmt.state = Streaming
	return true, nil
}

func (stmt *Statement) writeTuple(tup *docdata.Tuple) error {
	for _, target := range stmt.targets {
		if target.Kind() != expr.ColumnRef {
			return errors.AssertionFailedf("dml: target %s is a %s; only column references "+
				"can be decoded", target, target.Kind())
		}

		hdr, err := stmt.cur.ReadHeader()
		if err != nil {
			return err
		}
		err = target.TranslateData(&stmt.cur, hdr, target.AttrNum()-1, tup)
		if err != nil {
			return err
		}
	}
	return nil
}
