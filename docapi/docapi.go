// Package docapi defines the requests and responses exchanged with the document store.
package docapi

import (
	"fmt"
	"strings"

	"github.com/leftmike/pggate/sql"
)

type TableID uint32

// Slot is a handle to an Expression allocated by a statement. The zero Slot is never
// allocated.
type Slot int

const NoSlot Slot = 0

// Expression is one slot of a request: either a reference to a column (ColumnID set, Value
// unused) or a value (IsValue set).
type Expression struct {
	ColumnID int32
	IsValue  bool
	Value    sql.Value
}

func (e Expression) String() string {
	if e.IsValue {
		return sql.Format(e.Value)
	}
	return fmt.Sprintf("col#%d", e.ColumnID)
}

type ColumnValue struct {
	ColumnID int32
	Expr     Expression
}

type StmtType int

const (
	StmtInsert StmtType = iota + 1
	StmtUpdate
	StmtDelete
)

func (st StmtType) String() string {
	switch st {
	case StmtInsert:
		return "INSERT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	}
	return fmt.Sprintf("StmtType(%d)", int(st))
}

type ReadRequest struct {
	TableID TableID

	// RowID addresses a single row; when set, KeyValues are ignored.
	RowID []byte

	// KeyValues bind primary key columns; Conditions bind any other stored column. Both are
	// equality matches.
	KeyValues  []ColumnValue
	Conditions []ColumnValue

	// Targets are returned in order for every matching row.
	Targets []Expression

	// ColumnRefs lists the ids of every column the statement reads or writes. An empty list
	// means every column.
	ColumnRefs []int32

	// PointLookup allows the store to read a single row when every key column is bound.
	PointLookup bool

	Limit       int
	PagingState []byte
	ReadTime    uint64
}

type ReadResponse struct {
	Batch RowBatch

	// PagingState is nil when the result has been completely returned.
	PagingState []byte
}

type WriteRequest struct {
	StmtType StmtType
	TableID  TableID
	RowID    []byte

	// ColumnValues bind the key columns for updates and deletes and every column for inserts.
	ColumnValues []ColumnValue

	// NewValues are the assignments of an update.
	NewValues []ColumnValue

	ColumnRefs []int32
	ReadTime   uint64
}

type WriteResponse struct {
	RowsAffected int64

	// RowID identifies the row written by an insert.
	RowID []byte
}

// RowBatch is one round trip's worth of rows. RowCount is carried beside Data; the encoded
// rows do not include a count. A RowBatch may hold zero rows.
type RowBatch struct {
	RowCount int64
	Data     []byte
}

func (req *ReadRequest) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "read table=%d targets=%v", req.TableID, req.Targets)
	if req.RowID != nil {
		fmt.Fprintf(&sb, " rowid=%x", req.RowID)
	}
	if len(req.KeyValues) > 0 {
		fmt.Fprintf(&sb, " keys=%v", req.KeyValues)
	}
	if len(req.Conditions) > 0 {
		fmt.Fprintf(&sb, " conditions=%v", req.Conditions)
	}
	return sb.String()
}

func (req *WriteRequest) String() string {
	return fmt.Sprintf("%s table=%d values=%v new=%v", req.StmtType, req.TableID,
		req.ColumnValues, req.NewValues)
}
