package catalog

import (
	"fmt"

	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// System attribute numbers.
const (
	ObjectIDAttrNum = -2
	RowIDAttrNum    = -8
)

const (
	ObjectIDColumnName = "oid"
	RowIDColumnName    = "ybctid"
)

type ColumnDesc struct {
	Name    string
	AttrNum int
	ID      int32
	Type    sql.InternalType
	Key     bool // part of the primary key, in column order
	Virtual bool // synthesized by the store, never stored or projected
}

func (cd ColumnDesc) String() string {
	return fmt.Sprintf("%s(%d:%s)", cd.Name, cd.AttrNum, cd.Type)
}

func (cd ColumnDesc) IsSystem() bool {
	return cd.AttrNum < 0
}

type TableDesc struct {
	ID      docapi.TableID
	Name    string
	HasOIDs bool
	Columns []ColumnDesc
}

func (td *TableDesc) String() string {
	return fmt.Sprintf("%s(%d)", td.Name, td.ID)
}

func (td *TableDesc) FindColumn(attrNum int) (*ColumnDesc, error) {
	for cdx := range td.Columns {
		if td.Columns[cdx].AttrNum == attrNum {
			return &td.Columns[cdx], nil
		}
	}
	return nil, status.NotFoundf("catalog: table %s: attribute %d not found", td, attrNum)
}

func (td *TableDesc) ColumnByID(id int32) (*ColumnDesc, bool) {
	for cdx := range td.Columns {
		if td.Columns[cdx].ID == id {
			return &td.Columns[cdx], true
		}
	}
	return nil, false
}

func (td *TableDesc) ColumnByName(name string) (*ColumnDesc, bool) {
	for cdx := range td.Columns {
		if td.Columns[cdx].Name == name {
			return &td.Columns[cdx], true
		}
	}
	return nil, false
}

// NumAttrs returns the number of user columns; they are numbered 1 through NumAttrs.
func (td *TableDesc) NumAttrs() int {
	var n int
	for _, cd := range td.Columns {
		if cd.AttrNum > 0 {
			n += 1
		}
	}
	return n
}

func (td *TableDesc) KeyColumns() []ColumnDesc {
	var keys []ColumnDesc
	for _, cd := range td.Columns {
		if cd.Key {
			keys = append(keys, cd)
		}
	}
	return keys
}

// Column is a statement's view of one column: the catalog description plus the requested
// flags and the slots bound or assigned to it.
type Column struct {
	ColumnDesc

	readRequested  bool
	writeRequested bool
	bindSlot       docapi.Slot
	assignSlot     docapi.Slot
}

func (col *Column) ReadRequested() bool {
	return col.readRequested
}

func (col *Column) SetReadRequested(b bool) {
	col.readRequested = b
}

func (col *Column) WriteRequested() bool {
	return col.writeRequested
}

func (col *Column) SetWriteRequested(b bool) {
	col.writeRequested = b
}

func (col *Column) BindSlot() docapi.Slot {
	return col.bindSlot
}

func (col *Column) SetBindSlot(slot docapi.Slot) {
	col.bindSlot = slot
}

func (col *Column) AssignSlot() docapi.Slot {
	return col.assignSlot
}

func (col *Column) SetAssignSlot(slot docapi.Slot) {
	col.assignSlot = slot
}

// Table is a statement's private copy of a table's columns.
type Table struct {
	desc    *TableDesc
	columns []Column
}

func NewTable(desc *TableDesc) *Table {
	tbl := &Table{
		desc:    desc,
		columns: make([]Column, len(desc.Columns)),
	}
	for cdx, cd := range desc.Columns {
		tbl.columns[cdx].ColumnDesc = cd
	}
	return tbl
}

func (tbl *Table) Desc() *TableDesc {
	return tbl.desc
}

func (tbl *Table) ID() docapi.TableID {
	return tbl.desc.ID
}

func (tbl *Table) FindColumn(attrNum int) (*Column, error) {
	for cdx := range tbl.columns {
		if tbl.columns[cdx].AttrNum == attrNum {
			return &tbl.columns[cdx], nil
		}
	}
	return nil, status.NotFoundf("catalog: table %s: attribute %d not found", tbl.desc,
		attrNum)
}

func (tbl *Table) Columns() []Column {
	return tbl.columns
}

const (
	ObjectIDColumnID  int32 = 1
	RowIDColumnID     int32 = 2
	FirstUserColumnID int32 = 10
)

// NewTableDesc describes a table with the user columns cols, numbering them from 1 and
// assigning column ids, and adds the system columns: oid when hasOIDs, and the virtual row
// identifier.
func NewTableDesc(id docapi.TableID, name string, hasOIDs bool, cols []ColumnDesc) *TableDesc {
	td := &TableDesc{
		ID:      id,
		Name:    name,
		HasOIDs: hasOIDs,
	}
	if hasOIDs {
		td.Columns = append(td.Columns,
			ColumnDesc{
				Name:    ObjectIDColumnName,
				AttrNum: ObjectIDAttrNum,
				ID:      ObjectIDColumnID,
				Type:    sql.Uint32Type,
			})
	}
	for cdx, cd := range cols {
		cd.AttrNum = cdx + 1
		cd.ID = FirstUserColumnID + int32(cdx)
		cd.Virtual = false
		td.Columns = append(td.Columns, cd)
	}
	td.Columns = append(td.Columns,
		ColumnDesc{
			Name:    RowIDColumnName,
			AttrNum: RowIDAttrNum,
			ID:      RowIDColumnID,
			Type:    sql.BinaryType,
			Virtual: true,
		})
	return td
}
