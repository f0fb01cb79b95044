package catalog_test

import (
	"testing"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

func TestNewTableDesc(t *testing.T) {
	td := catalog.NewTableDesc(16384, "kv", true,
		[]catalog.ColumnDesc{
			{Name: "key", Type: sql.Int32Type, Key: true},
			{Name: "value", Type: sql.Int32Type},
		})

	if td.NumAttrs() != 2 {
		t.Errorf("NumAttrs() got %d want 2", td.NumAttrs())
	}

	cases := []struct {
		attrNum int
		name    string
		id      int32
		virtual bool
	}{
		{catalog.ObjectIDAttrNum, catalog.ObjectIDColumnName, catalog.ObjectIDColumnID, false},
		{1, "key", catalog.FirstUserColumnID, false},
		{2, "value", catalog.FirstUserColumnID + 1, false},
		{catalog.RowIDAttrNum, catalog.RowIDColumnName, catalog.RowIDColumnID, true},
	}

	for _, c := range cases {
		cd, err := td.FindColumn(c.attrNum)
		if err != nil {
			t.Errorf("FindColumn(%d) failed with %s", c.attrNum, err)
			continue
		}
		if cd.Name != c.name || cd.ID != c.id || cd.Virtual != c.virtual {
			t.Errorf("FindColumn(%d) got %s/%d/%v want %s/%d/%v", c.attrNum, cd.Name, cd.ID,
				cd.Virtual, c.name, c.id, c.virtual)
		}
	}

	_, err := td.FindColumn(3)
	if !status.IsNotFound(err) {
		t.Errorf("FindColumn(3) got %v want not found", err)
	}

	keys := td.KeyColumns()
	if len(keys) != 1 || keys[0].Name != "key" {
		t.Errorf("KeyColumns() got %v want [key]", keys)
	}
}

func TestTableIsPrivate(t *testing.T) {
	td := catalog.NewTableDesc(1, "t", false,
		[]catalog.ColumnDesc{{Name: "c", Type: sql.StringType}})

	tbl1 := catalog.NewTable(td)
	tbl2 := catalog.NewTable(td)

	col, err := tbl1.FindColumn(1)
	if err != nil {
		t.Fatal(err)
	}
	col.SetReadRequested(true)
	col.SetBindSlot(3)

	col, err = tbl2.FindColumn(1)
	if err != nil {
		t.Fatal(err)
	}
	if col.ReadRequested() || col.BindSlot() != 0 {
		t.Errorf("NewTable() shares column state between statements")
	}
}
