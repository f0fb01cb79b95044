package docdb

import (
	"bytes"
	"testing"

	"github.com/golang/protobuf/proto"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/testutil"
)

func allTypesTable() *catalog.TableDesc {
	return catalog.NewTableDesc(20000, "all", true,
		[]catalog.ColumnDesc{
			{Name: "b", Type: sql.BoolType},
			{Name: "i16", Type: sql.Int16Type},
			{Name: "i64", Type: sql.Int64Type, Key: true},
			{Name: "d", Type: sql.DoubleType},
			{Name: "s", Type: sql.StringType},
			{Name: "bin", Type: sql.BinaryType},
		})
}

func TestRowCodec(t *testing.T) {
	td := allTypesTable()
	id := func(attrNum int) int32 {
		cd, err := td.FindColumn(attrNum)
		if err != nil {
			t.Fatal(err)
		}
		return cd.ID
	}

	cases := []storedRow{
		{version: 1, values: map[int32]sql.Value{}},
		{
			version: 1 << 40,
			values: map[int32]sql.Value{
				catalog.ObjectIDColumnID: sql.Int64Value(16384),
				id(1):                    sql.BoolValue(true),
				id(2):                    sql.Int64Value(-2),
				id(3):                    sql.Int64Value(1 << 50),
				id(4):                    sql.Float64Value(-0.25),
				id(5):                    sql.StringValue("abc"),
				id(6):                    sql.BytesValue{0, 1, 2},
			},
		},
		{
			version: 300,
			values: map[int32]sql.Value{
				id(2): sql.Int64Value(7),
				id(5): sql.StringValue(""),
			},
		},
	}

	for _, c := range cases {
		buf, err := encodeRow(td, c)
		if err != nil {
			t.Fatalf("encodeRow(%v) failed with %s", c, err)
		}
		if want := proto.EncodeVarint(c.version); !bytes.HasPrefix(buf, want) {
			t.Errorf("encodeRow(%v) got version prefix %v want %v", c, buf[:len(want)], want)
		}

		row, err := decodeRow(td, buf, allColumns)
		if err != nil {
			t.Errorf("decodeRow(%v) failed with %s", c, err)
		} else if !testutil.DeepEqual(row, c) {
			t.Errorf("decodeRow() got %v want %v", row, c)
		}

		row, err = decodeRow(td, buf, func(cid int32) bool { return cid == id(2) })
		if err != nil {
			t.Errorf("decodeRow(%v) failed with %s", c, err)
		} else if len(row.values) > 1 || row.values[id(2)] != c.values[id(2)] {
			t.Errorf("decodeRow(pruned) got %v", row.values)
		}

		if len(buf) > 1 {
			_, err = decodeRow(td, buf[:len(buf)-1], allColumns)
			if err == nil {
				t.Errorf("decodeRow(truncated %v) did not fail", c)
			}
		}
	}
}

func TestSchema(t *testing.T) {
	td := allTypesTable()
	buf, err := encodeSchema(td)
	if err != nil {
		t.Fatalf("encodeSchema() failed with %s", err)
	}
	td2, err := decodeSchema(buf)
	if err != nil {
		t.Fatalf("decodeSchema() failed with %s", err)
	}
	var trc string
	if !testutil.DeepEqual(td2, td, &trc) {
		t.Errorf("decodeSchema()\n%s", trc)
	}

	_, err = decodeSchema([]byte{0xFF, 0xFF})
	if err == nil {
		t.Errorf("decodeSchema(garbage) did not fail")
	}
}
