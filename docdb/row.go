package docdb

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// A stored row is its version, as a varint, followed by one protobuf style field for each
// non-NULL stored column; the field number is the column id.
type storedRow struct {
	version uint64
	values  map[int32]sql.Value
}

func encodeRow(td *catalog.TableDesc, row storedRow) ([]byte, error) {
	buf := protowire.AppendVarint(nil, row.version)
	for _, cd := range td.Columns {
		if cd.Virtual {
			continue
		}
		v := row.values[cd.ID]
		if v == nil {
			continue
		}

		num := protowire.Number(cd.ID)
		switch v := v.(type) {
		case sql.BoolValue:
			buf = protowire.AppendTag(buf, num, protowire.VarintType)
			buf = protowire.AppendVarint(buf, protowire.EncodeBool(bool(v)))
		case sql.Int64Value:
			buf = protowire.AppendTag(buf, num, protowire.VarintType)
			buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(v)))
		case sql.Float64Value:
			buf = protowire.AppendTag(buf, num, protowire.Fixed64Type)
			buf = protowire.AppendFixed64(buf, math.Float64bits(float64(v)))
		case sql.StringValue:
			buf = protowire.AppendTag(buf, num, protowire.BytesType)
			buf = protowire.AppendString(buf, string(v))
		case sql.BytesValue:
			buf = protowire.AppendTag(buf, num, protowire.BytesType)
			buf = protowire.AppendBytes(buf, v)
		default:
			return nil, status.InvalidArgumentf("docdb: column %s: unable to store %v", cd.Name,
				v)
		}
	}
	return buf, nil
}

func wireType(it sql.InternalType) protowire.Type {
	switch it {
	case sql.FloatType, sql.DoubleType:
		return protowire.Fixed64Type
	case sql.StringType, sql.BinaryType:
		return protowire.BytesType
	}
	return protowire.VarintType
}

// decodeRow decodes buf; only the columns for which want returns true are included in the
// values. Bytes are copied out of buf.
func decodeRow(td *catalog.TableDesc, buf []byte, want func(id int32) bool) (storedRow, error) {
	version, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return storedRow{}, status.Corruptionf("docdb: table %s: row version: %s", td,
			protowire.ParseError(n))
	}
	buf = buf[n:]

	row := storedRow{
		version: version,
		values:  map[int32]sql.Value{},
	}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return storedRow{}, status.Corruptionf("docdb: table %s: row field: %s", td,
				protowire.ParseError(n))
		}
		buf = buf[n:]

		cd, ok := td.ColumnByID(int32(num))
		if !ok || !want(cd.ID) {
			n = protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return storedRow{}, status.Corruptionf("docdb: table %s: field %d: %s", td, num,
					protowire.ParseError(n))
			}
			buf = buf[n:]
			continue
		}
		if typ != wireType(cd.Type) {
			return storedRow{}, status.Corruptionf("docdb: table %s: column %s: wire type %d",
				td, cd.Name, typ)
		}

		var v sql.Value
		switch typ {
		case protowire.VarintType:
			var u uint64
			u, n = protowire.ConsumeVarint(buf)
			if cd.Type == sql.BoolType {
				v = sql.BoolValue(protowire.DecodeBool(u))
			} else {
				v = sql.Int64Value(protowire.DecodeZigZag(u))
			}
		case protowire.Fixed64Type:
			var u uint64
			u, n = protowire.ConsumeFixed64(buf)
			v = sql.Float64Value(math.Float64frombits(u))
		case protowire.BytesType:
			var b []byte
			b, n = protowire.ConsumeBytes(buf)
			if cd.Type == sql.StringType {
				v = sql.StringValue(b)
			} else {
				v = sql.BytesValue(append(make([]byte, 0, len(b)), b...))
			}
		}
		if n < 0 {
			return storedRow{}, status.Corruptionf("docdb: table %s: column %s: %s", td, cd.Name,
				protowire.ParseError(n))
		}
		buf = buf[n:]
		row.values[cd.ID] = v
	}
	return row, nil
}

func allColumns(id int32) bool {
	return true
}
