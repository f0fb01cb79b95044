// Package docdata encodes and decodes the rows streamed back from the document store.
//
// A batch is a sequence of rows and a row is a sequence of values in target order. Each value
// starts with a one byte header; bit 0 of the header marks a NULL, which has no payload.
// Fixed width payloads are big endian. Variable width payloads (strings and binary) are a
// varint length followed by that many bytes. Batches do not carry a row count; it travels
// beside the data in docapi.RowBatch.
package docdata

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

const (
	nullBit = 0x01
)

type Header struct {
	Null bool
}

func (h Header) Byte() byte {
	if h.Null {
		return nullBit
	}
	return 0
}

func WriteNull(buf []byte) []byte {
	return append(buf, Header{Null: true}.Byte())
}

// WriteValue appends the header and payload for v, which must be carried by type it. A nil v
// is written as NULL.
func WriteValue(buf []byte, it sql.InternalType, v sql.Value) ([]byte, error) {
	if v == nil {
		return WriteNull(buf), nil
	}

	buf = append(buf, Header{}.Byte())
	switch it {
	case sql.BoolType:
		b, ok := v.(sql.BoolValue)
		if !ok {
			break
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case sql.Int16Type, sql.Int32Type, sql.Int64Type, sql.Uint32Type:
		i, ok := v.(sql.Int64Value)
		if !ok {
			break
		}
		switch it {
		case sql.Int16Type:
			return binary.BigEndian.AppendUint16(buf, uint16(i)), nil
		case sql.Int32Type, sql.Uint32Type:
			return binary.BigEndian.AppendUint32(buf, uint32(i)), nil
		default:
			return binary.BigEndian.AppendUint64(buf, uint64(i)), nil
		}
	case sql.FloatType:
		d, ok := v.(sql.Float64Value)
		if !ok {
			break
		}
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(d))), nil
	case sql.DoubleType:
		d, ok := v.(sql.Float64Value)
		if !ok {
			break
		}
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(d))), nil
	case sql.StringType, sql.BinaryType:
		var b []byte
		switch v := v.(type) {
		case sql.StringValue:
			b = []byte(v)
		case sql.BytesValue:
			b = v
		default:
			return nil, fmt.Errorf("docdata: expected a %s value: %v", it, v)
		}
		buf = protowire.AppendVarint(buf, uint64(len(b)))
		return append(buf, b...), nil
	default:
		return nil, fmt.Errorf("docdata: unable to encode type %s", it)
	}

	return nil, fmt.Errorf("docdata: expected a %s value: %v", it, v)
}

// EncodeRow appends one row: row[n] is encoded as type types[n].
func EncodeRow(buf []byte, types []sql.InternalType, row []sql.Value) ([]byte, error) {
	if len(types) != len(row) {
		panic(fmt.Sprintf("docdata: %d types for %d values", len(types), len(row)))
	}

	var err error
	for vdx, v := range row {
		buf, err = WriteValue(buf, types[vdx], v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Cursor is a read position in the bytes of the current batch.
type Cursor struct {
	buf []byte
	off int
}

func (cur *Cursor) Reset(buf []byte) {
	cur.buf = buf
	cur.off = 0
}

func (cur *Cursor) Empty() bool {
	return cur.off >= len(cur.buf)
}

func (cur *Cursor) Offset() int {
	return cur.off
}

func (cur *Cursor) Remaining() int {
	return len(cur.buf) - cur.off
}

func (cur *Cursor) take(n int) ([]byte, error) {
	if n < 0 || cur.Remaining() < n {
		return nil, status.Corruptionf("docdata: need %d bytes at offset %d; have %d", n,
			cur.off, cur.Remaining())
	}
	b := cur.buf[cur.off : cur.off+n]
	cur.off += n
	return b, nil
}

func (cur *Cursor) ReadHeader() (Header, error) {
	b, err := cur.take(1)
	if err != nil {
		return Header{}, err
	}
	if b[0]&^nullBit != 0 {
		return Header{}, status.Corruptionf("docdata: bad header 0x%X at offset %d", b[0],
			cur.off-1)
	}
	return Header{Null: b[0]&nullBit != 0}, nil
}

// ReadValue reads the payload of a non-NULL value of type it.
func (cur *Cursor) ReadValue(it sql.InternalType) (sql.Value, error) {
	if sz := it.FixedSize(); sz > 0 {
		b, err := cur.take(sz)
		if err != nil {
			return nil, err
		}

		switch it {
		case sql.BoolType:
			return sql.BoolValue(b[0] != 0), nil
		case sql.Int16Type:
			return sql.Int64Value(int16(binary.BigEndian.Uint16(b))), nil
		case sql.Int32Type:
			return sql.Int64Value(int32(binary.BigEndian.Uint32(b))), nil
		case sql.Uint32Type:
			return sql.Int64Value(binary.BigEndian.Uint32(b)), nil
		case sql.Int64Type:
			return sql.Int64Value(int64(binary.BigEndian.Uint64(b))), nil
		case sql.FloatType:
			return sql.Float64Value(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
		case sql.DoubleType:
			return sql.Float64Value(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
		}
	}

	switch it {
	case sql.StringType:
		b, err := cur.readBytes()
		if err != nil {
			return nil, err
		}
		return sql.StringValue(b), nil
	case sql.BinaryType:
		b, err := cur.readBytes()
		if err != nil {
			return nil, err
		}
		return sql.BytesValue(append(make([]byte, 0, len(b)), b...)), nil
	}
	return nil, status.Corruptionf("docdata: unable to decode type %s", it)
}

func (cur *Cursor) readBytes() ([]byte, error) {
	n, sz := protowire.ConsumeVarint(cur.buf[cur.off:])
	if sz < 0 {
		return nil, status.Corruptionf("docdata: bad length at offset %d: %s", cur.off,
			protowire.ParseError(sz))
	}
	cur.off += sz
	if n > uint64(cur.Remaining()) {
		return nil, status.Corruptionf("docdata: length %d at offset %d exceeds batch", n,
			cur.off)
	}
	return cur.take(int(n))
}

// LoadCache points cur at the rows of batch and returns how many rows it holds.
func LoadCache(batch *docapi.RowBatch, cur *Cursor) (int64, error) {
	if batch.RowCount < 0 {
		return 0, status.Corruptionf("docdata: negative row count: %d", batch.RowCount)
	}
	if (batch.RowCount == 0) != (len(batch.Data) == 0) {
		return 0, status.Corruptionf("docdata: %d rows in %d bytes", batch.RowCount,
			len(batch.Data))
	}
	cur.Reset(batch.Data)
	return batch.RowCount, nil
}

// SysColumns are the system columns of a row; they are never part of the user visible tuple.
type SysColumns struct {
	OID   uint32
	RowID []byte
}

// Tuple is the destination of one decoded row.
type Tuple struct {
	Values []sql.Value
	Nulls  []bool
	Sys    *SysColumns
}

func (tup *Tuple) Set(idx int, v sql.Value) error {
	if idx < 0 || idx >= len(tup.Values) {
		return status.InvalidArgumentf("docdata: attribute index %d out of range [0, %d)", idx,
			len(tup.Values))
	}
	tup.Values[idx] = v
	if tup.Nulls != nil {
		tup.Nulls[idx] = v == nil
	}
	return nil
}

func (tup *Tuple) SetOID(v sql.Value) {
	if tup.Sys == nil {
		return
	}
	if i, ok := v.(sql.Int64Value); ok {
		tup.Sys.OID = uint32(i)
	} else {
		tup.Sys.OID = 0
	}
}

func (tup *Tuple) SetRowID(v sql.Value) {
	if tup.Sys == nil {
		return
	}
	switch v := v.(type) {
	case sql.BytesValue:
		tup.Sys.RowID = v
	case sql.StringValue:
		tup.Sys.RowID = []byte(v)
	default:
		tup.Sys.RowID = nil
	}
}
