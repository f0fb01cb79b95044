package docdb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
)

// Keys start with a one byte prefix. Table schemas are keyed by table id; rows are keyed by
// table id followed by the row identifier.
const (
	metaPrefix   = 0x01
	schemaPrefix = 0x02
	rowPrefix    = 0x03
)

var (
	nextTableIDKey = []byte{metaPrefix, 'n', 'e', 'x', 't', '-', 't', 'a', 'b', 'l', 'e'}
	clockKey       = []byte{metaPrefix, 'c', 'l', 'o', 'c', 'k'}
)

// The values of a row identifier are encoded as a tag followed by a representation that sorts
// in the same order as the values.
const (
	nullKeyTag        = 128
	boolKeyTag        = 129
	int64NegKeyTag    = 130
	int64NotNegKeyTag = 131
	float64NaNKeyTag  = 140
	float64NegKeyTag  = 141
	float64ZeroKeyTag = 142
	float64PosKeyTag  = 143
	stringKeyTag      = 150
	bytesKeyTag       = 160
	uuidKeyTag        = 170
)

func schemaKey(tid docapi.TableID) []byte {
	return binary.BigEndian.AppendUint32([]byte{schemaPrefix}, uint32(tid))
}

func tableRowPrefix(tid docapi.TableID) []byte {
	return binary.BigEndian.AppendUint32([]byte{rowPrefix}, uint32(tid))
}

func rowKey(tid docapi.TableID, rowID []byte) []byte {
	return append(tableRowPrefix(tid), rowID...)
}

// Zero bytes terminate the value, so 0 and 1 are escaped with a 1.
func appendKeyBytes(buf []byte, b []byte) []byte {
	for _, c := range b {
		if c == 0 || c == 1 {
			buf = append(buf, 1)
		}
		buf = append(buf, c)
	}
	return append(buf, 0)
}

// EncodeRowID returns the row identifier for a row with the primary key values vals.
func EncodeRowID(vals []sql.Value) []byte {
	var buf []byte
	for _, val := range vals {
		switch val := val.(type) {
		case nil:
			buf = append(buf, nullKeyTag)
		case sql.BoolValue:
			if val {
				buf = append(buf, boolKeyTag, 1)
			} else {
				buf = append(buf, boolKeyTag, 0)
			}
		case sql.Int64Value:
			if val < 0 {
				buf = append(buf, int64NegKeyTag)
			} else {
				buf = append(buf, int64NotNegKeyTag)
			}
			buf = binary.BigEndian.AppendUint64(buf, uint64(val))
		case sql.Float64Value:
			if math.IsNaN(float64(val)) {
				buf = append(buf, float64NaNKeyTag)
			} else if val == 0 {
				buf = append(buf, float64ZeroKeyTag)
			} else {
				u := math.Float64bits(float64(val))
				if u&(1<<63) != 0 {
					buf = append(buf, float64NegKeyTag)
					u = ^u
				} else {
					buf = append(buf, float64PosKeyTag)
				}
				buf = binary.BigEndian.AppendUint64(buf, u)
			}
		case sql.StringValue:
			buf = appendKeyBytes(append(buf, stringKeyTag), []byte(val))
		case sql.BytesValue:
			buf = appendKeyBytes(append(buf, bytesKeyTag), val)
		default:
			panic(fmt.Sprintf("docdb: unexpected type for sql.Value: %T: %v", val, val))
		}
	}
	return buf
}

func encodeUUIDRowID(id [16]byte) []byte {
	return append([]byte{uuidKeyTag}, id[:]...)
}
