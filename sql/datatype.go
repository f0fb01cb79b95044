package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
)

// InternalType is the storage tier's representation of a column or expression type.
type InternalType int

const (
	UnknownType InternalType = iota
	BoolType
	Int16Type
	Int32Type
	Int64Type
	Uint32Type
	FloatType
	DoubleType
	StringType
	BinaryType
)

func (it InternalType) String() string {
	switch it {
	case BoolType:
		return "BOOL"
	case Int16Type:
		return "INT16"
	case Int32Type:
		return "INT32"
	case Int64Type:
		return "INT64"
	case Uint32Type:
		return "UINT32"
	case FloatType:
		return "FLOAT"
	case DoubleType:
		return "DOUBLE"
	case StringType:
		return "STRING"
	case BinaryType:
		return "BINARY"
	}
	return fmt.Sprintf("InternalType(%d)", int(it))
}

// FixedSize returns the number of payload bytes used on the wire for values of this type, or
// zero for variable width types.
func (it InternalType) FixedSize() int {
	switch it {
	case BoolType:
		return 1
	case Int16Type:
		return 2
	case Int32Type, Uint32Type, FloatType:
		return 4
	case Int64Type, DoubleType:
		return 8
	}
	return 0
}

// Compatible reports whether a value of type valType may be bound or assigned to a column of
// type colType. Text and binary share one representation, so they are compatible with each
// other; every other pair must match exactly.
func Compatible(colType, valType InternalType) bool {
	if colType == valType {
		return true
	}
	return (colType == BinaryType && valType == StringType) ||
		(colType == StringType && valType == BinaryType)
}

func ParseInternalType(s string) (InternalType, error) {
	switch strings.ToLower(s) {
	case "bool", "boolean":
		return BoolType, nil
	case "int16", "smallint":
		return Int16Type, nil
	case "int32", "int", "integer":
		return Int32Type, nil
	case "int64", "bigint":
		return Int64Type, nil
	case "uint32", "oid":
		return Uint32Type, nil
	case "float", "real":
		return FloatType, nil
	case "double":
		return DoubleType, nil
	case "string", "text", "varchar":
		return StringType, nil
	case "binary", "bytea", "bytes":
		return BinaryType, nil
	}
	return UnknownType, fmt.Errorf("sql: unknown type: %s", s)
}

// TypeFromOid maps a PostgreSQL type oid to the internal type used to carry its values.
func TypeFromOid(o oid.Oid) (InternalType, error) {
	switch o {
	case oid.T_bool:
		return BoolType, nil
	case oid.T_int2:
		return Int16Type, nil
	case oid.T_int4:
		return Int32Type, nil
	case oid.T_int8:
		return Int64Type, nil
	case oid.T_oid:
		return Uint32Type, nil
	case oid.T_float4:
		return FloatType, nil
	case oid.T_float8:
		return DoubleType, nil
	case oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name:
		return StringType, nil
	case oid.T_bytea:
		return BinaryType, nil
	}
	return UnknownType, fmt.Errorf("sql: unsupported type oid: %d", o)
}

// ConvertValue checks that v can be carried by type it, converting between closely related
// representations where that loses nothing.
func ConvertValue(it InternalType, v Value) (Value, error) {
	if v == nil {
		return nil, nil
	}

	switch it {
	case BoolType:
		if _, ok := v.(BoolValue); ok {
			return v, nil
		}
	case Int16Type, Int32Type, Int64Type, Uint32Type:
		var i int64
		switch v := v.(type) {
		case Int64Value:
			i = int64(v)
		case StringValue:
			n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("sql: expected an integer: %v: %s", v, err)
			}
			i = n
		default:
			return nil, fmt.Errorf("sql: expected an integer value: %v", v)
		}
		if !inRange(it, i) {
			return nil, fmt.Errorf("sql: %d out of range for %s", i, it)
		}
		return Int64Value(i), nil
	case FloatType, DoubleType:
		switch v := v.(type) {
		case Float64Value:
			return v, nil
		case Int64Value:
			return Float64Value(v), nil
		case StringValue:
			d, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
			if err != nil {
				return nil, fmt.Errorf("sql: expected a float: %v: %s", v, err)
			}
			return Float64Value(d), nil
		}
	case StringType:
		switch v := v.(type) {
		case StringValue:
			return v, nil
		case BytesValue:
			return StringValue(v), nil
		}
	case BinaryType:
		switch v := v.(type) {
		case BytesValue:
			return v, nil
		case StringValue:
			return BytesValue(v), nil
		}
	}

	return nil, fmt.Errorf("sql: expected a %s value: %v", it, v)
}

func inRange(it InternalType, i int64) bool {
	switch it {
	case Int16Type:
		return i >= math.MinInt16 && i <= math.MaxInt16
	case Int32Type:
		return i >= math.MinInt32 && i <= math.MaxInt32
	case Uint32Type:
		return i >= 0 && i <= math.MaxUint32
	}
	return true
}
