package sql

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	NullString  = "NULL"
	TrueString  = "true"
	FalseString = "false"
)

type Value interface {
	fmt.Stringer

	// return -1 if v1 < v2
	// return 0 if v1 == v2
	// return 1 if v1 > v2
	Compare(v2 Value) (int, error)
}

type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return TrueString
	}
	return FalseString
}

func (b1 BoolValue) Compare(v2 Value) (int, error) {
	if b2, ok := v2.(BoolValue); ok {
		if b1 == b2 {
			return 0, nil
		} else if b2 {
			return -1, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("sql: want boolean got %v", v2)
}

type Int64Value int64

func (i Int64Value) String() string {
	return fmt.Sprintf("%v", int64(i))
}

func (i1 Int64Value) Compare(v2 Value) (int, error) {
	switch v2 := v2.(type) {
	case Int64Value:
		if i1 < v2 {
			return -1, nil
		} else if i1 > v2 {
			return 1, nil
		}
		return 0, nil
	case Float64Value:
		return Float64Value(i1).Compare(v2)
	}
	return 0, fmt.Errorf("sql: want number got %v", v2)
}

type Float64Value float64

func (d Float64Value) String() string {
	return fmt.Sprintf("%v", float64(d))
}

func (d1 Float64Value) Compare(v2 Value) (int, error) {
	var d2 Float64Value
	switch v2 := v2.(type) {
	case Int64Value:
		d2 = Float64Value(v2)
	case Float64Value:
		d2 = v2
	default:
		return 0, fmt.Errorf("sql: want number got %v", v2)
	}

	if d1 < d2 {
		return -1, nil
	} else if d1 > d2 {
		return 1, nil
	}
	return 0, nil
}

type StringValue string

func (s StringValue) String() string {
	return fmt.Sprintf("'%s'", string(s))
}

func (s1 StringValue) Compare(v2 Value) (int, error) {
	if s2, ok := v2.(StringValue); ok {
		return strings.Compare(string(s1), string(s2)), nil
	}
	return 0, fmt.Errorf("sql: want string got %v", v2)
}

type BytesValue []byte

var (
	hexDigits = [16]rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd',
		'e', 'f'}
)

func (b BytesValue) String() string {
	var buf bytes.Buffer
	buf.WriteString("'\\x")
	for _, v := range b {
		buf.WriteRune(hexDigits[v>>4])
		buf.WriteRune(hexDigits[v&0xF])
	}

	buf.WriteRune('\'')
	return buf.String()
}

func (b1 BytesValue) Compare(v2 Value) (int, error) {
	switch v2 := v2.(type) {
	case BytesValue:
		return bytes.Compare(b1, v2), nil
	case StringValue:
		// Text and binary share one representation on the wire.
		return bytes.Compare(b1, []byte(v2)), nil
	}
	return 0, fmt.Errorf("sql: want bytes got %v", v2)
}

// Equal reports whether v1 and v2 hold the same value; NULL is never equal to anything.
func Equal(v1, v2 Value) bool {
	if v1 == nil || v2 == nil {
		return false
	}
	if s1, ok := v1.(StringValue); ok {
		if b2, ok := v2.(BytesValue); ok {
			return string(s1) == string(b2)
		}
	}
	cmp, err := v1.Compare(v2)
	return err == nil && cmp == 0
}

func Compare(v1, v2 Value) int {
	if v1 == nil {
		if v2 == nil {
			return 0
		}
		return -1
	}
	if v2 == nil {
		return 1
	}

	r1, r2 := rank(v1), rank(v2)
	if r1 != r2 {
		if r1 < r2 {
			return -1
		}
		return 1
	}
	cmp, err := v1.Compare(v2)
	if err != nil {
		panic(fmt.Sprintf("sql: unable to compare %v and %v: %s", v1, v2, err))
	}
	return cmp
}

func rank(v Value) int {
	switch v.(type) {
	case BoolValue:
		return 0
	case Int64Value, Float64Value:
		return 1
	case StringValue:
		return 2
	case BytesValue:
		return 3
	default:
		panic(fmt.Sprintf("unexpected type for sql.Value: %T: %v", v, v))
	}
}

func Format(v Value) string {
	if v == nil {
		return NullString
	}

	return v.String()
}
