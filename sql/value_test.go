package sql_test

import (
	"testing"

	"github.com/leftmike/pggate/sql"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		v1, v2 sql.Value
		cmp    int
	}{
		{nil, sql.BoolValue(true), -1},
		{nil, nil, 0},

		{sql.BoolValue(false), nil, 1},
		{sql.BoolValue(true), sql.BoolValue(true), 0},
		{sql.BoolValue(false), sql.BoolValue(false), 0},
		{sql.BoolValue(false), sql.BoolValue(true), -1},
		{sql.BoolValue(true), sql.BoolValue(false), 1},
		{sql.BoolValue(false), sql.Float64Value(1.23), -1},

		{sql.Float64Value(1.23), sql.BoolValue(false), 1},
		{sql.Float64Value(1.23), sql.Int64Value(123), -1},
		{sql.Float64Value(1.23), sql.StringValue("abc"), -1},
		{sql.Float64Value(1.23), sql.Float64Value(2.34), -1},
		{sql.Float64Value(1.23), sql.Float64Value(1.23), 0},

		{sql.Int64Value(123), sql.Float64Value(1.23), 1},
		{sql.Int64Value(123), sql.StringValue("abc"), -1},
		{sql.Int64Value(123), sql.Int64Value(234), -1},
		{sql.Int64Value(123), sql.Int64Value(123), 0},

		{sql.StringValue("def"), sql.StringValue("ghi"), -1},
		{sql.StringValue("def"), sql.StringValue("def"), 0},
		{sql.StringValue("def"), sql.BytesValue("abc"), -1},

		{sql.BytesValue{1, 2}, sql.BytesValue{1, 2}, 0},
		{sql.BytesValue{1, 2}, sql.BytesValue{1, 3}, -1},
	}

	for _, c := range cases {
		cmp := sql.Compare(c.v1, c.v2)
		if cmp != c.cmp {
			t.Errorf("Compare(%v, %v) got %d want %d", c.v1, c.v2, cmp, c.cmp)
		}
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		v1, v2 sql.Value
		eq     bool
	}{
		{nil, nil, false},
		{sql.Int64Value(1), nil, false},
		{sql.Int64Value(1), sql.Int64Value(1), true},
		{sql.Int64Value(1), sql.Float64Value(1), true},
		{sql.StringValue("abc"), sql.BytesValue("abc"), true},
		{sql.BytesValue("abc"), sql.StringValue("abc"), true},
		{sql.StringValue("abc"), sql.Int64Value(1), false},
	}

	for _, c := range cases {
		eq := sql.Equal(c.v1, c.v2)
		if eq != c.eq {
			t.Errorf("Equal(%v, %v) got %v want %v", c.v1, c.v2, eq, c.eq)
		}
	}
}
