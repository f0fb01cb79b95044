package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/testutil"
)

func TestDeepEqual(t *testing.T) {
	cases := []struct {
		a, b interface{}
		ret  bool
	}{
		{1, 2, false},
		{"abc", "abc", true},
		{[]string{"abc", "def"}, []string{"abc", "def"}, true},
		{[]sql.Value{sql.Int64Value(1), nil}, []sql.Value{sql.Int64Value(1), nil}, true},
		{[]sql.Value{sql.Int64Value(1)}, []sql.Value{sql.StringValue("1")}, false},
		{[]sql.Value{}, []sql.Value(nil), false},
		{[][]sql.Value{}, [][]sql.Value{}, true},
	}

	for _, c := range cases {
		var s string
		ret := testutil.DeepEqual(c.a, c.b, &s)
		if ret != c.ret {
			t.Errorf("DeepEqual(%v, %v) got %v want %v", c.a, c.b, ret, c.ret)
		} else if ret && s != "" {
			t.Errorf("DeepEqual(%v, %v) got trace %q want \"\"", c.a, c.b, s)
		} else if !ret && s == "" {
			t.Errorf("DeepEqual(%v, %v) got no trace", c.a, c.b)
		}
	}

	if testutil.DeepEqual(1, 2, nil) {
		t.Errorf("DeepEqual(1, 2, nil) got true want false")
	}
}

func TestLineDiff(t *testing.T) {
	if s := testutil.LineDiff("a\nb\n", "a\nb\n"); s != "" {
		t.Errorf("LineDiff(same) got %q want \"\"", s)
	}
	s := testutil.LineDiff("a\nc\n", "a\nb\n")
	if !strings.Contains(s, "-b") || !strings.Contains(s, "+c") {
		t.Errorf("LineDiff() got %q", s)
	}
}

func TestCleanDir(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"keep", "a", "b"} {
		err := os.WriteFile(filepath.Join(dir, n), nil, 0644)
		if err != nil {
			t.Fatal(err)
		}
	}

	err := testutil.CleanDir(dir, "keep")
	if err != nil {
		t.Fatalf("CleanDir() failed with %s", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "keep" {
		t.Errorf("CleanDir() left %v", entries)
	}

	err = testutil.CleanDir(filepath.Join(dir, "missing"))
	if err != nil {
		t.Errorf("CleanDir(missing) failed with %s", err)
	}
}
