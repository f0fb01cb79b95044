package testutil

import (
	"fmt"
	"reflect"
	"strings"
)

// DeepEqual reports whether x and y are deeply equal, using reflect.DeepEqual. If trc is
// given and the values differ, it is set to a line diff of the two values.
func DeepEqual(x, y interface{}, trc ...*string) bool {
	if len(trc) > 1 {
		panic("testutil.DeepEqual: more than one optional argument")
	}

	if reflect.DeepEqual(x, y) {
		if len(trc) == 1 && trc[0] != nil {
			*trc[0] = ""
		}
		return true
	}

	if len(trc) == 1 && trc[0] != nil {
		*trc[0] = LineDiff(dump(x), dump(y))
	}
	return false
}

func dump(v interface{}) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Sprintf("%#v\n", v)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%T len=%d nil=%v\n", v, rv.Len(), rv.Kind() == reflect.Slice && rv.IsNil())
	for idx := 0; idx < rv.Len(); idx += 1 {
		fmt.Fprintf(&sb, "[%d] %#v\n", idx, rv.Index(idx).Interface())
	}
	return sb.String()
}
