package testutil

import (
	"strings"

	"github.com/andreyvit/diff"
)

// LineDiff returns a line by line diff of got and want, or "" when they are the same.
func LineDiff(got, want string) string {
	if got == want {
		return ""
	}
	return diff.LineDiff(strings.TrimRight(want, "\n"), strings.TrimRight(got, "\n"))
}
