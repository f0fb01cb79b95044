// Package flags holds the boolean feature flags that change how requests are built.
package flags

import (
	"sort"
	"strings"
)

type Flag int

const (
	// Send the ids of the columns a statement uses, so the store decodes only those.
	PruneColumns Flag = iota

	// Read a single row when every primary key column is bound to a value.
	PointLookup
)

type flagDefault struct {
	flag Flag
	def  bool
}

var (
	defaultFlags = map[string]flagDefault{
		"prune_columns": {PruneColumns, true},
		"point_lookup":  {PointLookup, true},
	}
)

func LookupFlag(nam string) (Flag, bool) {
	fd, ok := defaultFlags[strings.ToLower(nam)]
	return fd.flag, ok
}

// ListFlags calls fn with the name, flag, and default value of every flag, in name order.
func ListFlags(fn func(nam string, f Flag, def bool)) {
	names := make([]string, 0, len(defaultFlags))
	for nam := range defaultFlags {
		names = append(names, nam)
	}
	sort.Strings(names)

	for _, nam := range names {
		fd := defaultFlags[nam]
		fn(nam, fd.flag, fd.def)
	}
}

type Flags []bool

func (flgs Flags) GetFlag(f Flag) bool {
	return flgs[f]
}

func (flgs Flags) SetFlag(f Flag, b bool) {
	flgs[f] = b
}

func Default() Flags {
	flgs := make([]bool, len(defaultFlags))
	for _, fd := range defaultFlags {
		flgs[fd.flag] = fd.def
	}
	return flgs
}
