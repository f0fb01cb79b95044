package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/leftmike/pggate/config"
	"github.com/leftmike/pggate/flags"
	"github.com/leftmike/pggate/testutil"
)

func writeFile(t *testing.T, nam, s string) string {
	t.Helper()

	err := testutil.CleanDir("testdata", ".gitignore")
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join("testdata", nam)
	err = os.WriteFile(file, []byte(s), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestDefault(t *testing.T) {
	c := config.Default()
	if c.SessionTimeout != config.DefaultSessionTimeout {
		t.Errorf("SessionTimeout got %s want %s", c.SessionTimeout, config.DefaultSessionTimeout)
	}
	if c.PrefetchLimit != config.DefaultPrefetchLimit {
		t.Errorf("PrefetchLimit got %d want %d", c.PrefetchLimit, config.DefaultPrefetchLimit)
	}
	if c.Store != config.DefaultStore {
		t.Errorf("Store got %s want %s", c.Store, config.DefaultStore)
	}
	if !c.Flags.GetFlag(flags.PruneColumns) || !c.Flags.GetFlag(flags.PointLookup) {
		t.Errorf("Flags got %v want all true", c.Flags)
	}
}

func TestLoadFile(t *testing.T) {
	file := writeFile(t, "load.hcl", `
session_timeout = "5s"
prefetch_limit = 10
store = "pebble"
point_lookup = false
`)

	c, err := config.Load(file, nil)
	if err != nil {
		t.Fatalf("Load(%s) failed with %s", file, err)
	}
	if c.SessionTimeout != 5*time.Second {
		t.Errorf("SessionTimeout got %s want 5s", c.SessionTimeout)
	}
	if c.PrefetchLimit != 10 {
		t.Errorf("PrefetchLimit got %d want 10", c.PrefetchLimit)
	}
	if c.Store != "pebble" {
		t.Errorf("Store got %s want pebble", c.Store)
	}
	if c.Flags.GetFlag(flags.PointLookup) || !c.Flags.GetFlag(flags.PruneColumns) {
		t.Errorf("Flags got %v want [true false]", c.Flags)
	}
}

func TestLoadFail(t *testing.T) {
	cases := []string{
		`unknown_setting = 1`,
		`prefetch_limit = 0`,
		`session_timeout = "-1s"`,
		`store = `,
		`store = ""`,
		`store = "memory"`,
	}

	for _, s := range cases {
		file := writeFile(t, "fail.hcl", s)
		_, err := config.Load(file, nil)
		if err == nil {
			t.Errorf("Load(%q) did not fail", s)
		}
	}

	_, err := config.Load(filepath.Join("testdata", "missing.hcl"), nil)
	if err == nil {
		t.Errorf("Load(missing.hcl) did not fail")
	}
}

func TestPrecedence(t *testing.T) {
	file := writeFile(t, "precedence.hcl", `
prefetch_limit = 10
store = "pebble"
data_dir = "file"
`)
	t.Setenv("PGGATE_STORE", "badger")
	t.Setenv("PGGATE_DATA_DIR", "env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.AddFlags(fs)
	err := fs.Parse([]string{"--data-dir", "flag", "--prune-columns=false"})
	if err != nil {
		t.Fatal(err)
	}

	c, err := config.Load(file, fs)
	if err != nil {
		t.Fatalf("Load(%s) failed with %s", file, err)
	}
	if c.PrefetchLimit != 10 {
		t.Errorf("PrefetchLimit got %d want 10", c.PrefetchLimit)
	}
	if c.Store != "badger" {
		t.Errorf("Store got %s want badger", c.Store)
	}
	if c.DataDir != "flag" {
		t.Errorf("DataDir got %s want flag", c.DataDir)
	}
	if c.SessionTimeout != config.DefaultSessionTimeout {
		t.Errorf("SessionTimeout got %s want %s", c.SessionTimeout, config.DefaultSessionTimeout)
	}
	if c.Flags.GetFlag(flags.PruneColumns) {
		t.Errorf("PruneColumns got true want false")
	}
}

func TestList(t *testing.T) {
	var names []string
	config.Default().List(
		func(nam, val string) {
			names = append(names, nam)
		})

	want := []string{"data_dir", "log_file", "log_level", "log_stderr", "point_lookup",
		"prefetch_limit", "prune_columns", "session_timeout", "store"}
	if !testutil.DeepEqual(names, want) {
		t.Errorf("List() got %v want %v", names, want)
	}
}
