package cmd

import (
	"path/filepath"
	"testing"

	"github.com/leftmike/pggate/testutil"
)

func TestExec(t *testing.T) {
	err := testutil.CleanDir("testdata", ".gitignore")
	if err != nil {
		t.Fatal(err)
	}

	pggateCmd.SetArgs([]string{"exec", "--no-config", "--store", "btree",
		"--log-file", filepath.Join("testdata", "cmd.log"), "--prefetch-limit", "7",
		"-c", "create kv (key int key, value int)",
		"-c", "insert kv key=1 value=10; insert kv key=2 value=20",
		"-c", "select kv key=3",
		"-c", "insert kv key=1 value=11",
	})
	err = Execute()
	if err == nil || err.Error() != "pggate: 1 commands failed" {
		t.Errorf("Execute(exec) got %v want 1 commands failed", err)
	}
	if cfg == nil || cfg.PrefetchLimit != 7 || cfg.Store != "btree" {
		t.Errorf("Execute(exec) got config %+v", cfg)
	}
	if st != nil {
		t.Errorf("Execute(exec) did not close the store")
	}
}
