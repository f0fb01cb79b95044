package testutil

import (
	"os"
	"path/filepath"
)

// CleanDir removes the contents of dir, except for the entries named in keep. A missing dir is
// not an error.
func CleanDir(dir string, keep ...string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}

	skip := map[string]struct{}{}
	for _, k := range keep {
		skip[k] = struct{}{}
	}

	for _, ent := range entries {
		if _, ok := skip[ent.Name()]; ok {
			continue
		}
		err = os.RemoveAll(filepath.Join(dir, ent.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}
