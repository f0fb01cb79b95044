package docdb

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/status"
)

// Iterator returns key/value pairs in key order. The slices passed to fn are only valid
// during the call. Item returns io.EOF when there are no more pairs.
type Iterator interface {
	Item(fn func(key, val []byte) error) error
	Close()
}

// Updater is a single writer's view of the store; its changes are visible to readers once
// Commit returns.
type Updater interface {
	Get(key []byte, fn func(val []byte) error) error
	Set(key, val []byte) error
	Delete(key []byte) error
	Commit(sync bool) error
	Rollback()
}

// KV is an ordered key/value store. Get returns io.EOF when key is not present.
type KV interface {
	Iterate(key []byte) (Iterator, error)
	Get(key []byte, fn func(val []byte) error) error
	Update() (Updater, error)
	Close() error
}

var Stores = []string{"badger", "bbolt", "btree", "pebble"}

// kvError marks an error from the underlying store. io.EOF passes through unchanged; it is
// how a store reports a missing key or the end of an iteration.
func kvError(kind, op string, err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	return status.Annotate(status.InternalError, err, "docdb: %s: %s", kind, op)
}

// batchStats counts the changes made through an Updater.
type batchStats struct {
	kind    string
	sets    int
	deletes int
}

func (bs *batchStats) empty() bool {
	return bs.sets == 0 && bs.deletes == 0
}

func (bs *batchStats) logCommit(sync bool) {
	log.WithFields(log.Fields{
		"store":   bs.kind,
		"sets":    bs.sets,
		"deletes": bs.deletes,
		"sync":    sync,
	}).Debug("docdb: commit")
}

// OpenKV opens the store named kind, keeping any files in dataDir. The store logs to logger,
// or to the standard logger if logger is nil.
func OpenKV(kind, dataDir string, logger *log.Logger) (KV, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}

	switch kind {
	case "badger":
		return MakeBadgerKV(dataDir, logger)
	case "bbolt":
		return MakeBBoltKV(dataDir)
	case "btree":
		return MakeBTreeKV(), nil
	case "pebble":
		return MakePebbleKV(dataDir, logger)
	}
	return nil, status.InvalidArgumentf("docdb: unknown store: %s; want one of %v", kind,
		Stores)
}
