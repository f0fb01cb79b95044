package docdb

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
)

// pebbleKV keeps one document store in a pebble database; updates are indexed batches, so
// an updater reads its own writes.
type pebbleKV struct {
	mutex sync.Mutex
	db    *pebble.DB
}

type pebbleIterator struct {
	snap *pebble.Snapshot
	it   *pebble.Iterator
}

type pebbleUpdater struct {
	batchStats
	kv    *pebbleKV
	batch *pebble.Batch
}

func MakePebbleKV(dataDir string, logger *log.Logger) (KV, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, kvError("pebble", "data directory", err)
	}

	db, err := pebble.Open(dataDir, &pebble.Options{Logger: logger})
	if err != nil {
		return nil, kvError("pebble", "open", err)
	}
	return &pebbleKV{db: db}, nil
}

// Iterate reads from a snapshot, so rows committed while a scan pages through a table do
// not show up part way through a page.
func (pkv *pebbleKV) Iterate(key []byte) (Iterator, error) {
	snap := pkv.db.NewSnapshot()
	it := snap.NewIter(nil)
	it.SeekGE(key)
	return pebbleIterator{snap: snap, it: it}, nil
}

func (pit pebbleIterator) Item(fn func(key, val []byte) error) error {
	if !pit.it.Valid() {
		if err := pit.it.Error(); err != nil {
			return kvError("pebble", "iterate", err)
		}
		return io.EOF
	}

	err := fn(pit.it.Key(), pit.it.Value())
	pit.it.Next()
	return err
}

func (pit pebbleIterator) Close() {
	pit.it.Close()
	pit.snap.Close()
}

func pebbleGet(get func(key []byte) ([]byte, io.Closer, error), key []byte,
	fn func(val []byte) error) error {

	val, closer, err := get(key)
	if err == pebble.ErrNotFound {
		return io.EOF
	} else if err != nil {
		return kvError("pebble", "get", err)
	}
	defer closer.Close()
	return fn(val)
}

func (pkv *pebbleKV) Get(key []byte, fn func(val []byte) error) error {
	return pebbleGet(pkv.db.Get, key, fn)
}

func (pkv *pebbleKV) Update() (Updater, error) {
	pkv.mutex.Lock()
	return &pebbleUpdater{
		batchStats: batchStats{kind: "pebble"},
		kv:         pkv,
		batch:      pkv.db.NewIndexedBatch(),
	}, nil
}

func (pkv *pebbleKV) Close() error {
	return kvError("pebble", "close", pkv.db.Close())
}

func (pu *pebbleUpdater) Get(key []byte, fn func(val []byte) error) error {
	return pebbleGet(pu.batch.Get, key, fn)
}

func (pu *pebbleUpdater) Set(key, val []byte) error {
	pu.sets += 1
	return kvError("pebble", "set", pu.batch.Set(key, val, nil))
}

func (pu *pebbleUpdater) Delete(key []byte) error {
	pu.deletes += 1
	return kvError("pebble", "delete", pu.batch.Delete(key, nil))
}

func (pu *pebbleUpdater) Commit(sync bool) error {
	if pu.empty() {
		pu.Rollback()
		return nil
	}
	defer pu.kv.mutex.Unlock()

	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	err := pu.batch.Commit(opt)
	if err != nil {
		return kvError("pebble", "commit", err)
	}
	pu.logCommit(sync)
	return nil
}

func (pu *pebbleUpdater) Rollback() {
	pu.batch.Close()
	pu.kv.mutex.Unlock()
}
