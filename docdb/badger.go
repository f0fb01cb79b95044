package docdb

import (
	"io"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	log "github.com/sirupsen/logrus"
)

// badgerKV keeps one document store in a badger database. Each updater is a badger read
// write transaction; the mutex keeps them from conflicting with each other.
type badgerKV struct {
	mutex sync.Mutex
	db    *badger.DB
}

type badgerIterator struct {
	tx *badger.Txn
	it *badger.Iterator
}

type badgerUpdater struct {
	batchStats
	kv *badgerKV
	tx *badger.Txn
}

func MakeBadgerKV(dataDir string, logger *log.Logger) (KV, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, kvError("badger", "data directory", err)
	}

	db, err := badger.Open(badger.DefaultOptions(dataDir).
		WithBypassLockGuard(true).
		WithLogger(logger).
		WithSyncWrites(false))
	if err != nil {
		return nil, kvError("badger", "open", err)
	}
	return &badgerKV{db: db}, nil
}

func (bkv *badgerKV) Iterate(key []byte) (Iterator, error) {
	tx := bkv.db.NewTransaction(false)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	it.Seek(key)
	return badgerIterator{tx: tx, it: it}, nil
}

func (bit badgerIterator) Item(fn func(key, val []byte) error) error {
	if !bit.it.Valid() {
		return io.EOF
	}

	item := bit.it.Item()
	var fnErr error
	err := item.Value(
		func(val []byte) error {
			fnErr = fn(item.Key(), val)
			return nil
		})
	bit.it.Next()
	if err != nil {
		return kvError("badger", "iterate", err)
	}
	return fnErr
}

func (bit badgerIterator) Close() {
	bit.it.Close()
	bit.tx.Discard()
}

func badgerGet(tx *badger.Txn, key []byte, fn func(val []byte) error) error {
	item, err := tx.Get(key)
	if err == badger.ErrKeyNotFound {
		return io.EOF
	} else if err != nil {
		return kvError("badger", "get", err)
	}

	var fnErr error
	err = item.Value(
		func(val []byte) error {
			fnErr = fn(val)
			return nil
		})
	if err != nil {
		return kvError("badger", "get", err)
	}
	return fnErr
}

func (bkv *badgerKV) Get(key []byte, fn func(val []byte) error) error {
	tx := bkv.db.NewTransaction(false)
	defer tx.Discard()
	return badgerGet(tx, key, fn)
}

func (bkv *badgerKV) Update() (Updater, error) {
	bkv.mutex.Lock()
	return &badgerUpdater{
		batchStats: batchStats{kind: "badger"},
		kv:         bkv,
		tx:         bkv.db.NewTransaction(true),
	}, nil
}

func (bkv *badgerKV) Close() error {
	return kvError("badger", "close", bkv.db.Close())
}

func (bu *badgerUpdater) Get(key []byte, fn func(val []byte) error) error {
	return badgerGet(bu.tx, key, fn)
}

// Set and Delete copy their arguments: badger holds on to them until the transaction
// commits.
func (bu *badgerUpdater) Set(key, val []byte) error {
	bu.sets += 1
	err := bu.tx.Set(append(make([]byte, 0, len(key)), key...),
		append(make([]byte, 0, len(val)), val...))
	return kvError("badger", "set", err)
}

func (bu *badgerUpdater) Delete(key []byte) error {
	bu.deletes += 1
	return kvError("badger", "delete", bu.tx.Delete(append(make([]byte, 0, len(key)), key...)))
}

func (bu *badgerUpdater) Commit(sync bool) error {
	if bu.empty() {
		bu.Rollback()
		return nil
	}
	defer bu.kv.mutex.Unlock()

	err := bu.tx.Commit()
	if err != nil {
		return kvError("badger", "commit", err)
	}
	bu.logCommit(sync)
	return nil
}

func (bu *badgerUpdater) Rollback() {
	bu.tx.Discard()
	bu.kv.mutex.Unlock()
}
