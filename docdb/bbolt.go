package docdb

import (
	"io"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/leftmike/pggate/status"
)

const (
	bboltFile = "pggate.bbolt"
)

var (
	// All keys of a document store live in one bucket; table ids lead every key.
	bucketName = []byte("pggate")
)

// bboltKV keeps one document store in a single bbolt file. The file is opened without
// syncing each commit; a commit that asks for sync calls DB.Sync itself.
type bboltKV struct {
	db *bbolt.DB
}

type bboltIterator struct {
	tx   *bbolt.Tx
	cr   *bbolt.Cursor
	key  []byte
	next bool
}

type bboltUpdater struct {
	batchStats
	tx  *bbolt.Tx
	bkt *bbolt.Bucket
}

func MakeBBoltKV(dataDir string) (KV, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, kvError("bbolt", "data directory", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, bboltFile), 0644, nil)
	if err != nil {
		return nil, kvError("bbolt", "open", err)
	}
	db.NoFreelistSync = true
	db.NoSync = true

	err = db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		})
	if err != nil {
		db.Close()
		return nil, kvError("bbolt", "create bucket", err)
	}
	return bboltKV{db: db}, nil
}

func (bkv bboltKV) begin(writable bool) (*bbolt.Tx, *bbolt.Bucket, error) {
	tx, err := bkv.db.Begin(writable)
	if err != nil {
		return nil, nil, kvError("bbolt", "begin", err)
	}
	bkt := tx.Bucket(bucketName)
	if bkt == nil {
		tx.Rollback()
		return nil, nil, status.Corruptionf("docdb: bbolt: missing %s bucket", bucketName)
	}
	return tx, bkt, nil
}

func (bkv bboltKV) Iterate(key []byte) (Iterator, error) {
	tx, bkt, err := bkv.begin(false)
	if err != nil {
		return nil, err
	}
	return &bboltIterator{
		tx:  tx,
		cr:  bkt.Cursor(),
		key: append(make([]byte, 0, len(key)), key...),
	}, nil
}

// Item seeks on the first call and steps the cursor after that.
func (bit *bboltIterator) Item(fn func(key, val []byte) error) error {
	var key, val []byte
	if bit.next {
		key, val = bit.cr.Next()
	} else {
		key, val = bit.cr.Seek(bit.key)
		bit.next = true
	}

	if key == nil {
		return io.EOF
	}
	return fn(key, val)
}

func (bit *bboltIterator) Close() {
	bit.tx.Rollback()
}

func (bkv bboltKV) Get(key []byte, fn func(val []byte) error) error {
	tx, bkt, err := bkv.begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return bboltGet(bkt, key, fn)
}

func bboltGet(bkt *bbolt.Bucket, key []byte, fn func(val []byte) error) error {
	val := bkt.Get(key)
	if val == nil {
		return io.EOF
	}
	return fn(val)
}

func (bkv bboltKV) Update() (Updater, error) {
	tx, bkt, err := bkv.begin(true)
	if err != nil {
		return nil, err
	}
	return &bboltUpdater{
		batchStats: batchStats{kind: "bbolt"},
		tx:         tx,
		bkt:        bkt,
	}, nil
}

func (bkv bboltKV) Close() error {
	return kvError("bbolt", "close", bkv.db.Close())
}

func (bu *bboltUpdater) Get(key []byte, fn func(val []byte) error) error {
	return bboltGet(bu.bkt, key, fn)
}

// Set copies key and val; bbolt requires them to stay unchanged until the commit.
func (bu *bboltUpdater) Set(key, val []byte) error {
	bu.sets += 1
	err := bu.bkt.Put(append(make([]byte, 0, len(key)), key...),
		append(make([]byte, 0, len(val)), val...))
	return kvError("bbolt", "set", err)
}

func (bu *bboltUpdater) Delete(key []byte) error {
	bu.deletes += 1
	return kvError("bbolt", "delete", bu.bkt.Delete(key))
}

func (bu *bboltUpdater) Commit(sync bool) error {
	if bu.empty() {
		bu.Rollback()
		return nil
	}

	db := bu.tx.DB()
	err := bu.tx.Commit()
	if err != nil {
		return kvError("bbolt", "commit", err)
	}
	if sync {
		err = db.Sync()
		if err != nil {
			return kvError("bbolt", "sync", err)
		}
	}
	bu.logCommit(sync)
	return nil
}

func (bu *bboltUpdater) Rollback() {
	bu.tx.Rollback()
}
