package docdb

import (
	"bytes"
	"io"
	"sync"

	"github.com/google/btree"
)

type btreeKV struct {
	mutex       sync.Mutex
	updateMutex sync.Mutex
	tree        *btree.BTree
}

type btreeItem struct {
	key []byte
	val []byte
}

func (bi btreeItem) Less(item btree.Item) bool {
	return bytes.Compare(bi.key, item.(btreeItem).key) < 0
}

// btreeIterator walks a copy on write snapshot of the tree, seeking past the last key
// returned for each item.
type btreeIterator struct {
	tree *btree.BTree
	key  []byte
	next bool
}

type btreeUpdater struct {
	batchStats
	kv   *btreeKV
	tree *btree.BTree
}

// MakeBTreeKV returns an in memory store; nothing is kept once it is closed.
func MakeBTreeKV() KV {
	return &btreeKV{
		tree: btree.New(16),
	}
}

func (bkv *btreeKV) snapshot() *btree.BTree {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()
	return bkv.tree.Clone()
}

func (bkv *btreeKV) Iterate(key []byte) (Iterator, error) {
	return &btreeIterator{
		tree: bkv.snapshot(),
		key:  append(make([]byte, 0, len(key)), key...),
	}, nil
}

func (bit *btreeIterator) Item(fn func(key, val []byte) error) error {
	var found bool
	var cur btreeItem
	bit.tree.AscendGreaterOrEqual(btreeItem{key: bit.key},
		func(item btree.Item) bool {
			cur = item.(btreeItem)
			if bit.next && bytes.Equal(cur.key, bit.key) {
				return true
			}
			found = true
			return false
		})
	if !found {
		return io.EOF
	}

	bit.key = cur.key
	bit.next = true
	return fn(cur.key, cur.val)
}

func (bit *btreeIterator) Close() {}

func (bkv *btreeKV) Get(key []byte, fn func(val []byte) error) error {
	return btreeGet(bkv.snapshot(), key, fn)
}

func btreeGet(tree *btree.BTree, key []byte, fn func(val []byte) error) error {
	item := tree.Get(btreeItem{key: key})
	if item == nil {
		return io.EOF
	}
	return fn(item.(btreeItem).val)
}

func (bkv *btreeKV) Update() (Updater, error) {
	bkv.updateMutex.Lock()
	return &btreeUpdater{
		batchStats: batchStats{kind: "btree"},
		kv:         bkv,
		tree:       bkv.snapshot(),
	}, nil
}

func (bkv *btreeKV) Close() error {
	return nil
}

func (bu *btreeUpdater) Get(key []byte, fn func(val []byte) error) error {
	return btreeGet(bu.tree, key, fn)
}

func (bu *btreeUpdater) Set(key, val []byte) error {
	bu.sets += 1
	bu.tree.ReplaceOrInsert(
		btreeItem{
			key: append(make([]byte, 0, len(key)), key...),
			val: append(make([]byte, 0, len(val)), val...),
		})
	return nil
}

func (bu *btreeUpdater) Delete(key []byte) error {
	bu.deletes += 1
	bu.tree.Delete(btreeItem{key: key})
	return nil
}

func (bu *btreeUpdater) Commit(sync bool) error {
	if bu.empty() {
		bu.Rollback()
		return nil
	}

	bu.kv.mutex.Lock()
	bu.kv.tree = bu.tree
	bu.kv.mutex.Unlock()

	bu.kv.updateMutex.Unlock()
	bu.logCommit(sync)
	return nil
}

func (bu *btreeUpdater) Rollback() {
	bu.kv.updateMutex.Unlock()
}
