// Package docdb is the document store: tables of rows addressed by row identifier, kept in
// an ordered key/value store, read a page at a time and written one row at a time.
package docdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

const (
	FirstTableID = 16384
	FirstOID     = 16384
)

var nextOIDKey = []byte{metaPrefix, 'n', 'e', 'x', 't', '-', 'o', 'i', 'd'}

type Store struct {
	kv     KV
	mutex  sync.Mutex
	tables map[docapi.TableID]*catalog.TableDesc
	clock  uint64
}

// Open opens (or creates) the store of kind in dataDir and loads the table schemas.
func Open(kind, dataDir string, logger *log.Logger) (*Store, error) {
	kv, err := OpenKV(kind, dataDir, logger)
	if err != nil {
		return nil, err
	}

	st := &Store{
		kv:     kv,
		tables: map[docapi.TableID]*catalog.TableDesc{},
	}
	err = st.load()
	if err != nil {
		kv.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"store":  kind,
		"dir":    dataDir,
		"tables": len(st.tables),
	}).Info("docdb: store open")
	return st, nil
}

func getUint64(get func(key []byte, fn func(val []byte) error) error, key []byte) (uint64,
	error) {

	var u64 uint64
	err := get(key,
		func(val []byte) error {
			if len(val) != 8 {
				return status.Corruptionf("docdb: key %v: want 8 bytes; got %d", key, len(val))
			}
			u64 = binary.BigEndian.Uint64(val)
			return nil
		})
	if err == io.EOF {
		return 0, nil
	}
	return u64, err
}

func setUint64(upd Updater, key []byte, u64 uint64) error {
	return upd.Set(key, binary.BigEndian.AppendUint64(nil, u64))
}

func (st *Store) load() error {
	var err error
	st.clock, err = getUint64(st.kv.Get, clockKey)
	if err != nil {
		return err
	}

	prefix := []byte{schemaPrefix}
	it, err := st.kv.Iterate(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		var done bool
		err = it.Item(
			func(key, val []byte) error {
				if !bytes.HasPrefix(key, prefix) {
					done = true
					return nil
				}
				td, err := decodeSchema(val)
				if err != nil {
					return err
				}
				st.tables[td.ID] = td
				return nil
			})
		if err == io.EOF || done {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (st *Store) Close() error {
	return st.kv.Close()
}

// Now returns the current time of the store; rows written after Now is called have a
// version greater than the returned time.
func (st *Store) Now() uint64 {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return st.clock
}

func (st *Store) tick() uint64 {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	now := uint64(time.Now().UnixNano())
	if now <= st.clock {
		now = st.clock + 1
	}
	st.clock = now
	return now
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if err == context.DeadlineExceeded {
		return status.Annotate(status.TimedOut, err, "docdb")
	}
	return err
}

func (st *Store) commit(ctx context.Context, upd Updater, sync bool) error {
	err := ctxErr(ctx)
	if err != nil {
		upd.Rollback()
		return err
	}
	return upd.Commit(sync)
}

func nextCounter(upd Updater, key []byte, first uint64) (uint64, error) {
	n, err := getUint64(upd.Get, key)
	if err != nil {
		return 0, err
	}
	if n < first {
		n = first
	}
	return n, setUint64(upd, key, n+1)
}

func (st *Store) Table(tid docapi.TableID) (*catalog.TableDesc, error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	td, ok := st.tables[tid]
	if !ok {
		return nil, status.NotFoundf("docdb: table %d not found", tid)
	}
	return td, nil
}

func (st *Store) LookupTable(name string) (*catalog.TableDesc, error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	for _, td := range st.tables {
		if td.Name == name {
			return td, nil
		}
	}
	return nil, status.NotFoundf("docdb: table %s not found", name)
}

// Tables returns every table, sorted by name.
func (st *Store) Tables() []*catalog.TableDesc {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	tables := make([]*catalog.TableDesc, 0, len(st.tables))
	for _, td := range st.tables {
		tables = append(tables, td)
	}
	sort.Slice(tables,
		func(i, j int) bool {
			return tables[i].Name < tables[j].Name
		})
	return tables
}

func (st *Store) CreateTable(ctx context.Context, name string, hasOIDs bool,
	cols []catalog.ColumnDesc) (*catalog.TableDesc, error) {

	if name == "" {
		return nil, status.InvalidArgumentf("docdb: create table: missing name")
	}
	if len(cols) == 0 {
		return nil, status.InvalidArgumentf("docdb: create table %s: no columns", name)
	}
	names := map[string]struct{}{
		catalog.ObjectIDColumnName: {},
		catalog.RowIDColumnName:    {},
	}
	for _, cd := range cols {
		if _, ok := names[cd.Name]; ok {
			return nil, status.InvalidArgumentf("docdb: create table %s: duplicate column %s",
				name, cd.Name)
		}
		names[cd.Name] = struct{}{}
		if cd.Type == sql.UnknownType {
			return nil, status.InvalidArgumentf("docdb: create table %s: column %s: "+
				"missing type", name, cd.Name)
		}
	}

	if _, err := st.LookupTable(name); err == nil {
		return nil, status.AlreadyPresentf("docdb: table %s already exists", name)
	}

	upd, err := st.kv.Update()
	if err != nil {
		return nil, err
	}
	id, err := nextCounter(upd, nextTableIDKey, FirstTableID)
	if err != nil {
		upd.Rollback()
		return nil, err
	}
	td := catalog.NewTableDesc(docapi.TableID(id), name, hasOIDs, cols)
	buf, err := encodeSchema(td)
	if err != nil {
		upd.Rollback()
		return nil, err
	}
	err = upd.Set(schemaKey(td.ID), buf)
	if err != nil {
		upd.Rollback()
		return nil, err
	}
	err = st.commit(ctx, upd, true)
	if err != nil {
		return nil, err
	}

	st.mutex.Lock()
	st.tables[td.ID] = td
	st.mutex.Unlock()

	log.WithFields(log.Fields{
		"table": td.Name,
		"id":    td.ID,
	}).Info("docdb: table created")
	return td, nil
}

// DropTable removes the table and all of its rows.
func (st *Store) DropTable(ctx context.Context, tid docapi.TableID) error {
	td, err := st.Table(tid)
	if err != nil {
		return err
	}

	var keys [][]byte
	prefix := tableRowPrefix(tid)
	it, err := st.kv.Iterate(prefix)
	if err != nil {
		return err
	}
	for {
		var done bool
		err = it.Item(
			func(key, val []byte) error {
				if !bytes.HasPrefix(key, prefix) {
					done = true
					return nil
				}
				keys = append(keys, append(make([]byte, 0, len(key)), key...))
				return nil
			})
		if err == io.EOF || done {
			break
		} else if err != nil {
			it.Close()
			return err
		}
	}
	it.Close()

	upd, err := st.kv.Update()
	if err != nil {
		return err
	}
	for _, key := range append(keys, schemaKey(tid)) {
		err = upd.Delete(key)
		if err != nil {
			upd.Rollback()
			return err
		}
	}
	err = st.commit(ctx, upd, true)
	if err != nil {
		return err
	}

	st.mutex.Lock()
	delete(st.tables, tid)
	st.mutex.Unlock()

	log.WithFields(log.Fields{
		"table": td.Name,
		"rows":  len(keys),
	}).Info("docdb: table dropped")
	return nil
}
