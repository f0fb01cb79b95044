// Package session owns a connection to the document store: the configuration, a cache of
// table descriptors, the statements created over it, and the read time of the current
// transaction.
package session

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/config"
	"github.com/leftmike/pggate/dml"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/docdb"
	"github.com/leftmike/pggate/flags"
	"github.com/leftmike/pggate/status"
)

type Session struct {
	st  *docdb.Store
	cfg *config.Config

	mutex    sync.Mutex
	tables   map[docapi.TableID]*catalog.TableDesc
	inTx     bool
	readTime uint64
}

func New(st *docdb.Store, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		st:     st,
		cfg:    cfg,
		tables: map[docapi.TableID]*catalog.TableDesc{},
	}
}

func (sess *Session) Config() *config.Config {
	return sess.cfg
}

func (sess *Session) flag(f flags.Flag) bool {
	return sess.cfg.Flags.GetFlag(f)
}

// LoadTable returns the descriptor of table tid, from the cache when possible.
func (sess *Session) LoadTable(tid docapi.TableID) (*catalog.TableDesc, error) {
	sess.mutex.Lock()
	td, ok := sess.tables[tid]
	sess.mutex.Unlock()
	if ok {
		return td, nil
	}

	td, err := sess.st.Table(tid)
	if err != nil {
		return nil, err
	}

	sess.mutex.Lock()
	sess.tables[tid] = td
	sess.mutex.Unlock()
	return td, nil
}

func (sess *Session) LookupTable(name string) (*catalog.TableDesc, error) {
	td, err := sess.st.LookupTable(name)
	if err != nil {
		return nil, err
	}
	return sess.LoadTable(td.ID)
}

// InvalidateTable drops table tid from the cache; the next LoadTable reads it from the store.
func (sess *Session) InvalidateTable(tid docapi.TableID) {
	sess.mutex.Lock()
	delete(sess.tables, tid)
	sess.mutex.Unlock()
}

func (sess *Session) Tables() []*catalog.TableDesc {
	return sess.st.Tables()
}

func (sess *Session) CreateTable(ctx context.Context, name string, hasOIDs bool,
	cols []catalog.ColumnDesc) (*catalog.TableDesc, error) {

	ctx, cancel := context.WithTimeout(ctx, sess.cfg.SessionTimeout)
	defer cancel()

	td, err := sess.st.CreateTable(ctx, name, hasOIDs, cols)
	if err != nil {
		return nil, err
	}
	sess.InvalidateTable(td.ID)
	return td, nil
}

func (sess *Session) DropTable(ctx context.Context, tid docapi.TableID) error {
	ctx, cancel := context.WithTimeout(ctx, sess.cfg.SessionTimeout)
	defer cancel()

	sess.InvalidateTable(tid)
	return sess.st.DropTable(ctx, tid)
}

func (sess *Session) NewSelect(tid docapi.TableID) (*dml.Select, error) {
	td, err := sess.LoadTable(tid)
	if err != nil {
		return nil, err
	}
	return dml.NewSelect(sess, td), nil
}

func (sess *Session) NewInsert(tid docapi.TableID) (*dml.Insert, error) {
	td, err := sess.LoadTable(tid)
	if err != nil {
		return nil, err
	}
	return dml.NewInsert(sess, td), nil
}

func (sess *Session) NewUpdate(tid docapi.TableID) (*dml.Update, error) {
	td, err := sess.LoadTable(tid)
	if err != nil {
		return nil, err
	}
	return dml.NewUpdate(sess, td), nil
}

func (sess *Session) NewDelete(tid docapi.TableID) (*dml.Delete, error) {
	td, err := sess.LoadTable(tid)
	if err != nil {
		return nil, err
	}
	return dml.NewDelete(sess, td), nil
}

func (sess *Session) currentReadTime() uint64 {
	sess.mutex.Lock()
	defer sess.mutex.Unlock()
	return sess.readTime
}

// Begin starts a transaction: rows read and changed until Commit or Abort must not have been
// written by anyone else after Begin. A conflict fails with TryAgain; retrying is up to the
// caller.
func (sess *Session) Begin() error {
	sess.mutex.Lock()
	defer sess.mutex.Unlock()

	if sess.inTx {
		return status.IllegalStatef("session: transaction already started")
	}
	sess.inTx = true
	sess.readTime = sess.st.Now()
	log.WithField("read_time", sess.readTime).Debug("session: begin")
	return nil
}

func (sess *Session) endTx(what string) error {
	sess.mutex.Lock()
	defer sess.mutex.Unlock()

	if !sess.inTx {
		return status.IllegalStatef("session: %s: no transaction", what)
	}
	log.WithField("read_time", sess.readTime).Debugf("session: %s", what)
	sess.inTx = false
	sess.readTime = 0
	return nil
}

// Commit ends the transaction. Writes are applied to the store as they are made, so there
// is nothing more to do.
func (sess *Session) Commit() error {
	return sess.endTx("commit")
}

// Abort ends the transaction. Writes already made are not undone.
func (sess *Session) Abort() error {
	return sess.endTx("abort")
}

func (sess *Session) InTransaction() bool {
	sess.mutex.Lock()
	defer sess.mutex.Unlock()
	return sess.inTx
}

// ApplyWrite sends req to the store under the session timeout.
func (sess *Session) ApplyWrite(ctx context.Context, req *docapi.WriteRequest) (
	*docapi.WriteResponse, error) {

	ctx, cancel := context.WithTimeout(ctx, sess.cfg.SessionTimeout)
	defer cancel()

	req.ReadTime = sess.currentReadTime()
	if !sess.flag(flags.PruneColumns) {
		req.ColumnRefs = nil
	}
	return sess.st.Write(ctx, req)
}

// ReadOp returns an operation that reads the result of req from the store a page at a time.
func (sess *Session) ReadOp(req *docapi.ReadRequest) dml.Operation {
	return &readOp{
		sess: sess,
		req:  *req,
	}
}

type readOp struct {
	sess   *Session
	req    docapi.ReadRequest
	paging []byte
	done   bool
	pages  int
}

func (op *readOp) Execute(ctx context.Context) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	op.req.Limit = op.sess.cfg.PrefetchLimit
	op.req.PointLookup = op.sess.flag(flags.PointLookup)
	if !op.sess.flag(flags.PruneColumns) {
		op.req.ColumnRefs = nil
	}
	op.req.ReadTime = op.sess.currentReadTime()
	op.paging = nil
	op.done = false
	op.pages = 0
	return nil
}

func (op *readOp) EndOfResult() bool {
	return op.done
}

func (op *readOp) GetResult(ctx context.Context, batch *docapi.RowBatch) error {
	if op.done {
		*batch = docapi.RowBatch{}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, op.sess.cfg.SessionTimeout)
	defer cancel()

	req := op.req
	req.PagingState = op.paging
	resp, err := op.sess.st.Read(ctx, &req)
	if err != nil {
		return err
	}

	*batch = resp.Batch
	op.paging = resp.PagingState
	op.done = resp.PagingState == nil
	op.pages += 1
	log.WithFields(log.Fields{
		"table": op.req.TableID,
		"page":  op.pages,
		"rows":  batch.RowCount,
		"done":  op.done,
	}).Debug("session: read page")
	return nil
}
