// Package access maintains secondary indexes over tables in the document store and reads heap
// rows by row identifier.
//
// An index is a table of its own. Its key is the indexed columns, in index order, followed by
// the row identifier of the heap row, in a column named ybbasectid. Rows with a NULL in any
// indexed column are not indexed.
package access

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/dml"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/session"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

const BaseRowIDColumnName = "ybbasectid"

type Index struct {
	sess  *session.Session
	heap  *catalog.TableDesc
	index *catalog.TableDesc
	attrs []int // heap attribute numbers of the indexed columns
}

type BuildResult struct {
	HeapTuples  int64
	IndexTuples int64
}

func rowIDConstant(rowID []byte) (*expr.Expr, error) {
	if len(rowID) == 0 {
		return nil, status.InvalidArgumentf("access: missing row identifier")
	}
	return expr.NewConstant(sql.BinaryType, sql.BytesValue(rowID))
}

func appendUserTargets(sel *dml.Select, td *catalog.TableDesc) error {
	for attrNum := 1; attrNum <= td.NumAttrs(); attrNum += 1 {
		err := sel.AppendTarget(expr.NewColumnRef(attrNum, sql.UnknownType))
		if err != nil {
			return err
		}
	}
	return nil
}

// SelectByRowID reads the heap row identified by rowID into values and nulls, which must have
// an entry for each user column of heap, and into syscols. It fails with NotFound if there is
// no such row.
func SelectByRowID(ctx context.Context, sess *session.Session, heap *catalog.TableDesc,
	rowID []byte, values []sql.Value, nulls []bool, syscols *docdata.SysColumns) error {

	sel, err := sess.NewSelect(heap.ID)
	if err != nil {
		return err
	}
	e, err := rowIDConstant(rowID)
	if err != nil {
		return err
	}
	err = sel.BindColumn(catalog.RowIDAttrNum, e)
	if err != nil {
		return err
	}
	err = sel.AppendSystemTargets(
		func() error {
			return appendUserTargets(sel, heap)
		})
	if err != nil {
		return err
	}

	err = sel.Exec(ctx)
	if err != nil {
		return err
	}
	ok, err := sel.Fetch(ctx, heap.NumAttrs(), values, nulls, syscols)
	if err != nil {
		return err
	}
	if !ok {
		return status.NotFoundf("access: table %s: row %x not found", heap, rowID)
	}
	return nil
}

// CreateIndex creates the index name on the columns attrs of heap.
func CreateIndex(ctx context.Context, sess *session.Session, name string,
	heap *catalog.TableDesc, attrs []int) (*Index, error) {

	if len(attrs) == 0 {
		return nil, status.InvalidArgumentf("access: index %s: no columns", name)
	}

	var cols []catalog.ColumnDesc
	for _, attrNum := range attrs {
		cd, err := heap.FindColumn(attrNum)
		if err != nil {
			return nil, err
		}
		if cd.IsSystem() {
			return nil, status.InvalidArgumentf("access: index %s: system column %s can not "+
				"be indexed", name, cd.Name)
		}
		cols = append(cols, catalog.ColumnDesc{Name: cd.Name, Type: cd.Type, Key: true})
	}
	cols = append(cols,
		catalog.ColumnDesc{Name: BaseRowIDColumnName, Type: sql.BinaryType, Key: true})

	index, err := sess.CreateTable(ctx, name, false, cols)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"index": name,
		"table": heap.Name,
	}).Info("access: index created")
	return &Index{
		sess:  sess,
		heap:  heap,
		index: index,
		attrs: append([]int(nil), attrs...),
	}, nil
}

// OpenIndex returns the index name on heap, matching its columns to the columns of heap by
// name.
func OpenIndex(sess *session.Session, name string, heap *catalog.TableDesc) (*Index, error) {
	index, err := sess.LookupTable(name)
	if err != nil {
		return nil, err
	}

	n := index.NumAttrs()
	last, err := index.FindColumn(n)
	if err != nil {
		return nil, err
	}
	if last.Name != BaseRowIDColumnName {
		return nil, status.InvalidArgumentf("access: table %s is not an index", index)
	}

	var attrs []int
	for attrNum := 1; attrNum < n; attrNum += 1 {
		cd, err := index.FindColumn(attrNum)
		if err != nil {
			return nil, err
		}
		hcd, ok := heap.ColumnByName(cd.Name)
		if !ok || hcd.IsSystem() {
			return nil, status.InvalidArgumentf("access: index %s: column %s not in table %s",
				name, cd.Name, heap)
		}
		attrs = append(attrs, hcd.AttrNum)
	}

	return &Index{
		sess:  sess,
		heap:  heap,
		index: index,
		attrs: attrs,
	}, nil
}

func (idx *Index) Name() string {
	return idx.index.Name
}

func (idx *Index) Heap() *catalog.TableDesc {
	return idx.heap
}

func (idx *Index) String() string {
	return fmt.Sprintf("%s on %s", idx.index.Name, idx.heap.Name)
}

type binder interface {
	BindColumn(attrNum int, e *expr.Expr) error
}

// bindKey binds the indexed values, taken from the heap tuple values, and rowID to stmt. It
// returns false if any indexed value is NULL.
func (idx *Index) bindKey(stmt binder, values []sql.Value, rowID []byte) (bool, error) {
	for kdx, attrNum := range idx.attrs {
		if attrNum > len(values) {
			return false, status.InvalidArgumentf("access: index %s: %d values for attribute %d",
				idx, len(values), attrNum)
		}
		v := values[attrNum-1]
		if v == nil {
			return false, nil
		}
		cd, err := idx.index.FindColumn(kdx + 1)
		if err != nil {
			return false, err
		}
		e, err := expr.NewConstant(cd.Type, v)
		if err != nil {
			return false, err
		}
		err = stmt.BindColumn(kdx+1, e)
		if err != nil {
			return false, err
		}
	}

	e, err := rowIDConstant(rowID)
	if err != nil {
		return false, err
	}
	return true, stmt.BindColumn(len(idx.attrs)+1, e)
}

func (idx *Index) insert(ctx context.Context, values []sql.Value, rowID []byte) (bool, error) {
	ins, err := idx.sess.NewInsert(idx.index.ID)
	if err != nil {
		return false, err
	}
	ok, err := idx.bindKey(ins, values, rowID)
	if err != nil || !ok {
		return false, err
	}
	_, err = ins.Exec(ctx)
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertIndex adds the heap row with values, indexed by attribute number less one, and
// identified by rowID to the index.
func (idx *Index) InsertIndex(ctx context.Context, values []sql.Value, rowID []byte) error {
	_, err := idx.insert(ctx, values, rowID)
	return err
}

// DeleteIndex removes the heap row with values and rowID from the index.
func (idx *Index) DeleteIndex(ctx context.Context, values []sql.Value, rowID []byte) error {
	del, err := idx.sess.NewDelete(idx.index.ID)
	if err != nil {
		return err
	}
	ok, err := idx.bindKey(del, values, rowID)
	if err != nil || !ok {
		return err
	}
	_, err = del.Exec(ctx)
	return err
}

// Build scans the heap and adds every row to the index.
func (idx *Index) Build(ctx context.Context) (BuildResult, error) {
	var br BuildResult

	sel, err := idx.sess.NewSelect(idx.heap.ID)
	if err != nil {
		return br, err
	}
	err = sel.AppendSystemTargets(
		func() error {
			return appendUserTargets(sel, idx.heap)
		})
	if err != nil {
		return br, err
	}
	err = sel.Exec(ctx)
	if err != nil {
		return br, err
	}

	natts := idx.heap.NumAttrs()
	values := make([]sql.Value, natts)
	nulls := make([]bool, natts)
	for {
		var syscols docdata.SysColumns
		ok, err := sel.Fetch(ctx, natts, values, nulls, &syscols)
		if err != nil {
			return br, err
		}
		if !ok {
			break
		}
		br.HeapTuples += 1

		ok, err = idx.insert(ctx, values, syscols.RowID)
		if err != nil {
			return br, err
		}
		if ok {
			br.IndexTuples += 1
		}
	}

	log.WithFields(log.Fields{
		"index":        idx.index.Name,
		"heap_tuples":  br.HeapTuples,
		"index_tuples": br.IndexTuples,
	}).Info("access: index built")
	return br, nil
}

func (idx *Index) BuildEmpty() {
	log.WithField("index", idx.index.Name).Warn("access: build empty not supported")
}

func (idx *Index) BulkDelete() {
	log.WithField("index", idx.index.Name).Warn("access: bulk delete not supported")
}

func (idx *Index) VacuumCleanup() {
	log.WithField("index", idx.index.Name).Warn("access: vacuum cleanup not supported")
}

// Scan is an equality scan of an index that returns heap rows.
type Scan struct {
	idx *Index
	sel *dml.Select
}

// BeginScan starts a scan for the heap rows whose leading indexed columns equal keys.
func (idx *Index) BeginScan(ctx context.Context, keys []sql.Value) (*Scan, error) {
	if len(keys) > len(idx.attrs) {
		return nil, status.InvalidArgumentf("access: index %s: %d keys for %d columns", idx,
			len(keys), len(idx.attrs))
	}

	sel, err := idx.sess.NewSelect(idx.index.ID)
	if err != nil {
		return nil, err
	}
	err = sel.AppendTarget(expr.NewColumnRef(len(idx.attrs)+1, sql.BinaryType))
	if err != nil {
		return nil, err
	}
	for kdx, key := range keys {
		cd, err := idx.index.FindColumn(kdx + 1)
		if err != nil {
			return nil, err
		}
		e, err := expr.NewConstant(cd.Type, key)
		if err != nil {
			return nil, err
		}
		err = sel.BindColumn(kdx+1, e)
		if err != nil {
			return nil, err
		}
	}

	err = sel.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &Scan{
		idx: idx,
		sel: sel,
	}, nil
}

// GetTuple reads the next heap row of the scan into values, nulls, and syscols. It returns
// false when the scan is complete.
func (scan *Scan) GetTuple(ctx context.Context, values []sql.Value, nulls []bool,
	syscols *docdata.SysColumns) (bool, error) {

	if scan.sel == nil {
		return false, status.IllegalStatef("access: index %s: scan ended", scan.idx)
	}

	natts := len(scan.idx.attrs) + 1
	ivals := make([]sql.Value, natts)
	inulls := make([]bool, natts)
	ok, err := scan.sel.Fetch(ctx, natts, ivals, inulls, nil)
	if err != nil || !ok {
		return false, err
	}

	rowID, ok := ivals[natts-1].(sql.BytesValue)
	if !ok {
		return false, status.Corruptionf("access: index %s: missing row identifier", scan.idx)
	}
	err = SelectByRowID(ctx, scan.idx.sess, scan.idx.heap, rowID, values, nulls, syscols)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (scan *Scan) EndScan() {
	scan.sel = nil
}
