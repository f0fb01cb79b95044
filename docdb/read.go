package docdb

import (
	"bytes"
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// DefaultLimit is the number of rows examined for a page when a request does not set a
// limit.
const DefaultLimit = 1024

type filter struct {
	cd  *catalog.ColumnDesc
	val sql.Value
}

type readPlan struct {
	td       *catalog.TableDesc
	targets  []*catalog.ColumnDesc
	keys     []filter
	conds    []filter
	wanted   map[int32]struct{}
	readTime uint64
}

func columnFilters(td *catalog.TableDesc, cvs []docapi.ColumnValue) ([]filter, error) {
	var filters []filter
	for _, cv := range cvs {
		cd, ok := td.ColumnByID(cv.ColumnID)
		if !ok || cd.Virtual {
			return nil, status.InvalidArgumentf("docdb: table %s: column %d can not be bound",
				td, cv.ColumnID)
		}
		if !cv.Expr.IsValue {
			return nil, status.NotSupportedf("docdb: table %s: column %s: only values may be "+
				"bound", td, cd.Name)
		}
		val, err := sql.ConvertValue(cd.Type, cv.Expr.Value)
		if err != nil {
			return nil, status.InvalidArgumentf("docdb: table %s: column %s: %s", td, cd.Name,
				err)
		}
		filters = append(filters, filter{cd: cd, val: val})
	}
	return filters, nil
}

func makeReadPlan(td *catalog.TableDesc, req *docapi.ReadRequest) (*readPlan, error) {
	rp := &readPlan{
		td:       td,
		readTime: req.ReadTime,
	}
	for _, target := range req.Targets {
		if target.IsValue {
			return nil, status.NotSupportedf("docdb: table %s: value targets are not supported",
				td)
		}
		cd, ok := td.ColumnByID(target.ColumnID)
		if !ok {
			return nil, status.NotFoundf("docdb: table %s: column %d not found", td,
				target.ColumnID)
		}
		rp.targets = append(rp.targets, cd)
	}

	var err error
	rp.keys, err = columnFilters(td, req.KeyValues)
	if err != nil {
		return nil, err
	}
	rp.conds, err = columnFilters(td, req.Conditions)
	if err != nil {
		return nil, err
	}

	if len(req.ColumnRefs) > 0 {
		rp.wanted = map[int32]struct{}{}
		for _, id := range req.ColumnRefs {
			rp.wanted[id] = struct{}{}
		}
		for _, cd := range rp.targets {
			rp.wanted[cd.ID] = struct{}{}
		}
		for _, f := range append(rp.keys, rp.conds...) {
			rp.wanted[f.cd.ID] = struct{}{}
		}
	}
	return rp, nil
}

func (rp *readPlan) want(id int32) bool {
	if rp.wanted == nil {
		return true
	}
	_, ok := rp.wanted[id]
	return ok
}

// pointRowID returns the row identifier when every key column is bound.
func (rp *readPlan) pointRowID() []byte {
	keyCols := rp.td.KeyColumns()
	if len(keyCols) == 0 || len(rp.keys) != len(keyCols) {
		return nil
	}

	vals := make([]sql.Value, len(keyCols))
	for kdx, kc := range keyCols {
		var found bool
		for _, f := range rp.keys {
			if f.cd.ID == kc.ID {
				vals[kdx] = f.val
				found = true
			}
		}
		if !found || vals[kdx] == nil {
			return nil
		}
	}
	return EncodeRowID(vals)
}

func matchFilters(row storedRow, filters []filter) bool {
	for _, f := range filters {
		if !sql.Equal(row.values[f.cd.ID], f.val) {
			return false
		}
	}
	return true
}

// check returns true if the row should be returned. Only rows that match the filters can
// conflict with the read time.
func (rp *readPlan) check(row storedRow, filters []filter) (bool, error) {
	if !matchFilters(row, filters) {
		return false, nil
	}
	if rp.readTime != 0 && row.version > rp.readTime {
		return false, status.TryAgainf("docdb: table %s: row changed after read time %d", rp.td,
			rp.readTime)
	}
	return true, nil
}

func (rp *readPlan) emit(buf []byte, rowID []byte, row storedRow) ([]byte, error) {
	var err error
	for _, cd := range rp.targets {
		if cd.ID == catalog.RowIDColumnID {
			buf, err = docdata.WriteValue(buf, sql.BinaryType, sql.BytesValue(rowID))
		} else {
			buf, err = docdata.WriteValue(buf, cd.Type, row.values[cd.ID])
		}
		if err != nil {
			return nil, status.Corruptionf("docdb: table %s: column %s: %s", rp.td, cd.Name,
				err)
		}
	}
	return buf, nil
}

// Read returns one page of the rows matching req. The page is empty when the row addressed by
// a point read does not exist, or when none of the rows examined for the page match; the
// result is complete when the response has no paging state.
func (st *Store) Read(ctx context.Context, req *docapi.ReadRequest) (*docapi.ReadResponse,
	error) {

	err := ctxErr(ctx)
	if err != nil {
		return nil, err
	}
	td, err := st.Table(req.TableID)
	if err != nil {
		return nil, err
	}
	rp, err := makeReadPlan(td, req)
	if err != nil {
		return nil, err
	}

	if req.RowID != nil {
		return st.pointRead(rp, req.RowID, rp.conds)
	}
	if req.PointLookup {
		if rowID := rp.pointRowID(); rowID != nil {
			return st.pointRead(rp, rowID, rp.conds)
		}
	}
	return st.scan(ctx, rp, req)
}

func (st *Store) pointRead(rp *readPlan, rowID []byte, filters []filter) (*docapi.ReadResponse,
	error) {

	var resp docapi.ReadResponse
	err := st.kv.Get(rowKey(rp.td.ID, rowID),
		func(val []byte) error {
			row, err := decodeRow(rp.td, val, rp.want)
			if err != nil {
				return err
			}
			ok, err := rp.check(row, filters)
			if err != nil || !ok {
				return err
			}
			resp.Batch.Data, err = rp.emit(nil, rowID, row)
			if err != nil {
				return err
			}
			resp.Batch.RowCount = 1
			return nil
		})
	if err != nil && err != io.EOF {
		return nil, err
	}

	log.WithFields(log.Fields{
		"table": rp.td.Name,
		"rows":  resp.Batch.RowCount,
	}).Debug("docdb: point read")
	return &resp, nil
}

func (st *Store) scan(ctx context.Context, rp *readPlan, req *docapi.ReadRequest) (
	*docapi.ReadResponse, error) {

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filters := append(append([]filter(nil), rp.keys...), rp.conds...)

	prefix := tableRowPrefix(rp.td.ID)
	it, err := st.kv.Iterate(append(append([]byte(nil), prefix...), req.PagingState...))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var resp docapi.ReadResponse
	var examined int
	for {
		err = ctxErr(ctx)
		if err != nil {
			return nil, err
		}

		var done bool
		err = it.Item(
			func(key, val []byte) error {
				if !bytes.HasPrefix(key, prefix) {
					done = true
					return nil
				}
				rowID := key[len(prefix):]
				if examined == limit {
					resp.PagingState = append(make([]byte, 0, len(rowID)), rowID...)
					done = true
					return nil
				}
				examined += 1

				row, err := decodeRow(rp.td, val, rp.want)
				if err != nil {
					return err
				}
				ok, err := rp.check(row, filters)
				if err != nil || !ok {
					return err
				}
				resp.Batch.Data, err = rp.emit(resp.Batch.Data, rowID, row)
				if err != nil {
					return err
				}
				resp.Batch.RowCount += 1
				return nil
			})
		if err == io.EOF || done {
			break
		} else if err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"table":    rp.td.Name,
		"examined": examined,
		"rows":     resp.Batch.RowCount,
		"more":     resp.PagingState != nil,
	}).Debug("docdb: scan")
	return &resp, nil
}
