package docdb

import (
	"context"
	"io"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// Write applies an insert, update, or delete of a single row.
func (st *Store) Write(ctx context.Context, req *docapi.WriteRequest) (*docapi.WriteResponse,
	error) {

	err := ctxErr(ctx)
	if err != nil {
		return nil, err
	}
	td, err := st.Table(req.TableID)
	if err != nil {
		return nil, err
	}
	vals, err := columnFilters(td, req.ColumnValues)
	if err != nil {
		return nil, err
	}

	var resp *docapi.WriteResponse
	switch req.StmtType {
	case docapi.StmtInsert:
		resp, err = st.insert(ctx, td, vals)
	case docapi.StmtUpdate, docapi.StmtDelete:
		var rowID []byte
		var conds []filter
		rowID, conds, err = locateRow(td, req.RowID, vals)
		if err != nil {
			return nil, err
		}
		var newVals []filter
		if req.StmtType == docapi.StmtUpdate {
			newVals, err = columnFilters(td, req.NewValues)
			if err != nil {
				return nil, err
			}
			for _, nv := range newVals {
				if nv.cd.Key {
					return nil, status.InvalidArgumentf("docdb: table %s: key column %s can "+
						"not be updated", td, nv.cd.Name)
				}
			}
		}
		resp, err = st.change(ctx, td, req.StmtType, rowID, conds, newVals, req.ReadTime)
	default:
		return nil, status.InvalidArgumentf("docdb: table %s: unknown write %s", td,
			req.StmtType)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"table": td.Name,
		"write": req.StmtType,
		"rows":  resp.RowsAffected,
	}).Debug("docdb: write")
	return resp, nil
}

// locateRow returns the row identifier of the row to change, along with the bound values
// which are not part of the key; those must match for the row to change.
func locateRow(td *catalog.TableDesc, rowID []byte, vals []filter) ([]byte, []filter, error) {
	var keys, conds []filter
	for _, f := range vals {
		if f.cd.Key {
			keys = append(keys, f)
		} else {
			conds = append(conds, f)
		}
	}
	if rowID != nil {
		return rowID, conds, nil
	}

	rp := readPlan{td: td, keys: keys}
	rowID = rp.pointRowID()
	if rowID == nil {
		return nil, nil, status.InvalidArgumentf("docdb: table %s: row identifier or every "+
			"key column must be bound", td)
	}
	return rowID, conds, nil
}

func (st *Store) insert(ctx context.Context, td *catalog.TableDesc, vals []filter) (
	*docapi.WriteResponse, error) {

	row := storedRow{values: map[int32]sql.Value{}}
	for _, f := range vals {
		row.values[f.cd.ID] = f.val
	}

	var rowID []byte
	if keyCols := td.KeyColumns(); len(keyCols) > 0 {
		keyVals := make([]sql.Value, len(keyCols))
		for kdx, kc := range keyCols {
			keyVals[kdx] = row.values[kc.ID]
			if keyVals[kdx] == nil {
				return nil, status.InvalidArgumentf("docdb: table %s: key column %s must not "+
					"be NULL", td, kc.Name)
			}
		}
		rowID = EncodeRowID(keyVals)
	} else {
		rowID = encodeUUIDRowID(uuid.New())
	}

	upd, err := st.kv.Update()
	if err != nil {
		return nil, err
	}
	key := rowKey(td.ID, rowID)
	err = upd.Get(key,
		func(val []byte) error {
			return status.AlreadyPresentf("docdb: table %s: duplicate key %v", td, rowID)
		})
	if err != io.EOF {
		upd.Rollback()
		return nil, err
	}

	if td.HasOIDs && row.values[catalog.ObjectIDColumnID] == nil {
		oid, err := nextCounter(upd, nextOIDKey, FirstOID)
		if err != nil {
			upd.Rollback()
			return nil, err
		}
		row.values[catalog.ObjectIDColumnID] = sql.Int64Value(uint32(oid))
	}

	err = st.put(upd, td, key, row)
	if err != nil {
		upd.Rollback()
		return nil, err
	}
	err = st.commit(ctx, upd, false)
	if err != nil {
		return nil, err
	}
	return &docapi.WriteResponse{RowsAffected: 1, RowID: rowID}, nil
}

func (st *Store) put(upd Updater, td *catalog.TableDesc, key []byte, row storedRow) error {
	row.version = st.tick()
	buf, err := encodeRow(td, row)
	if err != nil {
		return err
	}
	err = upd.Set(key, buf)
	if err != nil {
		return err
	}
	return setUint64(upd, clockKey, row.version)
}

// change updates or deletes the row identified by rowID. If readTime is set and the row was
// written after it, the change fails with TryAgain.
func (st *Store) change(ctx context.Context, td *catalog.TableDesc, stmtType docapi.StmtType,
	rowID []byte, conds, newVals []filter, readTime uint64) (*docapi.WriteResponse, error) {

	upd, err := st.kv.Update()
	if err != nil {
		return nil, err
	}

	key := rowKey(td.ID, rowID)
	var row storedRow
	err = upd.Get(key,
		func(val []byte) error {
			var err error
			row, err = decodeRow(td, val, allColumns)
			return err
		})
	if err == io.EOF {
		upd.Rollback()
		return &docapi.WriteResponse{}, nil
	} else if err != nil {
		upd.Rollback()
		return nil, err
	}

	if readTime != 0 && row.version > readTime {
		upd.Rollback()
		return nil, status.TryAgainf("docdb: table %s: conflicting write to row %v", td, rowID)
	}
	if !matchFilters(row, conds) {
		upd.Rollback()
		return &docapi.WriteResponse{}, nil
	}

	if stmtType == docapi.StmtDelete {
		err = upd.Delete(key)
	} else {
		for _, nv := range newVals {
			row.values[nv.cd.ID] = nv.val
		}
		err = st.put(upd, td, key, row)
	}
	if err != nil {
		upd.Rollback()
		return nil, err
	}

	err = st.commit(ctx, upd, false)
	if err != nil {
		return nil, err
	}
	return &docapi.WriteResponse{RowsAffected: 1, RowID: rowID}, nil
}
