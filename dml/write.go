package dml

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

func newColumnRef(attrNum int) *expr.Expr {
	return expr.NewColumnRef(attrNum, sql.UnknownType)
}

type writeStmt struct {
	Statement
	stmtType docapi.StmtType
}

func (ws *writeStmt) exec(ctx context.Context) (int64, error) {
	if ws.state == Unprepared {
		return 0, status.IllegalStatef("dml: %s: statement not prepared", ws.stmtType)
	}

	err := ws.UpdateBindPBs()
	if err != nil {
		return 0, err
	}
	err = ws.UpdateAssignPBs()
	if err != nil {
		return 0, err
	}
	ws.SetColumnRefIds()

	keys, others := ws.boundValues()
	req := &docapi.WriteRequest{
		StmtType:     ws.stmtType,
		TableID:      ws.tbl.ID(),
		RowID:        ws.rowID,
		ColumnValues: append(keys, others...),
		NewValues:    ws.assignedValues(),
		ColumnRefs:   append([]int32(nil), ws.columnRefs...),
	}

	switch ws.stmtType {
	case docapi.StmtInsert:
		if len(req.ColumnValues) == 0 {
			return 0, status.InvalidArgumentf("dml: insert into %s: no values",
				ws.tbl.Desc())
		}
	case docapi.StmtUpdate:
		if len(req.NewValues) == 0 {
			return 0, status.InvalidArgumentf("dml: update %s: no columns assigned",
				ws.tbl.Desc())
		}
		fallthrough
	case docapi.StmtDelete:
		nkeys := len(ws.tbl.Desc().KeyColumns())
		if req.RowID == nil && (nkeys == 0 || len(keys) != nkeys) {
			return 0, status.InvalidArgumentf("dml: %s %s: row identifier or every key "+
				"column must be bound", ws.stmtType, ws.tbl.Desc())
		}
	}

	log.WithField("request", req).Debug("dml: write")
	resp, err := ws.sess.ApplyWrite(ctx, req)
	if err != nil {
		return 0, err
	}
	ws.op = nil
	ws.state = Executed
	return resp.RowsAffected, nil
}

// Insert binds a value to each column of the new row.
type Insert struct {
	writeStmt
}

func NewInsert(sess Session, td *catalog.TableDesc) *Insert {
	ins := Insert{writeStmt: writeStmt{stmtType: docapi.StmtInsert}}
	ins.init(sess, td)
	return &ins
}

// Exec inserts the row and returns the number of rows inserted.
func (ins *Insert) Exec(ctx context.Context) (int64, error) {
	return ins.exec(ctx)
}

// Update binds the row identifier or key columns of the row to change, and assigns the new
// values.
type Update struct {
	writeStmt
}

func NewUpdate(sess Session, td *catalog.TableDesc) *Update {
	upd := Update{writeStmt: writeStmt{stmtType: docapi.StmtUpdate}}
	upd.init(sess, td)
	return &upd
}

func (upd *Update) Exec(ctx context.Context) (int64, error) {
	return upd.exec(ctx)
}

// Delete binds the row identifier or key columns of the row to delete.
type Delete struct {
	writeStmt
}

func NewDelete(sess Session, td *catalog.TableDesc) *Delete {
	del := Delete{writeStmt: writeStmt{stmtType: docapi.StmtDelete}}
	del.init(sess, td)
	return &del
}

func (del *Delete) Exec(ctx context.Context) (int64, error) {
	return del.exec(ctx)
}
