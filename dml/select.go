package dml

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/status"
)

type Select struct {
	Statement
}

func NewSelect(sess Session, td *catalog.TableDesc) *Select {
	var sel Select
	sel.init(sess, td)
	return &sel
}

// AppendSystemTargets appends the object id target when the table has one, followed by a
// target for each user column, and the row identifier target last.
func (sel *Select) AppendSystemTargets(appendUser func() error) error {
	td := sel.tbl.Desc()
	if td.HasOIDs {
		err := sel.AppendTarget(newColumnRef(catalog.ObjectIDAttrNum))
		if err != nil {
			return err
		}
	}
	if appendUser != nil {
		err := appendUser()
		if err != nil {
			return err
		}
	}
	return sel.AppendTarget(newColumnRef(catalog.RowIDAttrNum))
}

func (sel *Select) buildRequest() *docapi.ReadRequest {
	keys, conds := sel.boundValues()
	req := &docapi.ReadRequest{
		TableID:    sel.tbl.ID(),
		RowID:      sel.rowID,
		KeyValues:  keys,
		Conditions: conds,
		ColumnRefs: append([]int32(nil), sel.columnRefs...),
	}
	for _, slot := range sel.targetSlots {
		req.Targets = append(req.Targets, sel.Slot(slot))
	}
	return req
}

// Exec evaluates the bound values and starts reading. It may be called again, with different
// bound values, to read again.
func (sel *Select) Exec(ctx context.Context) error {
	if sel.state == Unprepared {
		return status.IllegalStatef("dml: select: statement not prepared")
	}
	if len(sel.targets) == 0 {
		return status.InvalidArgumentf("dml: select from %s: no targets", sel.tbl.Desc())
	}

	err := sel.UpdateBindPBs()
	if err != nil {
		return err
	}
	sel.SetColumnRefIds()

	req := sel.buildRequest()
	log.WithField("request", req).Debug("dml: select")
	return sel.execute(ctx, sel.sess.ReadOp(req))
}
