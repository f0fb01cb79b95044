// Package repl runs a small command language against a session, for manual and scripted
// testing:
//
//	create <table> [oids] (<column> <type> [key], ...)
//	drop <table>
//	tables
//	insert <table> <column>=<value> ...
//	select <table> [<column>=<value> ...]
//	update <table> <column>=<value> ... set <column>=<value> ...
//	delete <table> <column>=<value> ...
//	index <index> on <table> (<column>, ...)
//	lookup <index> on <table> <value> ...
//	begin | commit | abort
//	config
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/leftmike/pggate/access"
	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docdata"
	"github.com/leftmike/pggate/expr"
	"github.com/leftmike/pggate/session"
	"github.com/leftmike/pggate/sql"
)

type token struct {
	r   rune
	s   string    // Word and String
	val sql.Value // String, Integer, Double
	pos Position
}

func (tok token) String() string {
	switch tok.r {
	case EOF:
		return "end of input"
	case Word:
		return tok.s
	case String, Integer, Double:
		return sql.Format(tok.val)
	}
	return string(tok.r)
}

type command struct {
	toks []token
	next int
}

func (cmd *command) done() bool {
	return cmd.next >= len(cmd.toks)
}

func (cmd *command) peek() token {
	if cmd.done() {
		return token{r: EOF}
	}
	return cmd.toks[cmd.next]
}

func (cmd *command) scan() token {
	tok := cmd.peek()
	if !cmd.done() {
		cmd.next += 1
	}
	return tok
}

func (cmd *command) expect(r rune) error {
	tok := cmd.scan()
	if tok.r != r {
		return fmt.Errorf("repl: expected %c; got %s", r, tok)
	}
	return nil
}

func (cmd *command) word() (string, error) {
	tok := cmd.scan()
	if tok.r != Word {
		return "", fmt.Errorf("repl: expected a name; got %s", tok)
	}
	return tok.s, nil
}

func (cmd *command) optionalWord(w string) bool {
	tok := cmd.peek()
	if tok.r == Word && strings.EqualFold(tok.s, w) {
		cmd.next += 1
		return true
	}
	return false
}

func (cmd *command) value() (sql.Value, error) {
	tok := cmd.scan()
	switch tok.r {
	case String, Integer, Double:
		return tok.val, nil
	case Word:
		switch strings.ToLower(tok.s) {
		case "null":
			return nil, nil
		case "true":
			return sql.BoolValue(true), nil
		case "false":
			return sql.BoolValue(false), nil
		}
	}
	return nil, fmt.Errorf("repl: expected a value; got %s", tok)
}

func (cmd *command) end() error {
	if !cmd.done() {
		return fmt.Errorf("repl: unexpected %s", cmd.peek())
	}
	return nil
}

type columnValue struct {
	cd  *catalog.ColumnDesc
	val sql.Value
}

// columnValues parses <column>=<value> pairs until the end of the command or the word stop.
func (cmd *command) columnValues(td *catalog.TableDesc, stop string) ([]columnValue, error) {
	var cvs []columnValue
	for !cmd.done() {
		if stop != "" && cmd.optionalWord(stop) {
			cmd.next -= 1
			break
		}
		nam, err := cmd.word()
		if err != nil {
			return nil, err
		}
		cd, ok := td.ColumnByName(nam)
		if !ok || cd.IsSystem() {
			return nil, fmt.Errorf("repl: table %s: column %s not found", td.Name, nam)
		}
		err = cmd.expect('=')
		if err != nil {
			return nil, err
		}
		val, err := cmd.value()
		if err != nil {
			return nil, err
		}
		cvs = append(cvs, columnValue{cd: cd, val: val})
	}
	return cvs, nil
}

type binder interface {
	BindColumn(attrNum int, e *expr.Expr) error
}

func bindValues(stmt binder, cvs []columnValue) error {
	for _, cv := range cvs {
		e, err := expr.NewConstant(cv.cd.Type, cv.val)
		if err != nil {
			return err
		}
		err = stmt.BindColumn(cv.cd.AttrNum, e)
		if err != nil {
			return err
		}
	}
	return nil
}

type Repl struct {
	sess *session.Session
	w    io.Writer
	cmds map[string]func(ctx context.Context, cmd *command) error
}

func New(sess *session.Session, w io.Writer) *Repl {
	r := &Repl{
		sess: sess,
		w:    w,
	}
	r.cmds = map[string]func(ctx context.Context, cmd *command) error{
		"abort":  r.abort,
		"begin":  r.begin,
		"commit": r.commit,
		"config": r.config,
		"create": r.create,
		"delete": r.delete,
		"drop":   r.drop,
		"index":  r.index,
		"insert": r.insert,
		"lookup": r.lookup,
		"select": r.selectRows,
		"tables": r.tables,
		"update": r.update,
	}
	return r
}

func (r *Repl) readCommand(s *Scanner) (*command, error) {
	var cmd command
	for {
		tok := token{r: s.Scan(), pos: s.Position}
		switch tok.r {
		case EOF:
			if len(cmd.toks) == 0 {
				return nil, io.EOF
			}
			return &cmd, nil
		case ';':
			if len(cmd.toks) > 0 {
				return &cmd, nil
			}
			continue
		case Error:
			err := fmt.Errorf("repl: %s: %s", tok.pos, s.Error)
			for {
				tr := s.Scan()
				if tr == ';' || tr == EOF || tr == Error {
					break
				}
			}
			return nil, err
		case Word:
			tok.s = s.Word
		case String:
			tok.s = s.String
			tok.val = sql.StringValue(s.String)
		case Integer:
			tok.val = sql.Int64Value(s.Integer)
		case Double:
			tok.val = sql.Float64Value(s.Double)
		}
		cmd.toks = append(cmd.toks, tok)
	}
}

// Run executes each command read from rr, printing results and errors to the writer. It
// returns the number of commands that failed.
func (r *Repl) Run(ctx context.Context, rr io.RuneReader, fn string) int {
	var s Scanner
	s.Init(rr, fn)

	var failed int
	for {
		cmd, err := r.readCommand(&s)
		if err == io.EOF {
			return failed
		}
		if err == nil {
			err = r.execute(ctx, cmd)
		}
		if err != nil {
			failed += 1
			fmt.Fprintln(r.w, err)
		}
	}
}

func (r *Repl) execute(ctx context.Context, cmd *command) error {
	tok := cmd.scan()
	if tok.r != Word {
		return fmt.Errorf("repl: %s: expected a command; got %s", tok.pos, tok)
	}
	fn, ok := r.cmds[strings.ToLower(tok.s)]
	if !ok {
		return fmt.Errorf("repl: %s: unknown command: %s", tok.pos, tok.s)
	}

	log.WithField("command", tok.s).Debug("repl: execute")
	err := fn(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s: %s", tok.pos, err)
	}
	return nil
}

func (r *Repl) lookupTable(cmd *command) (*catalog.TableDesc, error) {
	nam, err := cmd.word()
	if err != nil {
		return nil, err
	}
	return r.sess.LookupTable(nam)
}

func (r *Repl) begin(ctx context.Context, cmd *command) error {
	err := cmd.end()
	if err != nil {
		return err
	}
	return r.sess.Begin()
}

func (r *Repl) commit(ctx context.Context, cmd *command) error {
	err := cmd.end()
	if err != nil {
		return err
	}
	return r.sess.Commit()
}

func (r *Repl) abort(ctx context.Context, cmd *command) error {
	err := cmd.end()
	if err != nil {
		return err
	}
	return r.sess.Abort()
}

func (r *Repl) config(ctx context.Context, cmd *command) error {
	err := cmd.end()
	if err != nil {
		return err
	}

	tw := r.newTable("name", "value")
	r.sess.Config().List(
		func(nam, val string) {
			tw.Append([]string{nam, val})
		})
	r.render(tw)
	return nil
}

func (r *Repl) create(ctx context.Context, cmd *command) error {
	nam, err := cmd.word()
	if err != nil {
		return err
	}
	hasOIDs := cmd.optionalWord("oids")

	err = cmd.expect('(')
	if err != nil {
		return err
	}
	var cols []catalog.ColumnDesc
	for {
		cnam, err := cmd.word()
		if err != nil {
			return err
		}
		tnam, err := cmd.word()
		if err != nil {
			return err
		}
		typ, err := sql.ParseInternalType(tnam)
		if err != nil {
			return err
		}
		cols = append(cols,
			catalog.ColumnDesc{
				Name: cnam,
				Type: typ,
				Key:  cmd.optionalWord("key"),
			})

		tok := cmd.scan()
		if tok.r == ')' {
			break
		} else if tok.r != ',' {
			return fmt.Errorf("repl: expected , or ); got %s", tok)
		}
	}
	err = cmd.end()
	if err != nil {
		return err
	}

	_, err = r.sess.CreateTable(ctx, nam, hasOIDs, cols)
	return err
}

func (r *Repl) drop(ctx context.Context, cmd *command) error {
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	err = cmd.end()
	if err != nil {
		return err
	}
	return r.sess.DropTable(ctx, td.ID)
}

func (r *Repl) tables(ctx context.Context, cmd *command) error {
	err := cmd.end()
	if err != nil {
		return err
	}

	tw := r.newTable("table", "id", "columns")
	for _, td := range r.sess.Tables() {
		var cols []string
		for _, cd := range td.Columns {
			if cd.Virtual {
				continue
			}
			s := fmt.Sprintf("%s %s", cd.Name, strings.ToLower(cd.Type.String()))
			if cd.Key {
				s += " key"
			}
			cols = append(cols, s)
		}
		tw.Append([]string{td.Name, fmt.Sprint(td.ID), strings.Join(cols, ", ")})
	}
	r.render(tw)
	return nil
}

func (r *Repl) insert(ctx context.Context, cmd *command) error {
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	cvs, err := cmd.columnValues(td, "")
	if err != nil {
		return err
	}

	ins, err := r.sess.NewInsert(td.ID)
	if err != nil {
		return err
	}
	err = bindValues(ins, cvs)
	if err != nil {
		return err
	}
	n, err := ins.Exec(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.w, "%d rows inserted\n", n)
	return nil
}

func (r *Repl) update(ctx context.Context, cmd *command) error {
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	cvs, err := cmd.columnValues(td, "set")
	if err != nil {
		return err
	}
	if !cmd.optionalWord("set") {
		return fmt.Errorf("repl: update %s: expected set", td.Name)
	}
	sets, err := cmd.columnValues(td, "")
	if err != nil {
		return err
	}

	upd, err := r.sess.NewUpdate(td.ID)
	if err != nil {
		return err
	}
	err = bindValues(upd, cvs)
	if err != nil {
		return err
	}
	for _, cv := range sets {
		e, err := expr.NewConstant(cv.cd.Type, cv.val)
		if err != nil {
			return err
		}
		err = upd.AssignColumn(cv.cd.AttrNum, e)
		if err != nil {
			return err
		}
	}
	n, err := upd.Exec(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.w, "%d rows updated\n", n)
	return nil
}

func (r *Repl) delete(ctx context.Context, cmd *command) error {
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	cvs, err := cmd.columnValues(td, "")
	if err != nil {
		return err
	}

	del, err := r.sess.NewDelete(td.ID)
	if err != nil {
		return err
	}
	err = bindValues(del, cvs)
	if err != nil {
		return err
	}
	n, err := del.Exec(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.w, "%d rows deleted\n", n)
	return nil
}

func (r *Repl) selectRows(ctx context.Context, cmd *command) error {
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	cvs, err := cmd.columnValues(td, "")
	if err != nil {
		return err
	}

	sel, err := r.sess.NewSelect(td.ID)
	if err != nil {
		return err
	}
	err = sel.AppendSystemTargets(
		func() error {
			for attrNum := 1; attrNum <= td.NumAttrs(); attrNum += 1 {
				err := sel.AppendTarget(expr.NewColumnRef(attrNum, sql.UnknownType))
				if err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	err = bindValues(sel, cvs)
	if err != nil {
		return err
	}
	err = sel.Exec(ctx)
	if err != nil {
		return err
	}

	return r.printRows(td,
		func(values []sql.Value, nulls []bool, syscols *docdata.SysColumns) (bool, error) {
			return sel.Fetch(ctx, len(values), values, nulls, syscols)
		})
}

func (r *Repl) index(ctx context.Context, cmd *command) error {
	nam, err := cmd.word()
	if err != nil {
		return err
	}
	if !cmd.optionalWord("on") {
		return fmt.Errorf("repl: index %s: expected on", nam)
	}
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}

	err = cmd.expect('(')
	if err != nil {
		return err
	}
	var attrs []int
	for {
		cnam, err := cmd.word()
		if err != nil {
			return err
		}
		cd, ok := td.ColumnByName(cnam)
		if !ok {
			return fmt.Errorf("repl: table %s: column %s not found", td.Name, cnam)
		}
		attrs = append(attrs, cd.AttrNum)

		tok := cmd.scan()
		if tok.r == ')' {
			break
		} else if tok.r != ',' {
			return fmt.Errorf("repl: expected , or ); got %s", tok)
		}
	}
	err = cmd.end()
	if err != nil {
		return err
	}

	idx, err := access.CreateIndex(ctx, r.sess, nam, td, attrs)
	if err != nil {
		return err
	}
	br, err := idx.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.w, "%d heap tuples, %d index tuples\n", br.HeapTuples, br.IndexTuples)
	return nil
}

func (r *Repl) lookup(ctx context.Context, cmd *command) error {
	nam, err := cmd.word()
	if err != nil {
		return err
	}
	if !cmd.optionalWord("on") {
		return fmt.Errorf("repl: lookup %s: expected on", nam)
	}
	td, err := r.lookupTable(cmd)
	if err != nil {
		return err
	}
	var keys []sql.Value
	for !cmd.done() {
		val, err := cmd.value()
		if err != nil {
			return err
		}
		keys = append(keys, val)
	}

	idx, err := access.OpenIndex(r.sess, nam, td)
	if err != nil {
		return err
	}
	scan, err := idx.BeginScan(ctx, keys)
	if err != nil {
		return err
	}
	defer scan.EndScan()

	return r.printRows(td,
		func(values []sql.Value, nulls []bool, syscols *docdata.SysColumns) (bool, error) {
			return scan.GetTuple(ctx, values, nulls, syscols)
		})
}

func (r *Repl) newTable(header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(r.w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(header)
	return tw
}

func (r *Repl) render(tw *tablewriter.Table) {
	tw.Render()
	fmt.Fprintf(r.w, "(%d rows)\n", tw.NumLines())
}

func (r *Repl) printRows(td *catalog.TableDesc,
	next func(values []sql.Value, nulls []bool, syscols *docdata.SysColumns) (bool, error)) error {

	natts := td.NumAttrs()
	header := make([]string, natts)
	for attrNum := 1; attrNum <= natts; attrNum += 1 {
		cd, err := td.FindColumn(attrNum)
		if err != nil {
			return err
		}
		header[attrNum-1] = cd.Name
	}
	if td.HasOIDs {
		header = append([]string{catalog.ObjectIDColumnName}, header...)
	}
	tw := r.newTable(header...)

	values := make([]sql.Value, natts)
	nulls := make([]bool, natts)
	for {
		var syscols docdata.SysColumns
		ok, err := next(values, nulls, &syscols)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		var row []string
		if td.HasOIDs {
			row = append(row, fmt.Sprint(syscols.OID))
		}
		for vdx, v := range values {
			if s, ok := v.(sql.StringValue); ok && !nulls[vdx] {
				row = append(row, string(s))
			} else {
				row = append(row, sql.Format(v))
			}
		}
		tw.Append(row)
	}
	r.render(tw)
	return nil
}
