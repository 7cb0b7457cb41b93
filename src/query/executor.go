package query

import (
	"fmt"
	"sort"

	"stratadb/src/engine"
	"stratadb/src/hashindex"
	"stratadb/src/helpers"
	"stratadb/src/schema"

	"go.uber.org/zap"
)

// Result is what one executed statement produces: rows for SELECT and SHOW,
// a status message for mutations.
type Result struct {
	Success bool
	Message string
	Rows    []*schema.Record
}

// Executor translates one textual statement into database calls, choosing
// between an index access path and a full scan.
type Executor struct {
	db     *engine.Database
	logger *zap.SugaredLogger
}

// NewExecutor creates an executor bound to one database.
func NewExecutor(db *engine.Database, logger *zap.SugaredLogger) *Executor {
	return &Executor{db: db, logger: logger}
}

// Execute parses and runs one SQL statement.
func (e *Executor) Execute(sql string) (*Result, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	return e.ExecuteStatement(stmt)
}

// ExecuteStatement runs an already parsed statement.
func (e *Executor) ExecuteStatement(stmt Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *SelectStatement:
		rows, err := e.runSelect(s)
		if err != nil {
			return nil, err
		}
		return &Result{Success: true, Rows: rows}, nil
	case *InsertStatement:
		return e.runInsert(s)
	case *UpdateStatement:
		count, err := e.db.Update(s.Table, s.Set, matcher(s.Where))
		if err != nil {
			return nil, err
		}
		return &Result{Success: true, Message: fmt.Sprintf("%d row(s) updated in '%s'", count, s.Table)}, nil
	case *DeleteStatement:
		count, err := e.db.Delete(s.Table, matcher(s.Where))
		if err != nil {
			return nil, err
		}
		return &Result{Success: true, Message: fmt.Sprintf("%d row(s) deleted from '%s'", count, s.Table)}, nil
	case *CreateTableStatement:
		if _, err := e.db.CreateTable(s.Table, s.Columns); err != nil {
			return nil, err
		}
		return &Result{Success: true, Message: fmt.Sprintf("Table '%s' created", s.Table)}, nil
	case *DropTableStatement:
		if err := e.db.DropTable(s.Table); err != nil {
			return nil, err
		}
		return &Result{Success: true, Message: fmt.Sprintf("Table '%s' dropped", s.Table)}, nil
	case *CreateIndexStatement:
		if _, err := e.db.CreateIndex(s.Table, s.Column, s.Name, s.Unique); err != nil {
			return nil, fmt.Errorf("failed to create index '%s': %w", s.Name, err)
		}
		return &Result{Success: true, Message: fmt.Sprintf("Index '%s' created on %s(%s)", s.Name, s.Table, s.Column)}, nil
	case *DropIndexStatement:
		if err := e.db.DropIndex(s.Table, s.Name); err != nil {
			return nil, fmt.Errorf("failed to drop index '%s': %w", s.Name, err)
		}
		return &Result{Success: true, Message: fmt.Sprintf("Index '%s' dropped", s.Name)}, nil
	case *ShowIndexesStatement:
		rows, err := e.runShowIndexes(s)
		if err != nil {
			return nil, err
		}
		return &Result{Success: true, Rows: rows}, nil
	}
	return nil, fmt.Errorf("unsupported statement type: %w", ErrParse)
}

// matcher compiles a WHERE tree into a scan predicate. A nil expression
// matches every record.
func matcher(expr Expr) engine.Predicate {
	if expr == nil {
		return nil
	}
	return expr.Eval
}

func (e *Executor) runInsert(stmt *InsertStatement) (*Result, error) {
	table, err := e.db.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	columns := stmt.Columns
	if len(columns) == 0 {
		for _, col := range table.Columns() {
			columns = append(columns, col.Name())
		}
	}
	if len(columns) != len(stmt.Values) {
		return nil, fmt.Errorf("%d columns but %d values in INSERT into '%s': %w",
			len(columns), len(stmt.Values), stmt.Table, engine.ErrSchema)
	}

	rec := schema.NewRecord(helpers.GenerateUUID())
	for i, col := range columns {
		rec.Set(col, stmt.Values[i])
	}
	if err := e.db.Insert(stmt.Table, rec); err != nil {
		return nil, err
	}
	return &Result{Success: true, Message: fmt.Sprintf("1 row inserted into '%s'", stmt.Table)}, nil
}

func (e *Executor) runSelect(stmt *SelectStatement) ([]*schema.Record, error) {
	var rows []*schema.Record
	var err error
	if len(stmt.Joins) > 0 {
		rows, err = e.runJoins(stmt)
	} else {
		rows, err = e.scanTable(stmt.Table, stmt.Where)
	}
	if err != nil {
		return nil, err
	}
	if stmt.Star {
		return rows, nil
	}
	return project(rows, stmt.Columns), nil
}

// scanTable fetches the matching records of one table, going through an
// index when one covers a conjunct of the WHERE expression and falling back
// to a full scan otherwise.
func (e *Executor) scanTable(tableName string, where Expr) ([]*schema.Record, error) {
	if where != nil {
		if comp := indexableConjunct(where); comp != nil {
			if idx := e.db.GetIndexForColumn(tableName, comp.Column); idx != nil && idx.Created() {
				if rows, ok := e.indexLookup(idx, tableName, comp); ok {
					return filterRows(rows, where), nil
				}
			}
		}
	}
	return e.db.Query(tableName, matcher(where))
}

// indexableConjunct finds a comparison that is AND-ed at the top of the
// expression, so index candidates are a superset of the final result. OR
// branches disqualify the tree.
func indexableConjunct(expr Expr) *Comparison {
	switch ex := expr.(type) {
	case *Comparison:
		if ex.Op == "!=" || ex.Value.IsNull() {
			return nil
		}
		return ex
	case *Logical:
		if ex.Op != "AND" {
			return nil
		}
		if c := indexableConjunct(ex.Left); c != nil {
			return c
		}
		return indexableConjunct(ex.Right)
	}
	return nil
}

// indexLookup serves one comparison from the index. The boolean result
// reports whether the index could be used; any failure means the caller
// should fall back to a full scan.
func (e *Executor) indexLookup(idx *hashindex.Index, tableName string, comp *Comparison) ([]*schema.Record, bool) {
	table, err := e.db.GetTable(tableName)
	if err != nil {
		return nil, false
	}
	col, ok := table.Column(comp.Column)
	if !ok {
		return nil, false
	}
	value, err := schema.CoerceToType(comp.Value, col.Type())
	if err != nil {
		return nil, false
	}

	var rows []*schema.Record
	switch comp.Op {
	case "=":
		rows, err = idx.Search(value)
	case ">", ">=":
		// Range search is inclusive; the caller's post-filter drops the
		// boundary value for the strict operator.
		rows, err = idx.RangeSearch(&value, nil)
	case "<", "<=":
		rows, err = idx.RangeSearch(nil, &value)
	default:
		return nil, false
	}
	if err != nil {
		e.logger.Warnf("Index lookup on '%s' failed, falling back to full scan: %v", idx.Name(), err)
		return nil, false
	}
	return rows, true
}

// filterRows applies the full WHERE expression to index candidates.
func filterRows(rows []*schema.Record, where Expr) []*schema.Record {
	if where == nil {
		return rows
	}
	out := make([]*schema.Record, 0, len(rows))
	for _, row := range rows {
		if where.Eval(row) {
			out = append(out, row)
		}
	}
	return out
}

// project builds new row objects holding only the requested fields. A
// requested field absent from a row comes back null.
func project(rows []*schema.Record, columns []string) []*schema.Record {
	out := make([]*schema.Record, 0, len(rows))
	for _, row := range rows {
		projected := schema.NewRecord(row.ID())
		for _, col := range columns {
			if v, ok := row.Get(col); ok {
				projected.Set(col, v)
			} else {
				projected.Set(col, schema.Null())
			}
		}
		out = append(out, projected)
	}
	return out
}

func (e *Executor) runShowIndexes(stmt *ShowIndexesStatement) ([]*schema.Record, error) {
	indexes, err := e.db.ListIndexes(stmt.Table)
	if err != nil {
		return nil, err
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name() < indexes[j].Name() })

	rows := make([]*schema.Record, 0, len(indexes))
	for _, idx := range indexes {
		row := schema.NewRecord(idx.Name())
		row.Set("name", schema.NewText(idx.Name()))
		row.Set("table", schema.NewText(idx.Table()))
		row.Set("column", schema.NewText(idx.Column()))
		row.Set("unique", schema.NewBool(idx.IsUnique()))
		if stats, err := idx.Stats(); err == nil {
			row.Set("records", schema.NewInt(int64(stats.TotalRecords)))
			row.Set("keys", schema.NewInt(int64(stats.UniqueKeys)))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
