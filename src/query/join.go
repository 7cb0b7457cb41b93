package query

import (
	"fmt"

	"stratadb/src/engine"
	"stratadb/src/helpers"
	"stratadb/src/schema"
)

// joinSet is the accumulated result of a join pipeline: namespaced rows
// plus the full field list, which null-filling needs even when the row set
// is empty.
type joinSet struct {
	rows   []*schema.Record
	fields []string
}

// runJoins executes the chained pairwise joins of a SELECT left to right,
// then applies the WHERE expression to the namespaced result.
func (e *Executor) runJoins(stmt *SelectStatement) ([]*schema.Record, error) {
	left, err := e.namespaceTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	for _, join := range stmt.Joins {
		left, err = e.joinStep(left, join)
		if err != nil {
			return nil, err
		}
	}
	return filterRows(left.rows, stmt.Where), nil
}

// namespaceTable loads a table's records with every field renamed to
// table.column, using the table name as written in the statement.
func (e *Executor) namespaceTable(tableName string) (joinSet, error) {
	table, err := e.db.GetTable(tableName)
	if err != nil {
		return joinSet{}, err
	}
	set := joinSet{}
	for _, col := range table.Columns() {
		set.fields = append(set.fields, tableName+"."+col.Name())
	}
	for _, rec := range table.Records() {
		set.rows = append(set.rows, namespaceRecord(rec, tableName))
	}
	return set, nil
}

func namespaceRecord(rec *schema.Record, tableName string) *schema.Record {
	out := schema.NewRecord(rec.ID())
	for _, f := range rec.Fields() {
		v, _ := rec.Get(f)
		out.Set(tableName+"."+f, v)
	}
	return out
}

// joinStep joins the accumulated set against one right-side table.
func (e *Executor) joinStep(left joinSet, join JoinClause) (joinSet, error) {
	rightTable, err := e.db.GetTable(join.Table)
	if err != nil {
		return joinSet{}, err
	}
	right, err := e.namespaceTable(join.Table)
	if err != nil {
		return joinSet{}, err
	}

	// The ON predicate can name its sides in either order; align them so
	// leftKey addresses the accumulated rows.
	leftKey, rightKey := join.Left.String(), join.Right.String()
	if !containsField(left.fields, leftKey) {
		leftKey, rightKey = rightKey, leftKey
	}
	if !containsField(left.fields, leftKey) {
		return joinSet{}, fmt.Errorf("join condition column '%s' not found: %w", join.Left, engine.ErrNotFound)
	}
	if !containsField(right.fields, rightKey) {
		return joinSet{}, fmt.Errorf("join condition column '%s' not found in table '%s': %w",
			rightKey, join.Table, engine.ErrNotFound)
	}

	out := joinSet{fields: append(append([]string{}, left.fields...), right.fields...)}

	if join.Type == RightJoin {
		// A right join is driven by a full scan of the right table.
		for _, rrow := range right.rows {
			rval, _ := rrow.Get(rightKey)
			matched := false
			if !rval.IsNull() {
				for _, lrow := range left.rows {
					lval, _ := lrow.Get(leftKey)
					if lval.Equal(rval) {
						out.rows = append(out.rows, mergeRows(lrow, rrow))
						matched = true
					}
				}
			}
			if !matched {
				out.rows = append(out.rows, nullFilledMerge(left.fields, nil, rrow))
			}
		}
		return out, nil
	}

	// Inner and left joins can probe an index on the right join column.
	idx := rightTable.IndexForColumn(trimTablePrefix(rightKey, join.Table))
	if idx != nil && !idx.Created() {
		idx = nil
	}

	for _, lrow := range left.rows {
		lval, _ := lrow.Get(leftKey)
		var matches []*schema.Record
		if !lval.IsNull() {
			if idx != nil {
				raw, err := idx.Search(lval)
				if err == nil {
					for _, rec := range raw {
						matches = append(matches, namespaceRecord(rec, join.Table))
					}
				} else {
					matches = scanMatches(right.rows, rightKey, lval)
				}
			} else {
				matches = scanMatches(right.rows, rightKey, lval)
			}
		}
		for _, rrow := range matches {
			out.rows = append(out.rows, mergeRows(lrow, rrow))
		}
		if join.Type == LeftJoin && len(matches) == 0 {
			out.rows = append(out.rows, nullFilledMerge(right.fields, lrow, nil))
		}
	}
	return out, nil
}

func scanMatches(rows []*schema.Record, key string, value schema.Value) []*schema.Record {
	var out []*schema.Record
	for _, row := range rows {
		v, _ := row.Get(key)
		if v.Equal(value) {
			out = append(out, row)
		}
	}
	return out
}

// mergeRows combines a left and right row into one joined row.
func mergeRows(lrow, rrow *schema.Record) *schema.Record {
	out := schema.NewRecord(helpers.GenerateUUID())
	for _, f := range lrow.Fields() {
		v, _ := lrow.Get(f)
		out.Set(f, v)
	}
	for _, f := range rrow.Fields() {
		v, _ := rrow.Get(f)
		out.Set(f, v)
	}
	return out
}

// nullFilledMerge emits an unmatched row: the present side's fields plus
// nulls for every field of the absent side. Exactly one of lrow/rrow is nil.
func nullFilledMerge(absentFields []string, lrow, rrow *schema.Record) *schema.Record {
	out := schema.NewRecord(helpers.GenerateUUID())
	if lrow != nil {
		for _, f := range lrow.Fields() {
			v, _ := lrow.Get(f)
			out.Set(f, v)
		}
		for _, f := range absentFields {
			out.Set(f, schema.Null())
		}
		return out
	}
	for _, f := range absentFields {
		out.Set(f, schema.Null())
	}
	for _, f := range rrow.Fields() {
		v, _ := rrow.Get(f)
		out.Set(f, v)
	}
	return out
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func trimTablePrefix(key, table string) string {
	prefix := table + "."
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
