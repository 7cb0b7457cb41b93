package query

import "stratadb/src/schema"

// Statement is one parsed SQL statement.
type Statement interface {
	stmt()
}

// JoinType selects the join variant.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
)

func (jt JoinType) String() string {
	switch jt {
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	default:
		return "INNER"
	}
}

// ColumnRef is a possibly table-qualified column name.
type ColumnRef struct {
	Table  string
	Column string
}

// String renders the reference the way joined rows key their fields.
func (c ColumnRef) String() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// JoinClause names a right-side table and an equality predicate.
type JoinClause struct {
	Type  JoinType
	Table string
	Left  ColumnRef
	Right ColumnRef
}

type SelectStatement struct {
	Star    bool
	Columns []string
	Table   string
	Joins   []JoinClause
	Where   Expr
}

type InsertStatement struct {
	Table   string
	Columns []string // empty means declaration order
	Values  []schema.Value
}

type UpdateStatement struct {
	Table string
	Set   map[string]schema.Value
	Where Expr
}

type DeleteStatement struct {
	Table string
	Where Expr
}

type CreateTableStatement struct {
	Table   string
	Columns []*schema.Column
}

type DropTableStatement struct {
	Table string
}

type CreateIndexStatement struct {
	Name   string
	Table  string
	Column string
	Unique bool
}

type DropIndexStatement struct {
	Name  string
	Table string
}

type ShowIndexesStatement struct {
	Table string // empty means all tables
}

func (*SelectStatement) stmt()      {}
func (*InsertStatement) stmt()      {}
func (*UpdateStatement) stmt()      {}
func (*DeleteStatement) stmt()      {}
func (*CreateTableStatement) stmt() {}
func (*DropTableStatement) stmt()   {}
func (*CreateIndexStatement) stmt() {}
func (*DropIndexStatement) stmt()   {}
func (*ShowIndexesStatement) stmt() {}

// Expr is a boolean WHERE expression evaluated against one record.
type Expr interface {
	Eval(rec *schema.Record) bool
}

// Comparison is a single `column operator literal` condition.
type Comparison struct {
	Column string
	Op     string // =, !=, >, <, >=, <=
	Value  schema.Value
}

// Eval compares the record's field against the literal. A missing field
// never matches. Null fields match only `= NULL` and `!= <non-null>`;
// ordering operators never match null.
func (c *Comparison) Eval(rec *schema.Record) bool {
	v, ok := rec.Get(c.Column)
	if !ok {
		return false
	}
	switch c.Op {
	case "=":
		return v.Equal(c.Value)
	case "!=":
		return !v.Equal(c.Value)
	}
	if v.IsNull() || c.Value.IsNull() {
		return false
	}
	cmp, err := v.Compare(c.Value)
	if err != nil {
		return false
	}
	switch c.Op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// Logical combines two expressions with AND or OR.
type Logical struct {
	Op    string // AND, OR
	Left  Expr
	Right Expr
}

func (l *Logical) Eval(rec *schema.Record) bool {
	if l.Op == "AND" {
		return l.Left.Eval(rec) && l.Right.Eval(rec)
	}
	return l.Left.Eval(rec) || l.Right.Eval(rec)
}
