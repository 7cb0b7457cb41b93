package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stratadb/src/schema"
)

// ErrParse marks statements that match no supported grammar rule.
var ErrParse = errors.New("parse error")

type parser struct {
	toks []token
	pos  int
}

// Parse turns one SQL statement into its AST. A trailing semicolon is
// tolerated.
func Parse(sql string) (Statement, error) {
	toks, err := tokenize(strings.TrimSpace(sql))
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.acceptSymbol(";")
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token '%s' after statement: %w", p.peek().text, ErrParse)
	}
	return stmt, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().isKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("expected %s, got '%s': %w", kw, p.peek().text, ErrParse)
	}
	return nil
}

func (p *parser) acceptSymbol(sym string) bool {
	t := p.peek()
	if t.kind == tokSymbol && t.text == sym {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectSymbol(sym string) error {
	if !p.acceptSymbol(sym) {
		return fmt.Errorf("expected '%s', got '%s': %w", sym, p.peek().text, ErrParse)
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", fmt.Errorf("expected identifier, got '%s': %w", t.text, ErrParse)
	}
	p.pos++
	return t.text, nil
}

func (p *parser) parseStatement() (Statement, error) {
	t := p.peek()
	switch {
	case t.isKeyword("SELECT"):
		return p.parseSelect()
	case t.isKeyword("INSERT"):
		return p.parseInsert()
	case t.isKeyword("UPDATE"):
		return p.parseUpdate()
	case t.isKeyword("DELETE"):
		return p.parseDelete()
	case t.isKeyword("CREATE"):
		return p.parseCreate()
	case t.isKeyword("DROP"):
		return p.parseDrop()
	case t.isKeyword("SHOW"):
		return p.parseShowIndexes()
	}
	return nil, fmt.Errorf("unsupported statement '%s': %w", t.text, ErrParse)
}

// parseColumnRef reads a column name, optionally qualified as table.column.
func (p *parser) parseColumnRef() (ColumnRef, error) {
	first, err := p.expectIdent()
	if err != nil {
		return ColumnRef{}, err
	}
	if p.acceptSymbol(".") {
		col, err := p.expectIdent()
		if err != nil {
			return ColumnRef{}, err
		}
		return ColumnRef{Table: first, Column: col}, nil
	}
	return ColumnRef{Column: first}, nil
}

// parseLiteral reads one literal value: quoted string, true/false, null,
// else number-or-string.
func (p *parser) parseLiteral() (schema.Value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return schema.NewText(t.text), nil
	case tokNumber:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return schema.NewText(t.text), nil
		}
		return schema.NewInt(n), nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "null":
			return schema.Null(), nil
		case "true":
			return schema.NewBool(true), nil
		case "false":
			return schema.NewBool(false), nil
		}
		return schema.NewText(t.text), nil
	}
	return schema.Value{}, fmt.Errorf("expected literal, got '%s': %w", t.text, ErrParse)
}

func (p *parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStatement{}

	if p.acceptSymbol("*") {
		stmt.Star = true
	} else {
		for {
			ref, err := p.parseColumnRef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, ref.String())
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	for {
		joinType := InnerJoin
		switch {
		case p.acceptKeyword("LEFT"):
			joinType = LeftJoin
		case p.acceptKeyword("RIGHT"):
			joinType = RightJoin
		case p.acceptKeyword("INNER"):
			joinType = InnerJoin
		default:
			if !p.peek().isKeyword("JOIN") {
				goto joinsDone
			}
		}
		if err := p.expectKeyword("JOIN"); err != nil {
			return nil, err
		}
		join := JoinClause{Type: joinType}
		if join.Table, err = p.expectIdent(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		if join.Left, err = p.parseColumnRef(); err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		if join.Right, err = p.parseColumnRef(); err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, join)
	}
joinsDone:

	if p.acceptKeyword("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// parseExpr parses a boolean expression: comparisons composed with AND/OR,
// AND binding tighter than OR.
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseCondition() (Expr, error) {
	if p.acceptSymbol("(") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	ref, err := p.parseColumnRef()
	if err != nil {
		return nil, err
	}
	op := p.peek()
	switch {
	case op.kind == tokSymbol && (op.text == "=" || op.text == "!=" || op.text == ">" ||
		op.text == "<" || op.text == ">=" || op.text == "<="):
		p.pos++
	default:
		return nil, fmt.Errorf("expected comparison operator, got '%s': %w", op.text, ErrParse)
	}
	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Comparison{Column: ref.String(), Op: op.text, Value: value}, nil
}

func (p *parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := &InsertStatement{Table: table}

	if p.acceptSymbol("(") {
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if !p.acceptSymbol(",") {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, v)
		if !p.acceptSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseUpdate() (Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	stmt := &UpdateStatement{Table: table, Set: make(map[string]schema.Value)}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Set[col] = v
		if !p.acceptSymbol(",") {
			break
		}
	}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStatement{Table: table}
	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseCreate() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	switch {
	case p.acceptKeyword("TABLE"):
		return p.parseCreateTable()
	case p.acceptKeyword("UNIQUE"):
		if err := p.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndex(true)
	case p.acceptKeyword("INDEX"):
		return p.parseCreateIndex(false)
	}
	return nil, fmt.Errorf("expected TABLE or INDEX after CREATE: %w", ErrParse)
}

func (p *parser) parseCreateTable() (Statement, error) {
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	stmt := &CreateTableStatement{Table: table}
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
		if !p.acceptSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseColumnDef reads `name TYPE [PRIMARY KEY] [UNIQUE]
// [FOREIGN KEY REFERENCES table(column)]`.
func (p *parser) parseColumnDef() (*schema.Column, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	dataType, err := schema.ParseDataType(strings.ToUpper(typeName))
	if err != nil {
		return nil, fmt.Errorf("column '%s': %v: %w", name, err, ErrParse)
	}

	var opts []schema.ColumnOption
	for {
		switch {
		case p.acceptKeyword("PRIMARY"):
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			opts = append(opts, schema.WithPrimaryKey())
		case p.acceptKeyword("UNIQUE"):
			opts = append(opts, schema.WithUnique())
		case p.acceptKeyword("FOREIGN"):
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return nil, err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			refColumn, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			opts = append(opts, schema.WithForeignKey(refTable, refColumn))
		default:
			return schema.NewColumn(name, dataType, opts...)
		}
	}
}

func (p *parser) parseCreateIndex(unique bool) (Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CreateIndexStatement{Name: name, Table: table, Column: column, Unique: unique}, nil
}

func (p *parser) parseDrop() (Statement, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	switch {
	case p.acceptKeyword("TABLE"):
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &DropTableStatement{Table: table}, nil
	case p.acceptKeyword("INDEX"):
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &DropIndexStatement{Name: name, Table: table}, nil
	}
	return nil, fmt.Errorf("expected TABLE or INDEX after DROP: %w", ErrParse)
}

func (p *parser) parseShowIndexes() (Statement, error) {
	if err := p.expectKeyword("SHOW"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INDEXES"); err != nil {
		return nil, err
	}
	stmt := &ShowIndexesStatement{}
	if p.acceptKeyword("ON") {
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.Table = table
	}
	return stmt, nil
}
