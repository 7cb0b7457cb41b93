package schema

import "fmt"

// DataType is the declared type of a column.
type DataType string

const (
	TypeInt     DataType = "INT"
	TypeVarchar DataType = "VARCHAR"
	TypeBoolean DataType = "BOOLEAN"
	TypeDate    DataType = "DATE"
)

// ParseDataType maps a type name from a CREATE TABLE statement to a DataType.
func ParseDataType(name string) (DataType, error) {
	switch DataType(name) {
	case TypeInt, TypeVarchar, TypeBoolean, TypeDate:
		return DataType(name), nil
	}
	return "", fmt.Errorf("unknown data type '%s'", name)
}

// ForeignKeyRef identifies the table and column a foreign key column points at.
type ForeignKeyRef struct {
	Table  string
	Column string
}

// Column describes one column of a table. Columns are immutable once built.
type Column struct {
	name       string
	dataType   DataType
	primaryKey bool
	unique     bool
	foreignKey bool
	ref        *ForeignKeyRef
}

// ColumnOption mutates a column under construction.
type ColumnOption func(*Column)

func WithPrimaryKey() ColumnOption {
	return func(c *Column) { c.primaryKey = true }
}

func WithUnique() ColumnOption {
	return func(c *Column) { c.unique = true }
}

func WithForeignKey(table, column string) ColumnOption {
	return func(c *Column) {
		c.foreignKey = true
		c.ref = &ForeignKeyRef{Table: table, Column: column}
	}
}

// NewColumn builds a column descriptor. The foreign key flag and the
// reference must agree with each other.
func NewColumn(name string, dataType DataType, opts ...ColumnOption) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("column name cannot be empty")
	}
	col := &Column{name: name, dataType: dataType}
	for _, opt := range opts {
		opt(col)
	}
	if col.foreignKey && col.ref == nil {
		return nil, fmt.Errorf("column '%s' is marked as a foreign key but has no reference", name)
	}
	if !col.foreignKey && col.ref != nil {
		return nil, fmt.Errorf("column '%s' has a foreign key reference but is not marked as a foreign key", name)
	}
	if col.ref != nil && (col.ref.Table == "" || col.ref.Column == "") {
		return nil, fmt.Errorf("column '%s' has an incomplete foreign key reference", name)
	}
	return col, nil
}

func (c *Column) Name() string         { return c.name }
func (c *Column) Type() DataType       { return c.dataType }
func (c *Column) IsPrimaryKey() bool   { return c.primaryKey }
func (c *Column) IsUnique() bool       { return c.unique }
func (c *Column) IsForeignKey() bool   { return c.foreignKey }
func (c *Column) Ref() *ForeignKeyRef { return c.ref }
