package engine

import (
	"fmt"
	"strings"

	"stratadb/src/hashindex"
	"stratadb/src/schema"

	"go.uber.org/zap"
)

// Predicate selects records during scans, updates and deletes.
type Predicate func(*schema.Record) bool

// TableLookup resolves a table by name. Table depends on it instead of on
// Database so foreign keys can be validated without a circular reference.
type TableLookup func(name string) (*Table, error)

// Table owns its column list, its records and the indexes registered on it.
// Every mutation that commits also updates every registered index.
type Table struct {
	Name    string
	columns []*schema.Column
	records []*schema.Record
	indexes map[string]*hashindex.Index
	logger  *zap.SugaredLogger
}

// NewTable creates an empty table with the given display name.
func NewTable(name string, logger *zap.SugaredLogger) *Table {
	return &Table{
		Name:    name,
		indexes: make(map[string]*hashindex.Index),
		logger:  logger,
	}
}

// AddColumn appends a column to the schema. Column names must be unique.
func (t *Table) AddColumn(col *schema.Column) error {
	for _, existing := range t.columns {
		if strings.EqualFold(existing.Name(), col.Name()) {
			return fmt.Errorf("column '%s' already exists in table '%s': %w", col.Name(), t.Name, ErrSchema)
		}
	}
	t.columns = append(t.columns, col)
	return nil
}

// Column finds a column by exact name.
func (t *Table) Column(name string) (*schema.Column, bool) {
	for _, col := range t.columns {
		if col.Name() == name {
			return col, true
		}
	}
	return nil, false
}

// Columns returns the schema in declaration order.
func (t *Table) Columns() []*schema.Column {
	out := make([]*schema.Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Records returns the current records in insertion order.
func (t *Table) Records() []*schema.Record {
	out := make([]*schema.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Scan returns the records matching the predicate. A nil predicate matches
// every record.
func (t *Table) Scan(pred Predicate) []*schema.Record {
	var out []*schema.Record
	for _, rec := range t.records {
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// validateShape checks that the record's field set equals the column set
// exactly and that every non-null value matches its declared type. Date
// values given as text are normalized in place.
func (t *Table) validateShape(rec *schema.Record) error {
	for _, field := range rec.Fields() {
		if _, ok := t.Column(field); !ok {
			return fmt.Errorf("table '%s' has no column '%s': %w", t.Name, field, ErrSchema)
		}
	}
	for _, col := range t.columns {
		v, ok := rec.Get(col.Name())
		if !ok {
			return fmt.Errorf("record is missing column '%s' of table '%s': %w", col.Name(), t.Name, ErrSchema)
		}
		coerced, err := schema.CoerceToType(v, col.Type())
		if err != nil {
			return fmt.Errorf("column '%s': %v: %w", col.Name(), err, ErrType)
		}
		rec.Set(col.Name(), coerced)
	}
	return nil
}

// checkUniqueness rejects a value already present in a primary key or unique
// column, skipping the record identified by excludeID (the pre-update image
// during updates).
func (t *Table) checkUniqueness(rec *schema.Record, excludeID string) error {
	for _, col := range t.columns {
		if !col.IsPrimaryKey() && !col.IsUnique() {
			continue
		}
		v, _ := rec.Get(col.Name())
		if v.IsNull() {
			continue
		}
		for _, existing := range t.records {
			if existing.ID() == excludeID {
				continue
			}
			ev, _ := existing.Get(col.Name())
			if ev.Equal(v) {
				kind := "unique"
				if col.IsPrimaryKey() {
					kind = "primary key"
				}
				return fmt.Errorf("duplicate value %s for %s column '%s' in table '%s': %w",
					v, kind, col.Name(), t.Name, ErrConstraint)
			}
		}
	}
	return nil
}

// Insert validates and appends one record, then feeds it to every
// registered index. Nothing is mutated if any check fails.
func (t *Table) Insert(rec *schema.Record) error {
	if err := t.validateShape(rec); err != nil {
		return err
	}
	if err := t.checkUniqueness(rec, ""); err != nil {
		return err
	}

	t.records = append(t.records, rec)

	var touched []*hashindex.Index
	for _, idx := range t.indexes {
		if err := idx.Add(rec); err != nil {
			for _, done := range touched {
				_ = done.Remove(rec)
			}
			t.records = t.records[:len(t.records)-1]
			return fmt.Errorf("failed to index inserted record: %w", err)
		}
		touched = append(touched, idx)
	}
	return nil
}

// Update replaces every record matching the predicate with a merged copy.
// data is a partial field map; each key must name a real column and satisfy
// its type. For each record the index update and the record replacement
// happen together or not at all. Returns the number of records updated.
func (t *Table) Update(data map[string]schema.Value, pred Predicate) (int, error) {
	normalized := make(map[string]schema.Value, len(data))
	for field, v := range data {
		col, ok := t.Column(field)
		if !ok {
			return 0, fmt.Errorf("table '%s' has no column '%s': %w", t.Name, field, ErrSchema)
		}
		coerced, err := schema.CoerceToType(v, col.Type())
		if err != nil {
			return 0, fmt.Errorf("column '%s': %v: %w", field, err, ErrType)
		}
		normalized[field] = coerced
	}

	updated := 0
	for i, rec := range t.records {
		if pred != nil && !pred(rec) {
			continue
		}
		merged := rec.Merge(normalized)
		if err := t.checkUniqueness(merged, rec.ID()); err != nil {
			return updated, err
		}

		var touched []*hashindex.Index
		failed := false
		for _, idx := range t.indexes {
			if err := idx.Update(rec, merged); err != nil {
				for _, done := range touched {
					_ = done.Update(merged, rec)
				}
				failed = true
				break
			}
			touched = append(touched, idx)
		}
		if failed {
			return updated, fmt.Errorf("failed to update indexes for record in table '%s'", t.Name)
		}

		t.records[i] = merged
		updated++
	}
	return updated, nil
}

// Delete removes every record matching the predicate, unindexing each one
// first. Returns the number of records removed.
func (t *Table) Delete(pred Predicate) (int, error) {
	matched := t.Scan(pred)
	for _, rec := range matched {
		for _, idx := range t.indexes {
			if err := idx.Remove(rec); err != nil {
				return 0, fmt.Errorf("failed to unindex deleted record: %w", err)
			}
		}
	}

	if len(matched) == 0 {
		return 0, nil
	}
	removed := make(map[string]bool, len(matched))
	for _, rec := range matched {
		removed[rec.ID()] = true
	}
	kept := t.records[:0]
	for _, rec := range t.records {
		if !removed[rec.ID()] {
			kept = append(kept, rec)
		}
	}
	t.records = kept
	return len(matched), nil
}

// ValidateForeignKeys checks every non-null foreign key value of the record
// against the referenced table, fetched through lookup. Null foreign keys
// are always valid.
func (t *Table) ValidateForeignKeys(rec *schema.Record, lookup TableLookup) error {
	for _, col := range t.columns {
		if !col.IsForeignKey() {
			continue
		}
		v, ok := rec.Get(col.Name())
		if !ok || v.IsNull() {
			continue
		}
		ref := col.Ref()
		target, err := lookup(ref.Table)
		if err != nil {
			return fmt.Errorf("foreign key column '%s' references missing table '%s': %w",
				col.Name(), ref.Table, ErrConstraint)
		}
		found := false
		for _, candidate := range target.records {
			cv, ok := candidate.Get(ref.Column)
			if ok && cv.Equal(v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %s does not exist in %s.%s: %w",
				v, ref.Table, ref.Column, ErrConstraint)
		}
	}
	return nil
}

// RegisterIndex attaches an index for auto-maintenance on every mutation.
func (t *Table) RegisterIndex(idx *hashindex.Index) error {
	if _, exists := t.indexes[idx.Name()]; exists {
		return fmt.Errorf("index '%s' is already registered on table '%s': %w", idx.Name(), t.Name, hashindex.ErrAlreadyBuilt)
	}
	t.indexes[idx.Name()] = idx
	return nil
}

// UnregisterIndex detaches an index without clearing its data.
func (t *Table) UnregisterIndex(name string) (*hashindex.Index, error) {
	idx, exists := t.indexes[name]
	if !exists {
		return nil, fmt.Errorf("index '%s' %w on table '%s'", name, ErrNotFound, t.Name)
	}
	delete(t.indexes, name)
	return idx, nil
}

// DropIndex clears an index's data and unregisters it.
func (t *Table) DropIndex(name string) error {
	idx, err := t.UnregisterIndex(name)
	if err != nil {
		return err
	}
	idx.Clear()
	t.logger.Infof("Dropped index '%s' from table '%s'", name, t.Name)
	return nil
}

// Indexes returns the registered indexes keyed by name.
func (t *Table) Indexes() map[string]*hashindex.Index {
	out := make(map[string]*hashindex.Index, len(t.indexes))
	for name, idx := range t.indexes {
		out[name] = idx
	}
	return out
}

// IndexForColumn returns the first registered index on the column, if any.
func (t *Table) IndexForColumn(column string) *hashindex.Index {
	for _, idx := range t.indexes {
		if idx.Column() == column {
			return idx
		}
	}
	return nil
}
