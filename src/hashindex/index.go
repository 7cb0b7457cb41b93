package hashindex

import (
	"fmt"
	"sort"

	"stratadb/src/schema"

	"go.uber.org/zap"
)

// Sentinel errors for index state violations.
var (
	ErrAlreadyBuilt = fmt.Errorf("index already created")
	ErrNotBuilt     = fmt.Errorf("index not created")
	ErrDuplicateKey = fmt.Errorf("duplicate value in unique index")
)

// bucket groups the records sharing one key value, in insertion order.
type bucket struct {
	key     schema.Value
	entries []*schema.Record
}

// Index is a hash index over one column of one table. It maps each distinct
// column value to the records holding it. Records with a null key are not
// indexed. Lookups fail until the index has been built.
type Index struct {
	name    string
	table   string
	column  string
	unique  bool
	created bool
	buckets map[string]*bucket
	logger  *zap.SugaredLogger
}

// IndexStats summarizes the contents of a built index.
type IndexStats struct {
	TotalRecords int
	UniqueKeys   int
}

// New creates an index descriptor. The index holds no data until Build runs.
func New(name, table, column string, unique bool, logger *zap.SugaredLogger) *Index {
	return &Index{
		name:   name,
		table:  table,
		column: column,
		unique: unique,
		logger: logger,
	}
}

func (idx *Index) Name() string   { return idx.name }
func (idx *Index) Table() string  { return idx.table }
func (idx *Index) Column() string { return idx.column }
func (idx *Index) IsUnique() bool { return idx.unique }
func (idx *Index) Created() bool  { return idx.created }

// Build populates the index from a snapshot of records. A failed build
// leaves the index empty and not created.
func (idx *Index) Build(records []*schema.Record) error {
	if idx.created {
		return fmt.Errorf("index '%s': %w", idx.name, ErrAlreadyBuilt)
	}

	buckets := make(map[string]*bucket)
	for _, rec := range records {
		v, ok := rec.Get(idx.column)
		if !ok {
			return fmt.Errorf("index '%s': record is missing column '%s'", idx.name, idx.column)
		}
		if v.IsNull() {
			continue
		}
		key := v.Key()
		b, exists := buckets[key]
		if !exists {
			b = &bucket{key: v}
			buckets[key] = b
		} else if idx.unique {
			return fmt.Errorf("index '%s': value %s: %w", idx.name, v, ErrDuplicateKey)
		}
		b.entries = append(b.entries, rec)
	}

	idx.buckets = buckets
	idx.created = true
	idx.logger.Infof("Built index '%s' on %s(%s) with %d keys", idx.name, idx.table, idx.column, len(buckets))
	return nil
}

// Search returns the records whose key equals value, in insertion order.
// An unknown value yields an empty result, not an error.
func (idx *Index) Search(value schema.Value) ([]*schema.Record, error) {
	if !idx.created {
		return nil, fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}
	b, ok := idx.buckets[value.Key()]
	if !ok {
		return []*schema.Record{}, nil
	}
	out := make([]*schema.Record, len(b.entries))
	copy(out, b.entries)
	return out, nil
}

// RangeSearch returns the records with min <= key <= max, ascending by key.
// A nil bound is unbounded on that side.
func (idx *Index) RangeSearch(min, max *schema.Value) ([]*schema.Record, error) {
	if !idx.created {
		return nil, fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}

	matched := make([]*bucket, 0)
	for _, b := range idx.buckets {
		if min != nil {
			cmp, err := b.key.Compare(*min)
			if err != nil {
				return nil, fmt.Errorf("index '%s': %w", idx.name, err)
			}
			if cmp < 0 {
				continue
			}
		}
		if max != nil {
			cmp, err := b.key.Compare(*max)
			if err != nil {
				return nil, fmt.Errorf("index '%s': %w", idx.name, err)
			}
			if cmp > 0 {
				continue
			}
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		cmp, _ := matched[i].key.Compare(matched[j].key)
		return cmp < 0
	})

	var out []*schema.Record
	for _, b := range matched {
		out = append(out, b.entries...)
	}
	if out == nil {
		out = []*schema.Record{}
	}
	return out, nil
}

// Add indexes one newly inserted record. Null keys are skipped.
func (idx *Index) Add(rec *schema.Record) error {
	if !idx.created {
		return fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}
	v, ok := rec.Get(idx.column)
	if !ok {
		return fmt.Errorf("index '%s': record is missing column '%s'", idx.name, idx.column)
	}
	if v.IsNull() {
		return nil
	}
	key := v.Key()
	b, exists := idx.buckets[key]
	if !exists {
		idx.buckets[key] = &bucket{key: v, entries: []*schema.Record{rec}}
		return nil
	}
	if idx.unique && len(b.entries) > 0 {
		return fmt.Errorf("index '%s': value %s: %w", idx.name, v, ErrDuplicateKey)
	}
	b.entries = append(b.entries, rec)
	return nil
}

// Remove drops a record from the index, located by its row identifier.
func (idx *Index) Remove(rec *schema.Record) error {
	if !idx.created {
		return fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}
	v, ok := rec.Get(idx.column)
	if !ok || v.IsNull() {
		return nil
	}
	key := v.Key()
	b, exists := idx.buckets[key]
	if !exists {
		return nil
	}
	for i, entry := range b.entries {
		if entry.ID() == rec.ID() {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	if len(b.entries) == 0 {
		delete(idx.buckets, key)
	}
	return nil
}

// Update reflects a record replacement. If the key is unchanged the stored
// handle is swapped in place; otherwise the old entry is removed and the new
// one added.
func (idx *Index) Update(old, updated *schema.Record) error {
	if !idx.created {
		return fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}
	oldVal, _ := old.Get(idx.column)
	newVal, ok := updated.Get(idx.column)
	if !ok {
		return fmt.Errorf("index '%s': record is missing column '%s'", idx.name, idx.column)
	}

	if oldVal.Equal(newVal) {
		if oldVal.IsNull() {
			return nil
		}
		if b, exists := idx.buckets[oldVal.Key()]; exists {
			for i, entry := range b.entries {
				if entry.ID() == old.ID() {
					b.entries[i] = updated
					break
				}
			}
		}
		return nil
	}

	if err := idx.Remove(old); err != nil {
		return err
	}
	if err := idx.Add(updated); err != nil {
		// Put the old entry back so the index keeps matching the table.
		_ = idx.Add(old)
		return err
	}
	return nil
}

// Stats reports the record and distinct key counts.
func (idx *Index) Stats() (IndexStats, error) {
	if !idx.created {
		return IndexStats{}, fmt.Errorf("index '%s': %w", idx.name, ErrNotBuilt)
	}
	stats := IndexStats{UniqueKeys: len(idx.buckets)}
	for _, b := range idx.buckets {
		stats.TotalRecords += len(b.entries)
	}
	return stats, nil
}

// Clear empties the index and marks it not created, so it can be rebuilt.
func (idx *Index) Clear() {
	idx.buckets = nil
	idx.created = false
}
