package schema

// Record is one row of a table: a stable identifier plus an
// order-preserving map of field name to tagged value.
type Record struct {
	id     string
	fields []string
	values map[string]Value
}

// NewRecord creates an empty record with the given row identifier.
func NewRecord(id string) *Record {
	return &Record{
		id:     id,
		values: make(map[string]Value),
	}
}

// ID returns the stable row identifier assigned at insert time.
func (r *Record) ID() string { return r.id }

// Set stores a field value, preserving first-set order for new fields.
func (r *Record) Set(field string, v Value) {
	if _, exists := r.values[field]; !exists {
		r.fields = append(r.fields, field)
	}
	r.values[field] = v
}

// Get returns the value of a field and whether the field exists.
func (r *Record) Get(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Has reports whether the record carries the field.
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Fields returns the field names in insertion order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.fields) }

// Clone returns a deep copy sharing the same row identifier.
func (r *Record) Clone() *Record {
	out := NewRecord(r.id)
	for _, f := range r.fields {
		out.Set(f, r.values[f])
	}
	return out
}

// Merge builds the replacement record an update produces: the receiver's
// fields overridden by the partial data, under the same row identifier.
func (r *Record) Merge(data map[string]Value) *Record {
	out := r.Clone()
	for f, v := range data {
		out.Set(f, v)
	}
	return out
}
