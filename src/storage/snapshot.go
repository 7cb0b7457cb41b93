package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"stratadb/src/engine"
	"stratadb/src/helpers"
	"stratadb/src/schema"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const snapshotVersion = 1

// Metadata describes one snapshot.
type Metadata struct {
	Version   int       `bson:"version"`
	LastSaved time.Time `bson:"lastSaved"`
}

// ColumnMeta is the persisted form of a column definition.
type ColumnMeta struct {
	Name         string `bson:"name"`
	DataType     string `bson:"dataType"`
	IsPrimaryKey bool   `bson:"isPrimaryKey"`
	IsUnique     bool   `bson:"isUnique"`
	IsForeignKey bool   `bson:"isForeignKey,omitempty"`
	RefTable     string `bson:"refTable,omitempty"`
	RefColumn    string `bson:"refColumn,omitempty"`
}

// ValueDoc is the persisted form of a tagged value.
type ValueDoc struct {
	Kind string    `bson:"k"`
	Int  int64     `bson:"i,omitempty"`
	Text string    `bson:"s,omitempty"`
	Bool bool      `bson:"b,omitempty"`
	Date time.Time `bson:"d,omitempty"`
}

// FieldDoc keeps a record field's name next to its value so field order
// survives the round trip.
type FieldDoc struct {
	Name  string   `bson:"name"`
	Value ValueDoc `bson:"value"`
}

// RecordDoc is the persisted form of one record.
type RecordDoc struct {
	ID     string     `bson:"id"`
	Fields []FieldDoc `bson:"fields"`
}

// TableSnapshot is the persisted form of one table.
type TableSnapshot struct {
	Columns []ColumnMeta `bson:"columns"`
	Records []RecordDoc  `bson:"records"`
}

// Snapshot is the complete external representation of a database. Saving
// replaces the previous snapshot wholesale.
type Snapshot struct {
	Tables   map[string]TableSnapshot `bson:"tables"`
	Metadata Metadata                 `bson:"metadata"`
}

// IndexMeta is persisted separately from the snapshot. Indexes are always
// rebuilt from the reloaded table data, never copied.
type IndexMeta struct {
	Name       string `bson:"name"`
	Table      string `bson:"table"`
	ColumnName string `bson:"columnName"`
	Type       string `bson:"type"`
	Unique     bool   `bson:"unique"`
}

// SnapshotStore saves and loads whole-database snapshots. How often it is
// called is the caller's business; the engine never triggers it.
type SnapshotStore struct {
	dataDir   string
	mu        sync.Mutex
	reloading bool
	logger    *zap.SugaredLogger
}

// NewSnapshotStore creates a store rooted at dataDir.
func NewSnapshotStore(dataDir string, logger *zap.SugaredLogger) *SnapshotStore {
	return &SnapshotStore{dataDir: dataDir, logger: logger}
}

// Save captures the complete current state of the database.
func (s *SnapshotStore) Save(db *engine.Database) (*Snapshot, error) {
	snap := &Snapshot{
		Tables: make(map[string]TableSnapshot),
		Metadata: Metadata{
			Version:   snapshotVersion,
			LastSaved: time.Now(),
		},
	}
	for _, name := range db.TableNames() {
		table, err := db.GetTable(name)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot table '%s': %w", name, err)
		}
		snap.Tables[table.Name] = snapshotTable(table)
	}
	s.logger.Infof("Saved snapshot of database '%s' with %d tables", db.Name, len(snap.Tables))
	return snap, nil
}

// SaveIndexes captures the metadata of every index in the database.
func (s *SnapshotStore) SaveIndexes(db *engine.Database) ([]IndexMeta, error) {
	indexes, err := db.ListIndexes("")
	if err != nil {
		return nil, err
	}
	metas := make([]IndexMeta, 0, len(indexes))
	for _, idx := range indexes {
		metas = append(metas, IndexMeta{
			Name:       idx.Name(),
			Table:      idx.Table(),
			ColumnName: idx.Column(),
			Type:       "hash",
			Unique:     idx.IsUnique(),
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Load re-creates every table of the snapshot in the database and re-inserts
// every record through full insert-time validation. An overlapping reload is
// rejected, not queued.
func (s *SnapshotStore) Load(db *engine.Database, snap *Snapshot) error {
	s.mu.Lock()
	if s.reloading {
		s.mu.Unlock()
		return fmt.Errorf("a reload of database '%s' is already in progress", db.Name)
	}
	s.reloading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.reloading = false
		s.mu.Unlock()
	}()

	order := loadOrder(snap.Tables)
	for _, name := range order {
		ts := snap.Tables[name]
		columns, err := restoreColumns(ts.Columns)
		if err != nil {
			return fmt.Errorf("failed to restore columns of table '%s': %w", name, err)
		}
		if _, err := db.CreateTable(name, columns); err != nil {
			return fmt.Errorf("failed to re-create table '%s': %w", name, err)
		}
	}
	for _, name := range order {
		for _, doc := range snap.Tables[name].Records {
			rec, err := restoreRecord(doc)
			if err != nil {
				return fmt.Errorf("failed to restore record of table '%s': %w", name, err)
			}
			if err := db.Insert(name, rec); err != nil {
				return fmt.Errorf("failed to re-insert record into table '%s': %w", name, err)
			}
		}
	}
	s.logger.Infof("Loaded snapshot into database '%s' (%d tables)", db.Name, len(snap.Tables))
	return nil
}

// RebuildIndexes re-creates every index described by the metadata from the
// freshly loaded table data. Failures are collected so one broken index does
// not stop the rest from being rebuilt.
func (s *SnapshotStore) RebuildIndexes(db *engine.Database, metas []IndexMeta) error {
	var errs error
	for _, meta := range metas {
		if _, err := db.CreateIndex(meta.Table, meta.ColumnName, meta.Name, meta.Unique); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to rebuild index '%s': %w", meta.Name, err))
			continue
		}
	}
	return errs
}

func snapshotTable(table *engine.Table) TableSnapshot {
	ts := TableSnapshot{}
	for _, col := range table.Columns() {
		meta := ColumnMeta{
			Name:         col.Name(),
			DataType:     string(col.Type()),
			IsPrimaryKey: col.IsPrimaryKey(),
			IsUnique:     col.IsUnique(),
			IsForeignKey: col.IsForeignKey(),
		}
		if ref := col.Ref(); ref != nil {
			meta.RefTable = ref.Table
			meta.RefColumn = ref.Column
		}
		ts.Columns = append(ts.Columns, meta)
	}
	for _, rec := range table.Records() {
		doc := RecordDoc{ID: rec.ID()}
		for _, f := range rec.Fields() {
			v, _ := rec.Get(f)
			doc.Fields = append(doc.Fields, FieldDoc{Name: f, Value: encodeValue(v)})
		}
		ts.Records = append(ts.Records, doc)
	}
	return ts
}

func restoreColumns(metas []ColumnMeta) ([]*schema.Column, error) {
	columns := make([]*schema.Column, 0, len(metas))
	for _, meta := range metas {
		dataType, err := schema.ParseDataType(meta.DataType)
		if err != nil {
			return nil, err
		}
		var opts []schema.ColumnOption
		if meta.IsPrimaryKey {
			opts = append(opts, schema.WithPrimaryKey())
		}
		if meta.IsUnique {
			opts = append(opts, schema.WithUnique())
		}
		if meta.IsForeignKey {
			opts = append(opts, schema.WithForeignKey(meta.RefTable, meta.RefColumn))
		}
		col, err := schema.NewColumn(meta.Name, dataType, opts...)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

func restoreRecord(doc RecordDoc) (*schema.Record, error) {
	id := doc.ID
	if id == "" {
		id = helpers.GenerateUUID()
	}
	rec := schema.NewRecord(id)
	for _, f := range doc.Fields {
		v, err := decodeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}

func encodeValue(v schema.Value) ValueDoc {
	switch v.Kind() {
	case schema.KindInt:
		return ValueDoc{Kind: "int", Int: v.Int()}
	case schema.KindText:
		return ValueDoc{Kind: "text", Text: v.Text()}
	case schema.KindBool:
		return ValueDoc{Kind: "bool", Bool: v.Bool()}
	case schema.KindDate:
		return ValueDoc{Kind: "date", Date: v.Date()}
	default:
		return ValueDoc{Kind: "null"}
	}
}

func decodeValue(doc ValueDoc) (schema.Value, error) {
	switch doc.Kind {
	case "int":
		return schema.NewInt(doc.Int), nil
	case "text":
		return schema.NewText(doc.Text), nil
	case "bool":
		return schema.NewBool(doc.Bool), nil
	case "date":
		return schema.NewDate(doc.Date), nil
	case "null":
		return schema.Null(), nil
	}
	return schema.Value{}, fmt.Errorf("unknown value kind '%s'", doc.Kind)
}

// loadOrder sorts tables so referenced tables load before the tables whose
// foreign keys point at them. Cycles fall back to name order.
func loadOrder(tables map[string]TableSnapshot) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string][]string, len(names))
	for name, ts := range tables {
		for _, col := range ts.Columns {
			if col.IsForeignKey && col.RefTable != "" {
				deps[name] = append(deps[name], col.RefTable)
			}
		}
	}

	var order []string
	visited := make(map[string]int) // 0 unseen, 1 visiting, 2 done
	var visit func(string)
	visit = func(name string) {
		if visited[name] != 0 {
			return
		}
		visited[name] = 1
		for _, dep := range deps[name] {
			if _, exists := tables[dep]; exists && visited[dep] != 1 {
				visit(dep)
			}
		}
		visited[name] = 2
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}
