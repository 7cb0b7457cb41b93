package engine

import (
	"fmt"
	"strings"

	"stratadb/src/auth"
	"stratadb/src/hashindex"
	"stratadb/src/schema"

	"go.uber.org/zap"
)

// Database owns a case-insensitive registry of named tables and a global
// registry of named indexes. Every operation is gated on the connected
// state. Instances are independent; there is no process-wide registry.
type Database struct {
	Name      string
	tables    map[string]*Table // keyed by lowercase name
	indexes   map[string]*hashindex.Index
	connected bool
	users     *auth.UserStore
	logger    *zap.SugaredLogger
}

// NewDatabase creates a disconnected database.
func NewDatabase(name string, logger *zap.SugaredLogger) *Database {
	return &Database{
		Name:    name,
		tables:  make(map[string]*Table),
		indexes: make(map[string]*hashindex.Index),
		logger:  logger,
	}
}

// AttachUserStore turns on authentication: Connect is rejected and callers
// must use ConnectAs with valid credentials.
func (db *Database) AttachUserStore(store *auth.UserStore) {
	db.users = store
}

// Connect moves the database into the connected state.
func (db *Database) Connect() error {
	if db.users != nil {
		return fmt.Errorf("database '%s' requires credentials: %w", db.Name, ErrNotConnected)
	}
	db.connected = true
	db.logger.Infof("Connected to database '%s'", db.Name)
	return nil
}

// ConnectAs authenticates against the attached user store and connects.
func (db *Database) ConnectAs(username, password string) error {
	if db.users == nil {
		return db.Connect()
	}
	if err := db.users.Authenticate(username, password); err != nil {
		return fmt.Errorf("authentication failed for user '%s': %w", username, ErrNotConnected)
	}
	db.connected = true
	db.logger.Infof("User '%s' connected to database '%s'", username, db.Name)
	return nil
}

// Disconnect moves the database into the disconnected state. Operations
// issued while disconnected are rejected, not queued.
func (db *Database) Disconnect() {
	db.connected = false
	db.logger.Infof("Disconnected from database '%s'", db.Name)
}

// IsConnected reports the connection state.
func (db *Database) IsConnected() bool { return db.connected }

func (db *Database) checkConnected() error {
	if !db.connected {
		return fmt.Errorf("database '%s': %w", db.Name, ErrNotConnected)
	}
	return nil
}

// CreateTable registers a new table. Names are unique case-insensitively;
// the display name keeps its original casing.
func (db *Database) CreateTable(name string, columns []*schema.Column) (*Table, error) {
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	key := strings.ToLower(name)
	if _, exists := db.tables[key]; exists {
		return nil, fmt.Errorf("table '%s' already exists: %w", name, ErrSchema)
	}
	table := NewTable(name, db.logger)
	for _, col := range columns {
		if err := table.AddColumn(col); err != nil {
			return nil, err
		}
	}
	db.tables[key] = table
	db.logger.Infof("Created table '%s' with %d columns", name, len(columns))
	return table, nil
}

// DropTable removes a table and cascades into the global index registry so
// the dropped table's indexes do not linger there.
func (db *Database) DropTable(name string) error {
	if err := db.checkConnected(); err != nil {
		return err
	}
	key := strings.ToLower(name)
	table, exists := db.tables[key]
	if !exists {
		return fmt.Errorf("table '%s' %w", name, ErrNotFound)
	}
	for idxName := range table.Indexes() {
		delete(db.indexes, idxName)
	}
	delete(db.tables, key)
	db.logger.Infof("Dropped table '%s'", table.Name)
	return nil
}

// GetTable resolves a table by case-insensitive name.
func (db *Database) GetTable(name string) (*Table, error) {
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	table, exists := db.tables[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("table '%s' %w", name, ErrNotFound)
	}
	return table, nil
}

// TableNames lists the display names of all tables.
func (db *Database) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for _, table := range db.tables {
		names = append(names, table.Name)
	}
	return names
}

// Insert validates foreign keys across tables, then delegates to the table.
func (db *Database) Insert(tableName string, rec *schema.Record) error {
	table, err := db.GetTable(tableName)
	if err != nil {
		return err
	}
	if err := table.ValidateForeignKeys(rec, db.GetTable); err != nil {
		return err
	}
	return table.Insert(rec)
}

// Update validates foreign keys on every post-merge record, then delegates.
// Returns the number of records updated.
func (db *Database) Update(tableName string, data map[string]schema.Value, pred Predicate) (int, error) {
	table, err := db.GetTable(tableName)
	if err != nil {
		return 0, err
	}
	for _, rec := range table.Scan(pred) {
		merged := rec.Merge(data)
		if err := table.ValidateForeignKeys(merged, db.GetTable); err != nil {
			return 0, err
		}
	}
	return table.Update(data, pred)
}

// Delete removes the matching records. Returns the number removed.
func (db *Database) Delete(tableName string, pred Predicate) (int, error) {
	table, err := db.GetTable(tableName)
	if err != nil {
		return 0, err
	}
	return table.Delete(pred)
}

// Query runs a full predicate scan over a table.
func (db *Database) Query(tableName string, pred Predicate) ([]*schema.Record, error) {
	table, err := db.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	return table.Scan(pred), nil
}

// CreateIndex builds an index over the table's current records and registers
// it both on the table (for auto-maintenance) and globally (for lookup by
// name). Index names are unique across the whole database.
func (db *Database) CreateIndex(tableName, column, indexName string, unique bool) (*hashindex.Index, error) {
	table, err := db.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, ok := table.Column(column); !ok {
		return nil, fmt.Errorf("column '%s' %w in table '%s'", column, ErrNotFound, table.Name)
	}
	if _, exists := db.indexes[indexName]; exists {
		return nil, fmt.Errorf("index '%s': %w", indexName, hashindex.ErrAlreadyBuilt)
	}

	idx := hashindex.New(indexName, table.Name, column, unique, db.logger)
	if err := idx.Build(table.Records()); err != nil {
		return nil, err
	}
	if err := table.RegisterIndex(idx); err != nil {
		return nil, err
	}
	db.indexes[indexName] = idx
	return idx, nil
}

// DropIndex clears and removes an index from its table and from the global
// registry.
func (db *Database) DropIndex(tableName, indexName string) error {
	table, err := db.GetTable(tableName)
	if err != nil {
		return err
	}
	if err := table.DropIndex(indexName); err != nil {
		return err
	}
	delete(db.indexes, indexName)
	return nil
}

// GetIndex resolves an index by its global name.
func (db *Database) GetIndex(name string) (*hashindex.Index, error) {
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	idx, exists := db.indexes[name]
	if !exists {
		return nil, fmt.Errorf("index '%s' %w", name, ErrNotFound)
	}
	return idx, nil
}

// GetIndexForColumn returns the first index on (table, column), or nil. The
// query executor uses it to pick an access path.
func (db *Database) GetIndexForColumn(tableName, column string) *hashindex.Index {
	table, err := db.GetTable(tableName)
	if err != nil {
		return nil
	}
	return table.IndexForColumn(column)
}

// ListIndexes returns the indexes registered on one table, or on every
// table when tableName is empty.
func (db *Database) ListIndexes(tableName string) ([]*hashindex.Index, error) {
	if err := db.checkConnected(); err != nil {
		return nil, err
	}
	var out []*hashindex.Index
	if tableName != "" {
		table, err := db.GetTable(tableName)
		if err != nil {
			return nil, err
		}
		for _, idx := range table.Indexes() {
			out = append(out, idx)
		}
		return out, nil
	}
	for _, idx := range db.indexes {
		out = append(out, idx)
	}
	return out, nil
}
