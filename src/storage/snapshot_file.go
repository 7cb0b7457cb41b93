package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"stratadb/src/engine"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sys/unix"
)

// indexFileDoc wraps the index metadata list so it marshals as a document.
type indexFileDoc struct {
	Indexes []IndexMeta `bson:"indexes"`
}

func (s *SnapshotStore) snapshotPath(dbName string) string {
	return filepath.Join(s.dataDir, dbName+".snapshot.bson")
}

func (s *SnapshotStore) indexPath(dbName string) string {
	return filepath.Join(s.dataDir, dbName+".indexes.bson")
}

// SaveToFile writes the database snapshot and its index metadata to the data
// directory, replacing whatever was there.
func (s *SnapshotStore) SaveToFile(db *engine.Database) error {
	snap, err := s.Save(db)
	if err != nil {
		return err
	}
	metas, err := s.SaveIndexes(db)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := bson.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath(db.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	idxData, err := bson.Marshal(indexFileDoc{Indexes: metas})
	if err != nil {
		return fmt.Errorf("failed to encode index metadata: %w", err)
	}
	if err := os.WriteFile(s.indexPath(db.Name), idxData, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata file: %w", err)
	}

	s.logger.Infof("Wrote snapshot of '%s' to %s", db.Name, s.snapshotPath(db.Name))
	return nil
}

// LoadFromFile reads the snapshot for the database's name, replays it into
// the database, and rebuilds the persisted indexes from the reloaded data.
func (s *SnapshotStore) LoadFromFile(db *engine.Database) error {
	data, err := readFileMmap(s.snapshotPath(db.Name))
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := bson.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := s.Load(db, &snap); err != nil {
		return err
	}

	idxData, err := readFileMmap(s.indexPath(db.Name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index metadata file: %w", err)
	}
	var doc indexFileDoc
	if err := bson.Unmarshal(idxData, &doc); err != nil {
		return fmt.Errorf("failed to decode index metadata: %w", err)
	}
	return s.RebuildIndexes(db, doc.Indexes)
}

// SnapshotExists reports whether a snapshot file is present for the name.
func (s *SnapshotStore) SnapshotExists(dbName string) bool {
	_, err := os.Stat(s.snapshotPath(dbName))
	return err == nil
}

// readFileMmap maps a file read-only and copies its contents out before
// unmapping.
func readFileMmap(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())
	if size == 0 {
		return nil, fmt.Errorf("file %s is empty", path)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	defer unix.Munmap(mapped)

	data := make([]byte, size)
	copy(data, mapped)
	return data, nil
}
