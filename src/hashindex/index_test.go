package hashindex

import (
	"errors"
	"testing"

	"stratadb/src/schema"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func makeRecord(id string, age int64) *schema.Record {
	rec := schema.NewRecord(id)
	rec.Set("id", schema.NewText(id))
	rec.Set("age", schema.NewInt(age))
	return rec
}

func TestBuildAndSearch(t *testing.T) {
	// Ages [25, 30, 25]: search(25) must return rows 1 and 3 in insertion
	// order, and the stats must count 2 distinct keys.
	records := []*schema.Record{
		makeRecord("r1", 25),
		makeRecord("r2", 30),
		makeRecord("r3", 25),
	}
	idx := New("idx_age", "t", "age", false, testLogger())
	if err := idx.Build(records); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got, err := idx.Search(schema.NewInt(25))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "r1" || got[1].ID() != "r3" {
		ids := make([]string, len(got))
		for i, r := range got {
			ids[i] = r.ID()
		}
		t.Fatalf("Search(25) = %v, want [r1 r3]", ids)
	}

	stats, err := idx.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 3 || stats.UniqueKeys != 2 {
		t.Errorf("Stats = %+v, want {3 2}", stats)
	}

	empty, err := idx.Search(schema.NewInt(99))
	if err != nil {
		t.Fatalf("Search for unknown value failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty result for unknown value, got %d records", len(empty))
	}
}

func TestBuildFailures(t *testing.T) {
	idx := New("idx", "t", "age", false, testLogger())
	if _, err := idx.Search(schema.NewInt(1)); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Search before build should fail with ErrNotBuilt, got %v", err)
	}
	if _, err := idx.RangeSearch(nil, nil); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("RangeSearch before build should fail with ErrNotBuilt, got %v", err)
	}

	if err := idx.Build([]*schema.Record{makeRecord("r1", 1)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := idx.Build(nil); !errors.Is(err, ErrAlreadyBuilt) {
		t.Errorf("Second build should fail with ErrAlreadyBuilt, got %v", err)
	}

	// A record without the target column aborts the build.
	bad := schema.NewRecord("bad")
	bad.Set("other", schema.NewInt(1))
	idx2 := New("idx2", "t", "age", false, testLogger())
	if err := idx2.Build([]*schema.Record{bad}); err == nil {
		t.Error("Expected build to fail for a record missing the column")
	}
	if idx2.Created() {
		t.Error("Failed build must not leave the index created")
	}
}

func TestUniqueBuildRejectsDuplicates(t *testing.T) {
	records := []*schema.Record{
		makeRecord("r1", 25),
		makeRecord("r2", 25),
	}
	idx := New("uq", "t", "age", true, testLogger())
	err := idx.Build(records)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	if idx.Created() {
		t.Error("Failed unique build must not leave a partially-correct index")
	}
}

func TestNullKeysNotIndexed(t *testing.T) {
	rec := schema.NewRecord("r1")
	rec.Set("age", schema.Null())
	idx := New("idx", "t", "age", false, testLogger())
	if err := idx.Build([]*schema.Record{rec, makeRecord("r2", 10)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	stats, _ := idx.Stats()
	if stats.TotalRecords != 1 {
		t.Errorf("Null keys must not be indexed, stats = %+v", stats)
	}
}

func TestRangeSearchBounds(t *testing.T) {
	records := []*schema.Record{
		makeRecord("r1", 10),
		makeRecord("r2", 20),
		makeRecord("r3", 30),
	}
	idx := New("idx", "t", "age", false, testLogger())
	if err := idx.Build(records); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	min := schema.NewInt(20)
	got, err := idx.RangeSearch(&min, nil)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	// Inclusive: 20 and 30.
	if len(got) != 2 || got[0].ID() != "r2" || got[1].ID() != "r3" {
		t.Fatalf("RangeSearch(20, nil) returned %d records, want [r2 r3]", len(got))
	}

	max := schema.NewInt(20)
	got, err = idx.RangeSearch(nil, &max)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "r1" || got[1].ID() != "r2" {
		t.Fatalf("RangeSearch(nil, 20) returned %d records, want [r1 r2]", len(got))
	}

	both, err := idx.RangeSearch(&min, &max)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	if len(both) != 1 || both[0].ID() != "r2" {
		t.Fatalf("RangeSearch(20, 20) should return exactly r2")
	}

	// Incomparable bound kinds surface as an error so the executor can fall
	// back to a full scan.
	text := schema.NewText("x")
	if _, err := idx.RangeSearch(&text, nil); err == nil {
		t.Error("Expected range search with mismatched kind to fail")
	}
}

func TestIncrementalMaintenance(t *testing.T) {
	idx := New("idx", "t", "age", false, testLogger())
	if err := idx.Build(nil); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	r1 := makeRecord("r1", 25)
	r2 := makeRecord("r2", 25)
	if err := idx.Add(r1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Add(r2); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Update to a new key moves the record between buckets.
	r1b := makeRecord("r1", 40)
	if err := idx.Update(r1, r1b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := idx.Search(schema.NewInt(25))
	if len(got) != 1 || got[0].ID() != "r2" {
		t.Fatalf("Expected only r2 under key 25 after update")
	}
	got, _ = idx.Search(schema.NewInt(40))
	if len(got) != 1 || got[0].ID() != "r1" {
		t.Fatalf("Expected r1 under key 40 after update")
	}

	// Same-key update swaps the stored handle.
	r2b := makeRecord("r2", 25)
	r2b.Set("id", schema.NewText("r2-replaced"))
	if err := idx.Update(r2, r2b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ = idx.Search(schema.NewInt(25))
	if len(got) != 1 {
		t.Fatalf("Expected one record under key 25")
	}
	if v, _ := got[0].Get("id"); v.Text() != "r2-replaced" {
		t.Errorf("Expected the updated handle to be stored, got %s", v.Text())
	}

	if err := idx.Remove(r1b); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got, _ = idx.Search(schema.NewInt(40))
	if len(got) != 0 {
		t.Errorf("Expected key 40 to be empty after removal")
	}
}

func TestUniqueAddRejected(t *testing.T) {
	idx := New("uq", "t", "age", true, testLogger())
	if err := idx.Build([]*schema.Record{makeRecord("r1", 25)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := idx.Add(makeRecord("r2", 25)); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestClearResetsIndex(t *testing.T) {
	idx := New("idx", "t", "age", false, testLogger())
	if err := idx.Build([]*schema.Record{makeRecord("r1", 1)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	idx.Clear()
	if idx.Created() {
		t.Error("Clear must mark the index not created")
	}
	if err := idx.Build([]*schema.Record{makeRecord("r1", 1)}); err != nil {
		t.Errorf("Rebuild after clear should succeed: %v", err)
	}
}
