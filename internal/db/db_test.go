package db

import (
	"errors"
	"path/filepath"
	"testing"
)

const testDims = 4

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"), testDims)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func vec(values ...float32) []float32 {
	v := make([]float32, testDims)
	copy(v, values)
	return v
}

func TestOpenFresh(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.db")

	database, err := Open(path, testDims)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !database.Fresh() {
		t.Error("Expected a new database to be fresh")
	}
	if database.Dimensions() != testDims {
		t.Errorf("Expected dimensions %d, got %d", testDims, database.Dimensions())
	}
	database.Close()

	// Reopening an existing database is not fresh.
	database, err = Open(path, testDims)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer database.Close()
	if database.Fresh() {
		t.Error("Expected a reopened database to not be fresh")
	}
}

func TestItemRoundTrip(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	embedding := vec(0.1, 0.2, 0.3, 0.4)
	id, err := database.InsertItem(ctx, "/photos/dog.jpg", 1700000000, embedding)
	if err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	item, err := database.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Path != "/photos/dog.jpg" {
		t.Errorf("Unexpected path: %s", item.Path)
	}
	if item.Timestamp != 1700000000 {
		t.Errorf("Unexpected timestamp: %f", item.Timestamp)
	}
	for i := range embedding {
		if item.Embedding[i] != embedding[i] {
			t.Fatalf("Embedding mismatch at %d: %f != %f", i, item.Embedding[i], embedding[i])
		}
	}

	byPath, err := database.GetItemByPath(ctx, "/photos/dog.jpg")
	if err != nil {
		t.Fatalf("GetItemByPath failed: %v", err)
	}
	if byPath.ID != id {
		t.Errorf("Expected id %d, got %d", id, byPath.ID)
	}
}

func TestItemNotFound(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	if _, err := database.GetItem(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := database.GetItemByPath(ctx, "/nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := database.DeleteItem(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestItemDuplicatePathConflict(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	if _, err := database.InsertItem(ctx, "/photos/dog.jpg", 100, vec(1)); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	_, err := database.InsertItem(ctx, "/photos/dog.jpg", 200, vec(1))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestInsertItemDimensionMismatch(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	_, err := database.InsertItem(ctx, "/photos/dog.jpg", 100, []float32{1, 2})
	if err == nil {
		t.Error("Expected error for dimension mismatch, got nil")
	}
}

func TestListItemsNewestFirst(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	for i, ts := range []float64{100, 300, 200} {
		if _, err := database.InsertItem(ctx, "/p/"+string(rune('a'+i))+".jpg", ts, vec(1)); err != nil {
			t.Fatalf("InsertItem failed: %v", err)
		}
	}

	items, err := database.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Timestamp > items[i-1].Timestamp {
			t.Errorf("Items not ordered newest-first: %f after %f", items[i].Timestamp, items[i-1].Timestamp)
		}
	}
}

func TestTagRoundTrip(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	embedding := vec(0.5, 0.5)
	id, err := database.InsertTag(ctx, "winter", embedding)
	if err != nil {
		t.Fatalf("InsertTag failed: %v", err)
	}

	tag, err := database.GetTagByName(ctx, "winter")
	if err != nil {
		t.Fatalf("GetTagByName failed: %v", err)
	}
	if tag.ID != id || tag.Name != "winter" {
		t.Errorf("Unexpected tag: %+v", tag)
	}

	if _, err := database.InsertTag(ctx, "winter", embedding); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate name, got %v", err)
	}
}

func TestAssignments(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	itemID, err := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	if err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	tagID, err := database.InsertTag(ctx, "winter", vec(1))
	if err != nil {
		t.Fatalf("InsertTag failed: %v", err)
	}

	if _, err := database.InsertAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	// Duplicate pair is a conflict.
	if _, err := database.InsertAssignment(ctx, itemID, tagID); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate assignment, got %v", err)
	}

	// Dangling references are not found.
	if _, err := database.InsertAssignment(ctx, 999, tagID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for dangling item, got %v", err)
	}
	if _, err := database.InsertAssignment(ctx, itemID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for dangling tag, got %v", err)
	}

	has, err := database.HasAssignment(ctx, itemID, tagID)
	if err != nil {
		t.Fatalf("HasAssignment failed: %v", err)
	}
	if !has {
		t.Error("Expected assignment to exist")
	}

	tags, err := database.ItemTags(ctx, itemID)
	if err != nil {
		t.Fatalf("ItemTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "winter" {
		t.Errorf("Unexpected item tags: %+v", tags)
	}

	if err := database.DeleteAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("DeleteAssignment failed: %v", err)
	}
	if err := database.DeleteAssignment(ctx, itemID, tagID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for repeated unassign, got %v", err)
	}
}

func TestEnsureAssignmentIdempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	itemID, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	tagID, _ := database.InsertTag(ctx, "winter", vec(1))

	if err := database.EnsureAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("EnsureAssignment failed: %v", err)
	}
	if err := database.EnsureAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("Repeated EnsureAssignment failed: %v", err)
	}

	_, _, assignments, err := database.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if assignments != 1 {
		t.Errorf("Expected 1 assignment, got %d", assignments)
	}
}

func TestDeleteItemCascades(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	itemID, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	tagID, _ := database.InsertTag(ctx, "winter", vec(1))
	if _, err := database.InsertAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	if err := database.DeleteItem(ctx, itemID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	items, tags, assignments, err := database.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if items != 0 || assignments != 0 {
		t.Errorf("Expected cascade delete, got %d items %d assignments", items, assignments)
	}
	if tags != 1 {
		t.Errorf("Expected tag to survive item deletion, got %d tags", tags)
	}
}

func TestDeleteTagCascades(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	itemID, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	tagID, _ := database.InsertTag(ctx, "winter", vec(1))
	if _, err := database.InsertAssignment(ctx, itemID, tagID); err != nil {
		t.Fatalf("InsertAssignment failed: %v", err)
	}

	if err := database.DeleteTag(ctx, tagID); err != nil {
		t.Fatalf("DeleteTag failed: %v", err)
	}

	items, tags, assignments, err := database.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if tags != 0 || assignments != 0 {
		t.Errorf("Expected cascade delete, got %d tags %d assignments", tags, assignments)
	}
	if items != 1 {
		t.Errorf("Expected item to survive tag deletion, got %d items", items)
	}
}

func TestFilterItemsIntersection(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	a, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	b, _ := database.InsertItem(ctx, "/p/b.jpg", 200, vec(1))
	c, _ := database.InsertItem(ctx, "/p/c.jpg", 300, vec(1))

	winter, _ := database.InsertTag(ctx, "winter", vec(1))
	dog, _ := database.InsertTag(ctx, "dog", vec(1))

	// a: winter+dog, b: winter, c: untagged
	database.InsertAssignment(ctx, a, winter)
	database.InsertAssignment(ctx, a, dog)
	database.InsertAssignment(ctx, b, winter)

	both, err := database.FilterItems(ctx, []int64{winter, dog})
	if err != nil {
		t.Fatalf("FilterItems failed: %v", err)
	}
	if len(both) != 1 || both[0].ID != a {
		t.Errorf("Expected only item %d, got %+v", a, both)
	}

	winterOnly, err := database.FilterItems(ctx, []int64{winter})
	if err != nil {
		t.Fatalf("FilterItems failed: %v", err)
	}
	if len(winterOnly) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(winterOnly))
	}
	// Newest first.
	if winterOnly[0].ID != b || winterOnly[1].ID != a {
		t.Errorf("Unexpected order: %+v", winterOnly)
	}

	all, err := database.FilterItems(ctx, nil)
	if err != nil {
		t.Fatalf("FilterItems failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected empty tag list to return all 3 items, got %d", len(all))
	}
	_ = c
}

func TestItemsFrom(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	var ids []int64
	for i, ts := range []float64{100, 200, 300, 400, 500} {
		id, err := database.InsertItem(ctx, "/p/"+string(rune('a'+i))+".jpg", ts, vec(1))
		if err != nil {
			t.Fatalf("InsertItem failed: %v", err)
		}
		ids = append(ids, id)
	}

	// At-or-before 300 descending: 300, 200.
	before, err := database.ItemsFrom(ctx, 300, nil, 2, false)
	if err != nil {
		t.Fatalf("ItemsFrom failed: %v", err)
	}
	if len(before) != 2 || before[0].ID != ids[2] || before[1].ID != ids[1] {
		t.Errorf("Unexpected before window: %+v", before)
	}

	// At-or-after 300 ascending: 300, 400.
	after, err := database.ItemsFrom(ctx, 300, nil, 2, true)
	if err != nil {
		t.Fatalf("ItemsFrom failed: %v", err)
	}
	if len(after) != 2 || after[0].ID != ids[2] || after[1].ID != ids[3] {
		t.Errorf("Unexpected after window: %+v", after)
	}
}

func TestClosestItem(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	if _, err := database.ClosestItem(ctx, 100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty catalog, got %v", err)
	}

	a, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	b, _ := database.InsertItem(ctx, "/p/b.jpg", 200, vec(1))

	closest, err := database.ClosestItem(ctx, 190)
	if err != nil {
		t.Fatalf("ClosestItem failed: %v", err)
	}
	if closest.ID != b {
		t.Errorf("Expected item %d, got %d", b, closest.ID)
	}

	// Equidistant: lowest id wins.
	closest, err = database.ClosestItem(ctx, 150)
	if err != nil {
		t.Fatalf("ClosestItem failed: %v", err)
	}
	if closest.ID != a {
		t.Errorf("Expected tie-break on lowest id %d, got %d", a, closest.ID)
	}
}

func TestReset(t *testing.T) {
	database := openTestDB(t)
	ctx := t.Context()

	itemID, _ := database.InsertItem(ctx, "/p/a.jpg", 100, vec(1))
	tagID, _ := database.InsertTag(ctx, "winter", vec(1))
	database.InsertAssignment(ctx, itemID, tagID)

	if err := database.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	items, tags, assignments, err := database.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if items != 0 || tags != 0 || assignments != 0 {
		t.Errorf("Expected empty database after reset, got %d/%d/%d", items, tags, assignments)
	}
	if !database.Fresh() {
		t.Error("Expected database to be fresh after reset")
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	original := []float32{0.0, -1.5, 3.25, 1e-7}
	decoded, err := decodeVector(encodeVector(original))
	if err != nil {
		t.Fatalf("decodeVector failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Expected %d values, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("Value %d: expected %f, got %f", i, original[i], decoded[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated blob, got nil")
	}
}
