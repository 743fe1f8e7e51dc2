package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

func TestRecords_PutGetRoundTrip(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "bookmarks")
	ctx := context.Background()

	rec := f.put(t, col, map[string]any{
		"id":        "rec-1",
		"sortindex": float64(5),
		"payload":   `{"title":"one"}`,
	})
	if rec.Modified == 0 {
		t.Error("expected a modified stamp")
	}
	if rec.PayloadSize != int64(len(`{"title":"one"}`)) {
		t.Errorf("expected payload size %d, got %d", len(`{"title":"one"}`), rec.PayloadSize)
	}

	got, err := f.records.Get(ctx, col, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload != `{"title":"one"}` {
		t.Errorf("expected payload round trip, got %q", got.Payload)
	}
	if got.SortIndex != 5 {
		t.Errorf("expected sortindex 5, got %d", got.SortIndex)
	}
}

func TestRecords_PutReplacesWholesale(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "bookmarks")
	ctx := context.Background()

	f.put(t, col, map[string]any{
		"id":        "rec-1",
		"sortindex": float64(5),
		"payload":   `{"v":1}`,
	})
	f.put(t, col, map[string]any{
		"id":      "rec-1",
		"payload": `{"v":2}`,
	})

	got, err := f.records.Get(ctx, col, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload != `{"v":2}` {
		t.Errorf("expected replaced payload, got %q", got.Payload)
	}
	// No partial-field patching: the old sortindex must not survive.
	if got.SortIndex != 0 {
		t.Errorf("expected default sortindex after replace, got %d", got.SortIndex)
	}
}

func TestRecords_PutRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "bookmarks")

	_, err := f.records.Put(context.Background(), col, map[string]any{
		"id":      "rec/1",
		"payload": `{}`,
	})

	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !containsViolation(verr.Violations, engine.ViolationID) {
		t.Errorf("expected %q in %v", engine.ViolationID, verr.Violations)
	}
}

func TestRecords_ServerAssignsModified(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "bookmarks")

	rec := f.put(t, col, map[string]any{
		"id":       "rec-1",
		"modified": 1.0, // client-supplied, must be discarded
		"payload":  `{}`,
	})
	if rec.Modified == 1.0 {
		t.Error("client-supplied modified stamp was honored")
	}
}

func TestRecords_PutMaterializesAdHocCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, f.col("acct", "custom"), map[string]any{
		"id":      "rec-1",
		"payload": `{}`,
	})

	names, err := f.sub.ListCollections(ctx, "acct")
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	if len(names) != 1 || names[0] != "custom" {
		t.Errorf("expected [custom], got %v", names)
	}

	counts, err := f.cols.Counts(ctx, "acct")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["custom"] != 1 {
		t.Errorf("expected custom count 1, got %d", counts["custom"])
	}
}

func TestRecords_BuiltinCollectionNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.put(t, f.col("acct", "bookmarks"), map[string]any{
		"id":      "rec-1",
		"payload": `{}`,
	})

	names, err := f.sub.ListCollections(ctx, "acct")
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no persisted entities for builtin names, got %v", names)
	}
}

func TestRecords_DeleteNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.records.Delete(context.Background(), f.col("acct", "bookmarks"), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecords_DeleteAllBoundedBatches(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "history")
	ctx := context.Background()

	// More records than one batch delete is allowed to cover.
	n := store.MaxBatchKeys + 137
	for i := 0; i < n; i++ {
		f.put(t, col, map[string]any{
			"id":      fmt.Sprintf("rec-%04d", i),
			"payload": `{}`,
		})
	}

	if err := f.records.DeleteAll(ctx, col); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	count, err := f.records.Count(ctx, col, engine.Query{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty collection, got %d records", count)
	}
}

// End-to-end single record lifecycle: write, read back, delete, read again.
func TestRecords_Lifecycle(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "foo")
	ctx := context.Background()

	rec := f.put(t, col, map[string]any{
		"id":        "abcd-1",
		"sortindex": float64(1),
		"payload":   `{"ok":true}`,
	})
	t1 := rec.Modified
	if t1 > f.clock.now {
		t.Errorf("write stamp %v is in the future", t1)
	}

	got, err := f.records.Get(ctx, col, "abcd-1")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got.Payload != `{"ok":true}` {
		t.Errorf("expected payload round trip, got %q", got.Payload)
	}

	t2, err := f.records.Delete(ctx, col, "abcd-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if t2 < t1 {
		t.Errorf("delete stamp %v earlier than write stamp %v", t2, t1)
	}

	_, err = f.records.Get(ctx, col, "abcd-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRecords_DanglingReferencesTolerated(t *testing.T) {
	f := newFixture(t)
	col := f.col("acct", "bookmarks")
	ctx := context.Background()

	f.put(t, col, map[string]any{"id": "parent", "payload": `{}`})
	f.put(t, col, map[string]any{"id": "child", "parentid": "parent", "payload": `{}`})

	if _, err := f.records.Delete(ctx, col, "parent"); err != nil {
		t.Fatalf("delete parent: %v", err)
	}

	// The child survives with a dangling parentid; references are checked
	// at write time only.
	got, err := f.records.Get(ctx, col, "child")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.ParentID != "parent" {
		t.Errorf("expected dangling parentid preserved, got %q", got.ParentID)
	}
}
