package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jacentio/weft/store"
)

// backends returns every substrate implementation the contract tests run
// against. Dynamo is covered by the e2e suite.
func backends(t *testing.T) map[string]store.Substrate {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "weft.db")
	sqlite, err := store.NewSQLite(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]store.Substrate{
		"memory": store.NewMemory(),
		"sqlite": sqlite,
	}
}

func testScope() store.Scope {
	return store.Scope{Account: "acct", Collection: "bookmarks"}
}

func testDoc(id string, sortIndex int64, modified float64) store.Doc {
	return store.Doc{
		store.FieldID:          id,
		store.FieldSortIndex:   float64(sortIndex),
		store.FieldModified:    modified,
		store.FieldPayload:     `{}`,
		store.FieldPayloadSize: float64(2),
	}
}

func TestSubstrate_RecordRoundTrip(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := testScope()

			if _, err := sub.GetRecord(ctx, scope, "missing"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			doc := testDoc("rec-1", 5, 1000.25)
			doc[store.FieldParent] = "folder-1"
			if err := sub.PutRecord(ctx, scope, "rec-1", doc); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := sub.GetRecord(ctx, scope, "rec-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if store.DocID(got) != "rec-1" {
				t.Errorf("expected id rec-1, got %v", got[store.FieldID])
			}
			if store.DocString(got, store.FieldParent) != "folder-1" {
				t.Errorf("expected parentid folder-1, got %v", got[store.FieldParent])
			}
			if store.DocFloat(got, store.FieldModified) != 1000.25 {
				t.Errorf("expected modified 1000.25, got %v", got[store.FieldModified])
			}

			// Puts replace wholesale.
			if err := sub.PutRecord(ctx, scope, "rec-1", testDoc("rec-1", 7, 1001)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err = sub.GetRecord(ctx, scope, "rec-1")
			if err != nil {
				t.Fatalf("get after overwrite: %v", err)
			}
			if store.DocString(got, store.FieldParent) != "" {
				t.Errorf("stale parentid survived overwrite: %v", got[store.FieldParent])
			}

			if err := sub.DeleteRecord(ctx, scope, "rec-1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := sub.DeleteRecord(ctx, scope, "rec-1"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound on double delete, got %v", err)
			}
		})
	}
}

func TestSubstrate_ScopeIsolation(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := store.Scope{Account: "acct", Collection: "bookmarks"}
			b := store.Scope{Account: "acct", Collection: "history"}
			c := store.Scope{Account: "other", Collection: "bookmarks"}

			for _, scope := range []store.Scope{a, b, c} {
				if err := sub.PutRecord(ctx, scope, "shared-id", testDoc("shared-id", 1, 1000)); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			if err := sub.DeleteRecord(ctx, a, "shared-id"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := sub.GetRecord(ctx, b, "shared-id"); err != nil {
				t.Errorf("sibling collection affected: %v", err)
			}
			if _, err := sub.GetRecord(ctx, c, "shared-id"); err != nil {
				t.Errorf("sibling account affected: %v", err)
			}
		})
	}
}

func TestSubstrate_DeleteRecordBatch(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := testScope()

			var ids []string
			for i := 0; i < 40; i++ {
				id := fmt.Sprintf("rec-%02d", i)
				ids = append(ids, id)
				if err := sub.PutRecord(ctx, scope, id, testDoc(id, 0, 1000)); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			// Missing ids in the batch are not an error.
			batch := append([]string{"ghost"}, ids[:30]...)
			if err := sub.DeleteRecordBatch(ctx, scope, batch); err != nil {
				t.Fatalf("batch delete: %v", err)
			}
			docs, err := sub.ScanCollection(ctx, scope, 0)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(docs) != 10 {
				t.Errorf("expected 10 survivors, got %d", len(docs))
			}

			oversized := make([]string, store.MaxBatchKeys+1)
			for i := range oversized {
				oversized[i] = fmt.Sprintf("x-%d", i)
			}
			if err := sub.DeleteRecordBatch(ctx, scope, oversized); !errors.Is(err, store.ErrBatchTooLarge) {
				t.Errorf("expected ErrBatchTooLarge, got %v", err)
			}
		})
	}
}

func TestSubstrate_ScanCollectionLimit(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := testScope()
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("rec-%02d", i)
				if err := sub.PutRecord(ctx, scope, id, testDoc(id, 0, 1000)); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			docs, err := sub.ScanCollection(ctx, scope, 10)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(docs) != 10 {
				t.Errorf("expected 10 docs, got %d", len(docs))
			}

			docs, err = sub.ScanCollection(ctx, scope, 0)
			if err != nil {
				t.Fatalf("scan all: %v", err)
			}
			if len(docs) != 25 {
				t.Errorf("expected 25 docs, got %d", len(docs))
			}
		})
	}
}

func TestSubstrate_ScanEqual(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := testScope()

			for i := 0; i < 10; i++ {
				id := fmt.Sprintf("rec-%d", i)
				doc := testDoc(id, 0, 1000)
				if i%2 == 0 {
					doc[store.FieldParent] = "folder-a"
				} else {
					doc[store.FieldParent] = "folder-b"
				}
				if err := sub.PutRecord(ctx, scope, id, doc); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			docs, err := sub.ScanEqual(ctx, scope, store.FieldParent, "folder-a")
			if err != nil {
				t.Fatalf("scan equal: %v", err)
			}
			if len(docs) != 5 {
				t.Errorf("expected 5 matches, got %d", len(docs))
			}
			for _, doc := range docs {
				if store.DocString(doc, store.FieldParent) != "folder-a" {
					t.Errorf("stray doc %v", doc[store.FieldID])
				}
			}

			if _, err := sub.ScanEqual(ctx, scope, store.FieldPayload, "x"); !errors.Is(err, store.ErrBadScanField) {
				t.Errorf("expected ErrBadScanField, got %v", err)
			}
		})
	}
}

func TestSubstrate_ScanRange(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scope := testScope()

			for i := 0; i < 10; i++ {
				id := fmt.Sprintf("rec-%d", i)
				if err := sub.PutRecord(ctx, scope, id, testDoc(id, int64(i), 1000+float64(i))); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			lo, hi := 2.0, 7.0
			docs, err := sub.ScanRange(ctx, scope, store.FieldSortIndex, &lo, &hi, false)
			if err != nil {
				t.Fatalf("scan range: %v", err)
			}
			// Bounds are exclusive on both ends: 3, 4, 5, 6.
			if len(docs) != 4 {
				t.Fatalf("expected 4 docs, got %d", len(docs))
			}
			for i, doc := range docs {
				want := float64(3 + i)
				if store.DocFloat(doc, store.FieldSortIndex) != want {
					t.Errorf("position %d: expected sortindex %v, got %v", i, want, doc[store.FieldSortIndex])
				}
			}

			docs, err = sub.ScanRange(ctx, scope, store.FieldModified, nil, nil, true)
			if err != nil {
				t.Fatalf("scan descending: %v", err)
			}
			if len(docs) != 10 {
				t.Fatalf("expected 10 docs, got %d", len(docs))
			}
			for i := 1; i < len(docs); i++ {
				if store.DocFloat(docs[i], store.FieldModified) > store.DocFloat(docs[i-1], store.FieldModified) {
					t.Errorf("descending order violated at %d", i)
				}
			}

			if _, err := sub.ScanRange(ctx, scope, store.FieldID, nil, nil, false); !errors.Is(err, store.ErrBadScanField) {
				t.Errorf("expected ErrBadScanField, got %v", err)
			}
		})
	}
}

func TestSubstrate_Collections(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				// Repeat calls are idempotent.
				if err := sub.EnsureCollection(ctx, "acct", "notes"); err != nil {
					t.Fatalf("ensure: %v", err)
				}
			}
			if err := sub.EnsureCollection(ctx, "acct", "quotes"); err != nil {
				t.Fatalf("ensure: %v", err)
			}
			if err := sub.EnsureCollection(ctx, "other", "notes"); err != nil {
				t.Fatalf("ensure: %v", err)
			}

			names, err := sub.ListCollections(ctx, "acct")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(names) != 2 {
				t.Errorf("expected 2 collections, got %v", names)
			}

			if err := sub.DeleteCollectionEntity(ctx, "acct", "notes"); err != nil {
				t.Fatalf("delete entity: %v", err)
			}
			names, _ = sub.ListCollections(ctx, "acct")
			if len(names) != 1 || names[0] != "quotes" {
				t.Errorf("expected [quotes], got %v", names)
			}

			names, _ = sub.ListCollections(ctx, "other")
			if len(names) != 1 {
				t.Errorf("other account's collections affected: %v", names)
			}
		})
	}
}

func TestSubstrate_Accounts(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := sub.GetAccount(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			acct := &store.Account{Name: "alice", UID: "uid-1", Password: "hash"}
			if err := sub.PutAccount(ctx, acct); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := sub.GetAccount(ctx, "alice")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.UID != "uid-1" || got.Password != "hash" {
				t.Errorf("unexpected account %+v", got)
			}

			if err := sub.DeleteAccount(ctx, "alice"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := sub.GetAccount(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestSubstrate_CreateAccountIsExclusive(t *testing.T) {
	for name, sub := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := &store.Account{Name: "bob", UID: "uid-first", Password: "hash-first"}
			if err := sub.CreateAccount(ctx, first); err != nil {
				t.Fatalf("create: %v", err)
			}

			second := &store.Account{Name: "bob", UID: "uid-second", Password: "hash-second"}
			if err := sub.CreateAccount(ctx, second); !errors.Is(err, store.ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}

			// The losing create must not clobber the original.
			got, err := sub.GetAccount(ctx, "bob")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.UID != "uid-first" || got.Password != "hash-first" {
				t.Errorf("account overwritten: %+v", got)
			}
		})
	}
}
