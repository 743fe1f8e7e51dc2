package engine

import (
	"context"

	"github.com/jacentio/weft/store"
)

// Collections owns the existence of named collections per account: lazy
// materialization of ad-hoc collections, cascading deletion, and the
// per-collection timestamp/count listings.
type Collections struct {
	sub     store.Substrate
	records *Records
}

// NewCollections creates a collection store sharing the record store's
// substrate and configuration.
func NewCollections(sub store.Substrate, records *Records) *Collections {
	return &Collections{sub: sub, records: records}
}

// ResolveOrCreate returns a handle on (account, name), materializing the
// collection entity if it is ad-hoc and doesn't exist yet. Builtin names
// return a virtual handle with no persisted entity. Idempotent: concurrent
// callers racing on the same name converge on a single entity because the
// substrate keys it deterministically from account and name.
func (c *Collections) ResolveOrCreate(ctx context.Context, account, name string) (Collection, error) {
	col := Collection{Account: account, Name: name}
	if col.Builtin() {
		return col, nil
	}
	if err := c.sub.EnsureCollection(ctx, account, name); err != nil {
		return Collection{}, err
	}
	return col, nil
}

// Delete removes every record owned by the collection in bounded batches,
// then the collection entity itself. Deleting a builtin collection only
// wipes its records; there is no entity to remove.
func (c *Collections) Delete(ctx context.Context, col Collection) error {
	if err := c.records.DeleteAll(ctx, col); err != nil {
		return err
	}
	if col.Builtin() {
		return nil
	}
	return c.sub.DeleteCollectionEntity(ctx, col.Account, col.Name)
}

// Wipe removes every collection owned by the account, each cascading to its
// records, leaving the account entity itself in place.
func (c *Collections) Wipe(ctx context.Context, account string) error {
	names, err := c.names(ctx, account)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := c.Delete(ctx, Collection{Account: account, Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAccountCascade removes every collection owned by the account (each
// cascading to its records) and finally the account entity. Record deletion
// proceeds in bounded batches per collection, so collections of unbounded
// size never force an unbounded single operation; a concurrent reader may
// observe transient undercounts while this runs.
func (c *Collections) DeleteAccountCascade(ctx context.Context, account string) error {
	if err := c.Wipe(ctx, account); err != nil {
		return err
	}
	return c.sub.DeleteAccount(ctx, account)
}

// Timestamps returns, for every builtin name plus every ad-hoc collection
// of the account, the most recent record modification time, or 0 for an
// empty collection.
func (c *Collections) Timestamps(ctx context.Context, account string) (map[string]float64, error) {
	names, err := c.names(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(names))
	for _, name := range names {
		scope := store.Scope{Account: account, Collection: name}
		docs, err := c.sub.ScanRange(ctx, scope, store.FieldModified, nil, nil, true)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			out[name] = store.DocFloat(docs[0], store.FieldModified)
		} else {
			out[name] = 0
		}
	}
	return out, nil
}

// Counts returns record counts for the same enumeration Timestamps uses.
func (c *Collections) Counts(ctx context.Context, account string) (map[string]int, error) {
	names, err := c.names(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		scope := store.Scope{Account: account, Collection: name}
		docs, err := c.sub.ScanCollection(ctx, scope, 0)
		if err != nil {
			return nil, err
		}
		out[name] = len(docs)
	}
	return out, nil
}

// Usage returns the account's total stored payload bytes across all
// collections.
func (c *Collections) Usage(ctx context.Context, account string) (int64, error) {
	names, err := c.names(ctx, account)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		scope := store.Scope{Account: account, Collection: name}
		docs, err := c.sub.ScanCollection(ctx, scope, 0)
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			total += int64(store.DocFloat(doc, store.FieldPayloadSize))
		}
	}
	return total, nil
}

// names enumerates builtin names plus the account's persisted ad-hoc
// collections, deduplicated.
func (c *Collections) names(ctx context.Context, account string) ([]string, error) {
	adhoc, err := c.sub.ListCollections(ctx, account)
	if err != nil {
		return nil, err
	}
	names := BuiltinCollections()
	for _, name := range adhoc {
		if !IsBuiltin(name) {
			names = append(names, name)
		}
	}
	return names, nil
}
