package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jacentio/weft/store"
)

// Config holds knobs shared by the engine components.
type Config struct {
	// Clock stamps record modifications. Default: SystemClock.
	Clock Clock

	// MaxPayloadBytes bounds record payloads. Default: DefaultMaxPayloadBytes.
	MaxPayloadBytes int

	// Logger receives structured progress logs. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) validate() {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Records owns individual records within collections: wholesale writes,
// point reads and deletes, and bounded-batch collection wipes. Retrieval
// with predicates lives in query.go, bulk writes in batch.go.
type Records struct {
	sub    store.Substrate
	config Config
}

// NewRecords creates a record store over the substrate.
func NewRecords(sub store.Substrate, config Config) *Records {
	config.validate()
	return &Records{sub: sub, config: config}
}

// Clock returns the engine clock, for callers that stamp responses.
func (r *Records) Clock() Clock {
	return r.config.Clock
}

// Get returns a record by id, or store.ErrNotFound.
func (r *Records) Get(ctx context.Context, col Collection, id string) (*Record, error) {
	doc, err := r.sub.GetRecord(ctx, col.scope(), id)
	if err != nil {
		return nil, err
	}
	return recordFromDoc(doc), nil
}

// Exists reports whether a record id is currently present in the collection.
func (r *Records) Exists(ctx context.Context, col Collection, id string) (bool, error) {
	_, err := r.sub.GetRecord(ctx, col.scope(), id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put creates or replaces a record wholesale from a candidate field map.
// The server assigns the modified stamp; any client-supplied value is
// discarded. A validation failure rejects the whole write with
// *ValidationError. Writing the first record into an ad-hoc collection
// materializes the collection entity so it shows up in listings
// immediately.
func (r *Records) Put(ctx context.Context, col Collection, fields map[string]any) (*Record, error) {
	fields["collection"] = col.Name
	fields["modified"] = r.config.Clock.Now()

	violations, err := Validate(ctx, fields, r.config.MaxPayloadBytes, func(ctx context.Context, id string) (bool, error) {
		return r.Exists(ctx, col, id)
	})
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	rec := &Record{
		ID:       fields["id"].(string),
		Modified: fields["modified"].(float64),
	}
	if v, ok := fields["parentid"].(string); ok {
		rec.ParentID = v
	}
	if v, ok := fields["predecessorid"].(string); ok {
		rec.PredecessorID = v
	}
	if v, ok := fields["sortindex"]; ok {
		rec.SortIndex = numToInt64(v)
	}
	if v, ok := fields["payload"].(string); ok {
		rec.Payload = v
		rec.PayloadSize = int64(len(v))
	}

	if !col.Builtin() {
		if err := r.sub.EnsureCollection(ctx, col.Account, col.Name); err != nil {
			return nil, err
		}
	}

	if err := r.sub.PutRecord(ctx, col.scope(), rec.ID, rec.doc()); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record, returning the deletion stamp. store.ErrNotFound
// if the record is absent.
func (r *Records) Delete(ctx context.Context, col Collection, id string) (float64, error) {
	if err := r.sub.DeleteRecord(ctx, col.scope(), id); err != nil {
		return 0, err
	}
	return r.config.Clock.Now(), nil
}

// DeleteAll removes every record in the collection, in bounded-size batches
// so no single substrate call handles an unbounded key list. A concurrent
// reader may observe a partially emptied collection while this runs.
func (r *Records) DeleteAll(ctx context.Context, col Collection) error {
	for {
		docs, err := r.sub.ScanCollection(ctx, col.scope(), store.MaxBatchKeys)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		ids := make([]string, 0, len(docs))
		for _, doc := range docs {
			ids = append(ids, store.DocID(doc))
		}
		if err := r.sub.DeleteRecordBatch(ctx, col.scope(), ids); err != nil {
			return err
		}
		r.config.Logger.Debug("deleted record batch",
			"account", col.Account,
			"collection", col.Name,
			"count", len(ids),
		)
	}
}
