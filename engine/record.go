// Package engine implements the sync store core: record validation,
// collection and record storage, the filtered-retrieval query engine, and
// bulk mutation, all on top of the store.Substrate primitives.
package engine

import (
	"github.com/jacentio/weft/store"
)

// Record is a single versioned item within a collection.
type Record struct {
	ID            string  `json:"id"`
	ParentID      string  `json:"parentid,omitempty"`
	PredecessorID string  `json:"predecessorid,omitempty"`
	SortIndex     int64   `json:"sortindex"`
	Modified      float64 `json:"modified"`
	Payload       string  `json:"payload"`
	PayloadSize   int64   `json:"payload_size"`
}

// Collection is a handle on a named collection within an account. Builtin
// collections are virtual: they exist without a persisted entity.
type Collection struct {
	Account string
	Name    string
}

// Builtin reports whether the collection is one of the well-known names.
func (c Collection) Builtin() bool {
	return IsBuiltin(c.Name)
}

func (c Collection) scope() store.Scope {
	return store.Scope{Account: c.Account, Collection: c.Name}
}

func recordFromDoc(doc store.Doc) *Record {
	return &Record{
		ID:            store.DocID(doc),
		ParentID:      store.DocString(doc, store.FieldParent),
		PredecessorID: store.DocString(doc, store.FieldPredecessor),
		SortIndex:     int64(store.DocFloat(doc, store.FieldSortIndex)),
		Modified:      store.DocFloat(doc, store.FieldModified),
		Payload:       store.DocString(doc, store.FieldPayload),
		PayloadSize:   int64(store.DocFloat(doc, store.FieldPayloadSize)),
	}
}

// numToInt64 narrows any JSON-decoded numeric to int64. The validator has
// already rejected non-integral values by the time this runs.
func numToInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func (r *Record) doc() store.Doc {
	doc := store.Doc{
		store.FieldID:          r.ID,
		store.FieldSortIndex:   float64(r.SortIndex),
		store.FieldModified:    r.Modified,
		store.FieldPayload:     r.Payload,
		store.FieldPayloadSize: float64(r.PayloadSize),
	}
	if r.ParentID != "" {
		doc[store.FieldParent] = r.ParentID
	}
	if r.PredecessorID != "" {
		doc[store.FieldPredecessor] = r.PredecessorID
	}
	return doc
}
