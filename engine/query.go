package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/jacentio/weft/store"
)

// Sort selects the total order applied to query results.
type Sort int

const (
	// SortIndexOrder orders by descending sort index (the default).
	SortIndexOrder Sort = iota
	// SortNewest orders by descending modified time.
	SortNewest
	// SortOldest orders by ascending modified time.
	SortOldest
)

// DefaultLimit caps result sequences when the query doesn't say otherwise.
const DefaultLimit = 1000

// intersectBatch bounds how many keys one intersection step handles.
const intersectBatch = 500

// Query is a conjunction of optional predicates plus ordering and
// pagination. Zero values mean "predicate absent". Range bounds are
// exclusive on both sides.
type Query struct {
	// ID short-circuits to a single lookup, ignoring everything else.
	ID string

	// IDs short-circuits to a membership fetch, ignoring all other
	// predicates. A non-nil empty set selects nothing; only a nil slice
	// means the predicate is absent.
	IDs []string

	ParentID      *string
	PredecessorID *string

	IndexAbove *int64
	IndexBelow *int64

	NewerThan *float64
	OlderThan *float64

	Sort   Sort
	Limit  int // 0 = DefaultLimit, negative = unlimited
	Offset int
}

// Find returns the records matching the query, ordered and paginated.
func (r *Records) Find(ctx context.Context, col Collection, q Query) ([]*Record, error) {
	docs, err := r.candidates(ctx, col, q)
	if err != nil {
		return nil, err
	}
	docs = orderDocs(docs, q.Sort)
	docs = paginate(docs, q.Limit, q.Offset)

	records := make([]*Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, recordFromDoc(doc))
	}
	return records, nil
}

// FindIDs is Find projected down to record ids.
func (r *Records) FindIDs(ctx context.Context, col Collection, q Query) ([]string, error) {
	docs, err := r.candidates(ctx, col, q)
	if err != nil {
		return nil, err
	}
	docs = orderDocs(docs, q.Sort)
	docs = paginate(docs, q.Limit, q.Offset)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, store.DocID(doc))
	}
	return ids, nil
}

// Count returns the size of the full candidate set, ignoring pagination.
func (r *Records) Count(ctx context.Context, col Collection, q Query) (int, error) {
	docs, err := r.candidates(ctx, col, q)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// candidates computes the unordered, unpaginated set of records satisfying
// the query's predicates.
//
// Single-id and id-set predicates short-circuit to direct lookups. Otherwise
// each predicate group the substrate can answer as one scan (parent
// equality, predecessor equality, sort-index range, modified range) is
// evaluated independently, and multiple active groups are ANDed by key-set
// intersection, since the substrate has no compound multi-field query.
func (r *Records) candidates(ctx context.Context, col Collection, q Query) ([]store.Doc, error) {
	if q.ID != "" {
		doc, err := r.sub.GetRecord(ctx, col.scope(), q.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []store.Doc{doc}, nil
	}

	if q.IDs != nil {
		return r.fetchIDs(ctx, col, q.IDs)
	}

	groups, err := r.scanGroups(ctx, col, q)
	if err != nil {
		return nil, err
	}

	switch len(groups) {
	case 0:
		return r.sub.ScanCollection(ctx, col.scope(), 0)
	case 1:
		return groups[0], nil
	default:
		return intersect(groups), nil
	}
}

// fetchIDs resolves an id-set membership predicate; absent ids simply
// don't contribute.
func (r *Records) fetchIDs(ctx context.Context, col Collection, ids []string) ([]store.Doc, error) {
	var docs []store.Doc
	for _, id := range ids {
		doc, err := r.sub.GetRecord(ctx, col.scope(), id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// scanGroups runs one substrate scan per active predicate group.
func (r *Records) scanGroups(ctx context.Context, col Collection, q Query) ([][]store.Doc, error) {
	var groups [][]store.Doc

	if q.ParentID != nil {
		docs, err := r.sub.ScanEqual(ctx, col.scope(), store.FieldParent, *q.ParentID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, docs)
	}

	if q.PredecessorID != nil {
		docs, err := r.sub.ScanEqual(ctx, col.scope(), store.FieldPredecessor, *q.PredecessorID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, docs)
	}

	if q.IndexAbove != nil || q.IndexBelow != nil {
		lower, upper := intBound(q.IndexAbove), intBound(q.IndexBelow)
		docs, err := r.sub.ScanRange(ctx, col.scope(), store.FieldSortIndex, lower, upper, true)
		if err != nil {
			return nil, err
		}
		groups = append(groups, docs)
	}

	if q.NewerThan != nil || q.OlderThan != nil {
		docs, err := r.sub.ScanRange(ctx, col.scope(), store.FieldModified, q.NewerThan, q.OlderThan, false)
		if err != nil {
			return nil, err
		}
		groups = append(groups, docs)
	}

	return groups, nil
}

// intersect ANDs the groups' key sets: a record survives only if every
// group produced it. Keys are tallied in bounded batches so no single step
// walks an unbounded list; the first group's docs (in their scan order)
// carry the surviving records.
func intersect(groups [][]store.Doc) []store.Doc {
	seen := make(map[string]int)
	for gi, group := range groups {
		for start := 0; start < len(group); start += intersectBatch {
			end := start + intersectBatch
			if end > len(group) {
				end = len(group)
			}
			for _, doc := range group[start:end] {
				id := store.DocID(doc)
				// Count only ids present in every prior group,
				// so duplicates can't inflate the tally.
				if seen[id] == gi {
					seen[id]++
				}
			}
		}
	}

	var out []store.Doc
	for _, doc := range groups[0] {
		if seen[store.DocID(doc)] == len(groups) {
			out = append(out, doc)
		}
	}
	return out
}

// orderDocs applies the requested total order. The sort is stable, so ties
// keep the underlying storage order within one evaluation.
func orderDocs(docs []store.Doc, s Sort) []store.Doc {
	switch s {
	case SortOldest:
		sort.SliceStable(docs, func(i, j int) bool {
			return store.DocFloat(docs[i], store.FieldModified) < store.DocFloat(docs[j], store.FieldModified)
		})
	case SortNewest:
		sort.SliceStable(docs, func(i, j int) bool {
			return store.DocFloat(docs[i], store.FieldModified) > store.DocFloat(docs[j], store.FieldModified)
		})
	default:
		sort.SliceStable(docs, func(i, j int) bool {
			return store.DocFloat(docs[i], store.FieldSortIndex) > store.DocFloat(docs[j], store.FieldSortIndex)
		})
	}
	return docs
}

// paginate applies offset then limit.
func paginate(docs []store.Doc, limit, offset int) []store.Doc {
	if offset > 0 {
		if offset >= len(docs) {
			return nil
		}
		docs = docs[offset:]
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

func intBound(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
