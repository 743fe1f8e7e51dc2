package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

func (h *Handler) infoCollections(w http.ResponseWriter, r *http.Request, account *store.Account) {
	stamps, err := h.cols.Timestamps(r.Context(), account.Name)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, h.records.Clock().Now())
	writeJSON(w, http.StatusOK, stamps)
}

func (h *Handler) infoCollectionCounts(w http.ResponseWriter, r *http.Request, account *store.Account) {
	counts, err := h.cols.Counts(r.Context(), account.Name)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, h.records.Clock().Now())
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) infoQuota(w http.ResponseWriter, r *http.Request, account *store.Account) {
	usage, err := h.cols.Usage(r.Context(), account.Name)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, h.records.Clock().Now())
	// [usage KB, quota KB]; quota enforcement isn't implemented, so null.
	writeJSON(w, http.StatusOK, []any{float64(usage) / 1024, nil})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request, account *store.Account) {
	col := engine.Collection{Account: account.Name, Name: r.PathValue("collection")}
	rec, err := h.records.Get(r.Context(), col, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, rec.Modified)
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) putItem(w http.ResponseWriter, r *http.Request, account *store.Account) {
	var fields map[string]any
	if !readJSON(w, r, &fields) {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	// The URL names the record; a conflicting body id loses.
	fields["id"] = r.PathValue("id")

	col, err := h.cols.ResolveOrCreate(r.Context(), account.Name, r.PathValue("collection"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	rec, err := h.records.Put(r.Context(), col, fields)
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, verr.Violations)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, rec.Modified)
	writeJSON(w, http.StatusOK, rec.Modified)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request, account *store.Account) {
	col := engine.Collection{Account: account.Name, Name: r.PathValue("collection")}
	ts, err := h.records.Delete(r.Context(), col, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, ts)
	writeJSON(w, http.StatusOK, ts)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request, account *store.Account) {
	col := engine.Collection{Account: account.Name, Name: r.PathValue("collection")}
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	weaveTimestamp(w, h.records.Clock().Now())
	if r.URL.Query().Get("full") != "" {
		records, err := h.records.Find(r.Context(), col, q)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		if records == nil {
			records = []*engine.Record{}
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	ids, err := h.records.FindIDs(r.Context(), col, q)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) postCollection(w http.ResponseWriter, r *http.Request, account *store.Account) {
	var candidates []map[string]any
	if !readJSON(w, r, &candidates) {
		return
	}

	col, err := h.cols.ResolveOrCreate(r.Context(), account.Name, r.PathValue("collection"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	result, err := h.records.ApplyBatch(r.Context(), col, candidates)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	weaveTimestamp(w, h.records.Clock().Now())
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request, account *store.Account) {
	col := engine.Collection{Account: account.Name, Name: r.PathValue("collection")}

	// ?ids=a,b,c deletes just those records, leaving the collection.
	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids, err := h.records.FindIDs(r.Context(), col, engine.Query{IDs: splitIDs(raw), Limit: -1})
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		for _, id := range ids {
			if _, err := h.records.Delete(r.Context(), col, id); err != nil &&
				!errors.Is(err, store.ErrNotFound) {
				h.internalError(w, r, err)
				return
			}
		}
	} else if err := h.cols.Delete(r.Context(), col); err != nil {
		h.internalError(w, r, err)
		return
	}

	ts := h.records.Clock().Now()
	weaveTimestamp(w, ts)
	writeJSON(w, http.StatusOK, ts)
}

func (h *Handler) deleteStorage(w http.ResponseWriter, r *http.Request, account *store.Account) {
	if err := h.cols.Wipe(r.Context(), account.Name); err != nil {
		h.internalError(w, r, err)
		return
	}
	ts := h.records.Clock().Now()
	weaveTimestamp(w, ts)
	writeJSON(w, http.StatusOK, ts)
}

// queryFromRequest maps Weave query parameters onto engine predicates.
func queryFromRequest(r *http.Request) (engine.Query, error) {
	var q engine.Query
	values := r.URL.Query()

	if raw := values.Get("ids"); raw != "" {
		q.IDs = splitIDs(raw)
	}
	if raw := values.Get("parentid"); raw != "" {
		q.ParentID = &raw
	}
	if raw := values.Get("predecessorid"); raw != "" {
		q.PredecessorID = &raw
	}

	var err error
	if q.IndexAbove, err = intParam(values.Get("index_above")); err != nil {
		return q, err
	}
	if q.IndexBelow, err = intParam(values.Get("index_below")); err != nil {
		return q, err
	}
	if q.NewerThan, err = floatParam(values.Get("newer")); err != nil {
		return q, err
	}
	if q.OlderThan, err = floatParam(values.Get("older")); err != nil {
		return q, err
	}

	switch values.Get("sort") {
	case "oldest":
		q.Sort = engine.SortOldest
	case "newest":
		q.Sort = engine.SortNewest
	case "", "index":
		q.Sort = engine.SortIndexOrder
	default:
		return q, errors.New("invalid sort parameter")
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errors.New("invalid limit parameter")
		}
		q.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errors.New("invalid offset parameter")
		}
		q.Offset = n
	}

	return q, nil
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func intParam(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid integer parameter")
	}
	return &n, nil
}

func floatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New("invalid timestamp parameter")
	}
	return &f, nil
}
