package engine

import (
	"context"
	"errors"
)

// BatchResult partitions a bulk write's candidates into persisted ids and
// per-id violation lists. Modified is the stamp of the last candidate
// persisted, zero when none were.
type BatchResult struct {
	Modified float64             `json:"modified"`
	Success  []string            `json:"success"`
	Failed   map[string][]string `json:"failed"`
}

// ApplyBatch applies candidate records in input order without aborting on
// individual failure. Candidates lacking an id are skipped outright and
// appear in neither list; that leniency is long-standing client-visible
// behavior. Validation failures land in Failed keyed by id; passing
// candidates are persisted one by one. Only a substrate failure aborts the
// whole batch.
func (r *Records) ApplyBatch(ctx context.Context, col Collection, candidates []map[string]any) (*BatchResult, error) {
	result := &BatchResult{
		Success: []string{},
		Failed:  make(map[string][]string),
	}

	for _, fields := range candidates {
		id, ok := fields["id"].(string)
		if !ok {
			continue
		}

		rec, err := r.Put(ctx, col, fields)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				result.Failed[id] = verr.Violations
				continue
			}
			return nil, err
		}

		result.Success = append(result.Success, rec.ID)
		result.Modified = rec.Modified
	}

	r.config.Logger.Debug("applied record batch",
		"account", col.Account,
		"collection", col.Name,
		"success", len(result.Success),
		"failed", len(result.Failed),
	)
	return result, nil
}
