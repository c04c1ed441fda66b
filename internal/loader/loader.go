// Package loader produces the query sets the dedup engine compares. The
// engine trusts its input, so every loader runs the same normalization:
// trimmed non-empty query text, non-negative volumes, and unique set ids.
package loader

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	apperrors "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/errors"
)

// Normalize returns cleaned copies of sets. Query text is trimmed and empty
// queries are dropped; a negative volume, an empty id or a repeated id is
// rejected with ErrInvalidInput. Duplicate query text within one set is kept
// as-is; the comparator uses its first occurrence.
func Normalize(sets []dedup.QuerySet) ([]dedup.QuerySet, error) {
	out := make([]dedup.QuerySet, 0, len(sets))
	ids := make(map[string]struct{}, len(sets))
	for i, s := range sets {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "query set %d has no id", i)
		}
		if _, dup := ids[id]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "query set id %q appears more than once", id)
		}
		ids[id] = struct{}{}

		clean := dedup.QuerySet{
			ID:          id,
			Name:        strings.TrimSpace(s.Name),
			ClusterName: strings.TrimSpace(s.ClusterName),
			Entries:     make([]dedup.QueryEntry, 0, len(s.Entries)),
		}
		if clean.Name == "" {
			clean.Name = id
		}
		for j, e := range s.Entries {
			if e.Count < 0 {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
					"query set %q entry %d: negative count %d", id, j, e.Count)
			}
			text := strings.TrimSpace(e.Text)
			if text == "" {
				continue
			}
			clean.Entries = append(clean.Entries, dedup.QueryEntry{Text: text, Count: e.Count})
		}
		out = append(out, clean)
	}
	return out, nil
}

// checkLimit rejects inputs with more sets than max. Zero disables the check.
func checkLimit(n, max int) error {
	if max > 0 && n > max {
		return fmt.Errorf("%d query sets exceeds the limit of %d: %w", n, max, apperrors.ErrInvalidInput)
	}
	return nil
}
