// Package resume computes the work set for a pass from the full
// candidate set, the identifiers already completed by prior runs, and
// an optional explicit retry allow-list.
package resume

import "github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"

// Plan returns the items still needing export. With an allow-list the
// base set is (allowlist ∩ candidates), otherwise all candidates; items
// in completed are then removed. Pure function of its inputs; candidate
// order is preserved in the output.
func Plan(candidates []*domain.WorkItem, completed map[string]struct{}, allowlist []string) []*domain.WorkItem {
	var allowed map[string]struct{}
	if allowlist != nil {
		allowed = make(map[string]struct{}, len(allowlist))
		for _, id := range allowlist {
			allowed[id] = struct{}{}
		}
	}

	out := make([]*domain.WorkItem, 0, len(candidates))
	for _, item := range candidates {
		if allowed != nil {
			if _, ok := allowed[item.ID]; !ok {
				continue
			}
		}
		if _, done := completed[item.ID]; done {
			continue
		}
		out = append(out, item)
	}
	return out
}
