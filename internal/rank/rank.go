// Path: internal/rank/rank.go
package rank

import (
	"fmt"
	"sort"

	"top-loras/internal/domain"
)

// groupKey is the deduplication key: the canonical id, else a title, else a
// position-based key that is only meaningful within one run.
func groupKey(r domain.ModelRecord, idx int) string {
	switch {
	case r.ID != "":
		return r.ID
	case r.TitleEN != "":
		return r.TitleEN
	case r.TitleCN != "":
		return r.TitleCN
	}
	return fmt.Sprintf("unknown-%d", idx)
}

// DedupeAndRank collapses records sharing a key, keeping the one with strictly
// more downloads (ties keep the first seen), then returns at most limit
// records ordered by downloads, highest first. Equal download counts keep
// their encounter order.
func DedupeAndRank(records []domain.ModelRecord, limit int) []domain.ModelRecord {
	index := make(map[string]int, len(records))
	unique := make([]domain.ModelRecord, 0, len(records))

	for i, r := range records {
		key := groupKey(r, i)
		pos, seen := index[key]
		if !seen {
			index[key] = len(unique)
			unique = append(unique, r)
			continue
		}
		if r.Downloads > unique[pos].Downloads {
			unique[pos] = r
		}
	}

	sort.SliceStable(unique, func(a, b int) bool {
		return unique[a].Downloads > unique[b].Downloads
	})

	if limit >= 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
