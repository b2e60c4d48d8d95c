package rank

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"top-loras/internal/domain"
)

var reflectRecord = reflect.TypeOf(domain.ModelRecord{})

func ids(records []domain.ModelRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestDedupeKeepsHigherDownloads(t *testing.T) {
	got := DedupeAndRank([]domain.ModelRecord{
		{ID: "org/a", Downloads: 10, TitleEN: "low"},
		{ID: "org/a", Downloads: 50, TitleEN: "high"},
	}, 10)

	assert.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].Downloads)
	assert.Equal(t, "high", got[0].TitleEN)
}

func TestDedupeTieKeepsFirstSeen(t *testing.T) {
	got := DedupeAndRank([]domain.ModelRecord{
		{ID: "org/a", Downloads: 10, TitleEN: "first"},
		{ID: "org/a", Downloads: 10, TitleEN: "second"},
	}, 10)

	assert.Len(t, got, 1)
	assert.Equal(t, "first", got[0].TitleEN)
}

func TestRankOrdersAndLimits(t *testing.T) {
	got := DedupeAndRank([]domain.ModelRecord{
		{ID: "org/a", Downloads: 5},
		{ID: "org/b", Downloads: 30},
		{ID: "org/c", Downloads: 30},
		{ID: "org/d", Downloads: 100},
		{ID: "org/e", Downloads: 1},
	}, 3)

	assert.Equal(t, []string{"org/d", "org/b", "org/c"}, ids(got))
}

func TestDedupeFallbackKeys(t *testing.T) {
	got := DedupeAndRank([]domain.ModelRecord{
		{TitleEN: "same-title", Downloads: 1},
		{TitleEN: "same-title", Downloads: 2},
		{TitleCN: "中文", Downloads: 3},
		{Downloads: 4},
		{Downloads: 4},
	}, 10)

	// Untitled records without an id never collapse into each other.
	assert.Len(t, got, 4)
	assert.Equal(t, int64(4), got[0].Downloads)
	assert.Equal(t, int64(4), got[1].Downloads)
	assert.Equal(t, "中文", got[2].TitleCN)
	assert.Equal(t, int64(2), got[3].Downloads)
}

func TestRankEmptyAndZeroLimit(t *testing.T) {
	assert.Empty(t, DedupeAndRank(nil, 10))
	assert.Empty(t, DedupeAndRank([]domain.ModelRecord{{ID: "a"}}, 0))
}

func TestProperty_RankInvariants(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genRecords := gen.SliceOf(gen.Struct(reflectRecord, map[string]gopter.Gen{
		"ID":        gen.OneConstOf("org/a", "org/b", "org/c", "org/d", ""),
		"Downloads": gen.Int64Range(0, 1000),
	}))

	properties.Property("result is bounded, sorted and unique by id", prop.ForAll(
		func(records []domain.ModelRecord, limit int) bool {
			got := DedupeAndRank(records, limit)
			if len(got) > limit {
				return false
			}
			seen := map[string]bool{}
			for i, r := range got {
				if i > 0 && got[i-1].Downloads < r.Downloads {
					return false
				}
				if r.ID != "" {
					if seen[r.ID] {
						return false
					}
					seen[r.ID] = true
				}
			}
			return true
		},
		genRecords,
		gen.IntRange(0, 10),
	))

	properties.Property("each kept id carries the group maximum", prop.ForAll(
		func(records []domain.ModelRecord) bool {
			best := map[string]int64{}
			for _, r := range records {
				if r.ID != "" && r.Downloads > best[r.ID] {
					best[r.ID] = r.Downloads
				}
			}
			for _, r := range DedupeAndRank(records, len(records)) {
				if r.ID != "" && r.Downloads != best[r.ID] {
					return false
				}
			}
			return true
		},
		genRecords,
	))

	properties.TestingRun(t)
}
