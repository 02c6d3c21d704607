package briefing

import "github.com/podsmith/backend/internal/models"

// Assemble merges settings and grouped articles into a briefing and derives
// the per-bucket counts. An article filed under several keywords is counted
// in each of those buckets.
func Assemble(id string, settings models.Settings, groups models.Groups) *models.Briefing {
	if groups == nil {
		groups = models.Groups{}
	}
	return &models.Briefing{
		ID:          id,
		Settings:    settings,
		Articles:    groups,
		GroupCounts: Count(groups),
	}
}

// Count replaces every bucket with its size, keeping order.
func Count(groups models.Groups) models.Counts {
	out := make(models.Counts, 0, len(groups))
	for _, g := range groups {
		cc := models.CategoryCount{Category: g.Category, Buckets: make([]models.BucketCount, 0, len(g.Buckets))}
		for _, b := range g.Buckets {
			cc.Buckets = append(cc.Buckets, models.BucketCount{Keyword: b.Keyword, Count: len(b.Articles)})
		}
		out = append(out, cc)
	}
	return out
}
