// Package personalize ranks candidate titles against the genres of a user's
// favorites.
package personalize

import (
	"sort"

	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
)

// Affinity counts how often each genre id appears across favorites
type Affinity map[int]int

// AffinityFrom derives the genre affinity of a favorites list
func AffinityFrom(favorites []domain.MediaItem) Affinity {
	a := make(Affinity)
	for _, f := range favorites {
		for _, g := range f.Genres {
			a[g.ID]++
		}
	}
	return a
}

// Top returns up to k genre ids by descending count. Equal counts order by
// ascending id so the result is deterministic.
func (a Affinity) Top(k int) []int {
	if k <= 0 || len(a) == 0 {
		return nil
	}
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if a[ids[i]] != a[ids[j]] {
			return a[ids[i]] > a[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

// Scorer computes popularity*PopularityWeight + genreBonus*GenreWeight, where
// genreBonus is the share of the top affinity genres an item carries.
type Scorer struct {
	PopularityWeight float64
	GenreWeight      float64
	TopK             int // affinity genres considered
	Floor            int // fewer scorable candidates than this falls back to popularity order
}

// DefaultScorer returns the production weights
func DefaultScorer() Scorer {
	return Scorer{
		PopularityWeight: 1,
		GenreWeight:      100,
		TopK:             3,
		Floor:            10,
	}
}

// GenreBonus returns the fraction of top genres carried by item, in [0, 1]
func GenreBonus(item domain.MediaItem, top []int) float64 {
	if len(top) == 0 {
		return 0
	}
	matches := 0
	for _, id := range top {
		if item.HasGenre(id) {
			matches++
		}
	}
	return float64(matches) / float64(len(top))
}

// Score returns the weighted score of item against the top genres
func (s Scorer) Score(item domain.MediaItem, top []int) float64 {
	return s.PopularityWeight*item.PopularityScore() + s.GenreWeight*GenreBonus(item, top)
}

// Rank orders pool for a user and returns at most n items (n <= 0 returns all).
// Items in exclude are removed first. With no affinity, or fewer than Floor
// candidates left, the result is plain popularity order.
func (s Scorer) Rank(pool []domain.MediaItem, affinity Affinity, exclude domain.KeySet, n int) []domain.MediaItem {
	candidates := dedupe.Dedupe(dedupe.Self(pool), exclude)

	top := affinity.Top(s.TopK)
	if len(top) == 0 || len(candidates) < s.Floor {
		return ByPopularity(candidates, n)
	}

	scores := make(map[domain.ItemKey]float64, len(candidates))
	for _, it := range candidates {
		scores[it.Key()] = s.Score(it, top)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := scores[a.Key()], scores[b.Key()]; sa != sb {
			return sa > sb
		}
		return popularityLess(b, a)
	})
	return truncate(candidates, n)
}

// ByPopularity returns a copy of items sorted by descending popularity
func ByPopularity(items []domain.MediaItem, n int) []domain.MediaItem {
	out := append([]domain.MediaItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return popularityLess(out[j], out[i])
	})
	return truncate(out, n)
}

// popularityLess orders by popularity, then by key for determinism
func popularityLess(a, b domain.MediaItem) bool {
	if pa, pb := a.PopularityScore(), b.PopularityScore(); pa != pb {
		return pa < pb
	}
	if a.MediaType != b.MediaType {
		return a.MediaType > b.MediaType
	}
	return a.ID > b.ID
}

func truncate(items []domain.MediaItem, n int) []domain.MediaItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
