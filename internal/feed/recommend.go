package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mmcdole/marquee/internal/cache"
	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/personalize"
)

const candidatePages = 2

// Recommender builds the personalized row from a candidate pool of feed
// sections plus discovery on the user's strongest genre.
type Recommender struct {
	loader     *Loader
	catalog    domain.CatalogSource
	cache      *cache.TTL[LoadResult]
	scorer     personalize.Scorer
	candidates []Section
	ttl        time.Duration
	limit      int
	logger     *slog.Logger
}

// NewRecommender creates a recommender. catalog may be nil to skip genre discovery.
func NewRecommender(
	loader *Loader,
	catalog domain.CatalogSource,
	c *cache.TTL[LoadResult],
	scorer personalize.Scorer,
	candidates []Section,
	ttl time.Duration,
	limit int,
	logger *slog.Logger,
) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{
		loader:     loader,
		catalog:    catalog,
		cache:      c,
		scorer:     scorer,
		candidates: candidates,
		ttl:        ttl,
		limit:      limit,
		logger:     logger,
	}
}

// Fingerprint hashes the favorite keys, independent of order
func Fingerprint(favorites []domain.MediaItem) string {
	keys := make([]string, len(favorites))
	for i, f := range favorites {
		keys[i] = f.Key().String()
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\n")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// ForYou returns the personalized row for a favorites list
func (r *Recommender) ForYou(ctx context.Context, favorites []domain.MediaItem, loc domain.Locale) (LoadResult, error) {
	key := RowKey(PrefixForYou+"_"+Fingerprint(favorites), loc, 1)
	if res, ok := r.cache.Get(key); ok {
		res.Source = domain.SourceCache
		r.logger.Debug("cache hit", "key", key)
		return res, nil
	}

	affinity := personalize.AffinityFrom(favorites)
	pool, err := r.candidatePool(ctx, affinity, favorites, loc)
	if err != nil {
		return LoadResult{}, err
	}

	ranked := r.scorer.Rank(pool, affinity, domain.KeysOf(favorites), r.limit)
	res := LoadResult{
		Items:         ranked,
		RequestedPage: 1,
		Page:          1,
		TotalPages:    1,
		TotalResults:  len(ranked),
		Source:        domain.SourceSecondary,
	}
	r.cache.Set(key, res, r.ttl)
	r.logger.Info("built recommendations", "favorites", len(favorites), "candidates", len(pool), "count", len(ranked))
	return res, nil
}

// InvalidateAll drops every cached recommendation row
func (r *Recommender) InvalidateAll() int {
	return r.cache.InvalidatePrefix(PrefixForYou + "_")
}

func (r *Recommender) candidatePool(ctx context.Context, affinity personalize.Affinity, favorites []domain.MediaItem, loc domain.Locale) ([]domain.MediaItem, error) {
	var (
		pool     []domain.MediaItem
		failures int
		attempts int
	)

	for _, sec := range r.candidates {
		for page := 1; page <= candidatePages; page++ {
			attempts++
			res, err := r.loader.Load(ctx, sec, page, loc)
			if err != nil {
				if domain.IsAborted(err) {
					return nil, err
				}
				failures++
				r.logger.Warn("skipping candidate page", "section", sec.Key, "page", page, "error", err)
				break
			}
			pool = append(pool, res.Items...)
			if res.Page >= res.TotalPages {
				break
			}
		}
	}

	if top := affinity.Top(1); len(top) > 0 && r.catalog != nil {
		for _, mt := range mediaTypesOf(favorites) {
			attempts++
			p, err := r.catalog.Discover(ctx, mt, domain.DiscoverFilters{
				SortBy:       "popularity.desc",
				Genres:       top,
				VoteCountGte: 50,
				Language:     loc.Language,
				Region:       loc.Region,
			}, 1, 0)
			if err != nil {
				if domain.IsAborted(err) {
					return nil, err
				}
				failures++
				r.logger.Warn("genre discovery failed", "mediaType", mt, "genre", top[0], "error", err)
				continue
			}
			pool = append(pool, p.Items...)
		}
	}

	if attempts > 0 && failures == attempts {
		return nil, fmt.Errorf("%w: no recommendation candidates", domain.ErrSourceUnavailable)
	}
	return dedupe.Self(pool), nil
}

// mediaTypesOf lists the title types present in items, movies first
func mediaTypesOf(items []domain.MediaItem) []domain.MediaType {
	var hasMovie, hasTV bool
	for _, it := range items {
		switch it.MediaType {
		case domain.MediaTypeMovie:
			hasMovie = true
		case domain.MediaTypeTV:
			hasTV = true
		}
	}
	var out []domain.MediaType
	if hasMovie {
		out = append(out, domain.MediaTypeMovie)
	}
	if hasTV {
		out = append(out, domain.MediaTypeTV)
	}
	return out
}
