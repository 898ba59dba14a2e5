package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/marquee/internal/cache"
	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
)

const (
	defaultMinItems      = 10
	defaultMaxExtraPages = 2
)

// LoadResult is one loaded page of a row after filtering.
type LoadResult struct {
	Items         []domain.MediaItem `json:"items"`
	RequestedPage int                `json:"requested_page"`
	Page          int                `json:"page"` // last upstream page consumed, >= RequestedPage
	TotalPages    int                `json:"total_pages"`
	TotalResults  int                `json:"total_results"`
	Source        domain.Provenance  `json:"source"`
}

func (r LoadResult) clone() LoadResult {
	c := r
	c.Items = domain.CloneItems(r.Items)
	return c
}

// NewCache returns the row cache shared by the loader and the recommender.
// Values are copied in and out.
func NewCache(opts ...cache.Option[LoadResult]) *cache.TTL[LoadResult] {
	opts = append([]cache.Option[LoadResult]{cache.WithCloner(LoadResult.clone)}, opts...)
	return cache.New(opts...)
}

// pageFetcher fetches one upstream page of a row
type pageFetcher func(ctx context.Context, page int) (domain.Page, error)

// Loader fetches one page of one section: cache first, then the primary
// source, then the secondary.
type Loader struct {
	primary       domain.CuratedSource
	secondary     domain.CatalogSource
	cache         *cache.TTL[LoadResult]
	group         singleflight.Group
	mu            sync.Mutex
	epochs        map[string]uint64 // per row prefix, bumped by Invalidate
	minItems      int
	maxExtraPages int
	filter        func(domain.MediaItem) bool
	observer      domain.LoadObserver
	logger        *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithMinItems sets the item count below which further pages are fetched
func WithMinItems(n int) LoaderOption {
	return func(l *Loader) { l.minItems = n }
}

// WithMaxExtraPages caps how many further pages one load may fetch
func WithMaxExtraPages(n int) LoaderOption {
	return func(l *Loader) { l.maxExtraPages = n }
}

// WithItemFilter adds a filter step; items for which keep returns false are dropped
func WithItemFilter(keep func(domain.MediaItem) bool) LoaderOption {
	return func(l *Loader) { l.filter = keep }
}

// WithObserver reports every load to o
func WithObserver(o domain.LoadObserver) LoaderOption {
	return func(l *Loader) {
		if o != nil {
			l.observer = o
		}
	}
}

// NewLoader creates a loader. primary may be nil.
func NewLoader(primary domain.CuratedSource, secondary domain.CatalogSource, c *cache.TTL[LoadResult], logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = NewCache()
	}
	l := &Loader{
		primary:       primary,
		secondary:     secondary,
		cache:         c,
		epochs:        make(map[string]uint64),
		minItems:      defaultMinItems,
		maxExtraPages: defaultMaxExtraPages,
		observer:      domain.NoOpObserver{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cached returns a page from the cache without touching the network
func (l *Loader) Cached(sec Section, page int, loc domain.Locale) (LoadResult, bool) {
	res, ok := l.cache.Get(RowKey(sec.Key, loc, page))
	if ok {
		res.Source = domain.SourceCache
	}
	return res, ok
}

func (l *Loader) epoch(prefix string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epochs[prefix]
}

// Invalidate drops every cached page of a section. Fetches already in
// flight for the section are not joined by later loads and do not write
// their result to the cache.
func (l *Loader) Invalidate(sec Section, loc domain.Locale) int {
	prefix := RowPrefix(sec.Key, loc)
	l.mu.Lock()
	l.epochs[prefix]++
	l.mu.Unlock()
	n := l.cache.InvalidatePrefix(prefix)
	l.logger.Debug("invalidated row cache", "section", sec.Key, "entries", n)
	return n
}

// Load returns one page of a section. Concurrent misses on the same page
// share one upstream fetch. Cancelling ctx returns immediately; a shared
// fetch keeps running and still fills the cache.
func (l *Loader) Load(ctx context.Context, sec Section, page int, loc domain.Locale) (LoadResult, error) {
	if page < 1 {
		page = 1
	}
	key := RowKey(sec.Key, loc, page)

	if res, ok := l.Cached(sec, page, loc); ok {
		l.logger.Debug("cache hit", "key", key)
		l.observer.OnLoad(domain.LoadEvent{Section: sec.Key, Page: page, Source: domain.SourceCache, Items: len(res.Items)})
		return res, nil
	}

	prefix := RowPrefix(sec.Key, loc)
	epoch := l.epoch(prefix)
	ch := l.group.DoChan(fmt.Sprintf("%s#%d", key, epoch), func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx), sec, page, loc, epoch)
	})

	select {
	case <-ctx.Done():
		return LoadResult{}, context.Cause(ctx)
	case r := <-ch:
		if r.Err != nil {
			return LoadResult{}, r.Err
		}
		return r.Val.(LoadResult).clone(), nil
	}
}

// fetch runs the fallback cascade and the recovery loop, then caches the result
func (l *Loader) fetch(ctx context.Context, sec Section, page int, loc domain.Locale, epoch uint64) (LoadResult, error) {
	start := time.Now()

	first, src, next, fallback, err := l.firstPage(ctx, sec, page, loc)
	if err != nil {
		l.observer.OnLoad(domain.LoadEvent{Section: sec.Key, Page: page, Fallback: fallback, Err: err, Duration: time.Since(start)})
		return LoadResult{}, err
	}

	items := l.clean(first.Items)
	last, total := page, first.TotalPages

	// Too few usable items: pull following pages from the same source, bounded.
	for extra := 0; len(items) < l.minItems && extra < l.maxExtraPages && last < total; extra++ {
		p, err := next(ctx, last+1)
		if err != nil {
			if !errors.Is(err, domain.ErrMalformedResponse) {
				l.logger.Warn("stopped fetching extra pages", "section", sec.Key, "page", last+1, "error", err)
				break
			}
			p = domain.Page{}
		}
		last++
		if p.TotalPages > 0 {
			total = p.TotalPages
		}
		items = dedupe.Merge(items, l.clean(p.Items))
	}

	res := LoadResult{
		Items:         items,
		RequestedPage: page,
		Page:          last,
		TotalPages:    total,
		TotalResults:  first.TotalResults,
		Source:        src,
	}
	if last > total {
		res.TotalPages = last
	}

	if l.epoch(RowPrefix(sec.Key, loc)) == epoch {
		l.cache.Set(RowKey(sec.Key, loc, page), res, sec.TTL)
	} else {
		l.logger.Debug("row invalidated during fetch, not caching", "section", sec.Key, "page", page)
	}
	l.logger.Debug("row loaded", "section", sec.Key, "page", page, "source", src, "count", len(items), "through", last)
	l.observer.OnLoad(domain.LoadEvent{
		Section:  sec.Key,
		Page:     page,
		Source:   src,
		Items:    len(items),
		Fallback: fallback,
		Duration: time.Since(start),
	})
	return res, nil
}

// firstPage tries the primary, then the secondary. It returns the page, where
// it came from, a fetcher for following pages of the same source, and whether
// the secondary was consulted after a primary attempt.
func (l *Loader) firstPage(ctx context.Context, sec Section, page int, loc domain.Locale) (domain.Page, domain.Provenance, pageFetcher, bool, error) {
	var (
		primaryErr   error
		emptyPrimary *domain.Page
		fetchPrimary pageFetcher
	)

	if l.primary != nil {
		fetchPrimary = func(ctx context.Context, p int) (domain.Page, error) {
			return l.primary.Browse(ctx, sec.curatedName(), p, loc)
		}
		p, err := fetchPrimary(ctx, page)
		switch {
		case err == nil && len(l.clean(p.Items)) > 0:
			return p, domain.SourcePrimary, fetchPrimary, false, nil
		case err == nil, errors.Is(err, domain.ErrMalformedResponse):
			// An empty or undecodable page is a valid empty result; the
			// secondary may still have something to show.
			emptyPrimary = &p
			l.logger.Info("primary source returned nothing, trying fallback", "section", sec.Key, "page", page)
		case domain.IsAborted(err):
			return domain.Page{}, "", nil, false, err
		default:
			primaryErr = err
			l.logger.Warn("primary source failed, trying fallback", "section", sec.Key, "page", page, "error", err)
		}
	}

	fallback := l.primary != nil
	fetchSecondary := l.secondaryFetcher(sec, loc)
	if fetchSecondary == nil {
		if emptyPrimary != nil {
			return *emptyPrimary, domain.SourcePrimary, fetchPrimary, false, nil
		}
		return domain.Page{}, "", nil, fallback, fmt.Errorf("%w: %s page %d: %w", domain.ErrSourceUnavailable, sec.Key, page, errors.Join(primaryErr, errors.New("no fallback source")))
	}

	p, err := fetchSecondary(ctx, page)
	switch {
	case err == nil:
		return p, domain.SourceSecondary, fetchSecondary, fallback, nil
	case errors.Is(err, domain.ErrMalformedResponse):
		if emptyPrimary != nil {
			return *emptyPrimary, domain.SourcePrimary, fetchPrimary, fallback, nil
		}
		return domain.Page{}, domain.SourceSecondary, fetchSecondary, fallback, nil
	case domain.IsAborted(err):
		return domain.Page{}, "", nil, fallback, err
	}

	if emptyPrimary != nil {
		l.logger.Warn("fallback failed, keeping empty primary page", "section", sec.Key, "page", page, "error", err)
		return *emptyPrimary, domain.SourcePrimary, fetchPrimary, fallback, nil
	}

	l.logger.Error("all sources failed", "section", sec.Key, "page", page, "error", err)
	return domain.Page{}, "", nil, fallback, fmt.Errorf("%w: %s page %d: %w", domain.ErrSourceUnavailable, sec.Key, page, errors.Join(primaryErr, err))
}

func (l *Loader) secondaryFetcher(sec Section, loc domain.Locale) pageFetcher {
	if l.secondary == nil {
		return nil
	}
	if sec.Discover != nil {
		filters := *sec.Discover
		if filters.Language == "" {
			filters.Language = loc.Language
		}
		if filters.Region == "" {
			filters.Region = loc.Region
		}
		return func(ctx context.Context, p int) (domain.Page, error) {
			return l.secondary.Discover(ctx, sec.MediaType, filters, p, 0)
		}
	}
	return func(ctx context.Context, p int) (domain.Page, error) {
		return l.secondary.Category(ctx, sec.MediaType, sec.Category, p, loc)
	}
}

// clean applies the quality gate and the configured filter, then drops
// repeated keys.
func (l *Loader) clean(items []domain.MediaItem) []domain.MediaItem {
	out := make([]domain.MediaItem, 0, len(items))
	for _, it := range items {
		if !Usable(it) {
			continue
		}
		if l.filter != nil && !l.filter(it) {
			continue
		}
		out = append(out, it)
	}
	return dedupe.Self(out)
}

// Usable reports whether an item can be rendered: it needs an image or some text.
func Usable(it domain.MediaItem) bool {
	return it.HasImage() || it.HasText()
}
