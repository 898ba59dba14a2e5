// Package search answers free-text and filtered queries by merging remote
// catalog results with titles already loaded locally.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
)

// LocalPool exposes titles already held in memory (feed rows, favorites, lists)
type LocalPool interface {
	PoolItems() []domain.MediaItem
}

// PoolFunc adapts a function to LocalPool
type PoolFunc func() []domain.MediaItem

func (f PoolFunc) PoolItems() []domain.MediaItem { return f() }

// Merger answers search queries
type Merger struct {
	catalog  domain.CatalogSource
	pools    []LocalPool
	locale   domain.Locale
	observer domain.SearchObserver
	logger   *slog.Logger
}

// MergerOption configures a Merger
type MergerOption func(*Merger)

// WithLocalPool adds a source of local titles
func WithLocalPool(p LocalPool) MergerOption {
	return func(m *Merger) {
		if p != nil {
			m.pools = append(m.pools, p)
		}
	}
}

// WithSearchObserver reports every search outcome
func WithSearchObserver(o domain.SearchObserver) MergerOption {
	return func(m *Merger) { m.observer = o }
}

// NewMerger creates a merger over catalog
func NewMerger(catalog domain.CatalogSource, loc domain.Locale, logger *slog.Logger, opts ...MergerOption) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Merger{
		catalog:  catalog,
		locale:   loc,
		observer: domain.NoOpObserver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Locale returns the locale used for remote calls
func (m *Merger) Locale() domain.Locale { return m.locale }

// Search answers one page of q. On failure it returns an empty result of the
// query's mode together with the error.
func (m *Merger) Search(ctx context.Context, q Query) (Result, error) {
	q = q.normalize()
	mode := q.mode()
	start := time.Now()

	var (
		res Result
		err error
	)
	switch mode {
	case ModePeople:
		res, err = m.people(ctx, q)
	case ModeText:
		res, err = m.text(ctx, q)
	case ModeDiscover:
		res, err = m.discover(ctx, q)
	default:
		res = Result{Mode: ModeEmpty, Page: 1}
	}

	m.observer.OnSearch(domain.SearchEvent{
		Mode:     string(mode),
		Results:  len(res.Items) + len(res.People),
		Err:      err,
		Duration: time.Since(start),
	})

	if err != nil {
		if !domain.IsAborted(err) {
			m.logger.Error("search failed", "mode", mode, "query", q.Text, "page", q.Page, "error", err)
		}
		return Result{Mode: mode, Page: q.Page}, fmt.Errorf("search %q page %d: %w", q.Text, q.Page, err)
	}
	m.logger.Debug("search complete", "mode", mode, "query", q.Text, "page", q.Page,
		"items", len(res.Items), "people", len(res.People), "local", res.LocalMatches)
	return res, nil
}

// LocalMatches returns pooled titles whose folded title contains the folded
// query, deduplicated, in pool order.
func (m *Merger) LocalMatches(query string) []domain.MediaItem {
	if Fold(query) == "" {
		return nil
	}
	var out []domain.MediaItem
	for _, p := range m.pools {
		for _, it := range p.PoolItems() {
			if it.MediaType.IsTitle() && Contains(it.Title, query) {
				out = append(out, it)
			}
		}
	}
	return dedupe.Self(out)
}

func (m *Merger) text(ctx context.Context, q Query) (Result, error) {
	filters := domain.SearchFilters{
		Type:     q.Type,
		Language: m.locale.Language,
		Region:   m.locale.Region,
	}
	if q.YearFrom > 0 && q.YearFrom == q.YearTo {
		filters.Year = q.YearFrom
	}

	page, err := m.catalog.Search(ctx, q.Text, q.Page, filters)
	if errors.Is(err, domain.ErrMalformedResponse) {
		m.logger.Warn("malformed search response", "query", q.Text, "error", err)
		page, err = domain.Page{Page: q.Page}, nil
	}
	if err != nil {
		return Result{}, err
	}

	items := page.Items
	local := 0
	if q.Page == 1 {
		remote := len(items)
		items = dedupe.Merge(items, m.LocalMatches(q.Text))
		local = len(items) - remote
	}
	items = applyFilters(dedupe.Self(items), q)
	sortItems(items, q)

	total := page.TotalResults
	if total <= 0 {
		total = len(items)
	}
	return Result{
		Mode:         ModeText,
		Items:        items,
		Page:         q.Page,
		TotalPages:   max(page.TotalPages, 1),
		TotalResults: total,
		LocalMatches: local,
	}, nil
}

func (m *Merger) people(ctx context.Context, q Query) (Result, error) {
	page, err := m.catalog.SearchPeople(ctx, q.Text, q.Page, m.locale)
	if errors.Is(err, domain.ErrMalformedResponse) {
		page, err = domain.PeoplePage{Page: q.Page}, nil
	}
	if err != nil {
		return Result{}, err
	}
	total := page.TotalResults
	if total <= 0 {
		total = len(page.People)
	}
	return Result{
		Mode:         ModePeople,
		People:       page.People,
		Page:         q.Page,
		TotalPages:   max(page.TotalPages, 1),
		TotalResults: total,
	}, nil
}

// Discover answers one page of a filter-only query for a single media type
func (m *Merger) Discover(ctx context.Context, q Query, mt domain.MediaType) (Result, error) {
	q = q.normalize()
	page, err := m.catalog.Discover(ctx, mt, discoverFilters(q, mt, m.locale), q.Page, 0)
	if errors.Is(err, domain.ErrMalformedResponse) {
		page, err = domain.Page{Page: q.Page}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("discover %s: %w", mt, err)
	}
	total := page.TotalResults
	if total <= 0 {
		total = len(page.Items)
	}
	return Result{
		Mode:         ModeDiscover,
		Items:        dedupe.Self(page.Items),
		Page:         q.Page,
		TotalPages:   max(page.TotalPages, 1),
		TotalResults: total,
	}, nil
}

// discoverTypes lists the media types a discovery query covers
func discoverTypes(q Query) []domain.MediaType {
	if q.Type != "" {
		return []domain.MediaType{q.Type}
	}
	return []domain.MediaType{domain.MediaTypeMovie, domain.MediaTypeTV}
}

// discover runs one Discover per media type in parallel and combines them.
// A failing type is dropped as long as another one answered.
func (m *Merger) discover(ctx context.Context, q Query) (Result, error) {
	types := discoverTypes(q)
	results := make([]Result, len(types))
	errs := make([]error, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, mt := range types {
		g.Go(func() error {
			results[i], errs[i] = m.Discover(gctx, q, mt)
			return nil
		})
	}
	_ = g.Wait()

	combined := Result{Mode: ModeDiscover, Page: q.Page}
	var failed []error
	for i, r := range results {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		combined.Items = append(combined.Items, r.Items...)
		combined.TotalResults += r.TotalResults
		combined.TotalPages = max(combined.TotalPages, r.TotalPages)
	}
	if len(failed) == len(types) {
		return Result{}, errors.Join(failed...)
	}
	for _, err := range failed {
		m.logger.Warn("partial discovery failure", "error", err)
	}

	combined.Items = dedupe.Self(combined.Items)
	if len(types) > 1 {
		sortItems(combined.Items, q)
	}
	return combined, nil
}
