package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/domain"
)

var testLocale = domain.Locale{Language: "en-US", Region: "US"}

type fakeCurated struct {
	mu     sync.Mutex
	calls  int
	browse func(ctx context.Context, section string, page int) (domain.Page, error)
}

func (f *fakeCurated) Browse(ctx context.Context, section string, page int, _ domain.Locale) (domain.Page, error) {
	f.mu.Lock()
	f.calls++
	fn := f.browse
	f.mu.Unlock()
	return fn(ctx, section, page)
}

func (f *fakeCurated) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCatalog struct {
	mu       sync.Mutex
	calls    int
	category func(mt domain.MediaType, category string, page int) (domain.Page, error)
	discover func(mt domain.MediaType, f domain.DiscoverFilters, page int) (domain.Page, error)
}

func (f *fakeCatalog) Category(_ context.Context, mt domain.MediaType, category string, page int, _ domain.Locale) (domain.Page, error) {
	f.mu.Lock()
	f.calls++
	fn := f.category
	f.mu.Unlock()
	if fn == nil {
		return domain.Page{}, &domain.TransportError{Source: "fake", StatusCode: 500, Err: fmt.Errorf("no category handler")}
	}
	return fn(mt, category, page)
}

func (f *fakeCatalog) Discover(_ context.Context, mt domain.MediaType, filters domain.DiscoverFilters, page, _ int) (domain.Page, error) {
	f.mu.Lock()
	f.calls++
	fn := f.discover
	f.mu.Unlock()
	if fn == nil {
		return domain.Page{}, &domain.TransportError{Source: "fake", StatusCode: 500, Err: fmt.Errorf("no discover handler")}
	}
	return fn(mt, filters, page)
}

func (f *fakeCatalog) Search(context.Context, string, int, domain.SearchFilters) (domain.Page, error) {
	return domain.Page{}, nil
}

func (f *fakeCatalog) SearchPeople(context.Context, string, int, domain.Locale) (domain.PeoplePage, error) {
	return domain.PeoplePage{}, nil
}

func (f *fakeCatalog) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingObserver struct {
	mu     sync.Mutex
	events []domain.LoadEvent
}

func (o *recordingObserver) OnLoad(e domain.LoadEvent) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) Events() []domain.LoadEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.LoadEvent(nil), o.events...)
}

// titles builds renderable movies with the given ids
func titles(ids ...int) []domain.MediaItem {
	out := make([]domain.MediaItem, len(ids))
	for i, id := range ids {
		out[i] = domain.MediaItem{
			ID:         id,
			MediaType:  domain.MediaTypeMovie,
			Title:      fmt.Sprintf("Movie %d", id),
			PosterPath: fmt.Sprintf("/%d.jpg", id),
			Popularity: domain.Ptr(float64(id)),
		}
	}
	return out
}

func idsOf(items []domain.MediaItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func pageOf(page, totalPages int, ids ...int) domain.Page {
	return domain.Page{Items: titles(ids...), Page: page, TotalPages: totalPages, TotalResults: totalPages * 20}
}

func transportErr() error {
	return &domain.TransportError{Source: "fake", StatusCode: 503, Err: fmt.Errorf("unavailable")}
}

func popularSection() Section {
	return Section{
		Key:       "popular_movies",
		Title:     "Popular Movies",
		MediaType: domain.MediaTypeMovie,
		Category:  "popular",
		TTL:       15 * time.Minute,
	}
}

func newTestLoader(primary domain.CuratedSource, secondary domain.CatalogSource, opts ...LoaderOption) *Loader {
	return NewLoader(primary, secondary, NewCache(), adapter.NullLogger(), opts...)
}
