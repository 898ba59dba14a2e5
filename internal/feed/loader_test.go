package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/cache"
	"github.com/mmcdole/marquee/internal/domain"
)

func TestLoadServesCachedPageWithoutNetwork(t *testing.T) {
	primary := &fakeCurated{browse: func(_ context.Context, section string, page int) (domain.Page, error) {
		assert.Equal(t, "popular_movies", section)
		return pageOf(1, 3, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), nil
	}}
	catalog := &fakeCatalog{}
	loader := newTestLoader(primary, catalog)

	first, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePrimary, first.Source)

	second, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, catalog.Calls())
}

func TestLoadCacheExpires(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(cache.WithClock[LoadResult](func() time.Time { return now }))
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		return pageOf(1, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), nil
	}}
	loader := NewLoader(primary, nil, c, nil)

	_, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePrimary, res.Source)
	assert.Equal(t, 2, primary.Calls())
}

func TestLoadFallsBackToSecondary(t *testing.T) {
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		return domain.Page{}, transportErr()
	}}
	catalog := &fakeCatalog{category: func(mt domain.MediaType, category string, page int) (domain.Page, error) {
		assert.Equal(t, domain.MediaTypeMovie, mt)
		assert.Equal(t, "popular", category)
		assert.Equal(t, 1, page)
		return pageOf(1, 1, 1, 2, 3, 4, 5), nil
	}}
	obs := &recordingObserver{}
	loader := newTestLoader(primary, catalog, WithObserver(obs))

	res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceSecondary, res.Source)
	assert.Len(t, res.Items, 5)
	events := obs.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Fallback)
	assert.Equal(t, domain.SourceSecondary, events[0].Source)
}

func TestLoadDiscoverSectionFallsBackToDiscovery(t *testing.T) {
	sec := Section{
		Key:       "action_movies",
		MediaType: domain.MediaTypeMovie,
		Discover:  &domain.DiscoverFilters{Genres: []int{28}, SortBy: "popularity.desc"},
		TTL:       time.Minute,
	}
	catalog := &fakeCatalog{discover: func(mt domain.MediaType, f domain.DiscoverFilters, page int) (domain.Page, error) {
		assert.Equal(t, []int{28}, f.Genres)
		assert.Equal(t, "en-US", f.Language, "locale fills unset filter fields")
		assert.Equal(t, "US", f.Region)
		return pageOf(1, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), nil
	}}
	loader := newTestLoader(nil, catalog)

	res, err := loader.Load(context.Background(), sec, 1, testLocale)
	require.NoError(t, err)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, domain.SourceSecondary, res.Source)
}

func TestLoadBothSourcesFail(t *testing.T) {
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		return domain.Page{}, transportErr()
	}}
	catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
		return domain.Page{}, transportErr()
	}}
	loader := newTestLoader(primary, catalog)

	_, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.ErrorIs(t, err, domain.ErrTransport)

	_, cached := loader.Cached(popularSection(), 1, testLocale)
	assert.False(t, cached, "failures are not cached")
}

func TestLoadEmptyPrimary(t *testing.T) {
	empty := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		return domain.Page{Page: 1, TotalPages: 1}, nil
	}}

	t.Run("secondary fills in", func(t *testing.T) {
		catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
			return pageOf(1, 1, 7, 8), nil
		}}
		res, err := newTestLoader(empty, catalog).Load(context.Background(), popularSection(), 1, testLocale)
		require.NoError(t, err)
		assert.Equal(t, []int{7, 8}, idsOf(res.Items))
		assert.Equal(t, domain.SourceSecondary, res.Source)
	})

	t.Run("secondary failure keeps the empty page", func(t *testing.T) {
		catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
			return domain.Page{}, transportErr()
		}}
		res, err := newTestLoader(empty, catalog).Load(context.Background(), popularSection(), 1, testLocale)
		require.NoError(t, err)
		assert.Empty(t, res.Items)
		assert.Equal(t, domain.SourcePrimary, res.Source)
	})
}

func TestLoadMalformedPrimaryIsEmpty(t *testing.T) {
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		return domain.Page{}, domain.ErrMalformedResponse
	}}
	catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
		return domain.Page{}, domain.ErrMalformedResponse
	}}

	res, err := newTestLoader(primary, catalog).Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestLoadQualityGateAndFilter(t *testing.T) {
	items := []domain.MediaItem{
		{ID: 1, MediaType: domain.MediaTypeMovie, Title: "Has title only"},
		{ID: 2, MediaType: domain.MediaTypeMovie, PosterPath: "/only-image.jpg"},
		{ID: 3, MediaType: domain.MediaTypeMovie, Overview: "   "},
		{ID: 4, MediaType: domain.MediaTypeMovie, Title: "Blocked", PosterPath: "/b.jpg"},
		{ID: 1, MediaType: domain.MediaTypeMovie, Title: "Duplicate"},
	}
	catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
		return domain.Page{Items: items, Page: 1, TotalPages: 1}, nil
	}}
	loader := newTestLoader(nil, catalog, WithItemFilter(func(it domain.MediaItem) bool {
		return it.Title != "Blocked"
	}))

	res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, idsOf(res.Items))
	assert.Equal(t, "Has title only", res.Items[0].Title)
}

func TestLoadFetchesExtraPagesWhenTooFew(t *testing.T) {
	var pages []int
	var mu sync.Mutex
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		switch page {
		case 1:
			return pageOf(1, 10, 1, 2, 3), nil
		case 2:
			return pageOf(2, 10, 3, 4, 5), nil
		default:
			return pageOf(page, 10, page*10, page*10+1), nil
		}
	}}
	loader := newTestLoader(nil, catalog)

	res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, pages, "at most two extra pages")
	assert.Equal(t, []int{1, 2, 3, 4, 5, 30, 31}, idsOf(res.Items))
	assert.Equal(t, 1, res.RequestedPage)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 10, res.TotalPages)
}

func TestLoadExtraPagesStopAtLastPage(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		return pageOf(page, 2, page), nil
	}}
	loader := newTestLoader(nil, catalog)

	res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, idsOf(res.Items))
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, catalog.Calls())
}

func TestLoadExtraPageFailureKeepsGathered(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		if page == 1 {
			return pageOf(1, 5, 1, 2), nil
		}
		return domain.Page{}, transportErr()
	}}

	res, err := newTestLoader(nil, catalog).Load(context.Background(), popularSection(), 1, testLocale)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, idsOf(res.Items))
	assert.Equal(t, 1, res.Page)
}

func TestLoadConcurrentMissesShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		<-release
		return pageOf(1, 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), nil
	}}
	loader := newTestLoader(primary, nil)

	var wg sync.WaitGroup
	results := make([]LoadResult, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := loader.Load(context.Background(), popularSection(), 1, testLocale)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	require.Eventually(t, func() bool { return primary.Calls() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, primary.Calls())
	for _, r := range results {
		assert.Len(t, r.Items, 10)
	}
	results[0].Items[0].Title = "mutated"
	assert.NotEqual(t, "mutated", results[1].Items[0].Title, "callers get independent copies")
}

func TestLoadCancelledReturnsPromptly(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	primary := &fakeCurated{browse: func(context.Context, string, int) (domain.Page, error) {
		<-release
		return pageOf(1, 1, 1), nil
	}}
	loader := newTestLoader(primary, nil)

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx, popularSection(), 1, testLocale)
		done <- err
	}()

	require.Eventually(t, func() bool { return primary.Calls() == 1 }, time.Second, time.Millisecond)
	cancel(domain.ErrSuperseded)

	select {
	case err := <-done:
		assert.True(t, domain.IsAborted(err))
		assert.ErrorIs(t, err, domain.ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("load did not return after cancellation")
	}
}

func TestLoadWithoutAnySource(t *testing.T) {
	_, err := newTestLoader(nil, nil).Load(context.Background(), popularSection(), 1, testLocale)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
}

func TestInvalidateDropsEveryPage(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		return pageOf(page, 5, page*100, page*100+1, page*100+2, page*100+3, page*100+4, page*100+5, page*100+6, page*100+7, page*100+8, page*100+9), nil
	}}
	loader := newTestLoader(nil, catalog)
	other := Section{Key: "popular_tv", MediaType: domain.MediaTypeTV, Category: "popular", TTL: time.Minute}

	for _, page := range []int{1, 2} {
		_, err := loader.Load(context.Background(), popularSection(), page, testLocale)
		require.NoError(t, err)
	}
	_, err := loader.Load(context.Background(), other, 1, testLocale)
	require.NoError(t, err)

	assert.Equal(t, 2, loader.Invalidate(popularSection(), testLocale))
	_, ok := loader.Cached(other, 1, testLocale)
	assert.True(t, ok)
}
