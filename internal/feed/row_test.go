package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/domain"
)

func tenFrom(start int) []int {
	out := make([]int, 10)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func TestRowLoadAndLoadMore(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		return pageOf(page, 2, tenFrom(page*100)...), nil
	}}
	row := NewRowState(popularSection(), testLocale, newTestLoader(nil, catalog), adapter.NullLogger())

	assert.False(t, row.Snapshot().Initialized)

	require.NoError(t, row.Load(context.Background(), 1, nil))
	snap := row.Snapshot()
	assert.True(t, snap.Initialized)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 2, snap.TotalPages)
	assert.Len(t, snap.Items, 10)
	assert.Equal(t, "Popular Movies", snap.Title)

	require.NoError(t, row.LoadMore(context.Background(), nil))
	snap = row.Snapshot()
	assert.Equal(t, 2, snap.Page)
	assert.Len(t, snap.Items, 20)

	require.NoError(t, row.LoadMore(context.Background(), nil))
	assert.Equal(t, 2, catalog.Calls(), "no fetch past the last page")
}

func TestRowAppendDedupesAcrossPages(t *testing.T) {
	// Scenario: page 1 is [A, B], page 2 is [B, C].
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		if page == 1 {
			return pageOf(1, 2, 1, 2), nil
		}
		return pageOf(2, 2, 2, 3), nil
	}}
	loader := newTestLoader(nil, catalog, WithMinItems(0))
	row := NewRowState(popularSection(), testLocale, loader, nil)

	require.NoError(t, row.Load(context.Background(), 1, nil))
	require.NoError(t, row.Load(context.Background(), 2, nil))
	assert.Equal(t, []int{1, 2, 3}, idsOf(row.Snapshot().Items))
}

func TestRowSkipSet(t *testing.T) {
	catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
		return pageOf(1, 1, 1, 2, 3, 4), nil
	}}
	row := NewRowState(popularSection(), testLocale, newTestLoader(nil, catalog), nil)

	skip := domain.KeysOf(titles(2, 4))
	require.NoError(t, row.Load(context.Background(), 1, skip))
	assert.Equal(t, []int{1, 3}, idsOf(row.Snapshot().Items))
}

func TestRowErrorKeepsItems(t *testing.T) {
	var fail atomic.Bool
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		if fail.Load() {
			return domain.Page{}, transportErr()
		}
		return pageOf(page, 3, tenFrom(1)...), nil
	}}
	row := NewRowState(popularSection(), testLocale, newTestLoader(nil, catalog), nil)
	require.NoError(t, row.Load(context.Background(), 1, nil))

	fail.Store(true)
	err := row.ForceRefresh(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)

	snap := row.Snapshot()
	assert.Len(t, snap.Items, 10, "previous items are preserved")
	assert.NotEmpty(t, snap.Error)
	assert.False(t, snap.Loading)

	fail.Store(false)
	require.NoError(t, row.Load(context.Background(), 1, nil))
	assert.Empty(t, row.Snapshot().Error, "a later success clears the error")
}

func TestRowForceRefreshBypassesCache(t *testing.T) {
	var version atomic.Int32
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		return pageOf(page, 5, tenFrom(int(version.Load())*1000+page*10)...), nil
	}}
	loader := newTestLoader(nil, catalog)
	row := NewRowState(popularSection(), testLocale, loader, nil)

	require.NoError(t, row.Load(context.Background(), 1, nil))
	require.NoError(t, row.LoadMore(context.Background(), nil))
	assert.Len(t, row.Snapshot().Items, 20)

	version.Store(1)
	require.NoError(t, row.ForceRefresh(context.Background(), nil))

	snap := row.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, tenFrom(1010), idsOf(snap.Items), "accumulated pages are replaced by fresh page 1")
	assert.Equal(t, domain.SourceSecondary, snap.Source)
	assert.Equal(t, 3, catalog.Calls())

	_, cached := loader.Cached(popularSection(), 2, testLocale)
	assert.False(t, cached, "refresh drops later cached pages too")
}

func TestRowDiscardsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		if page == 1 {
			<-release
			return pageOf(1, 3, tenFrom(100)...), nil
		}
		return pageOf(page, 3, tenFrom(page*1000)...), nil
	}}
	row := NewRowState(popularSection(), testLocale, newTestLoader(nil, catalog), nil)

	slow := make(chan error, 1)
	go func() { slow <- row.Load(context.Background(), 1, nil) }()
	require.Eventually(t, func() bool { return catalog.Calls() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, row.Load(context.Background(), 2, nil))
	close(release)

	err := <-slow
	assert.ErrorIs(t, err, domain.ErrSuperseded)

	snap := row.Snapshot()
	assert.Equal(t, tenFrom(2000), idsOf(snap.Items), "the stale page 1 must not overwrite newer state")
	assert.False(t, snap.Loading)
}

func TestRowAbortDoesNotSetError(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	catalog := &fakeCatalog{category: func(domain.MediaType, string, int) (domain.Page, error) {
		<-release
		return pageOf(1, 1, 1), nil
	}}
	row := NewRowState(popularSection(), testLocale, newTestLoader(nil, catalog), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := row.Load(ctx, 1, nil)
	assert.True(t, domain.IsAborted(err))

	snap := row.Snapshot()
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)
}

func TestRowForceRefreshDoesNotJoinInFlightLoad(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	catalog := &fakeCatalog{category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
		if calls.Add(1) == 1 {
			<-release
			return pageOf(1, 1, tenFrom(1)...), nil
		}
		return pageOf(1, 1, tenFrom(100)...), nil
	}}
	loader := newTestLoader(nil, catalog)
	row := NewRowState(popularSection(), testLocale, loader, nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- row.Load(context.Background(), 1, nil) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, row.ForceRefresh(context.Background(), nil))
	close(release)
	assert.ErrorIs(t, <-firstDone, domain.ErrSuperseded)

	assert.Equal(t, int32(2), calls.Load(), "refresh fetches again")
	assert.Equal(t, tenFrom(100), idsOf(row.Snapshot().Items))

	cached, ok := loader.Cached(popularSection(), 1, testLocale)
	require.True(t, ok)
	assert.Equal(t, tenFrom(100), idsOf(cached.Items), "the pre-refresh fetch does not overwrite the cache")
}
