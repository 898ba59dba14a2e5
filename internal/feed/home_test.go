package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/domain"
)

func homeSections() []Section {
	return []Section{
		{Key: "trending", Title: "Trending", MediaType: domain.MediaTypeMovie, Category: "trending", TTL: time.Minute},
		{Key: "popular_movies", Title: "Popular", MediaType: domain.MediaTypeMovie, Category: "popular", TTL: time.Minute},
		{Key: "top_rated_movies", Title: "Top Rated", MediaType: domain.MediaTypeMovie, Category: "top_rated", TTL: time.Minute},
	}
}

func TestHomeLoadAllSkipsEarlierRows(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, category string, page int) (domain.Page, error) {
		switch category {
		case "trending":
			return pageOf(page, 1, 1, 2, 3), nil
		case "popular":
			return pageOf(page, 1, 2, 3, 4, 5), nil
		default:
			return pageOf(page, 1, 1, 5, 6), nil
		}
	}}
	home := NewHome(homeSections(), newTestLoader(nil, catalog), testLocale, 3, adapter.NullLogger())

	require.NoError(t, home.LoadAll(context.Background()))

	rows := home.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []int{1, 2, 3}, idsOf(rows[0].Items))
	assert.Equal(t, []int{4, 5}, idsOf(rows[1].Items))
	assert.Equal(t, []int{6}, idsOf(rows[2].Items))
	for _, r := range rows {
		assert.True(t, r.Initialized)
		assert.False(t, r.Loading)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, idsOf(home.PoolItems()))
}

func TestHomeLoadAllReportsFailedRows(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, category string, page int) (domain.Page, error) {
		if category == "popular" {
			return domain.Page{}, transportErr()
		}
		return pageOf(page, 1, 1, 2), nil
	}}
	home := NewHome(homeSections(), newTestLoader(nil, catalog), testLocale, 2, nil)

	err := home.LoadAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)

	popular, err := home.Row("popular_movies")
	require.NoError(t, err)
	assert.NotEmpty(t, popular.Error)
	assert.Empty(t, popular.Items)

	top, err := home.Row("top_rated_movies")
	require.NoError(t, err)
	assert.Empty(t, top.Items, "items shown by trending are skipped")
	assert.Empty(t, top.Error)
}

func TestHomeLoadMoreUsesRowsAbove(t *testing.T) {
	catalog := &fakeCatalog{category: func(_ domain.MediaType, category string, page int) (domain.Page, error) {
		switch {
		case category == "trending":
			return pageOf(page, 1, tenFrom(1)...), nil
		case page == 1:
			return pageOf(1, 2, tenFrom(100)...), nil
		default:
			return pageOf(2, 2, 5, 6, 200, 201), nil
		}
	}}
	home := NewHome(homeSections()[:2], newTestLoader(nil, catalog), testLocale, 2, nil)
	require.NoError(t, home.LoadAll(context.Background()))

	require.NoError(t, home.LoadMore(context.Background(), "popular_movies"))

	row, err := home.Row("popular_movies")
	require.NoError(t, err)
	assert.Equal(t, append(tenFrom(100), 200, 201), idsOf(row.Items))
	assert.Equal(t, 2, row.Page)
}

func TestHomeUnknownSection(t *testing.T) {
	home := NewHome(homeSections(), newTestLoader(nil, &fakeCatalog{}), testLocale, 1, nil)

	_, err := home.Row("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSection)
	assert.ErrorIs(t, home.Refresh(context.Background(), "nope"), domain.ErrUnknownSection)
	assert.ErrorIs(t, home.LoadMore(context.Background(), "nope"), domain.ErrUnknownSection)
}

func TestSectionsFromConfig(t *testing.T) {
	cfg := adapter.DefaultSections()
	sections, err := SectionsFromConfig(cfg, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, sections, len(cfg))

	assert.Equal(t, domain.MediaTypeMovie, sections[0].MediaType)
	assert.Equal(t, 15*time.Minute, sections[0].TTL)
	assert.Nil(t, sections[0].Discover)
	assert.Equal(t, "trending", sections[0].curatedName())

	var action Section
	for _, s := range sections {
		if s.Key == "action_movies" {
			action = s
		}
	}
	require.NotNil(t, action.Discover)
	assert.Equal(t, []int{28}, action.Discover.Genres)

	_, err = SectionsFromConfig([]adapter.SectionConfig{{Key: "x", MediaType: "person", Category: "popular"}}, time.Minute)
	assert.Error(t, err)
}

func TestRowKey(t *testing.T) {
	assert.Equal(t, "popular_movies_en-US_US_3", RowKey("popular_movies", testLocale, 3))
	assert.Equal(t, "popular_movies_en-US_US_", RowPrefix("popular_movies", testLocale))
}
