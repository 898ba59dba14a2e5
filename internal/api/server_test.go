package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/collection"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/feed"
	"github.com/mmcdole/marquee/internal/metrics"
	"github.com/mmcdole/marquee/internal/personalize"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/store"
)

var testLocale = domain.Locale{Language: "en-US", Region: "US"}

type fakeCatalog struct {
	failSearch bool
}

func titled(mt domain.MediaType, id int, title string) domain.MediaItem {
	return domain.MediaItem{ID: id, MediaType: mt, Title: title, PosterPath: "/p.jpg", Popularity: domain.Ptr(float64(id))}
}

func (f *fakeCatalog) Category(_ context.Context, mt domain.MediaType, category string, page int, _ domain.Locale) (domain.Page, error) {
	base := 100
	if category == "trending" {
		base = 1
	}
	items := make([]domain.MediaItem, 0, 10)
	for i := 0; i < 10; i++ {
		id := base + (page-1)*10 + i
		items = append(items, titled(mt, id, "Title "+category))
	}
	return domain.Page{Items: items, Page: page, TotalPages: 3, TotalResults: 30}, nil
}

func (f *fakeCatalog) Discover(_ context.Context, mt domain.MediaType, _ domain.DiscoverFilters, page, _ int) (domain.Page, error) {
	return domain.Page{Items: []domain.MediaItem{titled(mt, 500, "Discovered")}, Page: page, TotalPages: 1}, nil
}

func (f *fakeCatalog) Search(_ context.Context, query string, page int, _ domain.SearchFilters) (domain.Page, error) {
	if f.failSearch {
		return domain.Page{}, &domain.TransportError{Source: "fake", StatusCode: 503}
	}
	return domain.Page{Items: []domain.MediaItem{titled(domain.MediaTypeMovie, 7, "Batgirl")}, Page: page, TotalPages: 1}, nil
}

func (f *fakeCatalog) SearchPeople(context.Context, string, int, domain.Locale) (domain.PeoplePage, error) {
	return domain.PeoplePage{People: []domain.Person{{ID: 1, Name: "Someone"}}, Page: 1, TotalPages: 1}, nil
}

type testEnv struct {
	handler http.Handler
	catalog *fakeCatalog
	home    *feed.Home
	coll    *collection.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog := &fakeCatalog{}
	m := metrics.New()
	loader := feed.NewLoader(nil, catalog, feed.NewCache(), nil, feed.WithObserver(m))
	sections := []feed.Section{
		{Key: "trending", Title: "Trending", MediaType: domain.MediaTypeMovie, Category: "trending", TTL: time.Minute},
		{Key: "popular_movies", Title: "Popular", MediaType: domain.MediaTypeMovie, Category: "popular", TTL: time.Minute},
	}
	home := feed.NewHome(sections, loader, testLocale, 2, nil)

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	coll := collection.NewService(st, nil, testLocale, nil)

	scorer := personalize.DefaultScorer()
	scorer.Floor = 1
	rec := feed.NewRecommender(loader, catalog, feed.NewCache(), scorer, sections, time.Hour, 5, nil)
	merger := search.NewMerger(catalog, testLocale, nil,
		search.WithLocalPool(home), search.WithLocalPool(coll), search.WithSearchObserver(m))

	srv := NewServer("127.0.0.1:0", Dependencies{
		Home:        home,
		Recommender: rec,
		Collections: coll,
		Search:      merger,
		Metrics:     m.Handler(),
		Locale:      testLocale,
		Version:     "test",
	})
	return &testEnv{handler: srv.Handler(), catalog: catalog, home: home, coll: coll}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[map[string]string](t, rec)["version"])
}

func TestRows(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/rows?load=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]domain.Row](t, rec)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Items, 10)
	assert.True(t, rows[1].Initialized)

	rec = env.do(t, http.MethodPost, "/api/rows/popular_movies/more", "")
	require.Equal(t, http.StatusOK, rec.Code)
	row := decode[domain.Row](t, rec)
	assert.Equal(t, 2, row.Page)
	assert.Len(t, row.Items, 20)

	rec = env.do(t, http.MethodPost, "/api/rows/popular_movies/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.Row](t, rec).Page)

	rec = env.do(t, http.MethodGet, "/api/rows/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "nope")
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.home.LoadAll(context.Background()))
	_, err := env.coll.AddFavorite(context.Background(), titled(domain.MediaTypeMovie, 5, "Batman"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/search?q=bat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[search.Result](t, rec)
	assert.Equal(t, search.ModeText, res.Mode)
	ids := []int{}
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	assert.ElementsMatch(t, []int{7, 5}, ids)

	rec = env.do(t, http.MethodGet, "/api/search?type=person&q=some", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[search.Result](t, rec).People, 1)

	rec = env.do(t, http.MethodGet, "/api/search?sort=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.catalog.failSearch = true
	rec = env.do(t, http.MethodGet, "/api/search?q=bat", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFavoritesAndRecommendations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.MediaItem](t, rec))

	rec = env.do(t, http.MethodPut, "/api/favorites/movie/3", `{"id":3,"media_type":"movie","title":"Three","genres":[{"id":18}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Three", decode[domain.MediaItem](t, rec).Title)

	rec = env.do(t, http.MethodPut, "/api/favorites/alien/3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[feed.LoadResult](t, rec)
	assert.NotEmpty(t, res.Items)
	for _, it := range res.Items {
		assert.NotEqual(t, 3, it.ID, "favorites are excluded")
	}

	rec = env.do(t, http.MethodDelete, "/api/favorites/movie/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/favorites", "")
	assert.Empty(t, decode[[]domain.MediaItem](t, rec))
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/rows?load=true", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marquee_row_loads_total")
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    search.Query
		wantErr bool
	}{
		{name: "text only", raw: "q=dune", want: search.Query{Text: "dune", Sort: search.SortRelevance}},
		{
			name: "filters",
			raw:  "type=tv&sort=rating&year_from=1990&year_to=2000&min_vote=7.5&min_votes=100&genres=18,80&page=2",
			want: search.Query{Type: domain.MediaTypeTV, Sort: search.SortRating, YearFrom: 1990, YearTo: 2000,
				MinVote: 7.5, MinVoteCount: 100, Genres: []int{18, 80}, Page: 2},
		},
		{name: "single year", raw: "q=x&year=2008", want: search.Query{Text: "x", Sort: search.SortRelevance, YearFrom: 2008, YearTo: 2008}},
		{name: "bad type", raw: "type=book", wantErr: true},
		{name: "bad vote", raw: "min_vote=11", wantErr: true},
		{name: "bad genre", raw: "genres=18,x", wantErr: true},
		{name: "negative page", raw: "page=-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)
			got, err := ParseQuery(v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
