package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/personalize"
)

func withGenre(items []domain.MediaItem, genre int) []domain.MediaItem {
	for i := range items {
		items[i].Genres = []domain.GenreRef{{ID: genre}}
	}
	return items
}

func TestRecommenderRanksAndCaches(t *testing.T) {
	catalog := &fakeCatalog{
		category: func(_ domain.MediaType, _ string, page int) (domain.Page, error) {
			if page > 1 {
				return domain.Page{}, nil
			}
			// ids double as popularity: 90 is the most popular, with an unrelated genre
			items := append(withGenre(titles(90, 80), 35), withGenre(titles(50, 1), 18)...)
			return domain.Page{Items: items, Page: 1, TotalPages: 1}, nil
		},
		discover: func(mt domain.MediaType, f domain.DiscoverFilters, page int) (domain.Page, error) {
			assert.Equal(t, []int{18}, f.Genres)
			return domain.Page{Items: withGenre(titles(60), 18), Page: 1, TotalPages: 1}, nil
		},
	}
	loader := newTestLoader(nil, catalog)
	scorer := personalize.DefaultScorer()
	scorer.Floor = 1
	c := NewCache()
	rec := NewRecommender(loader, catalog, c, scorer, []Section{popularSection()}, 24*time.Hour, 3, nil)

	favorites := withGenre(titles(1), 18)
	res, err := rec.ForYou(context.Background(), favorites, testLocale)
	require.NoError(t, err)

	// 60+100 > 50+100 > 90; favorite 1 is excluded
	assert.Equal(t, []int{60, 50, 90}, idsOf(res.Items))
	calls := catalog.Calls()

	again, err := rec.ForYou(context.Background(), favorites, testLocale)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, again.Source)
	assert.Equal(t, calls, catalog.Calls())

	assert.Equal(t, 1, rec.InvalidateAll())
}

func TestRecommenderAllSourcesFail(t *testing.T) {
	catalog := &fakeCatalog{}
	rec := NewRecommender(newTestLoader(nil, catalog), catalog, NewCache(), personalize.DefaultScorer(), []Section{popularSection()}, time.Hour, 10, nil)

	_, err := rec.ForYou(context.Background(), withGenre(titles(1), 18), testLocale)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := Fingerprint(titles(1, 2, 3))
	b := Fingerprint(titles(3, 1, 2))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Fingerprint(titles(1, 2)))
	assert.NotEmpty(t, Fingerprint(nil))
}
