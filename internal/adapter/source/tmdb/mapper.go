package tmdb

import (
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// MapItems converts TMDB results to domain items. Results that are people,
// or whose type cannot be determined, are dropped.
func MapItems(results []resultDTO, fallbackType domain.MediaType) []domain.MediaItem {
	items := make([]domain.MediaItem, 0, len(results))
	for _, r := range results {
		item, ok := MapItem(r, fallbackType)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

// MapItem converts a single result. ok is false for people and untyped results.
func MapItem(r resultDTO, fallbackType domain.MediaType) (domain.MediaItem, bool) {
	mt := resolveType(r, fallbackType)
	if !mt.IsTitle() || r.ID == 0 {
		return domain.MediaItem{}, false
	}

	item := domain.MediaItem{
		ID:           r.ID,
		MediaType:    mt,
		Overview:     strings.TrimSpace(r.Overview),
		PosterPath:   deref(r.PosterPath),
		BackdropPath: deref(r.BackdropPath),
		VoteAverage:  r.VoteAverage,
		VoteCount:    r.VoteCount,
		Popularity:   r.Popularity,
	}

	if mt == domain.MediaTypeMovie {
		item.Title = firstNonEmpty(r.Title, r.OriginalTitle, r.Name)
		item.ReleaseDate = r.ReleaseDate
	} else {
		item.Title = firstNonEmpty(r.Name, r.OriginalName, r.Title)
		item.ReleaseDate = r.FirstAirDate
	}

	switch {
	case len(r.Genres) > 0:
		item.Genres = make([]domain.GenreRef, len(r.Genres))
		for i, g := range r.Genres {
			item.Genres[i] = domain.GenreRef{ID: g.ID, Name: g.Name}
		}
	case len(r.GenreIDs) > 0:
		item.Genres = make([]domain.GenreRef, len(r.GenreIDs))
		for i, id := range r.GenreIDs {
			item.Genres[i] = domain.GenreRef{ID: id, Name: GenreName(mt, id)}
		}
	}

	return item, true
}

// MapPeople converts person results
func MapPeople(results []resultDTO) []domain.Person {
	people := make([]domain.Person, 0, len(results))
	for _, r := range results {
		if r.ID == 0 {
			continue
		}
		people = append(people, domain.Person{
			ID:                 r.ID,
			Name:               firstNonEmpty(r.Name, r.OriginalName),
			ProfilePath:        deref(r.ProfilePath),
			KnownForDepartment: r.KnownForDepartment,
			Popularity:         r.Popularity,
			KnownFor:           MapItems(r.KnownFor, ""),
		})
	}
	return people
}

// resolveType picks the item type from media_type, then the endpoint's type,
// then the shape of the result.
func resolveType(r resultDTO, fallbackType domain.MediaType) domain.MediaType {
	if r.MediaType != "" {
		mt, err := domain.ParseMediaType(r.MediaType)
		if err != nil {
			return ""
		}
		return mt
	}
	if fallbackType != "" {
		return fallbackType
	}
	switch {
	case r.Title != "" || r.ReleaseDate != "":
		return domain.MediaTypeMovie
	case r.FirstAirDate != "":
		return domain.MediaTypeTV
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
