package curated

import (
	"github.com/mmcdole/marquee/internal/domain"
)

// MapItems converts curated entries to domain items, dropping entries whose
// type is not a movie or tv show.
func MapItems(entries []entryDTO) []domain.MediaItem {
	items := make([]domain.MediaItem, 0, len(entries))
	for _, e := range entries {
		item, ok := mapItem(e)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func mapItem(e entryDTO) (domain.MediaItem, bool) {
	typ := e.MediaType
	if typ == "" {
		typ = e.Type
	}
	mt, err := domain.ParseMediaType(typ)
	if err != nil || !mt.IsTitle() || e.ID == 0 {
		return domain.MediaItem{}, false
	}

	item := domain.MediaItem{
		ID:           int(e.ID),
		MediaType:    mt,
		Title:        e.Title,
		PosterPath:   e.PosterPath,
		BackdropPath: e.BackdropPath,
		Overview:     e.Overview,
		ReleaseDate:  e.ReleaseDate,
		VoteAverage:  e.VoteAverage,
		VoteCount:    e.VoteCount,
		Popularity:   e.Popularity,
	}
	if item.Title == "" {
		item.Title = e.Name
	}
	if item.ReleaseDate == "" {
		item.ReleaseDate = e.FirstAirDate
	}

	if len(e.Genres) > 0 {
		item.Genres = make([]domain.GenreRef, len(e.Genres))
		for i, g := range e.Genres {
			item.Genres[i] = domain.GenreRef{ID: g.ID, Name: g.Name}
		}
	} else if len(e.GenreIDs) > 0 {
		item.Genres = make([]domain.GenreRef, len(e.GenreIDs))
		for i, id := range e.GenreIDs {
			item.Genres[i] = domain.GenreRef{ID: id}
		}
	}
	return item, true
}
