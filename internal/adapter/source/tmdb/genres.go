package tmdb

import (
	"sort"

	"github.com/mmcdole/marquee/internal/domain"
)

// TMDB genre ids are stable, so the table is compiled in instead of fetched.
var movieGenres = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

var tvGenres = map[int]string{
	10759: "Action & Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	10762: "Kids",
	9648:  "Mystery",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
	37:    "Western",
}

// GenreName returns the display name of a genre id, or "" when unknown
func GenreName(mediaType domain.MediaType, id int) string {
	if mediaType == domain.MediaTypeTV {
		if name, ok := tvGenres[id]; ok {
			return name
		}
	}
	return movieGenres[id]
}

// Genres lists the genres of a media type sorted by name
func Genres(mediaType domain.MediaType) []domain.GenreRef {
	table := movieGenres
	if mediaType == domain.MediaTypeTV {
		table = tvGenres
	}
	out := make([]domain.GenreRef, 0, len(table))
	for id, name := range table {
		out = append(out, domain.GenreRef{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
