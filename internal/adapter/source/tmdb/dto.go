package tmdb

import "github.com/mmcdole/marquee/internal/domain"

// pagedResponse is the envelope of every TMDB list endpoint
type pagedResponse struct {
	Page         int         `json:"page"`
	Results      []resultDTO `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

// resultDTO covers movies, tv shows and people. Movies use Title and
// ReleaseDate, tv uses Name and FirstAirDate, people use Name and ProfilePath.
type resultDTO struct {
	ID                 int         `json:"id"`
	MediaType          string      `json:"media_type,omitempty"` // only set by multi and trending
	Title              string      `json:"title,omitempty"`
	Name               string      `json:"name,omitempty"`
	OriginalTitle      string      `json:"original_title,omitempty"`
	OriginalName       string      `json:"original_name,omitempty"`
	PosterPath         *string     `json:"poster_path"`
	BackdropPath       *string     `json:"backdrop_path"`
	ProfilePath        *string     `json:"profile_path"`
	Overview           string      `json:"overview,omitempty"`
	ReleaseDate        string      `json:"release_date,omitempty"`
	FirstAirDate       string      `json:"first_air_date,omitempty"`
	VoteAverage        *float64    `json:"vote_average"`
	VoteCount          *int        `json:"vote_count"`
	Popularity         *float64    `json:"popularity"`
	GenreIDs           []int       `json:"genre_ids,omitempty"`
	Genres             []genreDTO  `json:"genres,omitempty"` // detail endpoints only
	KnownForDepartment string      `json:"known_for_department,omitempty"`
	KnownFor           []resultDTO `json:"known_for,omitempty"`
}

type genreDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// toPage normalizes the envelope. fallbackType is used when results carry no media_type.
func (r *pagedResponse) toPage(fallbackType domain.MediaType) domain.Page {
	return domain.Page{
		Items:        MapItems(r.Results, fallbackType),
		Page:         r.Page,
		TotalPages:   r.TotalPages,
		TotalResults: r.TotalResults,
	}
}
