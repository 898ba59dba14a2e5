package curated

import (
	"encoding/json"
	"strconv"
	"strings"
)

// sectionResponse is the page envelope. Older deployments return the
// entries under "items" instead of "results".
type sectionResponse struct {
	Page         int        `json:"page"`
	Results      []entryDTO `json:"results"`
	Items        []entryDTO `json:"items"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

func (r sectionResponse) entries() []entryDTO {
	if len(r.Results) > 0 {
		return r.Results
	}
	return r.Items
}

// entryDTO is one curated entry. Ids may be numbers or numeric strings.
type entryDTO struct {
	ID           flexInt    `json:"id"`
	Type         string     `json:"type"`
	MediaType    string     `json:"media_type"`
	Title        string     `json:"title"`
	Name         string     `json:"name"`
	PosterPath   string     `json:"poster_path"`
	BackdropPath string     `json:"backdrop_path"`
	Overview     string     `json:"overview"`
	ReleaseDate  string     `json:"release_date"`
	FirstAirDate string     `json:"first_air_date"`
	VoteAverage  *float64   `json:"vote_average"`
	VoteCount    *int       `json:"vote_count"`
	Popularity   *float64   `json:"popularity"`
	Genres       []genreDTO `json:"genres"`
	GenreIDs     []int      `json:"genre_ids"`
}

type genreDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// flexInt accepts 42 and "42"
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
