package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType distinguishes content types
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeTV     MediaType = "tv"
	MediaTypePerson MediaType = "person"
)

// ParseMediaType normalizes the type names used by upstream sources.
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies", "film":
		return MediaTypeMovie, nil
	case "tv", "show", "shows", "series":
		return MediaTypeTV, nil
	case "person", "people":
		return MediaTypePerson, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// IsTitle reports whether the type is a browsable title (movie or tv).
func (t MediaType) IsTitle() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

func (t MediaType) String() string { return string(t) }

// GenreRef is a genre attached to an item
type GenreRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// MediaItem is the normalized shape every upstream response is mapped into.
// Empty strings and nil pointers mean the upstream did not provide the value.
type MediaItem struct {
	ID           int        `json:"id"`
	MediaType    MediaType  `json:"media_type"`
	Title        string     `json:"title"`
	PosterPath   string     `json:"poster_path,omitempty"`
	BackdropPath string     `json:"backdrop_path,omitempty"`
	Overview     string     `json:"overview,omitempty"`
	ReleaseDate  string     `json:"release_date,omitempty"` // YYYY-MM-DD
	VoteAverage  *float64   `json:"vote_average,omitempty"`
	VoteCount    *int       `json:"vote_count,omitempty"`
	Popularity   *float64   `json:"popularity,omitempty"`
	Genres       []GenreRef `json:"genres,omitempty"`
}

// Key returns the identity of the item across sections.
func (m MediaItem) Key() ItemKey {
	return ItemKey{MediaType: m.MediaType, ID: m.ID}
}

// Year returns the release year or 0 when unknown.
func (m MediaItem) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(m.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

func (m MediaItem) PopularityScore() float64 {
	if m.Popularity == nil {
		return 0
	}
	return *m.Popularity
}

func (m MediaItem) Rating() float64 {
	if m.VoteAverage == nil {
		return 0
	}
	return *m.VoteAverage
}

func (m MediaItem) Votes() int {
	if m.VoteCount == nil {
		return 0
	}
	return *m.VoteCount
}

// HasImage reports whether the item has a usable poster or backdrop.
func (m MediaItem) HasImage() bool {
	return strings.TrimSpace(m.PosterPath) != "" || strings.TrimSpace(m.BackdropPath) != ""
}

// HasText reports whether the item has a usable title or synopsis.
func (m MediaItem) HasText() bool {
	return strings.TrimSpace(m.Title) != "" || strings.TrimSpace(m.Overview) != ""
}

// HasGenre reports whether the item is tagged with the genre id.
func (m MediaItem) HasGenre(id int) bool {
	for _, g := range m.Genres {
		if g.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share pointers with a cache.
func (m MediaItem) Clone() MediaItem {
	c := m
	if m.VoteAverage != nil {
		c.VoteAverage = Ptr(*m.VoteAverage)
	}
	if m.VoteCount != nil {
		c.VoteCount = Ptr(*m.VoteCount)
	}
	if m.Popularity != nil {
		c.Popularity = Ptr(*m.Popularity)
	}
	if m.Genres != nil {
		c.Genres = append([]GenreRef(nil), m.Genres...)
	}
	return c
}

// CloneItems deep copies a slice of items.
func CloneItems(items []MediaItem) []MediaItem {
	if items == nil {
		return nil
	}
	out := make([]MediaItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// ItemKey identifies an item by (media type, id).
// Movie 42 and TV show 42 are different items.
type ItemKey struct {
	MediaType MediaType
	ID        int
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s:%d", k.MediaType, k.ID)
}

// ParseItemKey parses the "type:id" form produced by ItemKey.String.
func ParseItemKey(s string) (ItemKey, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return ItemKey{}, fmt.Errorf("invalid item key %q", s)
	}
	mt, err := ParseMediaType(typ)
	if err != nil {
		return ItemKey{}, err
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return ItemKey{}, fmt.Errorf("invalid item id in %q: %w", s, err)
	}
	return ItemKey{MediaType: mt, ID: n}, nil
}

// KeySet is a set of item keys, used as the skip set between feed rows.
type KeySet map[ItemKey]struct{}

// KeysOf builds a set from items.
func KeysOf(items []MediaItem) KeySet {
	s := make(KeySet, len(items))
	s.AddItems(items)
	return s
}

func (s KeySet) Has(k ItemKey) bool {
	_, ok := s[k]
	return ok
}

func (s KeySet) Add(k ItemKey) { s[k] = struct{}{} }

func (s KeySet) AddItems(items []MediaItem) {
	for _, it := range items {
		s[it.Key()] = struct{}{}
	}
}

func (s KeySet) Clone() KeySet {
	c := make(KeySet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Person is a people-search result
type Person struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	ProfilePath        string      `json:"profile_path,omitempty"`
	KnownForDepartment string      `json:"known_for_department,omitempty"`
	Popularity         *float64    `json:"popularity,omitempty"`
	KnownFor           []MediaItem `json:"known_for,omitempty"`
}

// Locale selects the language and region of upstream content.
type Locale struct {
	Language string `json:"language"`
	Region   string `json:"region"`
}

func (l Locale) String() string {
	return l.Language + "-" + l.Region
}
