package domain

import (
	"context"
)

// Page is one normalized page of items from a content source
type Page struct {
	Items        []MediaItem
	Page         int
	TotalPages   int
	TotalResults int
}

// PeoplePage is one page of people-search results
type PeoplePage struct {
	People       []Person
	Page         int
	TotalPages   int
	TotalResults int
}

// DiscoverFilters narrows a discovery query
type DiscoverFilters struct {
	SortBy          string  // e.g. "popularity.desc"
	Genres          []int   // all must match
	VoteCountGte    int     // 0 = unset
	VoteAverageGte  float64 // 0 = unset
	ReleaseDateFrom string  // movies, YYYY-MM-DD
	ReleaseDateTo   string
	AirDateFrom     string // tv, YYYY-MM-DD
	AirDateTo       string
	WithPoster      bool
	Language        string
	Region          string
}

// SearchFilters narrows a free-text search
type SearchFilters struct {
	Type     MediaType // "" searches movies and tv together
	Year     int
	Language string
	Region   string
}

// CuratedSource is the primary feed source: editorially assembled sections.
type CuratedSource interface {
	// Browse returns one page of a curated section
	Browse(ctx context.Context, section string, page int, loc Locale) (Page, error)
}

// CatalogSource is the full catalog API, used as the fallback for feed rows
// and as the backend for search and discovery.
type CatalogSource interface {
	// Category returns one page of a built-in list (popular, top_rated, trending, ...)
	Category(ctx context.Context, mediaType MediaType, category string, page int, loc Locale) (Page, error)

	// Discover returns one page of titles matching filters.
	// pageSize <= 0 keeps the upstream page size.
	Discover(ctx context.Context, mediaType MediaType, filters DiscoverFilters, page, pageSize int) (Page, error)

	// Search returns one page of titles matching the query
	Search(ctx context.Context, query string, page int, filters SearchFilters) (Page, error)

	// SearchPeople returns one page of people matching the query
	SearchPeople(ctx context.Context, query string, page int, loc Locale) (PeoplePage, error)
}
