package search

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/marquee/internal/domain"
)

// Sort is the requested result order
type Sort string

const (
	SortRelevance   Sort = "relevance"
	SortPopularity  Sort = "popularity"
	SortRating      Sort = "rating"
	SortReleaseDate Sort = "release_date"
	SortTitle       Sort = "title"
)

// ParseSort validates a sort key. Empty means relevance.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortPopularity:
		return SortPopularity, nil
	case SortRating:
		return SortRating, nil
	case SortReleaseDate, "release", "date":
		return SortReleaseDate, nil
	case SortTitle:
		return SortTitle, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// ParseType accepts movie, tv, person and all. Empty means all.
func ParseType(s string) (domain.MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "any":
		return "", nil
	}
	return domain.ParseMediaType(s)
}

// Mode tells which path answered a query
type Mode string

const (
	ModeText     Mode = "text"
	ModeDiscover Mode = "discover"
	ModePeople   Mode = "people"
	ModeEmpty    Mode = "empty"
)

// Query is the full input of a search: text plus filters.
type Query struct {
	Text         string           `json:"text"`
	Type         domain.MediaType `json:"type,omitempty"` // "" = all
	Sort         Sort             `json:"sort,omitempty"`
	YearFrom     int              `json:"year_from,omitempty"`
	YearTo       int              `json:"year_to,omitempty"`
	MinVote      float64          `json:"min_vote,omitempty"`
	MinVoteCount int              `json:"min_vote_count,omitempty"`
	Genres       []int            `json:"genres,omitempty"`
	Page         int              `json:"page,omitempty"`
}

func (q Query) normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.YearFrom > 0 && q.YearTo > 0 && q.YearFrom > q.YearTo {
		q.YearFrom, q.YearTo = q.YearTo, q.YearFrom
	}
	return q
}

// HasFilters reports whether any filter differs from its default
func (q Query) HasFilters() bool {
	return q.Type != "" ||
		(q.Sort != "" && q.Sort != SortRelevance) ||
		q.YearFrom > 0 || q.YearTo > 0 ||
		q.MinVote > 0 || q.MinVoteCount > 0 ||
		len(q.Genres) > 0
}

// SameFilters reports whether a and b differ only in text and page
func (q Query) SameFilters(o Query) bool {
	a, b := q.normalize(), o.normalize()
	return a.Type == b.Type && a.Sort == b.Sort &&
		a.YearFrom == b.YearFrom && a.YearTo == b.YearTo &&
		a.MinVote == b.MinVote && a.MinVoteCount == b.MinVoteCount &&
		slices.Equal(a.Genres, b.Genres)
}

func (q Query) mode() Mode {
	switch {
	case q.Type == domain.MediaTypePerson:
		if q.Text == "" {
			return ModeEmpty
		}
		return ModePeople
	case q.Text != "":
		return ModeText
	case q.HasFilters():
		return ModeDiscover
	}
	return ModeEmpty
}

// Result is one answered page
type Result struct {
	Mode         Mode               `json:"mode"`
	Items        []domain.MediaItem `json:"items"`
	People       []domain.Person    `json:"people,omitempty"`
	Page         int                `json:"page"`
	TotalPages   int                `json:"total_pages"`
	TotalResults int                `json:"total_results"`
	LocalMatches int                `json:"local_matches,omitempty"`
}

// Matches reports whether item passes the type, year, vote and genre filters
func (q Query) Matches(item domain.MediaItem) bool {
	if q.Type != "" && item.MediaType != q.Type {
		return false
	}
	if q.YearFrom > 0 || q.YearTo > 0 {
		year := item.Year()
		if year == 0 {
			return false
		}
		if q.YearFrom > 0 && year < q.YearFrom {
			return false
		}
		if q.YearTo > 0 && year > q.YearTo {
			return false
		}
	}
	if q.MinVote > 0 && item.Rating() < q.MinVote {
		return false
	}
	if q.MinVoteCount > 0 && item.Votes() < q.MinVoteCount {
		return false
	}
	for _, g := range q.Genres {
		if !item.HasGenre(g) {
			return false
		}
	}
	return true
}

func applyFilters(items []domain.MediaItem, q Query) []domain.MediaItem {
	out := items[:0:0]
	for _, it := range items {
		if q.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}

// sortItems orders items in place. Every order is stable so equal items keep
// the upstream order.
func sortItems(items []domain.MediaItem, q Query) {
	switch q.Sort {
	case SortPopularity:
		slices.SortStableFunc(items, func(a, b domain.MediaItem) int {
			return cmp.Compare(b.PopularityScore(), a.PopularityScore())
		})
	case SortRating:
		slices.SortStableFunc(items, func(a, b domain.MediaItem) int {
			if c := cmp.Compare(b.Rating(), a.Rating()); c != 0 {
				return c
			}
			return cmp.Compare(b.Votes(), a.Votes())
		})
	case SortReleaseDate:
		// newest first, unknown dates last
		slices.SortStableFunc(items, func(a, b domain.MediaItem) int {
			switch {
			case a.ReleaseDate == b.ReleaseDate:
				return 0
			case a.ReleaseDate == "":
				return 1
			case b.ReleaseDate == "":
				return -1
			}
			return strings.Compare(b.ReleaseDate, a.ReleaseDate)
		})
	case SortTitle:
		slices.SortStableFunc(items, func(a, b domain.MediaItem) int {
			return strings.Compare(Fold(a.Title), Fold(b.Title))
		})
	default:
		if q.Text != "" {
			sortByRelevance(items, q.Text)
		}
	}
}

// relevance tiers, best first
const (
	tierExact = iota
	tierPrefix
	tierContains
	tierFuzzy
	tierNone
)

type ranked struct {
	tier     int
	distance int
}

func rank(title, query string) ranked {
	t, q := Fold(title), Fold(query)
	switch {
	case t == q:
		return ranked{tier: tierExact}
	case strings.HasPrefix(t, q):
		return ranked{tier: tierPrefix, distance: len(t) - len(q)}
	case strings.Contains(t, q):
		return ranked{tier: tierContains, distance: strings.Index(t, q)}
	}
	if d := fuzzy.RankMatchNormalizedFold(q, t); d >= 0 {
		return ranked{tier: tierFuzzy, distance: d}
	}
	return ranked{tier: tierNone}
}

// sortByRelevance moves titles that match the query closely to the front.
// Items in the same tier keep their order, which for remote results is the
// upstream relevance order.
func sortByRelevance(items []domain.MediaItem, query string) {
	ranks := make(map[domain.ItemKey]ranked, len(items))
	for _, it := range items {
		ranks[it.Key()] = rank(it.Title, query)
	}
	slices.SortStableFunc(items, func(a, b domain.MediaItem) int {
		ra, rb := ranks[a.Key()], ranks[b.Key()]
		if c := cmp.Compare(ra.tier, rb.tier); c != 0 {
			return c
		}
		if ra.tier == tierFuzzy {
			return cmp.Compare(ra.distance, rb.distance)
		}
		return 0
	})
}

// discoverFilters translates a query into source discovery parameters
func discoverFilters(q Query, mt domain.MediaType, loc domain.Locale) domain.DiscoverFilters {
	f := domain.DiscoverFilters{
		SortBy:         discoverSort(q.Sort, mt),
		Genres:         slices.Clone(q.Genres),
		VoteCountGte:   q.MinVoteCount,
		VoteAverageGte: q.MinVote,
		Language:       loc.Language,
		Region:         loc.Region,
	}
	var from, to string
	if q.YearFrom > 0 {
		from = fmt.Sprintf("%04d-01-01", q.YearFrom)
	}
	if q.YearTo > 0 {
		to = fmt.Sprintf("%04d-12-31", q.YearTo)
	}
	if mt == domain.MediaTypeTV {
		f.AirDateFrom, f.AirDateTo = from, to
	} else {
		f.ReleaseDateFrom, f.ReleaseDateTo = from, to
	}
	return f
}

func discoverSort(s Sort, mt domain.MediaType) string {
	switch s {
	case SortRating:
		return "vote_average.desc"
	case SortReleaseDate:
		if mt == domain.MediaTypeTV {
			return "first_air_date.desc"
		}
		return "primary_release_date.desc"
	case SortTitle:
		if mt == domain.MediaTypeTV {
			return "name.asc"
		}
		return "title.asc"
	}
	return "popularity.desc"
}
