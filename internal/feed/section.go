package feed

import (
	"fmt"
	"time"

	"github.com/mmcdole/marquee/internal/adapter"
	"github.com/mmcdole/marquee/internal/domain"
)

// Section describes one feed row and how to fill it.
type Section struct {
	Key       string
	Title     string
	MediaType domain.MediaType
	Category  string                  // catalog list used as the fallback
	Curated   string                  // primary section name, defaults to Key
	Discover  *domain.DiscoverFilters // when set, the fallback is a discovery query
	TTL       time.Duration
}

func (s Section) curatedName() string {
	if s.Curated != "" {
		return s.Curated
	}
	return s.Key
}

// SectionsFromConfig converts configured sections. Sections without their
// own TTL use defaultTTL.
func SectionsFromConfig(cfgs []adapter.SectionConfig, defaultTTL time.Duration) ([]Section, error) {
	sections := make([]Section, 0, len(cfgs))
	for _, c := range cfgs {
		mt, err := domain.ParseMediaType(c.MediaType)
		if err != nil || !mt.IsTitle() {
			return nil, fmt.Errorf("section %q: invalid media type %q", c.Key, c.MediaType)
		}

		sec := Section{
			Key:       c.Key,
			Title:     c.Title,
			MediaType: mt,
			Category:  c.Category,
			Curated:   c.Curated,
			TTL:       c.TTL,
		}
		if sec.Title == "" {
			sec.Title = c.Key
		}
		if sec.TTL <= 0 {
			sec.TTL = defaultTTL
		}
		if len(c.Genres) > 0 || c.SortBy != "" {
			sec.Discover = &domain.DiscoverFilters{
				SortBy:       c.SortBy,
				Genres:       append([]int(nil), c.Genres...),
				VoteCountGte: c.VoteCountGte,
				WithPoster:   true,
			}
		}
		sections = append(sections, sec)
	}
	return sections, nil
}
