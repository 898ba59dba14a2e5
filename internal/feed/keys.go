package feed

import (
	"fmt"

	"github.com/mmcdole/marquee/internal/domain"
)

// Cache key layout: {section}_{lang}_{region}_{page}. Every page of a row
// shares the {section}_{lang}_{region}_ prefix so a refresh can drop them all.
const (
	// PrefixForYou is the section key of the recommendations row
	PrefixForYou = "for_you"
)

// RowKey returns the cache key of one page of a section
func RowKey(section string, loc domain.Locale, page int) string {
	return fmt.Sprintf("%s%d", RowPrefix(section, loc), page)
}

// RowPrefix returns the key prefix shared by every page of a section
func RowPrefix(section string, loc domain.Locale) string {
	return fmt.Sprintf("%s_%s_%s_", section, loc.Language, loc.Region)
}
