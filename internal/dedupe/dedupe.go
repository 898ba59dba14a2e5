// Package dedupe removes items that were already shown elsewhere in the feed.
package dedupe

import "github.com/mmcdole/marquee/internal/domain"

// Dedupe returns the candidates whose key is not in skip, in their original order.
// A nil or empty skip set returns a copy of candidates.
func Dedupe(candidates []domain.MediaItem, skip domain.KeySet) []domain.MediaItem {
	out := make([]domain.MediaItem, 0, len(candidates))
	for _, it := range candidates {
		if skip.Has(it.Key()) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Self collapses repeated keys, keeping the first occurrence.
func Self(candidates []domain.MediaItem) []domain.MediaItem {
	seen := make(domain.KeySet, len(candidates))
	out := make([]domain.MediaItem, 0, len(candidates))
	for _, it := range candidates {
		k := it.Key()
		if seen.Has(k) {
			continue
		}
		seen.Add(k)
		out = append(out, it)
	}
	return out
}

// Merge appends extra to base, dropping any extra item whose key is already
// in base. base wins on conflict.
func Merge(base, extra []domain.MediaItem) []domain.MediaItem {
	out := make([]domain.MediaItem, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, Dedupe(extra, domain.KeysOf(base))...)
}
