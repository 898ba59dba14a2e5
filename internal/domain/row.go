package domain

// Provenance records where a page of items came from
type Provenance string

const (
	SourceCache     Provenance = "cache"
	SourcePrimary   Provenance = "primary"
	SourceSecondary Provenance = "secondary"
)

// Row is the accumulated state of one feed section.
type Row struct {
	Section      string      `json:"section"`
	Title        string      `json:"title,omitempty"`
	Items        []MediaItem `json:"items"`
	Page         int         `json:"page"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results,omitempty"`
	Loading      bool        `json:"loading"`
	Initialized  bool        `json:"initialized"`
	Error        string      `json:"error,omitempty"`
	Source       Provenance  `json:"source,omitempty"`
}

// AppendPage merges a fetched page into the row.
// Page 1 (or below) replaces the items; later pages append the items whose
// keys are not already present, preserving order. TotalPages only changes
// when the new value is known.
func (r *Row) AppendPage(page int, items []MediaItem, totalPages int) {
	if page <= 1 {
		r.Items = dedupeInto(nil, items)
		r.Page = 1
	} else {
		r.Items = dedupeInto(r.Items, items)
		r.Page = page
	}
	if totalPages > 0 {
		r.TotalPages = totalPages
	}
	r.Initialized = true
}

func dedupeInto(dst, items []MediaItem) []MediaItem {
	seen := KeysOf(dst)
	for _, it := range items {
		k := it.Key()
		if seen.Has(k) {
			continue
		}
		seen.Add(k)
		dst = append(dst, it)
	}
	return dst
}

// HasMore reports whether a further page can be requested.
func (r Row) HasMore() bool {
	if !r.Initialized {
		return true
	}
	return r.Page < r.TotalPages
}

// Keys returns the set of item keys currently in the row.
func (r Row) Keys() KeySet {
	return KeysOf(r.Items)
}

// Clone returns a copy that shares nothing with r.
func (r Row) Clone() Row {
	c := r
	c.Items = CloneItems(r.Items)
	return c
}
