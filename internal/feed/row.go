package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
)

// RowState owns the accumulated state of one section.
// Each load takes a generation number; a response whose generation is no
// longer current is discarded, so a slow old response can never overwrite
// a newer one.
type RowState struct {
	section Section
	locale  domain.Locale
	loader  *Loader
	logger  *slog.Logger

	mu  sync.Mutex
	row domain.Row
	gen uint64
}

// NewRowState creates an empty, unloaded row
func NewRowState(sec Section, loc domain.Locale, loader *Loader, logger *slog.Logger) *RowState {
	if logger == nil {
		logger = slog.Default()
	}
	return &RowState{
		section: sec,
		locale:  loc,
		loader:  loader,
		logger:  logger,
		row:     domain.Row{Section: sec.Key, Title: sec.Title},
	}
}

// Section returns the row's section
func (r *RowState) Section() Section { return r.section }

// Snapshot returns a copy of the current row
func (r *RowState) Snapshot() domain.Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.row.Clone()
}

// begin marks the row loading and returns the new generation
func (r *RowState) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.row.Loading = true
	return r.gen
}

// finish applies a load result if gen is still current
func (r *RowState) finish(gen uint64, page int, res LoadResult, err error, skip domain.KeySet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		r.logger.Debug("discarding stale row response", "section", r.section.Key, "page", page)
		return domain.ErrSuperseded
	}
	r.row.Loading = false

	if err != nil {
		if domain.IsAborted(err) {
			return err
		}
		// Keep whatever is already shown; stale data beats an empty row.
		r.row.Error = err.Error()
		return err
	}

	r.row.Error = ""
	r.row.Source = res.Source
	r.row.AppendPage(page, dedupe.Dedupe(res.Items, skip), res.TotalPages)
	// The loader may have consumed pages past the one requested.
	if res.Page > r.row.Page {
		r.row.Page = res.Page
	}
	if res.TotalResults > 0 {
		r.row.TotalResults = res.TotalResults
	}
	return nil
}

// Load fetches a page and merges it into the row. Items in skip are left out.
// Page 1 replaces the row; later pages append.
func (r *RowState) Load(ctx context.Context, page int, skip domain.KeySet) error {
	if page < 1 {
		page = 1
	}
	gen := r.begin()
	res, err := r.loader.Load(ctx, r.section, page, r.locale)
	return r.finish(gen, page, res, err, skip)
}

// LoadMore fetches the page after the last one loaded. It is a no-op once
// the last page is known to be loaded.
func (r *RowState) LoadMore(ctx context.Context, skip domain.KeySet) error {
	r.mu.Lock()
	if !r.row.HasMore() {
		r.mu.Unlock()
		return nil
	}
	page := 1
	if r.row.Initialized {
		page = r.row.Page + 1
	}
	r.mu.Unlock()

	return r.Load(ctx, page, skip)
}

// ForceRefresh drops every cached page of the row and reloads page 1.
// The current items stay visible until page 1 arrives.
func (r *RowState) ForceRefresh(ctx context.Context, skip domain.KeySet) error {
	r.loader.Invalidate(r.section, r.locale)
	return r.Load(ctx, 1, skip)
}
