package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/mmcdole/marquee/internal/domain"
)

// Home is the ordered set of feed rows. Rows later in the order never repeat
// an item already shown by an earlier row.
type Home struct {
	rows        []*RowState
	index       map[string]*RowState
	loader      *Loader
	concurrency int
	logger      *slog.Logger
}

// NewHome creates a feed with one row per section, in the given order
func NewHome(sections []Section, loader *Loader, loc domain.Locale, concurrency int, logger *slog.Logger) *Home {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	h := &Home{
		index:       make(map[string]*RowState, len(sections)),
		loader:      loader,
		concurrency: concurrency,
		logger:      logger,
	}
	for _, sec := range sections {
		rs := NewRowState(sec, loc, loader, logger)
		h.rows = append(h.rows, rs)
		h.index[sec.Key] = rs
	}
	return h
}

// LoadAll loads page 1 of every row. Pages are fetched in parallel, then
// applied in display order so each row can skip what earlier rows show.
// Row failures are joined into the returned error; the other rows still load.
func (h *Home) LoadAll(ctx context.Context) error {
	type outcome struct {
		gen uint64
		res LoadResult
		err error
	}
	outcomes := make([]outcome, len(h.rows))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(h.concurrency)
	for i, rs := range h.rows {
		outcomes[i].gen = rs.begin()
		p.Go(func(ctx context.Context) error {
			res, err := h.loader.Load(ctx, rs.section, 1, rs.locale)
			outcomes[i].res, outcomes[i].err = res, err
			return nil
		})
	}
	_ = p.Wait()

	skip := make(domain.KeySet)
	var errs []error
	for i, rs := range h.rows {
		o := outcomes[i]
		if err := rs.finish(o.gen, 1, o.res, o.err, skip); err != nil {
			if domain.IsAborted(err) {
				continue
			}
			h.logger.Error("failed to load row", "section", rs.section.Key, "error", err)
			errs = append(errs, err)
		}
		skip.AddItems(rs.Snapshot().Items)
	}
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	return errors.Join(errs...)
}

// Rows returns a snapshot of every row in display order
func (h *Home) Rows() []domain.Row {
	out := make([]domain.Row, len(h.rows))
	for i, rs := range h.rows {
		out[i] = rs.Snapshot()
	}
	return out
}

// Row returns a snapshot of one row
func (h *Home) Row(key string) (domain.Row, error) {
	rs, ok := h.index[key]
	if !ok {
		return domain.Row{}, fmt.Errorf("%w: %s", domain.ErrUnknownSection, key)
	}
	return rs.Snapshot(), nil
}

// Sections returns the configured sections in display order
func (h *Home) Sections() []Section {
	out := make([]Section, len(h.rows))
	for i, rs := range h.rows {
		out[i] = rs.section
	}
	return out
}

// LoadMore appends the next page of one row
func (h *Home) LoadMore(ctx context.Context, key string) error {
	rs, skip, err := h.rowWithSkip(key)
	if err != nil {
		return err
	}
	return rs.LoadMore(ctx, skip)
}

// Refresh force-reloads one row, bypassing the cache
func (h *Home) Refresh(ctx context.Context, key string) error {
	rs, skip, err := h.rowWithSkip(key)
	if err != nil {
		return err
	}
	return rs.ForceRefresh(ctx, skip)
}

// rowWithSkip returns a row and the keys shown by the rows above it
func (h *Home) rowWithSkip(key string) (*RowState, domain.KeySet, error) {
	skip := make(domain.KeySet)
	for _, rs := range h.rows {
		if rs.section.Key == key {
			return rs, skip, nil
		}
		skip.AddItems(rs.Snapshot().Items)
	}
	return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownSection, key)
}

// PoolItems returns every item currently loaded in any row, without repeats
func (h *Home) PoolItems() []domain.MediaItem {
	seen := make(domain.KeySet)
	var out []domain.MediaItem
	for _, rs := range h.rows {
		for _, it := range rs.Snapshot().Items {
			if seen.Has(it.Key()) {
				continue
			}
			seen.Add(it.Key())
			out = append(out, it)
		}
	}
	return out
}
