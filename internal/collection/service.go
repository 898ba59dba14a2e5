// Package collection manages the user's favorites, lists and watch history.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/marquee/internal/dedupe"
	"github.com/mmcdole/marquee/internal/domain"
)

// ItemResolver fills in a title from its key
type ItemResolver interface {
	Details(ctx context.Context, key domain.ItemKey, loc domain.Locale) (domain.MediaItem, error)
}

// Service orchestrates store + resolver for collection CRUD.
type Service struct {
	store    domain.CollectionStore
	resolver ItemResolver
	locale   domain.Locale
	logger   *slog.Logger
}

// NewService creates a new collection service. resolver may be nil, in which
// case items must be passed in complete.
func NewService(store domain.CollectionStore, resolver ItemResolver, loc domain.Locale, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resolver: resolver, locale: loc, logger: logger}
}

// resolve returns item as is when it already has a title, otherwise looks it up
func (s *Service) resolve(ctx context.Context, item domain.MediaItem) (domain.MediaItem, error) {
	if item.Title != "" || s.resolver == nil {
		if !item.MediaType.IsTitle() || item.ID <= 0 {
			return domain.MediaItem{}, fmt.Errorf("invalid item %s", item.Key())
		}
		return item, nil
	}
	full, err := s.resolver.Details(ctx, item.Key(), s.locale)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("resolve %s: %w", item.Key(), err)
	}
	return full, nil
}

// === Favorites ===

func (s *Service) AddFavorite(ctx context.Context, item domain.MediaItem) (domain.MediaItem, error) {
	item, err := s.resolve(ctx, item)
	if err != nil {
		s.logger.Error("failed to resolve favorite", "error", err)
		return domain.MediaItem{}, err
	}
	if err := s.store.AddFavorite(item); err != nil {
		s.logger.Error("failed to add favorite", "error", err, "item", item.Key())
		return domain.MediaItem{}, err
	}
	s.logger.Info("added favorite", "item", item.Key(), "title", item.Title)
	return item, nil
}

func (s *Service) RemoveFavorite(key domain.ItemKey) error {
	if err := s.store.RemoveFavorite(key); err != nil {
		s.logger.Error("failed to remove favorite", "error", err, "item", key)
		return err
	}
	s.logger.Info("removed favorite", "item", key)
	return nil
}

func (s *Service) Favorites() ([]domain.MediaItem, error) {
	return s.store.Favorites()
}

func (s *Service) IsFavorite(key domain.ItemKey) (bool, error) {
	return s.store.IsFavorite(key)
}

// ToggleFavorite adds the item if absent and removes it otherwise.
// It reports whether the item is a favorite afterwards.
func (s *Service) ToggleFavorite(ctx context.Context, item domain.MediaItem) (bool, error) {
	fav, err := s.store.IsFavorite(item.Key())
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.RemoveFavorite(item.Key())
	}
	_, err = s.AddFavorite(ctx, item)
	return err == nil, err
}

// === Lists ===

func (s *Service) CreateList(name string) (*domain.List, error) {
	l, err := s.store.CreateList(name)
	if err != nil {
		s.logger.Error("failed to create list", "error", err, "name", name)
		return nil, err
	}
	s.logger.Info("created list", "name", l.Name, "id", l.ID)
	return l, nil
}

func (s *Service) RenameList(id, name string) error {
	if err := s.store.RenameList(id, name); err != nil {
		s.logger.Error("failed to rename list", "error", err, "listID", id)
		return err
	}
	return nil
}

func (s *Service) DeleteList(id string) error {
	if err := s.store.DeleteList(id); err != nil {
		s.logger.Error("failed to delete list", "error", err, "listID", id)
		return err
	}
	s.logger.Info("deleted list", "listID", id)
	return nil
}

func (s *Service) Lists() ([]*domain.List, error) {
	return s.store.Lists()
}

func (s *Service) AddToList(ctx context.Context, id string, item domain.MediaItem) error {
	item, err := s.resolve(ctx, item)
	if err != nil {
		s.logger.Error("failed to resolve list item", "error", err, "listID", id)
		return err
	}
	if err := s.store.AddToList(id, item); err != nil {
		s.logger.Error("failed to add to list", "error", err, "listID", id)
		return err
	}
	s.logger.Info("added item to list", "listID", id, "item", item.Key())
	return nil
}

func (s *Service) RemoveFromList(id string, key domain.ItemKey) error {
	if err := s.store.RemoveFromList(id, key); err != nil {
		s.logger.Error("failed to remove from list", "error", err, "listID", id)
		return err
	}
	s.logger.Info("removed item from list", "listID", id, "item", key)
	return nil
}

func (s *Service) ListItems(id string) ([]domain.MediaItem, error) {
	return s.store.ListItems(id)
}

// Membership reports which lists contain key
func (s *Service) Membership(key domain.ItemKey) (map[string]bool, error) {
	lists, err := s.store.Lists()
	if err != nil {
		return nil, err
	}

	membership := make(map[string]bool)
	for _, l := range lists {
		items, err := s.store.ListItems(l.ID)
		if err != nil {
			s.logger.Error("failed to read list for membership check", "error", err, "listID", l.ID)
			continue
		}
		if domain.KeysOf(items).Has(key) {
			membership[l.ID] = true
		}
	}
	return membership, nil
}

// === History ===

func (s *Service) RecordWatched(ctx context.Context, item domain.MediaItem, at time.Time) error {
	item, err := s.resolve(ctx, item)
	if err != nil {
		return err
	}
	return s.store.RecordWatched(item, at)
}

func (s *Service) History(limit int) ([]domain.WatchEntry, error) {
	return s.store.History(limit)
}

// PoolItems returns favorites followed by every list's items, without
// duplicates. Read failures are logged and skipped.
func (s *Service) PoolItems() []domain.MediaItem {
	var pool []domain.MediaItem

	favs, err := s.store.Favorites()
	if err != nil {
		s.logger.Warn("failed to read favorites for pool", "error", err)
	}
	pool = append(pool, favs...)

	lists, err := s.store.Lists()
	if err != nil {
		s.logger.Warn("failed to read lists for pool", "error", err)
	}
	for _, l := range lists {
		items, err := s.store.ListItems(l.ID)
		if err != nil {
			s.logger.Warn("failed to read list for pool", "error", err, "listID", l.ID)
			continue
		}
		pool = append(pool, items...)
	}
	return dedupe.Self(pool)
}
