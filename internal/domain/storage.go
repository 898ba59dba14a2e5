package domain

import "time"

// CollectionStore persists the user's favorites, lists and watch history.
// Implementations must be safe for concurrent use.
type CollectionStore interface {
	// === Favorites ===
	AddFavorite(item MediaItem) error
	RemoveFavorite(key ItemKey) error
	Favorites() ([]MediaItem, error)
	IsFavorite(key ItemKey) (bool, error)

	// === Lists ===
	CreateList(name string) (*List, error)
	RenameList(id, name string) error
	DeleteList(id string) error
	Lists() ([]*List, error)
	AddToList(id string, item MediaItem) error
	RemoveFromList(id string, key ItemKey) error
	ListItems(id string) ([]MediaItem, error)

	// === History ===
	RecordWatched(item MediaItem, at time.Time) error
	History(limit int) ([]WatchEntry, error)

	// === Lifecycle ===
	Close() error
}

// LoadEvent describes the outcome of one row page load.
type LoadEvent struct {
	Section  string
	Page     int
	Source   Provenance
	Items    int
	Fallback bool // primary failed or was empty and the secondary was consulted
	Err      error
	Duration time.Duration
}

// LoadObserver receives an event for every row page load.
type LoadObserver interface {
	OnLoad(event LoadEvent)
}

// SearchEvent describes the outcome of one search request.
type SearchEvent struct {
	Mode     string
	Results  int
	Err      error
	Duration time.Duration
}

// SearchObserver receives an event for every search request.
type SearchObserver interface {
	OnSearch(event SearchEvent)
}

// NoOpObserver discards events (for testing/batch operations).
type NoOpObserver struct{}

func (NoOpObserver) OnLoad(LoadEvent)     {}
func (NoOpObserver) OnSearch(SearchEvent) {}
