package domain

import "time"

// List is a user-curated collection of titles
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchEntry is one record of the watch history
type WatchEntry struct {
	Item      MediaItem `json:"item"`
	WatchedAt time.Time `json:"watched_at"`
}
