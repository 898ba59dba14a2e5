package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/marquee/internal/domain"
)

// Bucket names
var (
	bucketFavorites = []byte("favorites")
	bucketLists     = []byte("lists")
	bucketListItems = []byte("list_items")
	bucketHistory   = []byte("history")
)

var allBuckets = [][]byte{bucketFavorites, bucketLists, bucketListItems, bucketHistory}

// entry is the stored form of a collected title
type entry struct {
	Item    domain.MediaItem `json:"item"`
	AddedAt time.Time        `json:"added_at"`
}

// CollectionStore implements domain.CollectionStore using BoltDB.
// With an empty path it keeps everything in memory.
type CollectionStore struct {
	db  *bolt.DB
	now func() time.Time

	wmu sync.Mutex   // serializes multi-step writes
	mu  sync.RWMutex // protects cache

	// Hot-path read cache; in memory-only mode it is the whole store
	cache map[string][]byte
}

var _ domain.CollectionStore = (*CollectionStore)(nil)

// Open opens (or creates) the database at path. An empty path gives a
// memory-only store.
func Open(path string) (*CollectionStore, error) {
	s := &CollectionStore{cache: make(map[string][]byte), now: time.Now}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func (s *CollectionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func cacheKey(bucket []byte, key string) string {
	return string(bucket) + ":" + key
}

func (s *CollectionStore) get(bucket []byte, key string, dest any) (bool, error) {
	ck := cacheKey(bucket, key)

	s.mu.RLock()
	data, ok := s.cache[ck]
	s.mu.RUnlock()

	if !ok && s.db != nil {
		err := s.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
				data = slices.Clone(v)
			}
			return nil
		})
		if err != nil {
			return false, err
		}
		if data != nil {
			s.mu.Lock()
			s.cache[ck] = data
			s.mu.Unlock()
		}
	}

	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", ck, err)
	}
	return true, nil
}

func (s *CollectionStore) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucket).Put([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cache[cacheKey(bucket, key)] = data
	s.mu.Unlock()
	return nil
}

func (s *CollectionStore) delete(bucket []byte, key string) error {
	s.mu.Lock()
	delete(s.cache, cacheKey(bucket, key))
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

func (s *CollectionStore) deletePrefix(bucket []byte, prefix string) error {
	s.mu.Lock()
	cachePrefix := cacheKey(bucket, prefix)
	for k := range s.cache {
		if strings.HasPrefix(k, cachePrefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		c := b.Cursor()
		p := []byte(prefix)
		var keys [][]byte
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, slices.Clone(k))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// scan calls fn for every key with prefix, in key order
func (s *CollectionStore) scan(bucket []byte, prefix string, fn func(key string, data []byte) error) error {
	if s.db != nil {
		return s.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucket).Cursor()
			for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
				if err := fn(string(k), v); err != nil {
					return err
				}
			}
			return nil
		})
	}

	s.mu.RLock()
	cachePrefix := cacheKey(bucket, prefix)
	var keys []string
	for k := range s.cache {
		if strings.HasPrefix(k, cachePrefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.cache[k]
	}
	s.mu.RUnlock()

	trim := len(bucket) + 1
	for i, k := range keys {
		if err := fn(k[trim:], values[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeAll[T any](s *CollectionStore, bucket []byte, prefix string) ([]T, error) {
	var out []T
	err := s.scan(bucket, prefix, func(key string, data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s:%s: %w", bucket, key, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// === Favorites (key: {type}:{id}) ===

func (s *CollectionStore) AddFavorite(item domain.MediaItem) error {
	if !item.MediaType.IsTitle() {
		return fmt.Errorf("cannot favorite %s", item.Key())
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	key := item.Key().String()
	var existing entry
	found, err := s.get(bucketFavorites, key, &existing)
	if err != nil {
		return err
	}
	added := s.now()
	if found {
		added = existing.AddedAt
	}
	return s.set(bucketFavorites, key, entry{Item: item, AddedAt: added})
}

func (s *CollectionStore) RemoveFavorite(key domain.ItemKey) error {
	return s.delete(bucketFavorites, key.String())
}

// Favorites returns favorites newest first
func (s *CollectionStore) Favorites() ([]domain.MediaItem, error) {
	entries, err := decodeAll[entry](s, bucketFavorites, "")
	if err != nil {
		return nil, err
	}
	return itemsNewestFirst(entries), nil
}

func (s *CollectionStore) IsFavorite(key domain.ItemKey) (bool, error) {
	var e entry
	return s.get(bucketFavorites, key.String(), &e)
}

func itemsNewestFirst(entries []entry) []domain.MediaItem {
	slices.SortStableFunc(entries, func(a, b entry) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	items := make([]domain.MediaItem, len(entries))
	for i, e := range entries {
		items[i] = e.Item
	}
	return items
}

// === Lists (lists key: {id}; list_items key: {id}/{type}:{id}) ===

func listItemKey(listID string, key domain.ItemKey) string {
	return listID + "/" + key.String()
}

func (s *CollectionStore) CreateList(name string) (*domain.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("list name is required")
	}
	now := s.now()
	l := &domain.List{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.set(bucketLists, l.ID, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *CollectionStore) list(id string) (*domain.List, error) {
	var l domain.List
	found, err := s.get(bucketLists, id, &l)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrListNotFound, id)
	}
	return &l, nil
}

func (s *CollectionStore) RenameList(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("list name is required")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	l, err := s.list(id)
	if err != nil {
		return err
	}
	l.Name = name
	l.UpdatedAt = s.now()
	return s.set(bucketLists, id, l)
}

func (s *CollectionStore) DeleteList(id string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.list(id); err != nil {
		return err
	}
	if err := s.deletePrefix(bucketListItems, id+"/"); err != nil {
		return err
	}
	return s.delete(bucketLists, id)
}

// Lists returns every list, most recently updated first, with item counts
func (s *CollectionStore) Lists() ([]*domain.List, error) {
	lists, err := decodeAll[*domain.List](s, bucketLists, "")
	if err != nil {
		return nil, err
	}
	for _, l := range lists {
		n := 0
		if err := s.scan(bucketListItems, l.ID+"/", func(string, []byte) error { n++; return nil }); err != nil {
			return nil, err
		}
		l.ItemCount = n
	}
	slices.SortStableFunc(lists, func(a, b *domain.List) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return lists, nil
}

func (s *CollectionStore) AddToList(id string, item domain.MediaItem) error {
	if !item.MediaType.IsTitle() {
		return fmt.Errorf("cannot add %s to a list", item.Key())
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	l, err := s.list(id)
	if err != nil {
		return err
	}
	key := listItemKey(id, item.Key())
	e := entry{Item: item, AddedAt: s.now()}
	var existing entry
	found, err := s.get(bucketListItems, key, &existing)
	if err != nil {
		return err
	}
	if found {
		e.AddedAt = existing.AddedAt
	}
	if err := s.set(bucketListItems, key, e); err != nil {
		return err
	}
	l.UpdatedAt = s.now()
	return s.set(bucketLists, id, l)
}

func (s *CollectionStore) RemoveFromList(id string, key domain.ItemKey) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	l, err := s.list(id)
	if err != nil {
		return err
	}
	if err := s.delete(bucketListItems, listItemKey(id, key)); err != nil {
		return err
	}
	l.UpdatedAt = s.now()
	return s.set(bucketLists, id, l)
}

// ListItems returns the items of a list in the order they were added
func (s *CollectionStore) ListItems(id string) ([]domain.MediaItem, error) {
	if _, err := s.list(id); err != nil {
		return nil, err
	}
	entries, err := decodeAll[entry](s, bucketListItems, id+"/")
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return a.AddedAt.Compare(b.AddedAt)
	})
	items := make([]domain.MediaItem, len(entries))
	for i, e := range entries {
		items[i] = e.Item
	}
	return items, nil
}

// === History (key: {unix nanos, zero padded}/{type}:{id}) ===

func (s *CollectionStore) RecordWatched(item domain.MediaItem, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	key := fmt.Sprintf("%020d/%s", at.UnixNano(), item.Key())
	return s.set(bucketHistory, key, domain.WatchEntry{Item: item, WatchedAt: at.UTC()})
}

// History returns up to limit entries, newest first. limit <= 0 returns all.
func (s *CollectionStore) History(limit int) ([]domain.WatchEntry, error) {
	entries, err := decodeAll[domain.WatchEntry](s, bucketHistory, "")
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
