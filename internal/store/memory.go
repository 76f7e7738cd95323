package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/transit"
)

var (
	// ErrNotFound is returned when no feed is available for a given site.
	ErrNotFound = errors.New("no feed for site")
)

// FeedHistory holds an epoch-ordered list of feeds for a site.
type FeedHistory struct {
	Feeds []transit.Feed
}

// MemoryStore is a concurrency-safe in-memory feed store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: site key, value: history
	data map[string]*FeedHistory

	// retention configuration
	maxHistory int           // max number of feeds per site
	maxAge     time.Duration // optional max age of a feed's epoch
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*FeedHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveFeed appends a feed for a site and enforces retention.
func (s *MemoryStore) SaveFeed(site geo.Site, f transit.Feed) {
	key := site.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &FeedHistory{}
		s.data[key] = history
	}

	// Feeds normally arrive in order; keep the slice sorted if not.
	i := len(history.Feeds)
	for i > 0 && history.Feeds[i-1].Epoch.After(f.Epoch) {
		i--
	}
	history.Feeds = append(history.Feeds, transit.Feed{})
	copy(history.Feeds[i+1:], history.Feeds[i:])
	history.Feeds[i] = f

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Feeds) > s.maxHistory {
		over := len(history.Feeds) - s.maxHistory
		history.Feeds = history.Feeds[over:]
	}

	// Enforce retention by age. The newest feed is always kept.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Feeds)-1; i++ {
			if !history.Feeds[i].Epoch.Before(cutoff) {
				break
			}
		}
		history.Feeds = history.Feeds[i:]
	}
}

// GetLatest returns the feed with the latest epoch for a site.
func (s *MemoryStore) GetLatest(site geo.Site) (transit.Feed, error) {
	key := site.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Feeds) == 0 {
		return transit.Feed{}, ErrNotFound
	}
	return history.Feeds[len(history.Feeds)-1], nil
}

// GetRange returns all feeds for a site with epochs between from and to (inclusive).
func (s *MemoryStore) GetRange(site geo.Site, from, to time.Time) ([]transit.Feed, error) {
	key := site.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Feeds) == 0 {
		return nil, ErrNotFound
	}

	var result []transit.Feed
	for _, f := range history.Feeds {
		if !f.Epoch.Before(from) && !f.Epoch.After(to) {
			result = append(result, f)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

var _ transit.Store = (*MemoryStore)(nil)
