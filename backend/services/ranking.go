package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"georetail/backend/models"
	"georetail/backend/system"

	"github.com/patrickmn/go-cache"
)

var ErrPresetNotFound = errors.New("preset not found")

const (
	DefaultTopN      = 10
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// TopResult is the ranked slice shown on the map and chart
type TopResult struct {
	Filter  Filter        `json:"filter"`
	Matched int64         `json:"matched"`
	Cities  []models.City `json:"cities"`
}

// Empty reports whether nothing matched the filter
func (r *TopResult) Empty() bool {
	return len(r.Cities) == 0
}

// Page is one page of the full filtered list
type Page struct {
	Cities []models.City `json:"cities"`
	Total  int64         `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

// RankingService answers filter queries against the current snapshot and
// memoizes them until the next reload.
type RankingService struct {
	store   *CityStore
	cache   *cache.Cache
	metrics *Metrics
	topN    int

	mu   sync.RWMutex
	info models.DatasetInfo
	gen  uint64 // bumped by every successful Reload
}

func NewRankingService(store *CityStore, topN int, ttl time.Duration, metrics *Metrics) *RankingService {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &RankingService{
		store:   store,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
		topN:    topN,
	}
}

// TopN is the number of cities a Top query returns
func (s *RankingService) TopN() int {
	return s.topN
}

// Top returns the highest scoring cities that pass every predicate.
// Ties keep their dataset order.
func (s *RankingService) Top(f Filter) (*TopResult, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	key := "top:" + f.Key()
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		return cached.(*TopResult), nil
	}
	s.metrics.CacheMiss()

	gen := s.generation()
	start := time.Now()
	cities, total, err := s.store.Query(f, s.topN, 0)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveQuery("top", time.Since(start))

	res := &TopResult{Filter: f, Matched: total, Cities: cities}
	s.remember(key, res, gen)
	return res, nil
}

// List pages through every matching city in rank order
func (s *RankingService) List(f Filter, page, limit int) (*Page, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	start := time.Now()
	cities, total, err := s.store.Query(f, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveQuery("list", time.Since(start))

	return &Page{Cities: cities, Total: total, Page: page, Limit: limit}, nil
}

// Matching returns every city passing the filter, unpaged
func (s *RankingService) Matching(f Filter) ([]models.City, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.IsZero() {
		return s.store.All()
	}
	cities, _, err := s.store.Query(f, 0, 0)
	return cities, err
}

// Bounds returns the slider ranges of the current snapshot
func (s *RankingService) Bounds() (*models.Bounds, error) {
	if cached, ok := s.cache.Get("bounds"); ok {
		s.metrics.CacheHit()
		return cached.(*models.Bounds), nil
	}
	s.metrics.CacheMiss()

	gen := s.generation()
	b, err := s.store.Bounds()
	if err != nil {
		return nil, err
	}
	s.remember("bounds", b, gen)
	return b, nil
}

func (s *RankingService) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// remember caches v unless a reload finished since gen was read. The read
// lock keeps the check and the store ordered against Reload's flush.
func (s *RankingService) remember(key string, v interface{}, gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen != gen {
		return
	}
	s.cache.SetDefault(key, v)
}

// Reload replaces the snapshot with a freshly parsed dataset. On failure
// the previous snapshot stays in place.
func (s *RankingService) Reload(res *LoadResult) (models.DatasetInfo, error) {
	if res == nil || len(res.Cities) == 0 {
		return s.Info(), ErrEmptyDataset
	}

	if err := s.store.Replace(res.Cities); err != nil {
		return s.Info(), fmt.Errorf("failed to replace snapshot: %w", err)
	}

	continents, err := s.store.Continents()
	if err != nil {
		system.Warn("Failed to list continents after reload: %v", err)
	}

	info := models.DatasetInfo{
		Source:     res.Source,
		Cities:     len(res.Cities),
		Skipped:    len(res.Skipped),
		LoadedAt:   time.Now(),
		Continents: continents,
	}

	s.mu.Lock()
	s.info = info
	s.gen++
	s.cache.Flush()
	s.mu.Unlock()

	s.metrics.Loaded(info)
	system.Info("Loaded %d cities from %s (%d rows skipped)", info.Cities, info.Source, info.Skipped)
	return info, nil
}

// Info describes the snapshot currently served
func (s *RankingService) Info() models.DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// CacheItems is the number of memoized results
func (s *RankingService) CacheItems() int {
	return s.cache.ItemCount()
}
