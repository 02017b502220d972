package services

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRankingTop(t *testing.T) {
	svc := newTestRanking(t, 3)

	res, err := svc.Top(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tokyo", "Berlin", "Austin"}, cityNames(res.Cities))
	assert.Equal(t, int64(7), res.Matched)
	assert.False(t, res.Empty())

	res, err = svc.Top(Filter{Continents: []string{"oc", "south america"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sydney", "Sao Paulo"}, cityNames(res.Cities))
	assert.Equal(t, []string{"Oceania", "South America"}, res.Filter.Continents)

	res, err = svc.Top(Filter{ContinentsSet: true})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Zero(t, res.Matched)
}

func TestRankingTopDefaultsToTen(t *testing.T) {
	svc := NewRankingService(newTestStore(t), 0, time.Minute, nil)
	assert.Equal(t, DefaultTopN, svc.TopN())
}

func TestRankingTopRejectsInvalidFilter(t *testing.T) {
	svc := newTestRanking(t, 10)

	_, err := svc.Top(Filter{GDPMin: floatPtr(10), GDPMax: floatPtr(5)})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.Top(Filter{Continents: []string{"Atlantis"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestRankingCacheAndReload(t *testing.T) {
	svc := newTestRanking(t, 10)

	first, err := svc.Top(Filter{Continents: []string{"Europe", "Asia"}})
	require.NoError(t, err)
	again, err := svc.Top(Filter{Continents: []string{"asia", "EU", "Asia"}})
	require.NoError(t, err)
	assert.Same(t, first, again, "equivalent filters share a cache entry")
	assert.Equal(t, 1, svc.CacheItems())

	res := parseSample(t)
	res.Cities = res.Cities[:1]
	res.Source = "small.csv"
	info, err := svc.Reload(res)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Cities)
	assert.Equal(t, "small.csv", svc.Info().Source)
	assert.Zero(t, svc.CacheItems(), "reload flushes the cache")

	top, err := svc.Top(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lagos"}, cityNames(top.Cities))
}

func TestRankingReloadEmptyKeepsSnapshot(t *testing.T) {
	svc := newTestRanking(t, 10)

	info, err := svc.Reload(&LoadResult{Source: "empty.csv"})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Equal(t, 7, info.Cities)
	assert.Equal(t, "sample.csv", svc.Info().Source)

	all, err := svc.Matching(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestRankingList(t *testing.T) {
	svc := newTestRanking(t, 10)

	page, err := svc.List(Filter{}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sydney", "Sao Paulo", "Lagos"}, cityNames(page.Cities))
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 2, page.Page)

	page, err = svc.List(Filter{}, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageLimit, page.Limit)
	assert.Len(t, page.Cities, 7)
}

func TestRankingBounds(t *testing.T) {
	svc := newTestRanking(t, 10)

	b, err := svc.Bounds()
	require.NoError(t, err)
	assert.Equal(t, int64(7), b.Count)

	cached, err := svc.Bounds()
	require.NoError(t, err)
	assert.Same(t, b, cached)
}

func TestRankingReloadDuringQuery(t *testing.T) {
	// A file database lets the reload write while the query transaction reads
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	svc := NewRankingService(NewCityStore(db), 10, time.Minute, NewMetrics())
	_, err = svc.Reload(parseSample(t))
	require.NoError(t, err)

	single := &LoadResult{Source: "single.csv", Cities: parseSample(t).Cities[1:2]}
	var armed atomic.Bool
	err = db.Callback().Query().After("gorm:query").Register("test:reload_between_reads", func(*gorm.DB) {
		if armed.CompareAndSwap(true, false) {
			_, err := svc.Reload(single)
			assert.NoError(t, err)
		}
	})
	require.NoError(t, err)
	armed.Store(true)

	first, err := svc.Top(Filter{})
	require.NoError(t, err)
	assert.False(t, armed.Load(), "reload ran between count and find")
	assert.Equal(t, int64(len(first.Cities)), first.Matched, "count and rows come from one snapshot")
	assert.Equal(t, 1, svc.Info().Cities)

	second, err := svc.Top(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tokyo"}, cityNames(second.Cities))
	assert.Equal(t, int64(1), second.Matched)
}
