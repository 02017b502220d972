package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"georetail/backend/models"

	"github.com/andreiashu/geobed"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `name,countrycode,latitude,longitude,gdp_per_capita,store_count,econ_viability,expansion_score
Lagos,NG,6.45,3.39,2100,3,0.41,0.52
Tokyo,JP,35.68,139.69,40000,120,0.88,0.91
Berlin,DE,52.52,13.40,48000,40,0.79,0.74
Austin,US,30.27,-97.74,65000,25,0.81,0.74
Sydney,AU,-33.87,151.21,55000,30,0.77,0.66
Sao Paulo,BR,-23.55,-46.63,9000,15,0.55,0.61
Nowhere,ZZ,0,0,1000,0,0.1,0.05
`

// testCountries mirrors the geonames rows the fixtures use
var testCountries = []geobed.CountryInfo{
	{ISO: "NG", Continent: "AF"},
	{ISO: "CI", Continent: "AF"},
	{ISO: "AQ", Continent: "AN"},
	{ISO: "JP", Continent: "AS"},
	{ISO: "DE", Continent: "EU"},
	{ISO: "ES", Continent: "EU"},
	{ISO: "FR", Continent: "EU"},
	{ISO: "GB", Continent: "EU"},
	{ISO: "US", Continent: "NA"},
	{ISO: "AU", Continent: "OC"},
	{ISO: "BR", Continent: "SA"},
	{ISO: "EC", Continent: "SA"},
	{ISO: "PE", Continent: "SA"},
}

func newTestResolver() *ContinentResolver {
	return NewContinentResolverFrom(testCountries)
}

func parseSample(t *testing.T) *LoadResult {
	t.Helper()
	res, err := ParseCSV(strings.NewReader(sampleCSV), newTestResolver())
	require.NoError(t, err)
	res.Source = "sample.csv"
	return res
}

func newTestStore(t *testing.T) *CityStore {
	t.Helper()
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewCityStore(db)
}

// newTestRanking returns a ranking service loaded with sampleCSV
func newTestRanking(t *testing.T, topN int) *RankingService {
	t.Helper()
	svc := NewRankingService(newTestStore(t), topN, time.Minute, NewMetrics())
	_, err := svc.Reload(parseSample(t))
	require.NoError(t, err)
	return svc
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func cityNames(cities []models.City) []string {
	out := make([]string, len(cities))
	for i, c := range cities {
		out[i] = c.Name
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
