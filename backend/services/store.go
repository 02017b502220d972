package services

import (
	"fmt"
	"strings"

	"georetail/backend/models"
	"georetail/backend/system"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase opens the SQLite database holding the city snapshot,
// presets and admin accounts, and migrates the schema.
func OpenDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	if isMemoryDSN(path) {
		// Every new connection to :memory: is a fresh empty database
		sqlDB.SetMaxOpenConns(1)
	} else if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		system.Warn("Failed to enable WAL mode: %v", err)
	}

	if err := db.AutoMigrate(
		&models.City{},
		&models.FilterPreset{},
		&models.Admin{},
	); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// CityStore queries the loaded city snapshot
type CityStore struct {
	db *gorm.DB
}

func NewCityStore(db *gorm.DB) *CityStore {
	return &CityStore{db: db}
}

// Replace swaps the whole snapshot in one transaction
func (s *CityStore) Replace(cities []models.City) error {
	rows := make([]models.City, len(cities))
	copy(rows, cities)
	for i := range rows {
		rows[i].ID = 0
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.City{}).Error; err != nil {
			return fmt.Errorf("failed to clear cities: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to insert cities: %w", err)
		}
		return nil
	})
}

// scoped applies the sidebar predicates, combined with AND
func scoped(db *gorm.DB, f Filter) *gorm.DB {
	q := db.Model(&models.City{})
	if f.ContinentsSet {
		if len(f.Continents) == 0 {
			q = q.Where("1 = 0")
		} else {
			q = q.Where("continent_name IN ?", f.Continents)
		}
	}
	if f.GDPMin != nil {
		q = q.Where("gdp_per_capita >= ?", *f.GDPMin)
	}
	if f.GDPMax != nil {
		q = q.Where("gdp_per_capita <= ?", *f.GDPMax)
	}
	if f.StoresMin != nil {
		q = q.Where("store_count >= ?", *f.StoresMin)
	}
	if f.StoresMax != nil {
		q = q.Where("store_count <= ?", *f.StoresMax)
	}
	return q
}

// Query returns matching cities ranked by expansion score, ties in file
// order, along with the total number of matches. limit <= 0 returns all.
// Both reads share one transaction so a concurrent Replace cannot split them.
func (s *CityStore) Query(f Filter, limit, offset int) ([]models.City, int64, error) {
	var total int64
	cities := make([]models.City, 0)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := scoped(tx, f).Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count cities: %w", err)
		}

		q := scoped(tx, f).Order("expansion_score DESC").Order("source_row ASC")
		if limit > 0 {
			q = q.Limit(limit).Offset(offset)
		}
		if err := q.Find(&cities).Error; err != nil {
			return fmt.Errorf("failed to query cities: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return cities, total, nil
}

// All returns every city in rank order
func (s *CityStore) All() ([]models.City, error) {
	cities, _, err := s.Query(Filter{}, 0, 0)
	return cities, err
}

// Continents returns the continents present in the snapshot, in display order
func (s *CityStore) Continents() ([]string, error) {
	var names []string
	if err := s.db.Model(&models.City{}).Distinct().Pluck("continent_name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list continents: %w", err)
	}
	return SortContinents(names), nil
}

// Bounds computes the slider ranges and continent options
func (s *CityStore) Bounds() (*models.Bounds, error) {
	var agg struct {
		GDPMin    float64 `gorm:"column:gdp_min"`
		GDPMax    float64 `gorm:"column:gdp_max"`
		StoresMin int     `gorm:"column:stores_min"`
		StoresMax int     `gorm:"column:stores_max"`
		Count     int64   `gorm:"column:city_count"`
	}
	err := s.db.Model(&models.City{}).
		Select("COALESCE(MIN(gdp_per_capita), 0) AS gdp_min, " +
			"COALESCE(MAX(gdp_per_capita), 0) AS gdp_max, " +
			"COALESCE(MIN(store_count), 0) AS stores_min, " +
			"COALESCE(MAX(store_count), 0) AS stores_max, " +
			"COUNT(*) AS city_count").
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute bounds: %w", err)
	}

	continents, err := s.Continents()
	if err != nil {
		return nil, err
	}

	return &models.Bounds{
		Continents: continents,
		GDPMin:     agg.GDPMin,
		GDPMax:     agg.GDPMax,
		StoresMin:  agg.StoresMin,
		StoresMax:  agg.StoresMax,
		Count:      agg.Count,
	}, nil
}
