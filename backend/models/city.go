package models

import "time"

// City is one row of the ranked city snapshot
type City struct {
	ID             uint    `gorm:"primaryKey" json:"-"`
	SourceRow      int     `gorm:"column:source_row;index;not null" json:"source_row"` // Position in the source file, breaks score ties
	Name           string  `gorm:"column:name;not null" json:"name"`
	CountryCode    string  `gorm:"column:country_code;size:2;index" json:"countrycode"`
	ContinentCode  string  `gorm:"column:continent_code;size:2" json:"continent_code"`
	ContinentName  string  `gorm:"column:continent_name;index" json:"continent"`
	Latitude       float64 `gorm:"column:latitude" json:"latitude"`
	Longitude      float64 `gorm:"column:longitude" json:"longitude"`
	GDPPerCapita   float64 `gorm:"column:gdp_per_capita;index" json:"gdp_per_capita"`
	StoreCount     int     `gorm:"column:store_count;index" json:"store_count"`
	EconViability  float64 `gorm:"column:econ_viability" json:"econ_viability"`
	ExpansionScore float64 `gorm:"column:expansion_score;index" json:"expansion_score"`
}

// ScorePercent is the expansion score as shown on the chart
func (c City) ScorePercent() float64 {
	return c.ExpansionScore * 100
}

// DatasetInfo describes the snapshot currently served
type DatasetInfo struct {
	Source     string    `json:"source"`
	Cities     int       `json:"cities"`
	Skipped    int       `json:"skipped"`
	LoadedAt   time.Time `json:"loaded_at"`
	Continents []string  `json:"continents"`
}

// Bounds holds the sidebar defaults derived from the snapshot
type Bounds struct {
	Continents []string `json:"continents"`
	GDPMin     float64  `json:"gdp_min"`
	GDPMax     float64  `json:"gdp_max"`
	StoresMin  int      `json:"stores_min"`
	StoresMax  int      `json:"stores_max"`
	Count      int64    `json:"count"`
}
