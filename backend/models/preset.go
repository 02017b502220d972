package models

import "time"

// FilterPreset is a saved sidebar selection
type FilterPreset struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"unique;not null" json:"name" validate:"required,max=64"`
	Description string    `json:"description" validate:"max=256"`
	Continents  string    `gorm:"type:text" json:"continents"` // Comma-separated continent names: "Asia,Europe"
	GDPMin      *float64  `json:"gdp_min,omitempty" validate:"omitempty,gte=0"`
	GDPMax      *float64  `json:"gdp_max,omitempty" validate:"omitempty,gte=0"`
	StoresMin   *int      `json:"stores_min,omitempty" validate:"omitempty,gte=0"`
	StoresMax   *int      `json:"stores_max,omitempty" validate:"omitempty,gte=0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
