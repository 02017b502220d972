package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidFilter = errors.New("invalid filter")

// Filter is the sidebar selection. Nil bounds are open; Continents only
// applies when ContinentsSet is true, so an explicit empty selection
// matches nothing while an absent one matches everything.
type Filter struct {
	Continents    []string `json:"continents,omitempty" validate:"dive,continent"`
	ContinentsSet bool     `json:"continents_set"`
	GDPMin        *float64 `json:"gdp_min,omitempty" validate:"omitempty,gte=0"`
	GDPMax        *float64 `json:"gdp_max,omitempty" validate:"omitempty,gte=0"`
	StoresMin     *int     `json:"stores_min,omitempty" validate:"omitempty,gte=0"`
	StoresMax     *int     `json:"stores_max,omitempty" validate:"omitempty,gte=0"`
}

// Normalize canonicalizes continent names, drops duplicates and sorts
// them in display order. Unrecognized names are kept for Validate to report.
func (f Filter) Normalize() Filter {
	if len(f.Continents) == 0 {
		return f
	}
	seen := make(map[string]bool, len(f.Continents))
	out := make([]string, 0, len(f.Continents))
	for _, c := range f.Continents {
		name, ok := CanonicalContinent(c)
		if !ok {
			name = strings.TrimSpace(c)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	f.Continents = SortContinents(out)
	f.ContinentsSet = true
	return f
}

// Validate checks field constraints and that every range is ordered
func (f Filter) Validate() error {
	if err := ValidateStruct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if f.GDPMin != nil && f.GDPMax != nil && *f.GDPMin > *f.GDPMax {
		return fmt.Errorf("%w: gdp_min %g is greater than gdp_max %g", ErrInvalidFilter, *f.GDPMin, *f.GDPMax)
	}
	if f.StoresMin != nil && f.StoresMax != nil && *f.StoresMin > *f.StoresMax {
		return fmt.Errorf("%w: stores_min %d is greater than stores_max %d", ErrInvalidFilter, *f.StoresMin, *f.StoresMax)
	}
	return nil
}

// Key is a canonical cache key; equal selections produce equal keys
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("c=")
	if f.ContinentsSet {
		b.WriteString(strings.Join(SortContinents(f.Continents), "|"))
	} else {
		b.WriteString("*")
	}
	b.WriteString(";gdp=")
	b.WriteString(floatBound(f.GDPMin))
	b.WriteString(":")
	b.WriteString(floatBound(f.GDPMax))
	b.WriteString(";stores=")
	b.WriteString(intBound(f.StoresMin))
	b.WriteString(":")
	b.WriteString(intBound(f.StoresMax))
	return b.String()
}

// IsZero reports whether the filter selects the whole snapshot
func (f Filter) IsZero() bool {
	return !f.ContinentsSet && f.GDPMin == nil && f.GDPMax == nil && f.StoresMin == nil && f.StoresMax == nil
}

func floatBound(v *float64) string {
	if v == nil {
		return "*"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func intBound(v *int) string {
	if v == nil {
		return "*"
	}
	return strconv.Itoa(*v)
}
