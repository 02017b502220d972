package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andreiashu/geobed"
)

// Continent names as displayed in the sidebar
const (
	ContinentAfrica       = "Africa"
	ContinentAntarctica   = "Antarctica"
	ContinentAsia         = "Asia"
	ContinentEurope       = "Europe"
	ContinentNorthAmerica = "North America"
	ContinentOceania      = "Oceania"
	ContinentSouthAmerica = "South America"
	ContinentUnknown      = "Unknown"
)

// ContinentOrder is the fixed display order of the continent multiselect
var ContinentOrder = []string{
	ContinentAfrica,
	ContinentAsia,
	ContinentEurope,
	ContinentNorthAmerica,
	ContinentOceania,
	ContinentSouthAmerica,
	ContinentAntarctica,
	ContinentUnknown,
}

var continentNames = map[string]string{
	"AF": ContinentAfrica,
	"AN": ContinentAntarctica,
	"AS": ContinentAsia,
	"EU": ContinentEurope,
	"NA": ContinentNorthAmerica,
	"OC": ContinentOceania,
	"SA": ContinentSouthAmerica,
}

// ContinentResolver maps ISO 3166-1 alpha-2 country codes to continents
type ContinentResolver struct {
	table map[string]string
}

// NewContinentResolver builds the table from the geonames country data
// embedded in geobed. The shared geobed instance is loaded once per process.
func NewContinentResolver() (*ContinentResolver, error) {
	g, err := geobed.GetDefaultGeobed()
	if err != nil {
		return nil, fmt.Errorf("failed to load country data: %w", err)
	}
	return NewContinentResolverFrom(g.Countries), nil
}

// NewContinentResolverFrom builds a resolver over the given countries.
// Entries without an ISO code or with an unknown continent are ignored.
func NewContinentResolverFrom(countries []geobed.CountryInfo) *ContinentResolver {
	table := make(map[string]string, len(countries))
	for _, c := range countries {
		iso := strings.ToUpper(strings.TrimSpace(c.ISO))
		cc := strings.ToUpper(strings.TrimSpace(c.Continent))
		if iso == "" {
			continue
		}
		if _, ok := continentNames[cc]; !ok {
			continue
		}
		table[iso] = cc
	}
	return &ContinentResolver{table: table}
}

// Resolve returns the continent code and name for a country code.
// Unknown codes resolve to ("", "Unknown").
func (r *ContinentResolver) Resolve(countryCode string) (string, string) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	cc, ok := r.table[code]
	if !ok {
		return "", ContinentUnknown
	}
	return cc, continentNames[cc]
}

// Countries returns the number of countries the resolver knows
func (r *ContinentResolver) Countries() int {
	return len(r.table)
}

// CanonicalContinent matches a user supplied continent name or code
// case-insensitively. ok is false for anything not in ContinentOrder.
func CanonicalContinent(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if name, ok := continentNames[strings.ToUpper(s)]; ok {
		return name, true
	}
	for _, name := range ContinentOrder {
		if strings.EqualFold(name, s) {
			return name, true
		}
	}
	return "", false
}

// SortContinents orders continent names by ContinentOrder, unknown names last
func SortContinents(names []string) []string {
	rank := make(map[string]int, len(ContinentOrder))
	for i, n := range ContinentOrder {
		rank[n] = i
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, ok := rank[out[i]]
		if !ok {
			ri = len(ContinentOrder)
		}
		rj, ok := rank[out[j]]
		if !ok {
			rj = len(ContinentOrder)
		}
		return ri < rj
	})
	return out
}
