package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNormalize(t *testing.T) {
	f := Filter{Continents: []string{" europe", "AS", "Europe", "atlantis"}}.Normalize()

	assert.True(t, f.ContinentsSet)
	assert.Equal(t, []string{"Asia", "Europe", "atlantis"}, f.Continents)

	empty := Filter{ContinentsSet: true}.Normalize()
	assert.True(t, empty.ContinentsSet)
	assert.Empty(t, empty.Continents)
}

func TestFilterKey(t *testing.T) {
	a := Filter{Continents: []string{"Europe", "Asia"}, GDPMin: floatPtr(1000)}.Normalize()
	b := Filter{Continents: []string{"as", "EU"}, GDPMin: floatPtr(1e3)}.Normalize()
	assert.Equal(t, a.Key(), b.Key())

	assert.NotEqual(t, Filter{}.Key(), Filter{ContinentsSet: true}.Key(),
		"no selection and an empty selection differ")
	assert.NotEqual(t, Filter{StoresMin: intPtr(1)}.Key(), Filter{StoresMax: intPtr(1)}.Key())
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want string
	}{
		{"gdp order", Filter{GDPMin: floatPtr(5), GDPMax: floatPtr(1)}, "gdp_min"},
		{"stores order", Filter{StoresMin: intPtr(5), StoresMax: intPtr(1)}, "stores_min"},
		{"negative gdp", Filter{GDPMin: floatPtr(-1)}, "gdp_min must be greater than or equal to 0"},
		{"negative stores", Filter{StoresMax: intPtr(-3)}, "stores_max"},
		{"unknown continent", Filter{Continents: []string{"Atlantis"}, ContinentsSet: true}, "must be a known continent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			require.ErrorIs(t, err, ErrInvalidFilter)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{GDPMin: floatPtr(3), GDPMax: floatPtr(3), StoresMin: intPtr(0)}.Validate())
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{ContinentsSet: true}.IsZero())
	assert.False(t, Filter{GDPMax: floatPtr(1)}.IsZero())
}
