package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"georetail/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteCSV(t *testing.T) {
	cities := parseSample(t).Cities[1:3]

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cities))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{"1", "Tokyo", "JP", "Asia", "35.68", "139.69", "40000", "120", "0.88", "0.91"}, records[1])
	assert.Equal(t, "2", records[2][0])
	assert.Equal(t, "Berlin", records[2][1])
}

func TestWriteCSVEscapesFormulas(t *testing.T) {
	cities := []models.City{
		{Name: `=HYPERLINK("http://evil","x")`, CountryCode: "US", ContinentName: "North America", Longitude: -97.74},
		{Name: "@SUM(A1)", CountryCode: "+1", ContinentName: "-Europe", Latitude: -33.87},
		{Name: "Austin-East", CountryCode: "US", ContinentName: "North America"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cities))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `'=HYPERLINK("http://evil","x")`, records[1][1])
	assert.Equal(t, "-97.74", records[1][5])
	assert.Equal(t, []string{"'@SUM(A1)", "'+1", "'-Europe", "-33.87"}, records[2][1:5])
	assert.Equal(t, "Austin-East", records[3][1])
}

func TestWriteXLSX(t *testing.T) {
	cities := parseSample(t).Cities

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, cities))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ExportSheet}, f.GetSheetList())
	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(cities)+1)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "Lagos", rows[1][1])
	assert.Equal(t, "Africa", rows[1][3])
}

func TestWriteEmptyExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "rank,name,countrycode,continent,latitude,longitude,gdp_per_capita,store_count,econ_viability,expansion_score\n", buf.String())

	buf.Reset()
	assert.NoError(t, WriteXLSX(&buf, nil))
	assert.NotZero(t, buf.Len())
}
