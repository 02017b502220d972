package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"georetail/backend/models"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyDataset      = errors.New("dataset contains no valid cities")
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// Columns every dataset must provide
const (
	colName           = "name"
	colCountryCode    = "countrycode"
	colLatitude       = "latitude"
	colLongitude      = "longitude"
	colGDPPerCapita   = "gdp_per_capita"
	colStoreCount     = "store_count"
	colEconViability  = "econ_viability"
	colExpansionScore = "expansion_score"
)

var requiredColumns = []string{
	colName, colCountryCode, colLatitude, colLongitude,
	colGDPPerCapita, colStoreCount, colEconViability, colExpansionScore,
}

// Accepted spellings that differ from the canonical column name
var columnAliases = map[string]string{
	"country_code": colCountryCode,
	"city":         colName,
	"lat":          colLatitude,
	"lon":          colLongitude,
	"lng":          colLongitude,
}

// RowError describes a dataset row that was skipped
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadResult is a parsed, enriched dataset
type LoadResult struct {
	Source  string
	Cities  []models.City
	Skipped []RowError
}

// LoadCities reads a .csv or .xlsx dataset from disk
func LoadCities(path string, resolver *ContinentResolver) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	res, err := ParseDataset(filepath.Base(path), f, resolver)
	if err != nil {
		return nil, err
	}
	res.Source = path
	return res, nil
}

// ParseDataset picks the parser from the file name extension
func ParseDataset(name string, r io.Reader, resolver *ContinentResolver) (*LoadResult, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return ParseCSV(r, resolver)
	case ".xlsx":
		return ParseXLSX(r, resolver)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ParseCSV parses a city CSV and joins continent names onto each row.
// Stray quotes are kept as text. A data row the reader still cannot split
// is skipped like any other invalid row; an unreadable header is fatal.
func ParseCSV(r io.Reader, resolver *ContinentResolver) (*LoadResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var rows [][]string
	var lines []int
	var unreadable []RowError
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && len(rows) > 0 {
				unreadable = append(unreadable, RowError{Line: perr.StartLine, Reason: perr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}

	res, err := parseTable(rows, lines, resolver)
	if res != nil && len(unreadable) > 0 {
		res.Skipped = append(res.Skipped, unreadable...)
		sort.SliceStable(res.Skipped, func(i, j int) bool {
			return res.Skipped[i].Line < res.Skipped[j].Line
		})
	}
	return res, err
}

// ParseXLSX parses the first sheet of a workbook laid out like the CSV
func ParseXLSX(r io.Reader, resolver *ContinentResolver) (*LoadResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDataset
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseTable(rows, nil, resolver)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.Fields(h), "_")
	if canonical, ok := columnAliases[h]; ok {
		return canonical
	}
	return h
}

// parseTable validates rows against the header in rows[0]. lines holds the
// source line of each row; nil means row i sits on line i+1.
func parseTable(rows [][]string, lines []int, resolver *ContinentResolver) (*LoadResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}

	idx := make(map[string]int, len(requiredColumns))
	for i, h := range rows[0] {
		key := normalizeHeader(h)
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	res := &LoadResult{}
	for i := 1; i < len(rows); i++ {
		rec := rows[i]
		line := i + 1
		if lines != nil {
			line = lines[i]
		}
		if isBlank(rec) {
			continue
		}

		city, err := parseCity(rec, idx)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}

		city.ContinentCode, city.ContinentName = resolver.Resolve(city.CountryCode)
		city.SourceRow = len(res.Cities)
		res.Cities = append(res.Cities, city)
	}

	if len(res.Cities) == 0 {
		return res, ErrEmptyDataset
	}
	return res, nil
}

func parseCity(rec []string, idx map[string]int) (models.City, error) {
	field := func(col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var c models.City
	c.Name = field(colName)
	if c.Name == "" {
		return c, errors.New("name is empty")
	}
	c.CountryCode = strings.ToUpper(field(colCountryCode))

	var err error
	if c.Latitude, err = parseNumber(field(colLatitude), colLatitude); err != nil {
		return c, err
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return c, fmt.Errorf("latitude %g out of range", c.Latitude)
	}
	if c.Longitude, err = parseNumber(field(colLongitude), colLongitude); err != nil {
		return c, err
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return c, fmt.Errorf("longitude %g out of range", c.Longitude)
	}
	if c.GDPPerCapita, err = parseNumber(field(colGDPPerCapita), colGDPPerCapita); err != nil {
		return c, err
	}
	if c.GDPPerCapita < 0 {
		return c, fmt.Errorf("gdp_per_capita %g is negative", c.GDPPerCapita)
	}

	stores, err := parseNumber(field(colStoreCount), colStoreCount)
	if err != nil {
		return c, err
	}
	if stores < 0 {
		return c, fmt.Errorf("store_count %g is negative", stores)
	}
	c.StoreCount = int(math.Round(stores))

	// econ_viability is informational only, blanks load as zero
	if v := field(colEconViability); v != "" {
		if c.EconViability, err = parseNumber(v, colEconViability); err != nil {
			return c, err
		}
	}

	if c.ExpansionScore, err = parseNumber(field(colExpansionScore), colExpansionScore); err != nil {
		return c, err
	}
	if c.ExpansionScore < 0 || c.ExpansionScore > 1 {
		return c, fmt.Errorf("expansion_score %g outside [0, 1]", c.ExpansionScore)
	}
	return c, nil
}

func parseNumber(s, col string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is empty", col)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q is not a number", col, s)
	}
	return v, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
