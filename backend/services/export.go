package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"georetail/backend/models"

	"github.com/xuri/excelize/v2"
)

const ExportSheet = "Cities"

var exportHeader = []string{
	"rank", "name", "countrycode", "continent", "latitude", "longitude",
	"gdp_per_capita", "store_count", "econ_viability", "expansion_score",
}

// WriteCSV writes the cities in the order given, rank starting at 1
func WriteCSV(w io.Writer, cities []models.City) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, c := range cities {
		rec := []string{
			strconv.Itoa(i + 1),
			csvText(c.Name),
			csvText(c.CountryCode),
			csvText(c.ContinentName),
			strconv.FormatFloat(c.Latitude, 'f', -1, 64),
			strconv.FormatFloat(c.Longitude, 'f', -1, 64),
			strconv.FormatFloat(c.GDPPerCapita, 'f', -1, 64),
			strconv.Itoa(c.StoreCount),
			strconv.FormatFloat(c.EconViability, 'f', -1, 64),
			strconv.FormatFloat(c.ExpansionScore, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvText neutralizes text cells a spreadsheet would evaluate as a formula.
// Numeric columns are written as numbers and are left alone.
func csvText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// WriteXLSX writes the same table as WriteCSV into a single sheet workbook
func WriteXLSX(w io.Writer, cities []models.City) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, c := range cities {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			i + 1, c.Name, c.CountryCode, c.ContinentName, c.Latitude, c.Longitude,
			c.GDPPerCapita, c.StoreCount, c.EconViability, c.ExpansionScore,
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(ExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
