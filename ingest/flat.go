package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/viktsys/tradejournal/models"
	"github.com/xuri/excelize/v2"
)

const (
	dialectFlat = "flat"

	// FlatTimestampLayout is the combined date and time of a flat log row,
	// e.g. "05FEB25 13:45:30.250000". Fractional seconds are optional.
	FlatTimestampLayout = "02Jan06 15:04:05"

	// flatSheet is the sheet name used by the platform's spreadsheet export.
	flatSheet = "tt-export"

	flatMinColumns = 7
)

// ParseFlatRow decodes one row of the flat chronological log:
// date, time, exchange, contract, side, size, price, and two ignored fields.
func ParseFlatRow(row []string, line int) (models.Fill, error) {
	var fill models.Fill
	if len(row) < flatMinColumns {
		return fill, fmt.Errorf("expected at least %d columns, got %d", flatMinColumns, len(row))
	}

	stamp := strings.TrimSpace(cleanField(row[0]) + " " + cleanField(row[1]))
	ts, err := time.Parse(FlatTimestampLayout, stamp)
	if err != nil {
		return fill, fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}

	contract := strings.Join(strings.Fields(cleanField(row[3])), " ")
	if contract == "" {
		return fill, errors.New("empty contract")
	}

	side, err := models.ParseSide(cleanField(row[4]))
	if err != nil {
		return fill, err
	}

	size, err := ParseInt(row[5])
	if err != nil {
		return fill, fmt.Errorf("invalid size: %w", err)
	}
	if size <= 0 {
		return fill, fmt.Errorf("non-positive size %d", size)
	}

	price, err := ParseDecimal(row[6])
	if err != nil {
		return fill, fmt.Errorf("invalid price: %w", err)
	}

	fill.Contract = contract
	fill.Exchange = cleanField(row[2])
	fill.Side = side
	fill.Quantity = size
	fill.Price = price
	fill.Timestamp = ts
	fill.Line = line
	return fill, nil
}

// ParseFlatRows decodes every row, drops the malformed ones and returns the
// fills in ascending timestamp order. Rows sharing a timestamp keep file order.
func ParseFlatRows(rows [][]string) ([]models.Fill, []Diagnostic) {
	fills := make([]models.Fill, 0, len(rows))
	var diags []Diagnostic

	for i, row := range rows {
		line := i + 1
		if isBlankRow(row) {
			continue
		}
		fill, err := ParseFlatRow(row, line)
		if err != nil {
			diags = append(diags, dropLine(dialectFlat, line, "malformed row", err))
			continue
		}
		fills = append(fills, fill)
	}

	sort.SliceStable(fills, func(i, j int) bool { return fills[i].Timestamp.Before(fills[j].Timestamp) })
	return fills, diags
}

// ReadFlatCSV reads the rows of a comma separated flat log.
func ReadFlatCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	lineNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Warn().Int("line", lineNum).Err(err).Msg("Error reading CSV line")
				rows = append(rows, nil)
				continue
			}
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ReadFlatXLSX reads the rows of the spreadsheet export, preferring the
// platform's named sheet and falling back to the first one.
func ReadFlatXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, flatSheet) {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func isBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
