package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoData means no export exists for the requested date.
	ErrNoData = errors.New("no data for date")
	// ErrUnknownDialect means the file extension is not a supported export.
	ErrUnknownDialect = errors.New("unrecognized export format")
)

// Dialect identifies the layout of an export file.
type Dialect int

const (
	DialectUnknown Dialect = iota
	// DialectFlat is the chronological fill log (csv or spreadsheet).
	DialectFlat
	// DialectSectioned is the per-instrument summary and fill-detail export.
	DialectSectioned
)

func (d Dialect) String() string {
	switch d {
	case DialectFlat:
		return dialectFlat
	case DialectSectioned:
		return dialectSectioned
	}
	return "unknown"
}

// dayFilePatterns are tried in order for a YYYY-MM-DD date.
var dayFilePatterns = []string{
	"%s.csv",
	"trades_%s.csv",
	"%s.xls",
	"trades_%s.xls",
	"%s.xlsx",
	"trades_%s.xlsx",
}

// FindDayFile returns the first export present in dataDir for date.
func FindDayFile(dataDir, date string) (string, error) {
	for _, pattern := range dayFilePatterns {
		path := filepath.Join(dataDir, fmt.Sprintf(pattern, date))
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoData, date)
}

// DetectDialect picks the layout from the extension and, for csv files, from
// the presence of the detail column header.
func DetectDialect(path string, content []byte) (Dialect, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return DialectFlat, nil
	case ".csv", ".txt":
		if bytes.Contains(content, []byte("Trade Date")) && bytes.Contains(content, []byte("Entry Order Number")) {
			return DialectSectioned, nil
		}
		return DialectFlat, nil
	}
	return DialectUnknown, fmt.Errorf("%w: %s", ErrUnknownDialect, filepath.Base(path))
}
