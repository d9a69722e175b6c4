package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/metrics"
)

// Diagnostic describes an input line that was dropped.
type Diagnostic struct {
	Dialect string `json:"dialect"`
	Line    int    `json:"line"`
	Reason  string `json:"reason"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s line %d: %s", d.Dialect, d.Line, d.Reason)
}

func dropLine(dialect string, line int, reason string, err error) Diagnostic {
	d := Diagnostic{Dialect: dialect, Line: line, Reason: reason}
	if err != nil {
		d.Reason = reason + ": " + err.Error()
	}
	metrics.LinesDropped.WithLabelValues(dialect, reason).Inc()
	log.Warn().Str("dialect", dialect).Int("line", line).Str("reason", d.Reason).Msg("Dropping input line")
	return d
}

var errEmptyNumber = errors.New("empty numeric field")

// cleanField strips whitespace and wrapping quotes.
func cleanField(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"`)
}

// ParseDecimal accepts plain numbers plus the decorations found in exports:
// thousands separators, a leading currency sign and accounting parentheses.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := cleanField(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-$") {
		s = "-" + s[2:]
	}
	if s == "" {
		return decimal.Zero, errEmptyNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseInt accepts integral values, including "2.0" style exports.
func ParseInt(raw string) (int64, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return d.IntPart(), nil
}

// ParseDecimalOr is the tolerant variant used for optional fields.
func ParseDecimalOr(raw string, def decimal.Decimal) decimal.Decimal {
	d, err := ParseDecimal(raw)
	if err != nil {
		return def
	}
	return d
}

// ParseIntOr is the tolerant variant used for optional fields.
func ParseIntOr(raw string, def int64) int64 {
	v, err := ParseInt(raw)
	if err != nil {
		return def
	}
	return v
}

// splitFields splits one comma separated line, honouring quotes when the line
// is well formed and falling back to a plain split otherwise.
func splitFields(line string) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err != nil {
		record = strings.Split(line, ",")
	}
	out := make([]string, len(record))
	for i, f := range record {
		out[i] = cleanField(f)
	}
	return out
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}
