package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/models"
)

const (
	dialectSectioned = "sectioned"

	detailFields = 14
)

// Column positions of a trade detail line.
const (
	colTradeDate = iota
	colEntryOrder
	colEntrySide
	colEntryTime
	colEntryPrice
	colExitOrder
	colExitSide
	colExitTime
	colExitPrice
	colLifeSpan
	colFillSize
	colTradePnL
	colFees
	colNetPnL
)

type sectionState int

const (
	outsideSection sectionState = iota
	expectSummary
	expectTradeHeader
	readingDetails
)

// SectionParser reads the sectioned per-instrument export.
type SectionParser struct {
	matcher ContractMatcher
}

func NewSectionParser(matcher ContractMatcher) *SectionParser {
	if matcher == nil {
		matcher = TickerPattern()
	}
	return &SectionParser{matcher: matcher}
}

// IsTradeHeader reports whether line is the column header of a detail block.
func IsTradeHeader(line string) bool {
	return strings.Contains(line, "Trade Date") && strings.Contains(line, "Entry Order Number")
}

// Parse splits the export into contract sections. Malformed lines are dropped
// with a diagnostic; only read failures are returned as errors.
func (p *SectionParser) Parse(r io.Reader) ([]models.Section, []Diagnostic, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		sections []models.Section
		current  *models.Section
		diags    []Diagnostic
		state    = outsideSection
		lineNum  = 0
	)

	flush := func() {
		if current != nil {
			sections = append(sections, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		fields := splitFields(line)
		first := field(fields, 0)

		// The line right after a header is the summary, even when its first
		// field repeats the contract. A different contract opens a new section.
		if state == expectSummary && !IsTradeHeader(line) &&
			(first == current.Contract || !p.matcher.IsContractHeader(first)) {
			current.Summary = parseSummary(fields)
			state = expectTradeHeader
			continue
		}

		if p.matcher.IsContractHeader(first) {
			flush()
			current = &models.Section{Contract: first}
			state = expectSummary
			continue
		}

		switch state {
		case outsideSection:
			diags = append(diags, dropLine(dialectSectioned, lineNum, "line outside contract section", nil))

		case expectSummary:
			// header directly followed by the trade header
			diags = append(diags, dropLine(dialectSectioned, lineNum, "missing summary line", nil))
			state = readingDetails

		case expectTradeHeader:
			if IsTradeHeader(line) {
				state = readingDetails
				continue
			}
			diags = append(diags, dropLine(dialectSectioned, lineNum, "expected trade header", nil))

		case readingDetails:
			if IsTradeHeader(line) {
				continue
			}
			if len(fields) < detailFields {
				diags = append(diags, dropLine(dialectSectioned, lineNum,
					"too few fields", fmt.Errorf("got %d, want %d", len(fields), detailFields)))
				continue
			}
			detail, err := DecodeTradeDetail(fields, current.Contract, lineNum)
			if err != nil {
				diags = append(diags, dropLine(dialectSectioned, lineNum, "malformed trade detail", err))
				continue
			}
			current.Details = append(current.Details, detail)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, diags, fmt.Errorf("failed to read sectioned export: %w", err)
	}

	flush()
	return sections, diags, nil
}

// parseSummary reads the section summary line: label, gross pnl, fees, net
// pnl and trade count. Missing or malformed values are zero.
func parseSummary(fields []string) models.SectionSummary {
	return models.SectionSummary{
		Label:      field(fields, 0),
		GrossPnL:   ParseDecimalOr(field(fields, 1), decimal.Zero),
		Fees:       ParseDecimalOr(field(fields, 2), decimal.Zero),
		NetPnL:     ParseDecimalOr(field(fields, 3), decimal.Zero),
		TradeCount: int(ParseIntOr(field(fields, 4), 0)),
	}
}

// DecodeTradeDetail decodes the fourteen positional fields of a detail line.
// Prices, fill size and trade pnl are required; life span and fees default to
// zero, net pnl to the trade pnl.
func DecodeTradeDetail(fields []string, contract string, line int) (models.TradeDetail, error) {
	var d models.TradeDetail
	if len(fields) < detailFields {
		return d, fmt.Errorf("expected %d fields, got %d", detailFields, len(fields))
	}

	entrySide, err := models.ParseSide(fields[colEntrySide])
	if err != nil {
		return d, fmt.Errorf("entry side: %w", err)
	}
	exitSide, err := models.ParseSide(fields[colExitSide])
	if err != nil {
		exitSide = models.SideSell
		if entrySide == models.SideSell {
			exitSide = models.SideBuy
		}
	}

	entryPrice, err := ParseDecimal(fields[colEntryPrice])
	if err != nil {
		return d, fmt.Errorf("entry price: %w", err)
	}
	exitPrice, err := ParseDecimal(fields[colExitPrice])
	if err != nil {
		return d, fmt.Errorf("exit price: %w", err)
	}
	size, err := ParseInt(fields[colFillSize])
	if err != nil {
		return d, fmt.Errorf("fill size: %w", err)
	}
	if size <= 0 {
		return d, errors.New("fill size must be positive")
	}
	pnl, err := ParseDecimal(fields[colTradePnL])
	if err != nil {
		return d, fmt.Errorf("trade pnl: %w", err)
	}

	lifeSeconds := ParseDecimalOr(fields[colLifeSpan], decimal.Zero)

	d = models.TradeDetail{
		Contract:         contract,
		TradeDate:        fields[colTradeDate],
		EntryOrderNumber: fields[colEntryOrder],
		EntrySide:        entrySide,
		EntryTime:        fields[colEntryTime],
		EntryPrice:       entryPrice,
		ExitOrderNumber:  fields[colExitOrder],
		ExitSide:         exitSide,
		ExitTime:         fields[colExitTime],
		ExitPrice:        exitPrice,
		LifeSpan:         time.Duration(lifeSeconds.Mul(decimal.NewFromInt(int64(time.Second))).IntPart()),
		FillSize:         size,
		TradePnL:         pnl,
		Fees:             ParseDecimalOr(fields[colFees], decimal.Zero),
		NetPnL:           ParseDecimalOr(fields[colNetPnL], pnl),
		Line:             line,
	}
	return d, nil
}
