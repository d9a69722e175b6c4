package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/metrics"
	"github.com/viktsys/tradejournal/models"
	"github.com/viktsys/tradejournal/summary"
	"github.com/viktsys/tradejournal/trades"
)

const (
	// DefaultDayWorkers bounds how many day files are processed at once.
	DefaultDayWorkers = 4

	// DateLayout is the calendar date used to name day files.
	DateLayout = "2006-01-02"
)

// DayStore persists processed days.
type DayStore interface {
	SaveDay(ctx context.Context, runID, date string, trades []models.Trade, summary models.DaySummary) error
}

// DayResult is the trade table of one day plus what was learned parsing it.
type DayResult struct {
	Date         string            `json:"date"`
	Source       string            `json:"source,omitempty"`
	Dialect      string            `json:"dialect,omitempty"`
	Trades       []models.Trade    `json:"trades"`
	Summary      models.DaySummary `json:"summary"`
	Diagnostics  []Diagnostic      `json:"diagnostics,omitempty"`
	MissingSpecs []string          `json:"missing_specs,omitempty"`
}

// MonthResult holds the days of a month that produced trades and their fold.
type MonthResult struct {
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	Days    []DayResult   `json:"days"`
	Summary summary.Month `json:"summary"`
	Failed  []string      `json:"failed_days,omitempty"`
}

// RangeReport describes one ingest run over a date range.
type RangeReport struct {
	RunID    string        `json:"run_id"`
	Days     int           `json:"days"`
	Stored   int           `json:"stored"`
	Empty    int           `json:"empty"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

type Processor struct {
	dataDir string
	specs   contracts.Lookup
	matcher ContractMatcher
	flip    trades.FlipPolicy
	workers int
	stats   *dayStats
}

type dayStats struct {
	processed int64
	failed    int64
}

type Option func(*Processor)

func WithMatcher(m ContractMatcher) Option {
	return func(p *Processor) { p.matcher = m }
}

func WithFlipPolicy(f trades.FlipPolicy) Option {
	return func(p *Processor) { p.flip = f }
}

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func NewProcessor(dataDir string, specs contracts.Lookup, opts ...Option) *Processor {
	p := &Processor{
		dataDir: dataDir,
		specs:   specs,
		workers: DefaultDayWorkers,
		stats:   &dayStats{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// contractMatcher returns the configured matcher, or one built from the
// symbols registered right now.
func (p *Processor) contractMatcher() ContractMatcher {
	if p.matcher != nil {
		return p.matcher
	}
	if reg, ok := p.specs.(interface{ Symbols() []string }); ok {
		return DefaultMatcher(reg.Symbols())
	}
	return TickerPattern()
}

// ProcessDay builds the trade table for a YYYY-MM-DD date. A missing file or
// an unrecognized format yields an empty table. The error is non-nil only for
// a malformed date or a file that could not be read.
func (p *Processor) ProcessDay(ctx context.Context, date string) (DayResult, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return DayResult{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if err := ctx.Err(); err != nil {
		return DayResult{}, err
	}

	path, err := FindDayFile(p.dataDir, date)
	if err != nil {
		metrics.DaysProcessed.WithLabelValues("empty").Inc()
		return emptyDay(date), nil
	}

	result, err := p.ProcessFile(date, path)
	if err != nil {
		metrics.DaysProcessed.WithLabelValues("failed").Inc()
		atomic.AddInt64(&p.stats.failed, 1)
		return emptyDay(date), err
	}

	atomic.AddInt64(&p.stats.processed, 1)
	if len(result.Trades) == 0 {
		metrics.DaysProcessed.WithLabelValues("empty").Inc()
	} else {
		metrics.DaysProcessed.WithLabelValues("ok").Inc()
	}
	return result, nil
}

// ProcessFile parses one export file and reconstructs its trades.
func (p *Processor) ProcessFile(date, path string) (DayResult, error) {
	start := time.Now()
	defer func() { metrics.DayDuration.Observe(time.Since(start).Seconds()) }()

	result := emptyDay(date)
	result.Source = filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dialect, err := DetectDialect(path, content)
	if errors.Is(err, ErrUnknownDialect) {
		log.Warn().Str("file", path).Msg("Unrecognized export; treating day as empty")
		return result, nil
	}
	result.Dialect = dialect.String()

	switch dialect {
	case DialectFlat:
		var rows [][]string
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".xlsx" || ext == ".xls" {
			rows, err = ReadFlatXLSX(bytes.NewReader(content))
		} else {
			rows, err = ReadFlatCSV(bytes.NewReader(content))
		}
		if err != nil {
			return result, err
		}

		fills, diags := ParseFlatRows(rows)
		rec := trades.NewReconstructor(p.specs, trades.WithFlipPolicy(p.flip)).Reconstruct(fills)
		result.Diagnostics = diags
		result.MissingSpecs = rec.MissingSpecs
		result.Trades = append(result.Trades, rec.Trades...)

	case DialectSectioned:
		sections, diags, err := NewSectionParser(p.contractMatcher()).Parse(bytes.NewReader(content))
		if err != nil {
			return result, err
		}
		result.Diagnostics = diags
		for _, section := range sections {
			result.Trades = append(result.Trades, trades.AggregateSection(section)...)
		}
		sort.SliceStable(result.Trades, func(i, j int) bool {
			return result.Trades[i].EntryTime.Before(result.Trades[j].EntryTime)
		})
	}

	result.Summary = summary.Day(date, result.Trades)
	log.Debug().Str("file", result.Source).Str("dialect", result.Dialect).
		Int("trades", len(result.Trades)).Int("dropped", len(result.Diagnostics)).
		Dur("took", time.Since(start)).Msg("Processed day file")
	return result, nil
}

// ProcessMonth processes every calendar day of a month. Days without trades
// and days that fail are left out of the aggregate.
func (p *Processor) ProcessMonth(ctx context.Context, year int, month time.Month) (MonthResult, error) {
	if month < time.January || month > time.December {
		return MonthResult{}, fmt.Errorf("invalid month %d", month)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	outcomes := p.forBatch().processDays(ctx, datesBetween(first, last))

	out := MonthResult{Year: year, Month: int(month), Days: []DayResult{}}
	days := make(map[string]models.DaySummary)
	for _, o := range outcomes {
		if o.err != nil {
			out.Failed = append(out.Failed, o.date)
			continue
		}
		if len(o.result.Trades) == 0 {
			continue
		}
		out.Days = append(out.Days, o.result)
		days[o.date] = o.result.Summary
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	out.Summary = summary.Monthly(days)
	return out, nil
}

// ProcessRange processes every day between from and to inclusive and hands
// the days with trades to store.
func (p *Processor) ProcessRange(ctx context.Context, from, to time.Time, store DayStore) (RangeReport, error) {
	startTime := time.Now()
	if to.Before(from) {
		return RangeReport{}, fmt.Errorf("range end %s is before start %s", to.Format(DateLayout), from.Format(DateLayout))
	}

	report := RangeReport{RunID: uuid.NewString()}
	dates := datesBetween(from, to)
	report.Days = len(dates)

	log.Info().Str("run_id", report.RunID).Int("days", len(dates)).Int("workers", p.workers).
		Msg("Starting day processing")

	for _, o := range p.forBatch().processDays(ctx, dates) {
		switch {
		case o.err != nil:
			report.Failed++
		case len(o.result.Trades) == 0:
			report.Empty++
		default:
			if store != nil {
				if err := store.SaveDay(ctx, report.RunID, o.date, o.result.Trades, o.result.Summary); err != nil {
					return report, fmt.Errorf("failed to store %s: %w", o.date, err)
				}
			}
			report.Stored++
		}
	}

	report.Duration = time.Since(startTime)
	log.Info().Str("run_id", report.RunID).Int("stored", report.Stored).Int("empty", report.Empty).
		Int("failed", report.Failed).Dur("took", report.Duration).Msg("Day processing completed")
	return report, ctx.Err()
}

// Stats returns the number of processed and failed day files so far.
func (p *Processor) Stats() (processed, failed int64) {
	return atomic.LoadInt64(&p.stats.processed), atomic.LoadInt64(&p.stats.failed)
}

type dayOutcome struct {
	date   string
	result DayResult
	err    error
}

func (p *Processor) processDays(ctx context.Context, dates []string) []dayOutcome {
	outcomes := make([]dayOutcome, len(dates))

	// Create a semaphore to limit concurrent day processing
	semaphore := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, date := range dates {
		wg.Add(1)
		go func(i int, date string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[i] = p.safeProcessDay(ctx, date)
		}(i, date)
	}

	wg.Wait()
	return outcomes
}

func (p *Processor) safeProcessDay(ctx context.Context, date string) (out dayOutcome) {
	out.date = date
	defer func() {
		if r := recover(); r != nil {
			out.result = emptyDay(date)
			out.err = fmt.Errorf("panic processing %s: %v", date, r)
			log.Error().Str("date", date).Interface("panic", r).Msg("Day processing panicked")
		}
	}()

	out.result, out.err = p.ProcessDay(ctx, date)
	if out.err != nil {
		log.Error().Err(out.err).Str("date", date).Msg("Error processing day; excluding it")
	}
	return out
}

// forBatch pins the registry for the duration of a multi-day run.
func (p *Processor) forBatch() *Processor {
	reg, ok := p.specs.(*contracts.Registry)
	if !ok {
		return p
	}
	return &Processor{
		dataDir: p.dataDir,
		specs:   reg.Snapshot(),
		matcher: p.matcher,
		flip:    p.flip,
		workers: p.workers,
		stats:   p.stats,
	}
}

func datesBetween(from, to time.Time) []string {
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

func emptyDay(date string) DayResult {
	return DayResult{
		Date:    date,
		Trades:  []models.Trade{},
		Summary: summary.Day(date, nil),
	}
}
