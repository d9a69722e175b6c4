package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viktsys/tradejournal/contracts"
	"github.com/viktsys/tradejournal/models"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func newTestProcessor(dir string) *Processor {
	return NewProcessor(dir, contracts.NewRegistry(contracts.Defaults()))
}

func TestProcessDayFlatCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2025-02-05.csv", flatLog)

	result, err := newTestProcessor(dir).ProcessDay(context.Background(), "2025-02-05")
	if err != nil {
		t.Fatalf("Failed to process day: %v", err)
	}

	if result.Dialect != "flat" {
		t.Errorf("Expected flat dialect, got %s", result.Dialect)
	}
	if len(result.Trades) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(result.Trades))
	}
	if !result.Trades[0].PnL.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected first trade pnl 50, got %s", result.Trades[0].PnL)
	}
	if result.Trades[0].Direction != models.Short {
		t.Errorf("Expected first trade Short, got %s", result.Trades[0].Direction)
	}
	if !result.Trades[1].PnL.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected second trade pnl 200, got %s", result.Trades[1].PnL)
	}
	if !result.Trades[2].MissingSpec {
		t.Error("Expected NQ trade to be flagged for missing spec")
	}
	if !result.Summary.TotalPnL.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected total pnl 250, got %s", result.Summary.TotalPnL)
	}
	if result.Summary.Contracts["NQ"].Trades != 1 {
		t.Errorf("Expected one NQ trade in summary, got %d", result.Summary.Contracts["NQ"].Trades)
	}
	if len(result.Diagnostics) != 1 {
		t.Errorf("Expected header row diagnostic, got %d", len(result.Diagnostics))
	}
	if len(result.MissingSpecs) != 1 || result.MissingSpecs[0] != "NQ" {
		t.Errorf("Expected missing spec NQ, got %v", result.MissingSpecs)
	}
}

func TestProcessDaySectioned(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trades_2025-02-06.csv", sectionedExport)

	result, err := newTestProcessor(dir).ProcessDay(context.Background(), "2025-02-06")
	if err != nil {
		t.Fatalf("Failed to process day: %v", err)
	}

	if result.Dialect != "sectioned" {
		t.Errorf("Expected sectioned dialect, got %s", result.Dialect)
	}
	if len(result.Trades) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(result.Trades))
	}

	first := result.Trades[0]
	if first.NumExits != 2 || first.Quantity != 2 {
		t.Errorf("Expected merged trade with 2 exits and quantity 2, got %d exits quantity %d", first.NumExits, first.Quantity)
	}
	if !first.ExitPrice.Equal(decimal.RequireFromString("6001.5")) {
		t.Errorf("Expected average exit 6001.5, got %s", first.ExitPrice)
	}
	if result.Trades[2].Contract != "GCJ5" {
		t.Errorf("Expected GC trade last, got %s", result.Trades[2].Contract)
	}
	if !result.Summary.TotalPnL.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected total pnl 250, got %s", result.Summary.TotalPnL)
	}
	if !result.Summary.Fees.Equal(decimal.RequireFromString("6.2")) {
		t.Errorf("Expected fees 6.2, got %s", result.Summary.Fees)
	}
}

func TestProcessDaySeesContractsSavedLater(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2025-02-06.csv", strings.Join([]string{
		"6E",
		"Summary,62.50,2.00,60.50,1",
		tradeHeader,
		"2025-02-06,1,S,09:30:00,1.0400,2,B,09:31:00,1.0395,60,1,62.50,2.00,60.50",
	}, "\n"))

	registry := contracts.NewRegistry(contracts.Defaults())
	p := NewProcessor(dir, registry)

	result, err := p.ProcessDay(context.Background(), "2025-02-06")
	if err != nil {
		t.Fatalf("Failed to process day: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("Expected no trades before 6E is registered, got %d", len(result.Trades))
	}

	if _, err := registry.Save("6E", decimal.RequireFromString("6.25"), decimal.RequireFromString("0.00005")); err != nil {
		t.Fatalf("Failed to save contract: %v", err)
	}

	result, err = p.ProcessDay(context.Background(), "2025-02-06")
	if err != nil {
		t.Fatalf("Failed to process day: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("Expected 1 trade after registering 6E, got %d", len(result.Trades))
	}
	if result.Trades[0].Contract != "6E" {
		t.Errorf("Expected contract 6E, got %s", result.Trades[0].Contract)
	}
}

func TestProcessDayXLSX(t *testing.T) {
	dir := t.TempDir()

	f := excelize.NewFile()
	if _, err := f.NewSheet("tt-export"); err != nil {
		t.Fatalf("Failed to create sheet: %v", err)
	}
	rows := [][]interface{}{
		{"05FEB25", "09:30:00.000000", "CME", "GC APR25", "B", "1", "2900.0", "F", "Direct"},
		{"05FEB25", "09:35:00.000000", "CME", "GC APR25", "S", "1", "2901.5", "F", "Direct"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("tt-export", cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}
	if err := f.SaveAs(filepath.Join(dir, "2025-02-05.xlsx")); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}

	result, err := newTestProcessor(dir).ProcessDay(context.Background(), "2025-02-05")
	if err != nil {
		t.Fatalf("Failed to process day: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(result.Trades))
	}
	// 1.5 / 0.10 = 15 ticks * 10.00
	if !result.Trades[0].PnL.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected pnl 150, got %s", result.Trades[0].PnL)
	}
}

func TestProcessDayNoFile(t *testing.T) {
	result, err := newTestProcessor(t.TempDir()).ProcessDay(context.Background(), "2025-02-05")
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if result.Trades == nil || len(result.Trades) != 0 {
		t.Errorf("Expected empty trade table, got %v", result.Trades)
	}
}

func TestProcessDayInvalidDate(t *testing.T) {
	_, err := newTestProcessor(t.TempDir()).ProcessDay(context.Background(), "05-02-2025")
	if err == nil {
		t.Fatal("Expected error for invalid date, got nil")
	}
	if !strings.Contains(err.Error(), "invalid date") {
		t.Errorf("Expected 'invalid date' error, got %v", err)
	}
}

func TestProcessDayUnreadableSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2025-02-07.xlsx", "not a zip archive")

	p := newTestProcessor(dir)
	result, err := p.ProcessDay(context.Background(), "2025-02-07")
	if err == nil {
		t.Fatal("Expected error for corrupt spreadsheet, got nil")
	}
	if len(result.Trades) != 0 {
		t.Errorf("Expected empty table for failed day, got %d trades", len(result.Trades))
	}
	if _, failed := p.Stats(); failed != 1 {
		t.Errorf("Expected 1 failed day, got %d", failed)
	}
}

func seedMonth(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir, "2025-02-05.csv", flatLog)
	writeFile(t, dir, "2025-02-06.csv", sectionedExport)
	writeFile(t, dir, "2025-02-07.xlsx", "not a zip archive")
	writeFile(t, dir, "2025-02-10.csv", "date,time\n")
	return dir
}

func TestProcessMonth(t *testing.T) {
	month, err := newTestProcessor(seedMonth(t)).ProcessMonth(context.Background(), 2025, time.February)
	if err != nil {
		t.Fatalf("Failed to process month: %v", err)
	}

	if len(month.Days) != 2 {
		t.Fatalf("Expected 2 trading days, got %d", len(month.Days))
	}
	if month.Days[0].Date != "2025-02-05" || month.Days[1].Date != "2025-02-06" {
		t.Errorf("Expected days in date order, got %s, %s", month.Days[0].Date, month.Days[1].Date)
	}
	if month.Summary.TradingDays != 2 {
		t.Errorf("Expected 2 trading days in summary, got %d", month.Summary.TradingDays)
	}
	if !month.Summary.TotalPnL.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected total pnl 500, got %s", month.Summary.TotalPnL)
	}
	if len(month.Failed) != 1 || month.Failed[0] != "2025-02-07" {
		t.Errorf("Expected 2025-02-07 to fail, got %v", month.Failed)
	}
}

func TestProcessMonthInvalid(t *testing.T) {
	if _, err := newTestProcessor(t.TempDir()).ProcessMonth(context.Background(), 2025, 13); err == nil {
		t.Error("Expected error for invalid month, got nil")
	}
}

type fakeStore struct {
	mu    sync.Mutex
	days  []string
	runID string
	fail  bool
}

func (s *fakeStore) SaveDay(_ context.Context, runID, date string, trades []models.Trade, _ models.DaySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("database unavailable")
	}
	s.runID = runID
	s.days = append(s.days, date)
	return nil
}

func TestProcessRange(t *testing.T) {
	dir := seedMonth(t)
	store := &fakeStore{}
	from := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	report, err := newTestProcessor(dir).ProcessRange(context.Background(), from, to, store)
	if err != nil {
		t.Fatalf("Failed to process range: %v", err)
	}

	if report.Days != 7 {
		t.Errorf("Expected 7 days, got %d", report.Days)
	}
	if report.Stored != 2 || report.Failed != 1 || report.Empty != 4 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if len(store.days) != 2 || store.runID != report.RunID {
		t.Errorf("Expected 2 stored days under run %s, got %v under %s", report.RunID, store.days, store.runID)
	}
}

func TestProcessRangeStoreFailure(t *testing.T) {
	dir := seedMonth(t)
	from := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)

	_, err := newTestProcessor(dir).ProcessRange(context.Background(), from, from, &fakeStore{fail: true})
	if err == nil {
		t.Fatal("Expected store error, got nil")
	}
}

func TestProcessRangeReversed(t *testing.T) {
	from := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	if _, err := newTestProcessor(t.TempDir()).ProcessRange(context.Background(), from, from.AddDate(0, 0, -1), nil); err == nil {
		t.Error("Expected error for reversed range, got nil")
	}
}

func TestDetectDialect(t *testing.T) {
	d, err := DetectDialect("a.xlsx", nil)
	if err != nil || d != DialectFlat {
		t.Errorf("Expected flat for xlsx, got %s (%v)", d, err)
	}
	d, _ = DetectDialect("a.csv", []byte(tradeHeader))
	if d != DialectSectioned {
		t.Errorf("Expected sectioned for csv with detail header, got %s", d)
	}
	d, _ = DetectDialect("a.csv", []byte(flatLog))
	if d != DialectFlat {
		t.Errorf("Expected flat for plain csv, got %s", d)
	}
	if _, err := DetectDialect("a.pdf", nil); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Expected ErrUnknownDialect, got %v", err)
	}
}

func TestFindDayFilePrefersCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trades_2025-02-05.xlsx", "")
	writeFile(t, dir, "trades_2025-02-05.csv", "")

	path, err := FindDayFile(dir, "2025-02-05")
	if err != nil {
		t.Fatalf("Expected a file, got %v", err)
	}
	if filepath.Base(path) != "trades_2025-02-05.csv" {
		t.Errorf("Expected csv to win, got %s", path)
	}

	if _, err := FindDayFile(dir, "2025-02-06"); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}
