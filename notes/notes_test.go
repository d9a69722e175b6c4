package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) (*Journal, string) {
	dir := t.TempDir()
	return NewJournal(
		filepath.Join(dir, "trading_notes.json"),
		filepath.Join(dir, "trade_notes.json"),
		filepath.Join(dir, "trade_colors.json"),
	), dir
}

func TestDayNotes(t *testing.T) {
	j, dir := newJournal(t)

	note, err := j.DayNote("2025-02-05")
	require.NoError(t, err)
	assert.Empty(t, note)

	require.NoError(t, j.SetDayNote("2025-02-05", "patient day"))
	require.NoError(t, j.SetDayNote("2025-02-06", "overtraded"))

	note, err = j.DayNote("2025-02-05")
	require.NoError(t, err)
	assert.Equal(t, "patient day", note)

	data, err := os.ReadFile(filepath.Join(dir, "trading_notes.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-02-05":"patient day","2025-02-06":"overtraded"}`, string(data))

	require.NoError(t, j.SetDayNote("2025-02-03", "news day"))
	days, err := j.NotedDays()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-03", "2025-02-05", "2025-02-06"}, days)
}

func TestTradeNotesFilteredByDate(t *testing.T) {
	j, _ := newJournal(t)

	require.NoError(t, j.SetTradeNote("2025-02-05_ES_01-45-30_PM_01-50-00_PM", "A+ setup"))
	require.NoError(t, j.SetTradeNote("2025-02-05_GC_02-00-00_PM_02-05-00_PM", "chased"))
	require.NoError(t, j.SetTradeNote("2025-02-06_ES_09-30-00_AM_09-31-00_AM", "ok"))

	day, err := j.TradeNotes("2025-02-05")
	require.NoError(t, err)
	assert.Len(t, day, 2)
	assert.Equal(t, "chased", day["2025-02-05_GC_02-00-00_PM_02-05-00_PM"])

	all, err := j.TradeNotes("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, j.DeleteTradeNote("2025-02-05_GC_02-00-00_PM_02-05-00_PM"))
	require.NoError(t, j.DeleteTradeNote("missing"))
	note, err := j.TradeNote("2025-02-05_GC_02-00-00_PM_02-05-00_PM")
	require.NoError(t, err)
	assert.Empty(t, note)
}

func TestTradeColorsDefault(t *testing.T) {
	j, _ := newJournal(t)

	color, err := j.TradeColor("2025-02-05_ES_x")
	require.NoError(t, err)
	assert.Equal(t, DefaultColor, color)

	require.NoError(t, j.SetTradeColor("2025-02-05_ES_x", "green"))
	color, err = j.TradeColor("2025-02-05_ES_x")
	require.NoError(t, err)
	assert.Equal(t, "green", color)

	colors, err := j.TradeColors("2025-02-05")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"2025-02-05_ES_x": "green"}, colors)
}

func TestStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path)
	v, err := s.Get("k", "fallback")
	assert.Error(t, err)
	assert.Equal(t, "fallback", v)
	assert.Error(t, s.Set("k", "v"))
}

func TestStoreKeysSorted(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "notes.json"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}
