package notes

// Journal groups the three note files of the dashboard: free text per day,
// free text per trade and a color tag per trade. Trade keys are trade
// identities, which start with "{date}_".
type Journal struct {
	days   *Store
	trades *Store
	colors *Store
}

func NewJournal(dayNotesPath, tradeNotesPath, tradeColorsPath string) *Journal {
	days := NewStore(dayNotesPath)
	days.indent = false
	return &Journal{
		days:   days,
		trades: NewStore(tradeNotesPath),
		colors: NewStore(tradeColorsPath),
	}
}

func (j *Journal) DayNote(date string) (string, error) {
	return j.days.Get(date, "")
}

func (j *Journal) SetDayNote(date, note string) error {
	return j.days.Set(date, note)
}

// NotedDays lists the dates that carry a day note, oldest first.
func (j *Journal) NotedDays() ([]string, error) {
	return j.days.Keys()
}

func (j *Journal) TradeNote(tradeID string) (string, error) {
	return j.trades.Get(tradeID, "")
}

func (j *Journal) SetTradeNote(tradeID, note string) error {
	return j.trades.Set(tradeID, note)
}

func (j *Journal) DeleteTradeNote(tradeID string) error {
	return j.trades.Delete(tradeID)
}

// TradeNotes returns the trade notes of one day, or all of them when date is empty.
func (j *Journal) TradeNotes(date string) (map[string]string, error) {
	return j.trades.WithPrefix(datePrefix(date))
}

func (j *Journal) TradeColor(tradeID string) (string, error) {
	return j.colors.Get(tradeID, DefaultColor)
}

func (j *Journal) SetTradeColor(tradeID, color string) error {
	return j.colors.Set(tradeID, color)
}

func (j *Journal) TradeColors(date string) (map[string]string, error) {
	return j.colors.WithPrefix(datePrefix(date))
}

func datePrefix(date string) string {
	if date == "" {
		return ""
	}
	return date + "_"
}
