package trades

import (
	"strings"

	"github.com/viktsys/tradejournal/models"
)

// ClockLayout is how entry and exit times appear in the trade table and in
// trade identities.
const ClockLayout = "03:04:05 PM"

var identityReplacer = strings.NewReplacer(" ", "_", ":", "-")

// Identity joins the day, display contract and the formatted entry and exit
// times into the key used for trade notes and colors.
func Identity(date, contract, entryTime, exitTime string) string {
	return identityReplacer.Replace(date + "_" + contract + "_" + entryTime + "_" + exitTime)
}

// ID derives the identity of a trade closed on date.
func ID(date string, t models.Trade) string {
	return Identity(date, t.Contract, t.EntryTime.Format(ClockLayout), t.ExitTime.Format(ClockLayout))
}
