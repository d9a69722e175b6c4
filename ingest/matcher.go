package ingest

import (
	"regexp"
	"strings"
)

// ContractMatcher decides whether the first field of a sectioned export line
// opens a new contract section.
type ContractMatcher interface {
	IsContractHeader(field string) bool
}

// MatcherFunc adapts a plain function to ContractMatcher.
type MatcherFunc func(field string) bool

func (f MatcherFunc) IsContractHeader(field string) bool {
	return f(field)
}

// Root, month code, then the year digits: ESH5, MNQH25, GCJ25.
var tickerPattern = regexp.MustCompile(`^[A-Z]{2,3}[A-Z](?:[0-9]+|[0-9]{2})$`)

var monthSuffix = regexp.MustCompile(`^[FGHJKMNQUVXZ][0-9]{1,2}$`)

// TickerPattern matches futures tickers by shape.
func TickerPattern() ContractMatcher {
	return MatcherFunc(func(field string) bool {
		return tickerPattern.MatchString(strings.TrimSpace(field))
	})
}

// KnownContracts matches registered roots, either bare ("6E") or followed by
// a month code and year ("6EH5").
func KnownContracts(symbols ...string) ContractMatcher {
	known := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			known[s] = true
		}
	}
	return MatcherFunc(func(field string) bool {
		field = strings.TrimSpace(field)
		if known[field] {
			return true
		}
		for root := range known {
			if strings.HasPrefix(field, root) && monthSuffix.MatchString(field[len(root):]) {
				return true
			}
		}
		return false
	})
}

// AnyOf matches when any of the given matchers does.
func AnyOf(matchers ...ContractMatcher) ContractMatcher {
	return MatcherFunc(func(field string) bool {
		for _, m := range matchers {
			if m.IsContractHeader(field) {
				return true
			}
		}
		return false
	})
}

// DefaultMatcher combines the ticker shape with the registered symbols.
func DefaultMatcher(known []string) ContractMatcher {
	return AnyOf(TickerPattern(), KnownContracts(known...))
}
