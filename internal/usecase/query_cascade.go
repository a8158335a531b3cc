package usecase

import (
	"strings"

	"github.com/tcgvault/backend/internal/domain"
)

// Strategy names one step of the search cascade
type Strategy string

const (
	StrategyFull  Strategy = "full"
	StrategySet   Strategy = "set"
	StrategyName  Strategy = "name"
	StrategyLoose Strategy = "loose"
)

// SearchQuery is one cascade step rendered into the search service syntax:
// !"name" for an exact name, set:<code> or set:"<name>", cn:<number>.
type SearchQuery struct {
	Strategy        Strategy
	Name            string
	Exact           bool
	Set             string
	CollectorNumber string
}

// String renders the query for the card search service
func (q SearchQuery) String() string {
	var b strings.Builder
	if q.Exact {
		b.WriteString(`!"`)
		b.WriteString(strings.ReplaceAll(q.Name, `"`, `\"`))
		b.WriteString(`"`)
	} else {
		b.WriteString(q.Name)
	}
	if q.Set != "" {
		b.WriteString(" set:")
		b.WriteString(quoteIfNeeded(q.Set))
	}
	if q.CollectorNumber != "" {
		b.WriteString(" cn:")
		b.WriteString(quoteIfNeeded(q.CollectorNumber))
	}
	return b.String()
}

func quoteIfNeeded(v string) string {
	if strings.ContainsAny(v, " \t:\"") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

// BuildCascade returns the search queries for a row, most specific first.
// Steps whose filters the row does not have are left out, so no two steps
// issue the same query.
func BuildCascade(card domain.ParsedCard) []SearchQuery {
	name := strings.TrimSpace(card.Name)
	set := setFilter(card)
	number := NormalizeCollectorNumber(card.CollectorNumber)

	steps := make([]SearchQuery, 0, 4)
	if set != "" && number != "" {
		steps = append(steps, SearchQuery{Strategy: StrategyFull, Name: name, Exact: true, Set: set, CollectorNumber: number})
	}
	if set != "" {
		steps = append(steps, SearchQuery{Strategy: StrategySet, Name: name, Exact: true, Set: set})
	}
	steps = append(steps,
		SearchQuery{Strategy: StrategyName, Name: name, Exact: true},
		SearchQuery{Strategy: StrategyLoose, Name: name},
	)
	return steps
}

// setFilter prefers the set code and falls back to the set name
func setFilter(card domain.ParsedCard) string {
	if s := strings.TrimSpace(card.Set); s != "" {
		return strings.ToLower(s)
	}
	return strings.TrimSpace(card.SetName)
}

// NormalizeCollectorNumber strips leading zeros, keeping a single zero for "000"
func NormalizeCollectorNumber(n string) string {
	n = strings.TrimSpace(n)
	if n == "" {
		return ""
	}
	trimmed := strings.TrimLeft(n, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
