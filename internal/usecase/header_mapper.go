package usecase

import (
	"strconv"
	"strings"

	"github.com/tcgvault/backend/internal/domain"
)

// Field is a canonical column that every CSV dialect is mapped onto
type Field string

const (
	FieldName            Field = "name"
	FieldQuantity        Field = "quantity"
	FieldSetName         Field = "set_name"
	FieldSet             Field = "set"
	FieldCollectorNumber Field = "collector_number"
	FieldCondition       Field = "condition"
	FieldLanguage        Field = "language"
	FieldFoil            Field = "is_foil"
	FieldRarity          Field = "rarity"
	FieldPrice           Field = "price"
)

// canonicalFields is the order columns are resolved in
var canonicalFields = []Field{
	FieldName, FieldQuantity, FieldSetName, FieldSet, FieldCollectorNumber,
	FieldCondition, FieldLanguage, FieldFoil, FieldRarity, FieldPrice,
}

// fieldAliases lists normalized header names per field, highest priority first.
// Covers ManaBox, Deckbox, TCGplayer and Dragon Shield style exports.
var fieldAliases = map[Field][]string{
	FieldName:            {"name", "card", "card name", "cardname"},
	FieldQuantity:        {"quantity", "qty", "count", "amount"},
	FieldSetName:         {"set name", "set_name", "edition", "expansion"},
	FieldSet:             {"set code", "set_code", "set", "edition code", "code"},
	FieldCollectorNumber: {"collector number", "collector_number", "card number", "number", "cn"},
	FieldCondition:       {"condition", "cond"},
	FieldLanguage:        {"language", "lang"},
	FieldFoil:            {"foil", "printing", "finish"},
	FieldRarity:          {"rarity"},
	FieldPrice:           {"purchase price", "price"},
}

// foilTokens mark a foil value when contained in the lower-cased cell
var foilTokens = []string{"true", "yes", "foil", "premium"}

// HeaderMap maps canonical fields to column indices of one file
type HeaderMap struct {
	Headers []string
	index   map[Field]int
}

// NewHeaderMap resolves every canonical field against normalized headers
func NewHeaderMap(headers []string) HeaderMap {
	idx := make(map[Field]int, len(canonicalFields))
	for _, f := range canonicalFields {
		idx[f] = FindColumn(headers, fieldAliases[f])
	}
	return HeaderMap{Headers: headers, index: idx}
}

// Column returns the index of a field, or -1 when the file has no such column
func (m HeaderMap) Column(f Field) int {
	if i, ok := m.index[f]; ok {
		return i
	}
	return -1
}

// Has reports whether the field was found
func (m HeaderMap) Has(f Field) bool {
	return m.Column(f) >= 0
}

// Value returns the trimmed cell for a field, or "" when absent
func (m HeaderMap) Value(row []string, f Field) string {
	i := m.Column(f)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ToParsedCard builds a ParsedCard from a row, applying defaults for missing values
func (m HeaderMap) ToParsedCard(row []string) domain.ParsedCard {
	card := domain.ParsedCard{
		Name:            m.Value(row, FieldName),
		Quantity:        ParseQuantity(m.Value(row, FieldQuantity)),
		SetName:         m.Value(row, FieldSetName),
		Set:             m.Value(row, FieldSet),
		CollectorNumber: m.Value(row, FieldCollectorNumber),
		Condition:       m.Value(row, FieldCondition),
		Language:        m.Value(row, FieldLanguage),
		IsFoil:          IsFoilValue(m.Value(row, FieldFoil)),
		Rarity:          m.Value(row, FieldRarity),
		OriginalPrice:   m.Value(row, FieldPrice),
	}
	if card.Condition == "" {
		card.Condition = domain.DefaultCondition
	}
	if card.Language == "" {
		card.Language = domain.DefaultLanguage
	}
	return card
}

// FindColumn returns the index of the header matching an alias, or -1.
// A header equal to any alias wins first, aliases tried in priority order;
// only then is a header containing an alias accepted. So "card name" is
// picked over an earlier "folder name", and "name" over an earlier "set name".
func FindColumn(headers []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i
			}
		}
	}
	for _, alias := range aliases {
		for i, h := range headers {
			if strings.Contains(h, alias) {
				return i
			}
		}
	}
	return -1
}

// NormalizeHeader lower-cases, trims and strips surrounding quotes
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.Trim(h, `"'`)
	return strings.ToLower(strings.TrimSpace(h))
}

// IsFoilValue reports whether a foil column value means foil
func IsFoilValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "1" {
		return true
	}
	for _, tok := range foilTokens {
		if strings.Contains(v, tok) {
			return true
		}
	}
	return false
}

// ParseQuantity parses a quantity cell, defaulting to 1
func ParseQuantity(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return domain.DefaultQuantity
	}
	return n
}
