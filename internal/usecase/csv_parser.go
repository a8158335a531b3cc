package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
)

const utf8BOM = "\ufeff"

// candidateDelimiters in tie-break order: an earlier delimiter wins a tie
var candidateDelimiters = []rune{',', ';', '\t'}

// CSVParser turns collection exports into ParsedCards.
// It holds no state between calls; Parse is a pure function of its input.
type CSVParser struct {
	logger *zap.Logger
}

// NewCSVParser creates a parser that logs skipped rows to logger
func NewCSVParser(logger *zap.Logger) *CSVParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVParser{logger: logger.Named("csv")}
}

// Parse converts the full text of a CSV file into ParsedCards in file order.
// It fails with a *domain.FormatError when the file has no data rows or no
// name column. Short rows and rows with an empty name are skipped.
func (p *CSVParser) Parse(text string) ([]domain.ParsedCard, error) {
	lines := splitLines(strings.TrimPrefix(text, utf8BOM))
	if len(lines) < 2 {
		return nil, &domain.FormatError{Reason: "file must contain a header row and at least one data row"}
	}

	delim := DetectDelimiter(lines[0])
	rawHeaders := SplitFields(lines[0], delim)
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = NormalizeHeader(h)
	}

	hm := NewHeaderMap(headers)
	if !hm.Has(FieldName) {
		return nil, &domain.FormatError{Reason: "no card name column", Headers: headers}
	}

	p.logger.Debug("parsing csv",
		zap.String("delimiter", string(delim)),
		zap.Strings("headers", headers),
		zap.Int("data_lines", len(lines)-1))

	cards := make([]domain.ParsedCard, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if !utf8.ValidString(line) {
			p.logger.Warn("row is not valid UTF-8, keeping raw bytes", zap.Int("row", i+1))
		}
		row := SplitFields(line, delim)
		if len(row) < len(headers) {
			p.logger.Warn("skipping row with missing columns",
				zap.Int("row", i+1),
				zap.Int("fields", len(row)),
				zap.Int("headers", len(headers)))
			continue
		}

		card := hm.ToParsedCard(row)
		if card.Name == "" {
			p.logger.Warn("skipping row without card name", zap.Int("row", i+1))
			continue
		}
		cards = append(cards, card)
	}

	return cards, nil
}

// splitLines splits on \r\n or \n and drops blank lines
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// DetectDelimiter picks whichever of comma, semicolon and tab occurs most in
// the header line. Ties go to comma, then semicolon.
func DetectDelimiter(header string) rune {
	best := candidateDelimiters[0]
	bestCount := strings.Count(header, string(best))
	for _, d := range candidateDelimiters[1:] {
		if c := strings.Count(header, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// SplitFields tokenizes one line. A double quote toggles quoted mode, a
// doubled quote inside a quoted field is a literal quote, and the delimiter
// only separates fields outside quotes. The line is scanned byte by byte, so
// bytes that are not valid UTF-8 are kept as they are.
func SplitFields(line string, delim rune) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)
	sep := string(delim)
	for i := 0; i < len(line); {
		switch {
		case line[i] == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			cur.WriteByte('"')
			i += 2
		case line[i] == '"':
			inQuotes = !inQuotes
			i++
		case !inQuotes && strings.HasPrefix(line[i:], sep):
			fields = append(fields, cur.String())
			cur.Reset()
			i += len(sep)
		default:
			cur.WriteByte(line[i])
			i++
		}
	}
	return append(fields, cur.String())
}
