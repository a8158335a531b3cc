package usecase

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tcgvault/backend/internal/domain"
)

// failedRowsHeader uses names the parser maps back onto the same fields,
// so a corrected export can be uploaded again as is
var failedRowsHeader = []string{
	"Error", "Name", "Quantity", "Set code", "Set name", "Collector number",
	"Condition", "Language", "Foil", "Rarity", "Purchase price",
}

// WriteFailedRows writes every error result as a CSV row with its reason.
// It returns the number of rows written.
func WriteFailedRows(w io.Writer, results []domain.ProcessResult) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(failedRowsHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	n := 0
	for _, res := range results {
		if res.Status != domain.StatusError || res.OriginalData == nil {
			continue
		}
		c := res.OriginalData
		foil := "normal"
		if c.IsFoil {
			foil = "foil"
		}
		row := []string{
			res.Error, c.Name, strconv.Itoa(c.Quantity), c.Set, c.SetName, c.CollectorNumber,
			c.Condition, c.Language, foil, c.Rarity, c.OriginalPrice,
		}
		if err := cw.Write(row); err != nil {
			return n, fmt.Errorf("write row %d: %w", res.Index, err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}
