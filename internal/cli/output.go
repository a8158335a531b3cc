package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/tcgvault/backend/internal/domain"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	titleColor = color.New(color.Bold)
)

func disableColor() {
	color.NoColor = true
}

// progressPrinter writes one line per finished row
type progressPrinter struct {
	w     io.Writer
	total int
	names []string
}

func newProgressPrinter(w io.Writer, cards []domain.ParsedCard) *progressPrinter {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.Name
	}
	return &progressPrinter{w: w, total: len(cards), names: names}
}

func (p *progressPrinter) OnProgress(e domain.ProgressEvent) {
	prefix := fmt.Sprintf("[%*d/%d]", len(fmt.Sprint(p.total)), e.Index+1, p.total)
	switch e.Phase {
	case domain.PhaseSuccess:
		okColor.Fprintf(p.w, "%s ok   %s\n", prefix, e.Message)
	case domain.PhaseError:
		name := ""
		if e.Index < len(p.names) {
			name = p.names[e.Index]
		}
		errColor.Fprintf(p.w, "%s fail %s: %s\n", prefix, name, e.Message)
	}
}

func printParsedCards(w io.Writer, cards []domain.ParsedCard) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	titleColor.Fprintln(tw, "#\tQTY\tNAME\tSET\tNUMBER\tCONDITION\tLANGUAGE\tFOIL")
	for i, c := range cards {
		set := c.Set
		if set == "" {
			set = c.SetName
		}
		foil := ""
		if c.IsFoil {
			foil = "foil"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, c.Quantity, c.Name, set, c.CollectorNumber, c.Condition, c.Language, foil)
	}
	tw.Flush()
}

func printSummary(w io.Writer, report *domain.ImportReport) {
	s := report.Summary
	fmt.Fprintln(w)
	titleColor.Fprintf(w, "Import summary (%s)\n", report.Game)
	fmt.Fprintf(w, "  total:        %d\n", s.Total)
	okColor.Fprintf(w, "  matched:      %d\n", s.Successful)
	if s.Failed > 0 {
		errColor.Fprintf(w, "  failed:       %d\n", s.Failed)
	} else {
		fmt.Fprintf(w, "  failed:       %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  with pricing: %d\n", s.WithPricing)
	if s.Cancelled {
		warnColor.Fprintln(w, "  import was cancelled before all rows were processed")
	}

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	titleColor.Fprintln(w, "Failed rows")
	for _, f := range failures {
		fmt.Fprintf(w, "  %d. %s: %s\n", f.Index+1, f.OriginalName, f.Error)
	}
}
