package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tcgvault/backend/internal/usecase"
)

func newParseCmd() *cobra.Command {
	var (
		input  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a CSV export without searching",
		Long: `Parse maps the columns of a CSV export and prints the rows as they would be
imported. No requests are made to the card search service.

Example:
  cardimport parse -i moxfield.csv --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			cards, err := usecase.NewCSVParser(nil).Parse(text)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cards)
			}

			printParsedCards(out, cards)
			fmt.Fprintf(out, "\n%d rows parsed\n", len(cards))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file to read, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}
