package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tcgvault/backend/config"
	"github.com/tcgvault/backend/internal/app"
	"github.com/tcgvault/backend/internal/domain"
	"github.com/tcgvault/backend/internal/usecase"
	"go.uber.org/zap"
)

type importFlags struct {
	input  string
	game   string
	failed string
	userID string
	commit bool
	asJSON bool
	quiet  bool
}

func newImportCmd(opts Options, root *rootFlags) *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Resolve every row of a CSV export against the card search service",
		Long: `Import parses a CSV export and looks up each row, one at a time, trying the
most specific query first and falling back to looser ones.

Interrupting with Ctrl-C stops after the current row and still prints the
partial report.

Examples:
  cardimport import -i collection.csv -g pokemon
  cardimport import -i collection.csv --failed retry.csv
  cardimport import -i collection.csv --user 42 --commit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "CSV file to read, - for stdin")
	cmd.Flags().StringVarP(&flags.game, "game", "g", "", "Game to search (default from config)")
	cmd.Flags().StringVar(&flags.failed, "failed", "", "Write failed rows to this CSV file")
	cmd.Flags().StringVar(&flags.userID, "user", "", "Collection owner for --commit")
	cmd.Flags().BoolVar(&flags.commit, "commit", false, "Save matched cards to the collection database")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Do not print per-row progress")

	return cmd
}

func runImport(cmd *cobra.Command, opts Options, root *rootFlags, flags *importFlags) error {
	if flags.commit && flags.userID == "" {
		return fmt.Errorf("--commit requires --user")
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, root.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	game, err := domain.ParseGame(firstNonEmpty(flags.game, cfg.Import.DefaultGame))
	if err != nil {
		return err
	}

	text, err := readInput(cmd, flags.input)
	if err != nil {
		return err
	}

	service, closeService := opts.NewService(cfg, logger)
	defer closeService()

	cards, err := service.Parser().Parse(text)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var observer domain.ProgressObserver
	if !flags.quiet && !flags.asJSON {
		observer = newProgressPrinter(cmd.ErrOrStderr(), cards)
	}

	report, runErr := service.Process(ctx, cards, game, observer)
	if runErr != nil && !usecase.IsCancelled(runErr) {
		return runErr
	}

	out := cmd.OutOrStdout()
	if flags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printSummary(out, report)
	}

	if flags.failed != "" && report.Summary.Failed > 0 {
		n, err := writeFailedFile(flags.failed, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d failed rows to %s\n", n, flags.failed)
	}

	if flags.commit {
		if report.Summary.Cancelled {
			return fmt.Errorf("import was cancelled, nothing committed")
		}
		collection, closeDB, err := opts.OpenCollection(cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		saved, err := collection.Commit(cmd.Context(), flags.userID, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %d cards to collection of %s\n", saved, flags.userID)
	}

	return runErr
}

func writeFailedFile(path string, report *domain.ImportReport) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := usecase.WriteFailedRows(f, report.Results)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func openCollection(cfg *config.Config, logger *zap.Logger) (*usecase.CollectionService, func(), error) {
	repo, closeDB, err := app.OpenCollection(context.Background(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if repo == nil {
		return nil, nil, domain.ErrPersistenceUnavailable
	}
	return usecase.NewCollectionService(repo, logger), closeDB, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
