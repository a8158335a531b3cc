package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tcgvault/backend/config"
	"github.com/tcgvault/backend/internal/app"
	"github.com/tcgvault/backend/internal/logging"
	"github.com/tcgvault/backend/internal/usecase"
	"go.uber.org/zap"
)

// Options lets callers replace the configuration and service wiring
type Options struct {
	LoadConfig     func() (*config.Config, error)
	NewService     func(cfg *config.Config, logger *zap.Logger) (*usecase.ImportService, func())
	OpenCollection func(cfg *config.Config, logger *zap.Logger) (*usecase.CollectionService, func(), error)
}

func (o *Options) setDefaults() {
	if o.LoadConfig == nil {
		o.LoadConfig = config.Load
	}
	if o.NewService == nil {
		o.NewService = app.NewImportService
	}
	if o.OpenCollection == nil {
		o.OpenCollection = openCollection
	}
}

type rootFlags struct {
	verbose bool
	noColor bool
}

// NewRootCmd builds the cardimport command tree
func NewRootCmd(opts Options) *cobra.Command {
	opts.setDefaults()
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "cardimport",
		Short: "Import trading card collection exports",
		Long: `cardimport reads collection CSV exports from deck builders and marketplaces,
maps their columns onto card fields and resolves every row against the card
search service.

Supported games: magic, pokemon, lorcana, optcg.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				disableColor()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newParseCmd())
	root.AddCommand(newImportCmd(opts, flags))

	return root
}

// Execute runs the command tree against os.Args
func Execute() error {
	return NewRootCmd(Options{}).Execute()
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	if cfg.Log.Level == "debug" {
		level = cfg.Log.Level
	}
	return logging.New(level, "console")
}

// readInput reads a whole file, or stdin for "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("input file is required (-i path or -i - for stdin)")
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
