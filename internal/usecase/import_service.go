package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
)

// ImportServiceConfig holds configuration for the import service
type ImportServiceConfig struct {
	SearchLimit int
}

// ImportService matches parsed rows against the card search service and
// merges the matched card with the row's own values.
type ImportService struct {
	parser      *CSVParser
	searcher    domain.CardSearcher
	gate        domain.RateGate
	searchLimit int
	logger      *zap.Logger
	now         func() time.Time
}

// NewImportService creates a new import service with dependencies.
// gate paces rows; it is awaited before every row but the first.
func NewImportService(
	searcher domain.CardSearcher,
	gate domain.RateGate,
	logger *zap.Logger,
	config ImportServiceConfig,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := config.SearchLimit
	if limit <= 0 {
		limit = 5
	}

	return &ImportService{
		parser:      NewCSVParser(logger),
		searcher:    searcher,
		gate:        gate,
		searchLimit: limit,
		logger:      logger.Named("import"),
		now:         time.Now,
	}
}

// Parser returns the CSV parser used by Import
func (s *ImportService) Parser() *CSVParser {
	return s.parser
}

// Import parses text and processes every surviving row.
// A *domain.FormatError is returned before any search is made.
func (s *ImportService) Import(
	ctx context.Context,
	text string,
	game domain.Game,
	observer domain.ProgressObserver,
) (*domain.ImportReport, error) {
	cards, err := s.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, cards, game, observer)
}

// Process resolves each card in order, one at a time.
// The returned report always holds one result per card. When ctx is
// cancelled mid-run the unprocessed rows are reported as cancelled errors
// and the context error is returned together with the report.
func (s *ImportService) Process(
	ctx context.Context,
	cards []domain.ParsedCard,
	game domain.Game,
	observer domain.ProgressObserver,
) (*domain.ImportReport, error) {
	if observer == nil {
		observer = nopObserver{}
	}

	report := &domain.ImportReport{
		Game:      game,
		Results:   make([]domain.ProcessResult, 0, len(cards)),
		StartedAt: s.now(),
	}

	var stopErr error
	for i, card := range cards {
		if stopErr == nil {
			stopErr = ctx.Err()
		}
		if stopErr == nil && i > 0 && s.gate != nil {
			stopErr = s.gate.Wait(ctx)
		}
		if stopErr != nil {
			report.Results = append(report.Results, errorResult(i, card, domain.ErrImportCancelled.Error()))
			continue
		}

		s.notify(observer, domain.ProgressEvent{Index: i, Phase: domain.PhaseProcessing, Message: card.Name})
		res := s.processCard(ctx, i, card, game)
		if res.Status == domain.StatusSuccess {
			s.notify(observer, domain.ProgressEvent{Index: i, Phase: domain.PhaseSuccess, Message: res.Card.Name})
		} else {
			s.notify(observer, domain.ProgressEvent{Index: i, Phase: domain.PhaseError, Message: res.Error})
		}
		report.Results = append(report.Results, res)
	}

	if stopErr == nil {
		// cancelled while the last row was in flight
		stopErr = ctx.Err()
	}

	report.Summary = summarize(report.Results)
	report.Summary.Cancelled = stopErr != nil
	report.FinishedAt = s.now()

	s.logger.Info("import finished",
		zap.String("game", string(game)),
		zap.Int("total", report.Summary.Total),
		zap.Int("successful", report.Summary.Successful),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("with_pricing", report.Summary.WithPricing),
		zap.Bool("cancelled", report.Summary.Cancelled),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	if stopErr != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrImportCancelled, stopErr)
	}
	return report, nil
}

// processCard runs the cascade for one row. It never panics out and never
// returns an error: every failure becomes an error result.
func (s *ImportService) processCard(ctx context.Context, index int, card domain.ParsedCard, game domain.Game) (res domain.ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("row processing panicked", zap.Int("row", index), zap.Any("panic", r))
			res = errorResult(index, card, fmt.Sprintf("internal error: %v", r))
		}
	}()

	match, strategy, err := s.findMatch(ctx, card, game)
	if err != nil && ctx.Err() != nil {
		return errorResult(index, card, domain.ErrImportCancelled.Error())
	}
	if err != nil {
		s.logger.Warn("card search failed",
			zap.Int("row", index),
			zap.String("name", card.Name),
			zap.Error(err))
		return errorResult(index, card, err.Error())
	}
	if match == nil {
		s.logger.Info("card not found", zap.Int("row", index), zap.String("name", card.Name))
		return errorResult(index, card, domain.ErrCardNotFound.Error())
	}

	s.logger.Debug("card matched",
		zap.Int("row", index),
		zap.String("name", card.Name),
		zap.String("strategy", string(strategy)),
		zap.String("api_id", match.APIID))

	imported := mergeCard(*match, card)
	return domain.ProcessResult{
		Index:        index,
		Status:       domain.StatusSuccess,
		Card:         &imported,
		OriginalName: card.Name,
	}
}

// findMatch walks the cascade and returns the first candidate of the first
// strategy with results. A nil match with nil error means nothing matched.
func (s *ImportService) findMatch(ctx context.Context, card domain.ParsedCard, game domain.Game) (*domain.CardResult, Strategy, error) {
	for _, q := range BuildCascade(card) {
		resp, err := s.searcher.Search(ctx, q.String(), game, s.searchLimit)
		if err != nil {
			return nil, q.Strategy, err
		}
		if resp.Found() {
			first := resp.Data[0]
			return &first, q.Strategy, nil
		}
	}
	return nil, "", nil
}

// notify delivers an event, swallowing any panic from the observer
func (s *ImportService) notify(observer domain.ProgressObserver, e domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("progress observer panicked", zap.Any("panic", r))
		}
	}()
	observer.OnProgress(e)
}

// mergeCard applies the row's quantity, condition, language and foil flag
// to the matched card and records the original CSV values
func mergeCard(match domain.CardResult, card domain.ParsedCard) domain.ImportedCard {
	return domain.ImportedCard{
		CardResult: match,
		Quantity:   card.Quantity,
		Condition:  card.Condition,
		Language:   card.Language,
		IsFoil:     card.IsFoil,
		CSVData: domain.CSVData{
			Name:            card.Name,
			SetName:         card.SetName,
			Set:             card.Set,
			CollectorNumber: card.CollectorNumber,
			Price:           card.OriginalPrice,
		},
	}
}

func errorResult(index int, card domain.ParsedCard, msg string) domain.ProcessResult {
	original := card
	return domain.ProcessResult{
		Index:        index,
		Status:       domain.StatusError,
		OriginalName: card.Name,
		Error:        msg,
		OriginalData: &original,
	}
}

func summarize(results []domain.ProcessResult) domain.ImportSummary {
	sum := domain.ImportSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.StatusSuccess:
			sum.Successful++
			if r.Card != nil && r.Card.Prices.HasAny() {
				sum.WithPricing++
			}
		case domain.StatusError:
			sum.Failed++
		}
	}
	return sum
}

// IsCancelled reports whether err came from a cancelled run
func IsCancelled(err error) bool {
	return errors.Is(err, domain.ErrImportCancelled)
}
