package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
)

// CollectionService writes the successful rows of a finished import to the
// user's collection
type CollectionService struct {
	repo   domain.CollectionRepository
	logger *zap.Logger
}

// NewCollectionService creates a collection service. repo may be nil when no
// database is configured; Commit then returns ErrPersistenceUnavailable.
func NewCollectionService(repo domain.CollectionRepository, logger *zap.Logger) *CollectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		repo:   repo,
		logger: logger.Named("collection"),
	}
}

// Enabled reports whether a collection store is configured
func (s *CollectionService) Enabled() bool {
	return s.repo != nil
}

// Commit saves every successful row of report for userID and returns the
// number of entries written
func (s *CollectionService) Commit(ctx context.Context, userID string, report *domain.ImportReport) (int, error) {
	if s.repo == nil {
		return 0, domain.ErrPersistenceUnavailable
	}
	if report == nil {
		return 0, domain.ErrRunInProgress
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	cards := report.Successes()
	if len(cards) == 0 {
		return 0, nil
	}

	saved, err := s.repo.SaveImported(ctx, userID, cards)
	if err != nil {
		s.logger.Error("failed to save imported cards", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return saved, nil
}
