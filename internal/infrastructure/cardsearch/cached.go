package cardsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CachedSearcher caches successful search responses in front of another searcher.
// Re-importing a corrected file then only hits the service for changed rows.
type CachedSearcher struct {
	next   domain.CardSearcher
	cache  domain.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSearcher wraps next with cache
func NewCachedSearcher(next domain.CardSearcher, cache domain.CacheRepository, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedSearcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("cardsearch.cache"),
	}
}

// Search returns a cached response when present, otherwise asks the wrapped searcher
func (s *CachedSearcher) Search(ctx context.Context, query string, game domain.Game, limit int) (*domain.SearchResponse, error) {
	key := s.cacheKey(query, game, limit)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var resp domain.SearchResponse
		if err := json.Unmarshal(raw, &resp); err == nil {
			return &resp, nil
		}
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
		_ = s.cache.Delete(ctx, key)
	}

	resp, err := s.next.Search(ctx, query, game, limit)
	if err != nil {
		return nil, err
	}

	if resp != nil && resp.Success {
		raw, err := json.Marshal(resp)
		if err == nil {
			err = s.cache.Set(ctx, key, raw, s.ttl)
		}
		if err != nil {
			s.logger.Warn("failed to cache search response", zap.String("key", key), zap.Error(err))
		}
	}

	return resp, nil
}

// cacheKey builds "cardsearch:{game}:{limit}:{query}" with the query
// NFC-normalized, case-folded and whitespace-collapsed
func (s *CachedSearcher) cacheKey(query string, game domain.Game, limit int) string {
	q := norm.NFC.String(query)
	q = cases.Fold().String(q)
	q = strings.Join(strings.Fields(q), " ")
	return fmt.Sprintf("cardsearch:%s:%d:%s", game, limit, q)
}
