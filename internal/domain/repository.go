package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CardSearcher is the external card search service.
// A response with Success false or no Data means no match.
type CardSearcher interface {
	Search(ctx context.Context, query string, game Game, limit int) (*SearchResponse, error)
}

// RateGate paces outbound work. Wait blocks until the caller may proceed
// or ctx is done.
type RateGate interface {
	Wait(ctx context.Context) error
}

// ProgressObserver receives row progress during an import.
// Implementations must not block.
type ProgressObserver interface {
	OnProgress(event ProgressEvent)
}

// CollectionRepository persists accepted import results as collection entries
type CollectionRepository interface {
	SaveImported(ctx context.Context, userID string, cards []ImportedCard) (int, error)
}
