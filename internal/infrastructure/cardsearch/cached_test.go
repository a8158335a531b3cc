package cardsearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcgvault/backend/internal/domain"
	"github.com/tcgvault/backend/internal/infrastructure/cache"
)

type mockSearcher struct {
	calls   int
	queries []string
	resp    *domain.SearchResponse
	err     error
}

func (m *mockSearcher) Search(ctx context.Context, query string, game domain.Game, limit int) (*domain.SearchResponse, error) {
	m.calls++
	m.queries = append(m.queries, query)
	return m.resp, m.err
}

func newTestCachedSearcher(t *testing.T, next domain.CardSearcher) (*CachedSearcher, *cache.MemoryCache) {
	t.Helper()
	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(mem.Close)
	return NewCachedSearcher(next, mem, time.Hour, nil), mem
}

func TestCachedSearcher_HitSkipsUpstream(t *testing.T) {
	next := &mockSearcher{resp: &domain.SearchResponse{
		Success: true,
		Data:    []domain.CardResult{{ID: "1", Name: "Sol Ring"}},
	}}
	s, _ := newTestCachedSearcher(t, next)
	ctx := context.Background()

	first, err := s.Search(ctx, `!"Sol Ring"`, domain.GameMagic, 5)
	require.NoError(t, err)
	second, err := s.Search(ctx, `!"Sol Ring"`, domain.GameMagic, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
}

func TestCachedSearcher_KeyIsCaseAndSpaceInsensitive(t *testing.T) {
	next := &mockSearcher{resp: &domain.SearchResponse{Success: true, Data: []domain.CardResult{{ID: "1"}}}}
	s, _ := newTestCachedSearcher(t, next)
	ctx := context.Background()

	_, _ = s.Search(ctx, "Sol  Ring", domain.GameMagic, 5)
	_, _ = s.Search(ctx, "sol ring ", domain.GameMagic, 5)

	assert.Equal(t, 1, next.calls)
}

func TestCachedSearcher_KeyIncludesGameAndLimit(t *testing.T) {
	next := &mockSearcher{resp: &domain.SearchResponse{Success: true, Data: []domain.CardResult{{ID: "1"}}}}
	s, _ := newTestCachedSearcher(t, next)
	ctx := context.Background()

	_, _ = s.Search(ctx, "Pikachu", domain.GamePokemon, 5)
	_, _ = s.Search(ctx, "Pikachu", domain.GameMagic, 5)
	_, _ = s.Search(ctx, "Pikachu", domain.GamePokemon, 10)

	assert.Equal(t, 3, next.calls)
	assert.Equal(t, "cardsearch:pokemon:5:pikachu", s.cacheKey("Pikachu", domain.GamePokemon, 5))
}

func TestCachedSearcher_UnsuccessfulNotCached(t *testing.T) {
	next := &mockSearcher{resp: &domain.SearchResponse{Success: false, Error: "no match"}}
	s, mem := newTestCachedSearcher(t, next)
	ctx := context.Background()

	_, _ = s.Search(ctx, "Nope", domain.GameMagic, 5)
	_, _ = s.Search(ctx, "Nope", domain.GameMagic, 5)

	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, mem.Size())
}

func TestCachedSearcher_ErrorPassedThrough(t *testing.T) {
	next := &mockSearcher{err: domain.ErrSearchFailure}
	s, mem := newTestCachedSearcher(t, next)

	resp, err := s.Search(context.Background(), "Sol Ring", domain.GameMagic, 5)

	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, domain.ErrSearchFailure))
	assert.Equal(t, 0, mem.Size())
}

func TestCachedSearcher_CorruptEntryRefetched(t *testing.T) {
	next := &mockSearcher{resp: &domain.SearchResponse{Success: true, Data: []domain.CardResult{{ID: "1"}}}}
	s, mem := newTestCachedSearcher(t, next)
	ctx := context.Background()

	key := s.cacheKey("Sol Ring", domain.GameMagic, 5)
	require.NoError(t, mem.Set(ctx, key, []byte("{not json"), time.Hour))

	resp, err := s.Search(ctx, "Sol Ring", domain.GameMagic, 5)

	require.NoError(t, err)
	assert.True(t, resp.Found())
	assert.Equal(t, 1, next.calls)
}
