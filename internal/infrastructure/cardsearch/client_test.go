package cardsearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcgvault/backend/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(Config{
		BaseURL:           baseURL,
		APIKey:            "test-api-key",
		RequestsPerSecond: 1000,
		Burst:             10,
	}, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://api.example.com"}, nil)

	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, 3, client.maxRetries)
	assert.Equal(t, 15*time.Second, client.httpClient.Timeout)
	assert.NotNil(t, client.rateLimiter)
	assert.NotNil(t, client.logger)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/search", r.URL.Path)
		assert.Equal(t, `!"Sol Ring" set:c21`, r.URL.Query().Get("q"))
		assert.Equal(t, "magic", r.URL.Query().Get("game"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": [{
				"id": "abc-123",
				"name": "Sol Ring",
				"set_name": "Commander 2021",
				"set": "c21",
				"collector_number": "263",
				"rarity": "uncommon",
				"image_uris": {"small": "s.jpg", "normal": "n.jpg", "large": "l.jpg"},
				"prices": {"usd": "1.25", "usd_foil": null, "eur": 0.9}
			}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), `!"Sol Ring" set:c21`, domain.GameMagic, 5)

	require.NoError(t, err)
	require.True(t, result.Found())
	card := result.Data[0]
	assert.Equal(t, "abc-123", card.ID)
	assert.Equal(t, "abc-123", card.APIID)
	assert.Equal(t, "c21", card.SetCode)
	assert.Equal(t, "263", card.CollectorNumber)
	assert.Equal(t, domain.GameMagic, card.Game)
	assert.Equal(t, "n.jpg", card.ImageURIs.Normal)
	require.NotNil(t, card.Prices.USD)
	assert.InDelta(t, 1.25, *card.Prices.USD, 1e-9)
	assert.Nil(t, card.Prices.USDFoil)
	require.NotNil(t, card.Prices.EUR)
	assert.InDelta(t, 0.9, *card.Prices.EUR, 1e-9)
}

func TestSearch_NoAPIKeyOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.apiKey = ""

	result, err := client.Search(context.Background(), "Sol Ring", domain.GameMagic, 5)

	require.NoError(t, err)
	assert.False(t, result.Found())
}

func TestSearch_UnsuccessfulBodyIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"no cards matched"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "Nope", domain.GamePokemon, 5)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "no cards matched", result.Error)
	assert.False(t, result.Found())
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := newTestClient(t, "https://api.example.com")

	result, err := client.Search(context.Background(), "", domain.GameMagic, 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSearch_ServerError_Retries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"id":"1","name":"Pikachu"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "Pikachu", domain.GamePokemon, 5)

	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSearch_TooManyRequests_Retries(t *testing.T) {
	var attempts atomic.Int32
	var waits []time.Duration

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"id":"1","name":"Mickey Mouse"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	result, err := client.Search(context.Background(), "Mickey Mouse", domain.GameLorcana, 5)

	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, waits)
}

func TestSearch_ClientError_NoRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "bad", domain.GameMagic, 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrSearchFailure)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSearch_AllRetriesFail(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "all-fail", domain.GameMagic, 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrSearchFailure)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSearch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Search(context.Background(), "invalid-json", domain.GameMagic, 5)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := client.Search(ctx, "timeout-test", domain.GameMagic, 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrSearchFailure)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSearch_RequestCreationError(t *testing.T) {
	client := newTestClient(t, "://invalid-url")

	result, err := client.Search(context.Background(), "test", domain.GameMagic, 5)

	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestReadLimitedBody(t *testing.T) {
	t.Run("reads within limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("short content"))
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := readLimitedBody(resp.Body, 1000)
		require.NoError(t, err)
		assert.Equal(t, "short content", string(body))
	})

	t.Run("truncates beyond limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i := 0; i < 100; i++ {
				w.Write([]byte("0123456789"))
			}
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := readLimitedBody(resp.Body, 100)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})
}
