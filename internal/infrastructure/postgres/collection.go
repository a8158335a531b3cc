package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tcgvault/backend/internal/domain"
	"go.uber.org/zap"
)

// MaxBatchSize caps the number of statements queued in one pgx batch
const MaxBatchSize = 500

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collection_cards (
	id               BIGSERIAL PRIMARY KEY,
	user_id          TEXT        NOT NULL,
	game             TEXT        NOT NULL,
	api_id           TEXT        NOT NULL,
	name             TEXT        NOT NULL,
	set_code         TEXT        NOT NULL DEFAULT '',
	set_name         TEXT        NOT NULL DEFAULT '',
	collector_number TEXT        NOT NULL DEFAULT '',
	rarity           TEXT        NOT NULL DEFAULT '',
	condition        TEXT        NOT NULL,
	language         TEXT        NOT NULL,
	is_foil          BOOLEAN     NOT NULL DEFAULT FALSE,
	quantity         INTEGER     NOT NULL CHECK (quantity > 0),
	purchase_price   NUMERIC(12,2),
	market_price_usd NUMERIC(12,2),
	image_url        TEXT        NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, game, api_id, condition, language, is_foil)
)`

const upsertSQL = `
INSERT INTO collection_cards (
	user_id, game, api_id, name, set_code, set_name, collector_number, rarity,
	condition, language, is_foil, quantity, purchase_price, market_price_usd, image_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (user_id, game, api_id, condition, language, is_foil) DO UPDATE SET
	quantity         = collection_cards.quantity + EXCLUDED.quantity,
	market_price_usd = COALESCE(EXCLUDED.market_price_usd, collection_cards.market_price_usd),
	purchase_price   = COALESCE(EXCLUDED.purchase_price, collection_cards.purchase_price),
	updated_at       = now()`

// DB is the subset of *pgxpool.Pool used by the repository
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CollectionRepository writes imported cards to the collection_cards table
type CollectionRepository struct {
	db        DB
	batchSize int
	logger    *zap.Logger
}

// NewCollectionRepository creates a repository. batchSize is clamped to 1..MaxBatchSize.
func NewCollectionRepository(db DB, batchSize int, logger *zap.Logger) *CollectionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &CollectionRepository{
		db:        db,
		batchSize: batchSize,
		logger:    logger.Named("postgres"),
	}
}

// EnsureSchema creates the collection table when it does not exist
func (r *CollectionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create collection schema: %w", err)
	}
	return nil
}

// SaveImported upserts cards for userID in one transaction and returns the
// number of rows written. Existing entries get their quantity increased.
func (r *CollectionRepository) SaveImported(ctx context.Context, userID string, cards []domain.ImportedCard) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	cards, skipped := identifiable(cards)
	if skipped > 0 {
		r.logger.Warn("skipping cards without a search id", zap.String("user_id", userID), zap.Int("count", skipped))
	}
	if len(cards) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	saved := 0
	for _, chunk := range chunkCards(cards, r.batchSize) {
		batch := &pgx.Batch{}
		for _, card := range chunk {
			batch.Queue(upsertSQL, upsertArgs(userID, card)...)
		}

		n, err := execBatch(tx.SendBatch(ctx, batch), len(chunk))
		saved += n
		if err != nil {
			return 0, fmt.Errorf("failed to save card %d: %w", saved+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("collection updated", zap.String("user_id", userID), zap.Int("cards", saved))
	return saved, nil
}

func execBatch(br pgx.BatchResults, n int) (int, error) {
	done := 0
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return done, err
		}
		done++
	}
	return done, br.Close()
}

// chunkCards splits cards into consecutive slices of at most size elements
func chunkCards(cards []domain.ImportedCard, size int) [][]domain.ImportedCard {
	if size <= 0 {
		size = MaxBatchSize
	}
	chunks := make([][]domain.ImportedCard, 0, (len(cards)+size-1)/size)
	for start := 0; start < len(cards); start += size {
		end := start + size
		if end > len(cards) {
			end = len(cards)
		}
		chunks = append(chunks, cards[start:end])
	}
	return chunks
}

// cardID is the conflict key identity of a card: the api id, else the id
func cardID(c domain.ImportedCard) string {
	if c.APIID != "" {
		return c.APIID
	}
	return c.ID
}

// identifiable drops cards without an id, since they would all collapse onto
// one collection entry. It returns the kept cards and the number dropped.
func identifiable(cards []domain.ImportedCard) ([]domain.ImportedCard, int) {
	kept := make([]domain.ImportedCard, 0, len(cards))
	for _, c := range cards {
		if strings.TrimSpace(cardID(c)) != "" {
			kept = append(kept, c)
		}
	}
	return kept, len(cards) - len(kept)
}

// upsertArgs returns the positional arguments for upsertSQL
func upsertArgs(userID string, c domain.ImportedCard) []any {
	apiID := cardID(c)
	quantity := c.Quantity
	if quantity < 1 {
		quantity = domain.DefaultQuantity
	}
	return []any{
		userID,
		string(c.Game),
		apiID,
		c.Name,
		c.SetCode,
		c.SetName,
		c.CollectorNumber,
		c.Rarity,
		c.Condition,
		c.Language,
		c.IsFoil,
		quantity,
		ParsePrice(c.CSVData.Price),
		marketPrice(c),
		c.ImageURIs.Normal,
	}
}

// marketPrice picks the USD price matching the printing, falling back to the other one
func marketPrice(c domain.ImportedCard) *float64 {
	if c.IsFoil && c.Prices.USDFoil != nil {
		return c.Prices.USDFoil
	}
	if c.Prices.USD != nil {
		return c.Prices.USD
	}
	return c.Prices.USDFoil
}

// ParsePrice reads a purchase price such as "$1,299.50", "1.299,50" or "0,25".
// When both separators appear the later one is the decimal point.
// It returns nil for empty or unparseable values.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma < 0:
	case dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
