package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcgvault/backend/internal/domain"
)

// fakeTx records queued batches. Unused pgx.Tx methods panic through the nil embed.
type fakeTx struct {
	pgx.Tx
	batches    []int
	failAt     int
	committed  bool
	rolledBack bool
	execCount  int
}

func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b.Len())
	return &fakeBatchResults{tx: f}
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeBatchResults struct {
	pgx.BatchResults
	tx *fakeTx
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.tx.execCount++
	if r.tx.failAt > 0 && r.tx.execCount == r.tx.failAt {
		return pgconn.CommandTag{}, errors.New("unique violation")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Close() error { return nil }

type fakeDB struct {
	tx       *fakeTx
	beginErr error
	execSQL  []string
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execSQL = append(d.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func makeCards(n int) []domain.ImportedCard {
	cards := make([]domain.ImportedCard, n)
	for i := range cards {
		cards[i] = domain.ImportedCard{
			CardResult: domain.CardResult{ID: fmt.Sprintf("id-%d", i), Name: "Card", Game: domain.GameMagic},
			Quantity:   1,
			Condition:  domain.DefaultCondition,
			Language:   domain.DefaultLanguage,
		}
	}
	return cards
}

func TestSaveImported_BatchesAndCommits(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewCollectionRepository(db, 2, nil)

	saved, err := repo.SaveImported(context.Background(), "user-1", makeCards(5))

	require.NoError(t, err)
	assert.Equal(t, 5, saved)
	assert.Equal(t, []int{2, 2, 1}, db.tx.batches)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestSaveImported_ExecErrorRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{failAt: 3}}
	repo := NewCollectionRepository(db, 2, nil)

	saved, err := repo.SaveImported(context.Background(), "user-1", makeCards(4))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save card 3")
	assert.Equal(t, 0, saved)
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestSaveImported_Validation(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewCollectionRepository(db, 10, nil)

	_, err := repo.SaveImported(context.Background(), " ", makeCards(1))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	saved, err := repo.SaveImported(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
	assert.Empty(t, db.tx.batches)
}

func TestSaveImported_SkipsCardsWithoutID(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewCollectionRepository(db, 10, nil)

	cards := makeCards(3)
	cards[1].ID = ""
	cards[1].APIID = ""
	cards[2].ID = ""
	cards[2].APIID = "scry-2"

	saved, err := repo.SaveImported(context.Background(), "user-1", cards)

	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Equal(t, []int{2}, db.tx.batches)
}

func TestSaveImported_NothingIdentifiable(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	repo := NewCollectionRepository(db, 10, nil)

	cards := makeCards(2)
	for i := range cards {
		cards[i].ID = ""
	}

	saved, err := repo.SaveImported(context.Background(), "user-1", cards)

	require.NoError(t, err)
	assert.Zero(t, saved)
	assert.Empty(t, db.tx.batches)
	assert.False(t, db.tx.committed)
}

func TestSaveImported_BeginError(t *testing.T) {
	repo := NewCollectionRepository(&fakeDB{beginErr: errors.New("connection refused")}, 10, nil)

	_, err := repo.SaveImported(context.Background(), "user-1", makeCards(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	repo := NewCollectionRepository(db, 0, nil)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, db.execSQL, 1)
	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS collection_cards")
	assert.Equal(t, MaxBatchSize, repo.batchSize)
}

func TestChunkCards(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []int
	}{
		{"empty", 0, 3, []int{}},
		{"exact", 6, 3, []int{3, 3}},
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"smaller than size", 2, 500, []int{2}},
		{"zero size uses max", 501, 0, []int{500, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkCards(makeCards(tt.n), tt.size)
			got := make([]int, 0, len(chunks))
			for _, c := range chunks {
				got = append(got, len(c))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsertArgs(t *testing.T) {
	usd, foil := 1.5, 4.0
	card := domain.ImportedCard{
		CardResult: domain.CardResult{
			ID:              "internal",
			APIID:           "scry-1",
			Name:            "Sol Ring",
			SetName:         "Commander 2021",
			SetCode:         "c21",
			CollectorNumber: "263",
			Rarity:          "uncommon",
			Game:            domain.GameMagic,
			ImageURIs:       domain.ImageURIs{Normal: "n.jpg"},
			Prices:          domain.Prices{USD: &usd, USDFoil: &foil},
		},
		Quantity:  0,
		Condition: "Lightly Played",
		Language:  "German",
		IsFoil:    true,
		CSVData:   domain.CSVData{Price: "$2.00"},
	}

	args := upsertArgs("user-1", card)

	require.Len(t, args, 15)
	assert.Equal(t, "user-1", args[0])
	assert.Equal(t, "magic", args[1])
	assert.Equal(t, "scry-1", args[2])
	assert.Equal(t, true, args[10])
	assert.Equal(t, 1, args[11])
	require.NotNil(t, args[12])
	assert.InDelta(t, 2.0, *args[12].(*float64), 1e-9)
	assert.InDelta(t, 4.0, *args[13].(*float64), 1e-9)
	assert.Equal(t, "n.jpg", args[14])
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  *float64
	}{
		{"", nil},
		{"abc", nil},
		{"-1", nil},
		{"0.25", f(0.25)},
		{"$1,299.50", f(1299.5)},
		{"0,25", f(0.25)},
		{"1.299,50", f(1299.5)},
		{"€1.299.000,75", f(1299000.75)},
		{"1,299,000.75", f(1299000.75)},
		{" € 3 ", f(3)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func f(v float64) *float64 { return &v }
