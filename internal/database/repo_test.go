package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"investdash/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOversold = errors.New("oversold")

func setupDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := []string{"../../migrations/0001_init.up.sql"}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Logf("exec migration %s: %v", f, err)
		}
	}
	return db
}

// testUser returns a user id no other test run shares and removes its
// records afterwards.
func testUser(t *testing.T, db *sqlx.DB) *int64 {
	id := time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM investments WHERE user_id = $1`, id)
	})
	return &id
}

func record(userID *int64, symbol, amount, price, date string) models.InvestmentRecord {
	d, _ := models.ParseDate(date)
	return models.InvestmentRecord{
		UserID:         userID,
		Name:           symbol,
		Symbol:         symbol,
		InvestmentType: models.TypeStocks,
		Amount:         decimal.RequireFromString(amount),
		PurchasePrice:  decimal.RequireFromString(price),
		PurchaseDate:   d,
	}
}

// notOversold rejects a holding whose signed amounts sum below zero.
func notOversold(records []models.InvestmentRecord) error {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	if total.IsNegative() {
		return errOversold
	}
	return nil
}

type store interface {
	Get(ctx context.Context, id int64) (models.InvestmentRecord, error)
	List(ctx context.Context, f models.RecordFilter) ([]models.InvestmentRecord, error)
	Create(ctx context.Context, rec models.InvestmentRecord) (models.InvestmentRecord, error)
	CreateSell(ctx context.Context, rec models.InvestmentRecord, check HoldingCheck) (models.InvestmentRecord, error)
	Update(ctx context.Context, id int64, apply ApplyFunc, check HoldingCheck) (models.InvestmentRecord, error)
	Delete(ctx context.Context, id int64, check HoldingCheck) error
	SetCurrentPrice(ctx context.Context, userID *int64, symbol string, price decimal.Decimal) (int64, error)
}

func TestRepo_Store(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	runStoreSuite(t, r, testUser(t, db))
}

func TestRepo_ConcurrentSellsDoNotOversell(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	runConcurrentSells(t, r, testUser(t, db))
}

func runStoreSuite(t *testing.T, s store, userID *int64) {
	ctx := context.Background()

	b1, err := s.Create(ctx, record(userID, "AAPL", "10", "150", "2024-02-01"))
	require.NoError(t, err)
	require.NotZero(t, b1.ID)
	assert.False(t, b1.CreatedAt.IsZero())
	b2, err := s.Create(ctx, record(userID, "AAPL", "5", "160", "2024-01-01"))
	require.NoError(t, err)
	other, err := s.Create(ctx, record(userID, "BTC", "1", "30000", "2024-01-15"))
	require.NoError(t, err)

	got, err := s.Get(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "2024-02-01", got.PurchaseDate.String())

	t.Run("list is ordered by date then id", func(t *testing.T) {
		all, err := s.List(ctx, models.RecordFilter{UserID: userID})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int64{b2.ID, other.ID, b1.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("filters are conjunctive", func(t *testing.T) {
		start, _ := models.ParseDate("2024-01-10")
		res, err := s.List(ctx, models.RecordFilter{UserID: userID, Symbol: "AAPL", StartDate: &start})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, b1.ID, res[0].ID)

		res, err = s.List(ctx, models.RecordFilter{UserID: userID, Type: models.TypeCrypto})
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("paging", func(t *testing.T) {
		res, err := s.List(ctx, models.RecordFilter{UserID: userID, Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, other.ID, res[0].ID)
	})

	t.Run("sell checked against the holding", func(t *testing.T) {
		_, err := s.CreateSell(ctx, record(userID, "AAPL", "-16", "170", "2024-03-01"), notOversold)
		assert.ErrorIs(t, err, errOversold)
		res, _ := s.List(ctx, models.RecordFilter{UserID: userID, Symbol: "AAPL"})
		assert.Len(t, res, 2, "rejected sale must not be stored")

		sale, err := s.CreateSell(ctx, record(userID, "AAPL", "-15", "170", "2024-03-01"), notOversold)
		require.NoError(t, err)
		assert.True(t, sale.IsSell())
		assert.False(t, sale.CurrentPrice.Valid)
	})

	t.Run("update rechecks the holding", func(t *testing.T) {
		_, err := s.Update(ctx, b2.ID, func(cur models.InvestmentRecord) (models.InvestmentRecord, error) {
			cur.Amount = decimal.NewFromInt(1)
			return cur, nil
		}, notOversold)
		assert.ErrorIs(t, err, errOversold)

		upd, err := s.Update(ctx, b2.ID, func(cur models.InvestmentRecord) (models.InvestmentRecord, error) {
			cur.Amount = decimal.NewFromInt(7)
			cur.Name = "Apple"
			return cur, nil
		}, notOversold)
		require.NoError(t, err)
		assert.Equal(t, "Apple", upd.Name)
		assert.True(t, upd.Amount.Equal(decimal.NewFromInt(7)))
		require.NotNil(t, upd.UpdatedAt)
	})

	t.Run("current price only touches buys", func(t *testing.T) {
		n, err := s.SetCurrentPrice(ctx, userID, "AAPL", decimal.NewFromInt(180))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		res, _ := s.List(ctx, models.RecordFilter{UserID: userID, Symbol: "AAPL"})
		for _, r := range res {
			assert.Equal(t, !r.IsSell(), r.CurrentPrice.Valid, "record %d", r.ID)
		}
	})

	t.Run("delete", func(t *testing.T) {
		err := s.Delete(ctx, b1.ID, notOversold)
		assert.ErrorIs(t, err, errOversold, "removing a funded buy would oversell")

		require.NoError(t, s.Delete(ctx, other.ID, notOversold))
		_, err = s.Get(ctx, other.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, other.ID, notOversold), ErrNotFound)
	})

	t.Run("missing ids", func(t *testing.T) {
		_, err := s.Get(ctx, -1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Update(ctx, -1, func(cur models.InvestmentRecord) (models.InvestmentRecord, error) { return cur, nil }, notOversold)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func runConcurrentSells(t *testing.T, s store, userID *int64) {
	ctx := context.Background()
	_, err := s.Create(ctx, record(userID, "TSLA", "10", "200", "2024-01-01"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateSell(ctx, record(userID, "TSLA", "-4", "210", "2024-02-01"), notOversold)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errOversold)
	}
	assert.Equal(t, 2, succeeded)

	res, err := s.List(ctx, models.RecordFilter{UserID: userID, Symbol: "TSLA"})
	require.NoError(t, err)
	assert.NoError(t, notOversold(res))
}
