package portfolio

import (
	"testing"
	"time"

	"investdash/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var nextID int64

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func buy(symbol, amount, price, date string) models.InvestmentRecord {
	nextID++
	return models.InvestmentRecord{
		ID:             nextID,
		Name:           symbol + " Inc.",
		Symbol:         symbol,
		InvestmentType: models.TypeStocks,
		Amount:         dec(amount),
		PurchasePrice:  dec(price),
		PurchaseDate:   day(date),
		CreatedAt:      time.Now(),
	}
}

func sell(symbol, amount, price, date string) models.InvestmentRecord {
	r := buy(symbol, amount, price, date)
	r.Amount = r.Amount.Neg()
	return r
}

func priced(r models.InvestmentRecord, current string) models.InvestmentRecord {
	r.CurrentPrice = decimal.NewNullDecimal(dec(current))
	return r
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "expected %s, got %s", want, got.String())
}

func bySymbol(positions []Position) map[string]Position {
	m := make(map[string]Position, len(positions))
	for _, p := range positions {
		m[p.Symbol] = p
	}
	return m
}
