package service

import (
	"context"

	"investdash/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SetCurrentPrice records the latest known unit price of symbol on every
// buy in the user's scope. Prices are entered by hand; there is no feed.
func (s *InvestmentService) SetCurrentPrice(ctx context.Context, userID *int64, symbol string, price decimal.Decimal) (int64, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, invalid("symbol is required")
	}
	if !price.IsPositive() {
		return 0, invalid("current_price must be greater than 0")
	}
	n, err := s.store.SetCurrentPrice(ctx, userID, symbol, price)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, invalid("no investment with symbol %s to price", symbol)
	}
	s.log.WithFields(logrus.Fields{"symbol": symbol, "price": price.String(), "records": n}).Debug("current price updated")
	return n, nil
}
