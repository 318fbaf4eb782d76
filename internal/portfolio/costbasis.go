package portfolio

import "github.com/shopspring/decimal"

// CostBasis tracks the held quantity of a single symbol and what it cost.
// Implementations decide which units a sale consumes.
type CostBasis interface {
	Buy(amount, price decimal.Decimal)
	// Sell removes up to amount units and returns their cost. Units beyond
	// the held quantity carry no cost.
	Sell(amount decimal.Decimal) decimal.Decimal
	Held() decimal.Decimal
	Cost() decimal.Decimal
}

// Strategy creates an empty CostBasis for a symbol.
type Strategy func() CostBasis

// WeightedAverage is the default strategy: one running average per symbol,
// no lot tracking.
var WeightedAverage Strategy = func() CostBasis { return &WeightedAverageCostBasis{} }

type WeightedAverageCostBasis struct {
	held decimal.Decimal
	cost decimal.Decimal
}

func (w *WeightedAverageCostBasis) Buy(amount, price decimal.Decimal) {
	w.held = w.held.Add(amount)
	w.cost = w.cost.Add(amount.Mul(price))
}

func (w *WeightedAverageCostBasis) Sell(amount decimal.Decimal) decimal.Decimal {
	if !w.held.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	if amount.GreaterThanOrEqual(w.held) {
		sold := w.cost
		w.held = decimal.Zero
		w.cost = decimal.Zero
		return sold
	}
	sold := w.cost.Mul(amount).Div(w.held)
	w.held = w.held.Sub(amount)
	w.cost = w.cost.Sub(sold)
	return sold
}

func (w *WeightedAverageCostBasis) Held() decimal.Decimal { return w.held }

func (w *WeightedAverageCostBasis) Cost() decimal.Decimal { return w.cost }

// Average returns the per-unit cost of what b currently holds.
func Average(b CostBasis) decimal.Decimal {
	if !b.Held().IsPositive() {
		return decimal.Zero
	}
	return b.Cost().Div(b.Held())
}
