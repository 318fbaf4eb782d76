package portfolio

import (
	"investdash/internal/models"

	"github.com/shopspring/decimal"
)

// holding is the running state of one symbol while its records are applied
// in chronological order. Aggregate and Earnings both replay through it so
// the two views always agree.
type holding struct {
	basis    CostBasis
	net      decimal.Decimal
	realized decimal.Decimal
	// short holds sales that exceeded the quantity held at their date. They
	// are settled against the next buys, oldest sale first. While any is
	// open, net is negative and basis is empty.
	short []shortSale
}

type shortSale struct {
	amount decimal.Decimal
	price  decimal.Decimal
}

func newHolding(strategy Strategy) *holding {
	return &holding{basis: strategy()}
}

func (h *holding) apply(r models.InvestmentRecord) {
	h.net = h.net.Add(r.Amount)
	if !r.IsSell() {
		amount := r.Amount
		for len(h.short) > 0 && amount.IsPositive() {
			s := &h.short[0]
			n := decimal.Min(s.amount, amount)
			h.realized = h.realized.Add(s.price.Sub(r.PurchasePrice).Mul(n))
			s.amount = s.amount.Sub(n)
			amount = amount.Sub(n)
			if !s.amount.IsPositive() {
				h.short = h.short[1:]
			}
		}
		if amount.IsPositive() {
			h.basis.Buy(amount, r.PurchasePrice)
		}
		return
	}

	sold := r.Amount.Neg()
	covered := decimal.Min(sold, h.basis.Held())
	if covered.IsPositive() {
		cost := h.basis.Sell(covered)
		h.realized = h.realized.Add(covered.Mul(r.PurchasePrice).Sub(cost))
	}
	if excess := sold.Sub(covered); excess.IsPositive() {
		h.short = append(h.short, shortSale{amount: excess, price: r.PurchasePrice})
	}
}

// value is what the held quantity is worth at price, or at cost when no
// price is known.
func (h *holding) value(price decimal.NullDecimal) decimal.Decimal {
	if !h.net.IsPositive() {
		return decimal.Zero
	}
	if !price.Valid {
		return h.basis.Cost()
	}
	return h.net.Mul(price.Decimal)
}

// Balance is the lowest running amount a symbol reaches and the date it
// is first reached.
type Balance struct {
	Amount decimal.Decimal
	Date   models.Date
}

// LowestBalances replays records chronologically and returns, per symbol,
// the lowest running amount. A negative amount means some sale is dated
// before the buys that fund it.
func LowestBalances(records []models.InvestmentRecord) map[string]Balance {
	ordered := make([]models.InvestmentRecord, len(records))
	copy(ordered, records)
	SortChronological(ordered)

	running := map[string]decimal.Decimal{}
	lows := map[string]Balance{}
	for _, r := range ordered {
		bal := running[r.Symbol].Add(r.Amount)
		running[r.Symbol] = bal
		low, seen := lows[r.Symbol]
		if !seen || bal.LessThan(low.Amount) {
			lows[r.Symbol] = Balance{Amount: bal, Date: r.PurchaseDate}
		}
	}
	return lows
}
