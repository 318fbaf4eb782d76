// Package portfolio reduces investment records into positions, profit/loss
// figures and earnings series. Everything here is a pure function of the
// record set it is given.
package portfolio

import (
	"sort"

	"investdash/internal/models"

	"github.com/shopspring/decimal"
)

// Position is a net standing in one symbol derived from all of its records.
type Position struct {
	Symbol               string                `json:"symbol"`
	Name                 string                `json:"name"`
	InvestmentType       models.InvestmentType `json:"investment_type"`
	AvailableAmount      decimal.Decimal       `json:"available_amount"`
	AveragePurchasePrice decimal.Decimal       `json:"average_purchase_price"`
	CurrentPrice         decimal.NullDecimal   `json:"current_price"`
	UnrealizedProfitLoss decimal.Decimal       `json:"unrealized_profit_loss"`
	RealizedProfitLoss   decimal.Decimal       `json:"realized_profit_loss"`
	TotalInvested        decimal.Decimal       `json:"total_invested"`
	CurrentValue         decimal.Decimal       `json:"current_value"`
	SoldAmount           decimal.Decimal       `json:"sold_amount"`
	RecordCount          int                   `json:"record_count"`
}

// SortChronological orders records by purchase date. Records sharing a date
// are applied in insertion order (ascending id), so a same-day buy entered
// before a sell funds that sell's cost basis. A record not yet stored (id 0)
// goes after the stored ones of its date, where its id will put it.
func SortChronological(records []models.InvestmentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.PurchaseDate.Equal(b.PurchaseDate.Time) {
			return a.PurchaseDate.Before(b.PurchaseDate)
		}
		if a.ID == 0 || b.ID == 0 {
			return b.ID == 0 && a.ID != 0
		}
		return a.ID < b.ID
	})
}

type symbolState struct {
	pos Position
	h   *holding
}

// Aggregate returns one Position per symbol present in records, sorted by
// symbol. The input slice is not modified.
func Aggregate(records []models.InvestmentRecord, strategy Strategy) []Position {
	if strategy == nil {
		strategy = WeightedAverage
	}
	ordered := make([]models.InvestmentRecord, len(records))
	copy(ordered, records)
	SortChronological(ordered)

	states := map[string]*symbolState{}
	for _, r := range ordered {
		st := states[r.Symbol]
		if st == nil {
			st = &symbolState{h: newHolding(strategy), pos: Position{Symbol: r.Symbol}}
			states[r.Symbol] = st
		}
		st.pos.RecordCount++
		st.h.apply(r)

		if r.IsSell() {
			st.pos.SoldAmount = st.pos.SoldAmount.Add(r.Amount.Neg())
			if st.pos.Name == "" {
				st.pos.Name = r.Name
			}
			if st.pos.InvestmentType == "" {
				st.pos.InvestmentType = r.InvestmentType
			}
			continue
		}
		if st.pos.Name == "" || r.Name != "" {
			st.pos.Name = r.Name
		}
		st.pos.InvestmentType = r.InvestmentType
		if r.CurrentPrice.Valid {
			st.pos.CurrentPrice = r.CurrentPrice
		}
	}

	positions := make([]Position, 0, len(states))
	for _, st := range states {
		p := st.pos
		p.AvailableAmount = st.h.net
		p.RealizedProfitLoss = st.h.realized
		p.AveragePurchasePrice = Average(st.h.basis)
		p.TotalInvested = st.h.basis.Cost()
		p.CurrentValue = st.h.value(p.CurrentPrice)
		if p.AvailableAmount.IsPositive() {
			// equals (price - average) * available without the rounding of
			// the average
			p.UnrealizedProfitLoss = p.CurrentValue.Sub(p.TotalInvested)
		}
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// Available keeps the positions that still hold a positive quantity, i.e.
// the ones that can be sold from.
func Available(positions []Position) []Position {
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.AvailableAmount.IsPositive() {
			out = append(out, p)
		}
	}
	return out
}
