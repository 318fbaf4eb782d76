package portfolio

import (
	"investdash/internal/models"

	"github.com/shopspring/decimal"
)

type TypeSummary struct {
	CurrentValue   decimal.Decimal `json:"current_value"`
	TotalInvested  decimal.Decimal `json:"total_invested"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	AvailableCount int             `json:"positions"`
}

// Overview holds the portfolio-wide totals shown on the dashboard.
type Overview struct {
	TotalInvested        decimal.Decimal                       `json:"total_invested"`
	TotalCurrentValue    decimal.Decimal                       `json:"total_current_value"`
	TotalProfitLoss      decimal.Decimal                       `json:"total_profit_loss"`
	UnrealizedProfitLoss decimal.Decimal                       `json:"unrealized_profit_loss"`
	RealizedProfitLoss   decimal.Decimal                       `json:"realized_profit_loss"`
	TotalInvestments     int                                   `json:"total_investments"`
	ByType               map[models.InvestmentType]TypeSummary `json:"by_type"`
}

// Summarize totals positions. recordCount is reported as total_investments.
func Summarize(positions []Position, recordCount int) Overview {
	ov := Overview{
		TotalInvestments: recordCount,
		ByType:           map[models.InvestmentType]TypeSummary{},
	}
	for _, p := range positions {
		ov.TotalInvested = ov.TotalInvested.Add(p.TotalInvested)
		ov.TotalCurrentValue = ov.TotalCurrentValue.Add(p.CurrentValue)
		ov.UnrealizedProfitLoss = ov.UnrealizedProfitLoss.Add(p.UnrealizedProfitLoss)
		ov.RealizedProfitLoss = ov.RealizedProfitLoss.Add(p.RealizedProfitLoss)

		ts := ov.ByType[p.InvestmentType]
		ts.CurrentValue = ts.CurrentValue.Add(p.CurrentValue)
		ts.TotalInvested = ts.TotalInvested.Add(p.TotalInvested)
		ts.ProfitLoss = ts.ProfitLoss.Add(p.UnrealizedProfitLoss).Add(p.RealizedProfitLoss)
		if p.AvailableAmount.IsPositive() {
			ts.AvailableCount++
		}
		ov.ByType[p.InvestmentType] = ts
	}
	ov.TotalProfitLoss = ov.UnrealizedProfitLoss.Add(ov.RealizedProfitLoss)
	return ov
}
