package portfolio

import (
	"fmt"
	"strings"
	"time"

	"investdash/internal/models"

	"github.com/shopspring/decimal"
)

type Granularity int

const (
	Day Granularity = iota
	Week
	Month
	Year
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	case "year", "yearly":
		return Year, nil
	default:
		return Day, fmt.Errorf("unknown aggregation %q (use day, week, month or year)", s)
	}
}

// Start truncates d to the first day of its period. Weeks start on Monday
// as in ISO 8601.
func (g Granularity) Start(d models.Date) models.Date {
	switch g {
	case Week:
		offset := (int(d.Weekday()) + 6) % 7
		return models.DateOf(d.AddDate(0, 0, -offset))
	case Month:
		return models.NewDate(d.Year(), d.Month(), 1)
	case Year:
		return models.NewDate(d.Year(), time.January, 1)
	default:
		return d
	}
}

// EarningsPoint is the cumulative state of the portfolio at the end of one
// period.
type EarningsPoint struct {
	Date         models.Date     `json:"date"`
	Invested     decimal.Decimal `json:"invested"`
	CurrentValue decimal.Decimal `json:"current_value"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
}

// Earnings builds a running-total series with one point per period that
// contains at least one record, in ascending order. Holdings are valued at
// the latest known current price of their symbol, or at cost when no price
// was ever recorded, so the last point agrees with Summarize over the same
// records.
func Earnings(records []models.InvestmentRecord, g Granularity, strategy Strategy) []EarningsPoint {
	if strategy == nil {
		strategy = WeightedAverage
	}
	ordered := make([]models.InvestmentRecord, len(records))
	copy(ordered, records)
	SortChronological(ordered)

	prices := map[string]decimal.NullDecimal{}
	for _, r := range ordered {
		if r.CurrentPrice.Valid {
			prices[r.Symbol] = r.CurrentPrice
		}
	}

	holdings := map[string]*holding{}
	var order []string
	snapshot := func(bucket models.Date) EarningsPoint {
		pt := EarningsPoint{Date: bucket}
		realized := decimal.Zero
		for _, sym := range order {
			h := holdings[sym]
			pt.Invested = pt.Invested.Add(h.basis.Cost())
			pt.TotalAmount = pt.TotalAmount.Add(h.net)
			pt.CurrentValue = pt.CurrentValue.Add(h.value(prices[sym]))
			realized = realized.Add(h.realized)
		}
		pt.ProfitLoss = pt.CurrentValue.Sub(pt.Invested).Add(realized)
		return pt
	}

	series := []EarningsPoint{}
	var bucket models.Date
	for i, r := range ordered {
		start := g.Start(r.PurchaseDate)
		if i > 0 && !start.Equal(bucket.Time) {
			series = append(series, snapshot(bucket))
		}
		bucket = start

		h := holdings[r.Symbol]
		if h == nil {
			h = newHolding(strategy)
			holdings[r.Symbol] = h
			order = append(order, r.Symbol)
		}
		h.apply(r)
	}
	if len(ordered) > 0 {
		series = append(series, snapshot(bucket))
	}
	return series
}
