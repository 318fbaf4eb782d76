package portfolio

import (
	"testing"

	"investdash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in   string
		want Granularity
		err  bool
	}{
		{in: "day", want: Day},
		{in: "Daily", want: Day},
		{in: "week", want: Week},
		{in: "month", want: Month},
		{in: " monthly ", want: Month},
		{in: "year", want: Year},
		{in: "quarter", err: true},
		{in: "", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := ParseGranularity(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
		})
	}
}

func TestGranularityStart(t *testing.T) {
	d := day("2024-05-16") // Thursday
	assert.Equal(t, "2024-05-16", Day.Start(d).String())
	assert.Equal(t, "2024-05-13", Week.Start(d).String())
	assert.Equal(t, "2024-05-01", Month.Start(d).String())
	assert.Equal(t, "2024-01-01", Year.Start(d).String())

	sunday := day("2024-05-19")
	assert.Equal(t, "2024-05-13", Week.Start(sunday).String())
	monday := day("2024-05-13")
	assert.Equal(t, "2024-05-13", Week.Start(monday).String())
	// ISO week spanning a year boundary
	assert.Equal(t, "2024-12-30", Week.Start(day("2025-01-02")).String())
}

func TestEarnings_Monthly(t *testing.T) {
	records := []models.InvestmentRecord{
		buy("AAPL", "10", "150", "2024-01-01"),
		buy("AAPL", "5", "160", "2024-02-01"),
	}
	series := Earnings(records, Month, WeightedAverage)
	require.Len(t, series, 2)
	assert.Equal(t, "2024-01-01", series[0].Date.String())
	assertDec(t, "1500", series[0].Invested)
	assertDec(t, "10", series[0].TotalAmount)
	assert.Equal(t, "2024-02-01", series[1].Date.String())
	assertDec(t, "2300", series[1].Invested)
	assertDec(t, "15", series[1].TotalAmount)
	assert.True(t, series[1].ProfitLoss.IsZero(), "no live price means no profit")
}

func TestEarnings_SparseAndAscending(t *testing.T) {
	records := []models.InvestmentRecord{
		buy("AAPL", "1", "100", "2024-06-20"),
		buy("BTC", "1", "100", "2024-01-03"),
		buy("AAPL", "1", "100", "2024-01-05"),
		buy("BTC", "1", "100", "2024-06-01"),
	}
	series := Earnings(records, Month, WeightedAverage)
	require.Len(t, series, 2)
	assert.Equal(t, "2024-01-01", series[0].Date.String())
	assert.Equal(t, "2024-06-01", series[1].Date.String())
	assertDec(t, "2", series[0].TotalAmount)
	assertDec(t, "4", series[1].TotalAmount)
}

func TestEarnings_BuysOnlyNonDecreasing(t *testing.T) {
	records := []models.InvestmentRecord{
		buy("AAPL", "3", "120", "2024-03-11"),
		buy("BTC", "0.1", "42000", "2024-01-02"),
		buy("AAPL", "2", "110", "2024-01-09"),
		buy("GLD", "1", "180", "2024-02-14"),
		buy("AAPL", "1", "130", "2024-02-14"),
		buy("BTC", "0.05", "60000", "2024-04-30"),
	}
	for _, g := range []Granularity{Day, Week, Month, Year} {
		series := Earnings(records, g, WeightedAverage)
		require.NotEmpty(t, series, g.String())
		for i := 1; i < len(series); i++ {
			assert.True(t, series[i].Date.After(series[i-1].Date.Time), "%s: dates not ascending", g)
			assert.True(t, series[i].Invested.GreaterThanOrEqual(series[i-1].Invested), "%s: invested decreased", g)
			assert.True(t, series[i].TotalAmount.GreaterThanOrEqual(series[i-1].TotalAmount), "%s: amount decreased", g)
		}
	}
	assert.Len(t, Earnings(records, Year, WeightedAverage), 1)
	assert.Len(t, Earnings(records, Day, WeightedAverage), 5)
}

func TestEarnings_SellsAndPrices(t *testing.T) {
	records := []models.InvestmentRecord{
		priced(buy("AAPL", "10", "100", "2024-01-01"), "140"),
		sell("AAPL", "4", "120", "2024-02-10"),
	}
	series := Earnings(records, Month, WeightedAverage)
	require.Len(t, series, 2)

	assertDec(t, "1000", series[0].Invested)
	assertDec(t, "1400", series[0].CurrentValue)
	assertDec(t, "400", series[0].ProfitLoss)

	assertDec(t, "600", series[1].Invested)
	assertDec(t, "6", series[1].TotalAmount)
	assertDec(t, "840", series[1].CurrentValue)
	// 240 unrealized plus 80 realized on the sale
	assertDec(t, "320", series[1].ProfitLoss)
}

func TestEarnings_Empty(t *testing.T) {
	series := Earnings(nil, Week, WeightedAverage)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestEarnings_LastPointMatchesOverview(t *testing.T) {
	cases := map[string][]models.InvestmentRecord{
		"sale dated before its funding buys": {
			buy("AAPL", "10", "100", "2024-01-01"),
			buy("AAPL", "10", "120", "2024-01-05"),
			sell("AAPL", "2", "130", "2023-12-01"),
		},
		"mixed symbols with prices": {
			priced(buy("AAPL", "10", "100", "2024-01-01"), "140"),
			buy("AAPL", "5", "130", "2024-01-20"),
			sell("AAPL", "3", "150", "2024-02-02"),
			buy("BTC", "0.3", "30000", "2024-01-10"),
			sell("BTC", "0.3", "42000", "2024-03-01"),
			buy("GLD", "7", "181.37", "2024-02-28"),
		},
	}
	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			ov := Summarize(Aggregate(records, WeightedAverage), len(records))
			for _, g := range []Granularity{Day, Week, Month, Year} {
				series := Earnings(records, g, WeightedAverage)
				require.NotEmpty(t, series)
				last := series[len(series)-1]
				assertDec(t, ov.TotalProfitLoss.String(), last.ProfitLoss)
				assertDec(t, ov.TotalInvested.String(), last.Invested)
				assertDec(t, ov.TotalCurrentValue.String(), last.CurrentValue)
			}
		})
	}
}

func TestEarnings_SaleBeforeFundingBuy(t *testing.T) {
	records := []models.InvestmentRecord{
		buy("AAPL", "10", "100", "2024-01-01"),
		buy("AAPL", "10", "120", "2024-01-05"),
		sell("AAPL", "2", "130", "2023-12-01"),
	}
	series := Earnings(records, Month, WeightedAverage)
	require.Len(t, series, 2)
	assertDec(t, "-2", series[0].TotalAmount)
	assert.True(t, series[0].Invested.IsZero())
	assertDec(t, "2000", series[1].Invested)
	assertDec(t, "60", series[1].ProfitLoss)
}
