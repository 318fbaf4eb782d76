package main

import (
	"context"
	"fmt"

	"investdash/internal/config"
	"investdash/internal/database"
	"investdash/internal/models"
	"investdash/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type seedBuy struct {
	name, symbol, kind string
	amount, price      string
	monthsAgo          int
}

type seedSell struct {
	symbol, amount, price string
	monthsAgo             int
}

var (
	buys = []seedBuy{
		{"Apple Inc.", "AAPL", "stocks", "10", "150.00", 11},
		{"Apple Inc.", "AAPL", "stocks", "5", "170.50", 6},
		{"Bitcoin", "BTC", "crypto", "0.25", "42000", 9},
		{"Vanguard Total Bond", "BND", "bonds", "40", "72.10", 8},
		{"Gold ETF", "GLD", "gold", "12", "185.30", 4},
	}
	sells = []seedSell{
		{"AAPL", "4", "190.25", 2},
		{"BTC", "0.1", "61000", 1},
	}
	prices = map[string]string{
		"AAPL": "210.40",
		"BTC":  "64500",
		"BND":  "71.80",
		"GLD":  "201.15",
	}
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		logger.Fatal("backfill writes to postgres; unset STORAGE or set it to postgres")
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	svc := service.NewInvestmentService(database.New(db, logger), logger)

	existing, err := svc.List(ctx, service.Query{Limit: 1})
	if err != nil {
		logger.Fatalf("list: %v", err)
	}
	if len(existing) > 0 {
		logger.Warn("global portfolio already has records, nothing to do")
		return
	}

	today := models.Today()
	monthsAgo := func(n int) *models.Date {
		d := models.DateOf(today.AddDate(0, -n, 0))
		return &d
	}

	for _, b := range buys {
		_, err := svc.Buy(ctx, service.BuyInput{
			Name:           b.name,
			Symbol:         b.symbol,
			InvestmentType: b.kind,
			Amount:         decimal.RequireFromString(b.amount),
			PurchasePrice:  decimal.RequireFromString(b.price),
			PurchaseDate:   monthsAgo(b.monthsAgo),
		})
		if err != nil {
			logger.Fatalf("buy %s: %v", b.symbol, err)
		}
	}
	for _, s := range sells {
		_, err := svc.Sell(ctx, service.SellInput{
			Symbol:    s.symbol,
			Amount:    decimal.RequireFromString(s.amount),
			SalePrice: decimal.RequireFromString(s.price),
			SaleDate:  monthsAgo(s.monthsAgo),
		})
		if err != nil {
			logger.Fatalf("sell %s: %v", s.symbol, err)
		}
	}
	for sym, p := range prices {
		if _, err := svc.SetCurrentPrice(ctx, nil, sym, decimal.RequireFromString(p)); err != nil {
			logger.Fatalf("price %s: %v", sym, err)
		}
	}

	ov, err := svc.Overview(ctx, service.Query{})
	if err != nil {
		logger.Fatalf("overview: %v", err)
	}
	fmt.Printf("Seeded %d records as of %s: invested %s, value %s, P/L %s\n",
		ov.TotalInvestments, today, ov.TotalInvested.StringFixed(2),
		ov.TotalCurrentValue.StringFixed(2), ov.TotalProfitLoss.StringFixed(2))
}
