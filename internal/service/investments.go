package service

import (
	"context"
	"errors"
	"strings"

	"investdash/internal/database"
	"investdash/internal/models"
	"investdash/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the record persistence the service needs. database.Repo and
// database.MemoryStore both satisfy it.
type Store interface {
	Get(ctx context.Context, id int64) (models.InvestmentRecord, error)
	List(ctx context.Context, f models.RecordFilter) ([]models.InvestmentRecord, error)
	Create(ctx context.Context, rec models.InvestmentRecord) (models.InvestmentRecord, error)
	CreateSell(ctx context.Context, rec models.InvestmentRecord, check database.HoldingCheck) (models.InvestmentRecord, error)
	Update(ctx context.Context, id int64, apply database.ApplyFunc, check database.HoldingCheck) (models.InvestmentRecord, error)
	Delete(ctx context.Context, id int64, check database.HoldingCheck) error
	SetCurrentPrice(ctx context.Context, userID *int64, symbol string, price decimal.Decimal) (int64, error)
	Ping(ctx context.Context) error
}

const (
	maxNameLen   = 255
	maxSymbolLen = 50
)

type InvestmentService struct {
	store    Store
	strategy portfolio.Strategy
	log      *logrus.Logger
}

func NewInvestmentService(s Store, log *logrus.Logger) *InvestmentService {
	return &InvestmentService{store: s, strategy: portfolio.WeightedAverage, log: log}
}

// WithStrategy returns a copy of the service that computes cost basis with
// strategy.
func (s *InvestmentService) WithStrategy(strategy portfolio.Strategy) *InvestmentService {
	cp := *s
	cp.strategy = strategy
	return &cp
}

type BuyInput struct {
	UserID         *int64
	Name           string
	Symbol         string
	InvestmentType string
	Amount         decimal.Decimal
	PurchasePrice  decimal.Decimal
	CurrentPrice   decimal.NullDecimal
	PurchaseDate   *models.Date
	Description    *string
}

type SellInput struct {
	UserID      *int64
	Symbol      string
	Amount      decimal.Decimal
	SalePrice   decimal.Decimal
	SaleDate    *models.Date
	Description *string
}

// UpdateInput carries the fields to change; nil leaves a field as is.
// Amount is a magnitude: the record keeps its buy/sell sign unless Side
// asks for the other one.
type UpdateInput struct {
	Name           *string
	Symbol         *string
	InvestmentType *string
	Amount         *decimal.Decimal
	PurchasePrice  *decimal.Decimal
	CurrentPrice   *decimal.Decimal
	PurchaseDate   *models.Date
	Description    *string
	Side           *string
}

type Query struct {
	UserID    *int64
	Type      string
	Symbol    string
	StartDate *models.Date
	EndDate   *models.Date
	Skip      int
	Limit     int
}

func (q Query) filter() (models.RecordFilter, error) {
	f := models.RecordFilter{
		UserID:    q.UserID,
		Symbol:    models.NormalizeSymbol(q.Symbol),
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Skip:      q.Skip,
		Limit:     q.Limit,
	}
	if q.Type != "" {
		t, err := models.ParseInvestmentType(q.Type)
		if err != nil {
			return f, invalid("%v", err)
		}
		f.Type = t
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return f, invalid("start_date %s is after end_date %s", q.StartDate, q.EndDate)
	}
	if q.Skip < 0 || q.Limit < 0 {
		return f, invalid("skip and limit must not be negative")
	}
	return f, nil
}

// Buy records a purchase.
func (s *InvestmentService) Buy(ctx context.Context, in BuyInput) (models.InvestmentRecord, error) {
	rec := models.InvestmentRecord{
		UserID:        in.UserID,
		Name:          strings.TrimSpace(in.Name),
		Symbol:        models.NormalizeSymbol(in.Symbol),
		Amount:        in.Amount,
		PurchasePrice: in.PurchasePrice,
		CurrentPrice:  in.CurrentPrice,
		PurchaseDate:  models.Today(),
		Description:   in.Description,
	}
	if in.PurchaseDate != nil {
		rec.PurchaseDate = *in.PurchaseDate
	}
	rec.InvestmentType = models.TypeOther
	if in.InvestmentType != "" {
		t, err := models.ParseInvestmentType(in.InvestmentType)
		if err != nil {
			return models.InvestmentRecord{}, invalid("%v", err)
		}
		rec.InvestmentType = t
	}
	if err := validateRecord(rec); err != nil {
		return models.InvestmentRecord{}, err
	}
	if !rec.Amount.IsPositive() {
		return models.InvestmentRecord{}, invalid("amount must be greater than 0")
	}

	out, err := s.store.Create(ctx, rec)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	s.log.WithFields(logrus.Fields{"id": out.ID, "symbol": out.Symbol, "amount": out.Amount.String()}).Info("buy recorded")
	return out, nil
}

// Sell records a sale against an existing holding. The sale is rejected
// unless the holding covers the whole amount.
func (s *InvestmentService) Sell(ctx context.Context, in SellInput) (models.InvestmentRecord, error) {
	symbol := models.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return models.InvestmentRecord{}, invalid("symbol is required")
	}
	if !in.Amount.IsPositive() {
		return models.InvestmentRecord{}, invalid("amount must be greater than 0")
	}
	if !in.SalePrice.IsPositive() {
		return models.InvestmentRecord{}, invalid("sale_price must be greater than 0")
	}

	existing, err := s.store.List(ctx, models.RecordFilter{UserID: in.UserID, Symbol: symbol})
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	var lastBuy *models.InvestmentRecord
	for i := range existing {
		if !existing[i].IsSell() {
			lastBuy = &existing[i]
		}
	}
	if lastBuy == nil {
		return models.InvestmentRecord{}, invalid("no investment with symbol %s to sell", symbol)
	}

	rec := models.InvestmentRecord{
		UserID:         in.UserID,
		Name:           lastBuy.Name,
		Symbol:         symbol,
		InvestmentType: lastBuy.InvestmentType,
		Amount:         in.Amount.Neg(),
		PurchasePrice:  in.SalePrice,
		PurchaseDate:   models.Today(),
		Description:    in.Description,
	}
	if in.SaleDate != nil {
		rec.PurchaseDate = *in.SaleDate
	}

	out, err := s.store.CreateSell(ctx, rec, func(records []models.InvestmentRecord) error {
		low, ok := portfolio.LowestBalances(records)[symbol]
		if ok && low.Amount.IsNegative() {
			available := decimal.Max(low.Amount.Add(in.Amount), decimal.Zero)
			return invalid("insufficient available amount for %s on %s: available %s, requested %s",
				symbol, rec.PurchaseDate, available.String(), in.Amount.String())
		}
		return nil
	})
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	s.log.WithFields(logrus.Fields{"id": out.ID, "symbol": symbol, "amount": in.Amount.String()}).Info("sale recorded")
	return out, nil
}

func (s *InvestmentService) Get(ctx context.Context, userID *int64, id int64) (models.InvestmentRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return models.InvestmentRecord{}, notFound(id, err)
	}
	if !models.SameScope(userID, rec.UserID) {
		return models.InvestmentRecord{}, &NotFoundError{ID: id}
	}
	return rec, nil
}

func (s *InvestmentService) List(ctx context.Context, q Query) ([]models.InvestmentRecord, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

func (s *InvestmentService) Update(ctx context.Context, userID *int64, id int64, in UpdateInput) (models.InvestmentRecord, error) {
	out, err := s.store.Update(ctx, id, func(cur models.InvestmentRecord) (models.InvestmentRecord, error) {
		if !models.SameScope(userID, cur.UserID) {
			return cur, &NotFoundError{ID: id}
		}
		return applyUpdate(cur, in)
	}, s.holdingCheck)
	if err != nil {
		return models.InvestmentRecord{}, notFound(id, err)
	}
	s.log.WithFields(logrus.Fields{"id": id, "symbol": out.Symbol}).Info("investment updated")
	return out, nil
}

func applyUpdate(cur models.InvestmentRecord, in UpdateInput) (models.InvestmentRecord, error) {
	next := cur
	sell := cur.IsSell()
	if in.Side != nil {
		switch strings.ToLower(strings.TrimSpace(*in.Side)) {
		case "buy":
			sell = false
		case "sell":
			sell = true
		default:
			return cur, invalid("side must be buy or sell, got %q", *in.Side)
		}
	}

	amount := cur.Amount.Abs()
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return cur, invalid("amount must be greater than 0; set side to switch between buy and sell")
		}
		amount = *in.Amount
	}
	if sell {
		next.Amount = amount.Neg()
	} else {
		next.Amount = amount
	}

	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Symbol != nil {
		next.Symbol = models.NormalizeSymbol(*in.Symbol)
	}
	if in.InvestmentType != nil {
		t, err := models.ParseInvestmentType(*in.InvestmentType)
		if err != nil {
			return cur, invalid("%v", err)
		}
		next.InvestmentType = t
	}
	if in.PurchasePrice != nil {
		next.PurchasePrice = *in.PurchasePrice
	}
	if in.CurrentPrice != nil {
		if sell {
			return cur, invalid("current_price cannot be set on a sale")
		}
		next.CurrentPrice = decimal.NewNullDecimal(*in.CurrentPrice)
	}
	if sell {
		next.CurrentPrice = decimal.NullDecimal{}
	}
	if in.PurchaseDate != nil {
		next.PurchaseDate = *in.PurchaseDate
	}
	if in.Description != nil {
		next.Description = in.Description
	}
	return next, validateRecord(next)
}

func (s *InvestmentService) Delete(ctx context.Context, userID *int64, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, s.holdingCheck); err != nil {
		return notFound(id, err)
	}
	s.log.WithField("id", id).Info("investment deleted")
	return nil
}

// holdingCheck refuses any state where a symbol, taken in date order, has
// at some point sold more than it bought.
func (s *InvestmentService) holdingCheck(records []models.InvestmentRecord) error {
	for symbol, low := range portfolio.LowestBalances(records) {
		if low.Amount.IsNegative() {
			return invalid("change would leave %s with a negative amount (%s) on %s", symbol, low.Amount.String(), low.Date)
		}
	}
	return nil
}

func validateRecord(rec models.InvestmentRecord) error {
	switch {
	case rec.Symbol == "":
		return invalid("symbol is required")
	case len(rec.Symbol) > maxSymbolLen:
		return invalid("symbol must be at most %d characters", maxSymbolLen)
	case rec.Name == "":
		return invalid("name is required")
	case len(rec.Name) > maxNameLen:
		return invalid("name must be at most %d characters", maxNameLen)
	case rec.Amount.IsZero():
		return invalid("amount must not be 0")
	case !rec.PurchasePrice.IsPositive():
		return invalid("purchase_price must be greater than 0")
	case rec.CurrentPrice.Valid && !rec.CurrentPrice.Decimal.IsPositive():
		return invalid("current_price must be greater than 0")
	}
	return nil
}

func notFound(id int64, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

// Positions lists the holdings that can still be sold from.
func (s *InvestmentService) Positions(ctx context.Context, q Query) ([]portfolio.Position, error) {
	records, err := s.records(ctx, q)
	if err != nil {
		return nil, err
	}
	return portfolio.Available(portfolio.Aggregate(records, s.strategy)), nil
}

func (s *InvestmentService) Overview(ctx context.Context, q Query) (portfolio.Overview, error) {
	records, err := s.records(ctx, q)
	if err != nil {
		return portfolio.Overview{}, err
	}
	return portfolio.Summarize(portfolio.Aggregate(records, s.strategy), len(records)), nil
}

func (s *InvestmentService) Earnings(ctx context.Context, q Query, aggregateBy string) ([]portfolio.EarningsPoint, error) {
	if aggregateBy == "" {
		aggregateBy = "day"
	}
	g, err := portfolio.ParseGranularity(aggregateBy)
	if err != nil {
		return nil, invalid("%v", err)
	}
	records, err := s.records(ctx, q)
	if err != nil {
		return nil, err
	}
	return portfolio.Earnings(records, g, s.strategy), nil
}

// records loads the full unpaged record set for an aggregation.
func (s *InvestmentService) records(ctx context.Context, q Query) ([]models.InvestmentRecord, error) {
	q.Skip, q.Limit = 0, 0
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

func (s *InvestmentService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
