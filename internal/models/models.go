package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentType string

const (
	TypeStocks     InvestmentType = "stocks"
	TypeCrypto     InvestmentType = "crypto"
	TypeShares     InvestmentType = "shares"
	TypeGold       InvestmentType = "gold"
	TypeRealEstate InvestmentType = "real_estate"
	TypeBonds      InvestmentType = "bonds"
	TypeOther      InvestmentType = "other"
)

var InvestmentTypes = []InvestmentType{TypeStocks, TypeCrypto, TypeShares, TypeGold, TypeRealEstate, TypeBonds, TypeOther}

func ParseInvestmentType(s string) (InvestmentType, error) {
	t := InvestmentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range InvestmentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown investment type %q", s)
}

// InvestmentRecord is one buy (positive amount) or sell (negative amount).
// For sells PurchasePrice holds the sale price and CurrentPrice is unset.
type InvestmentRecord struct {
	ID             int64               `db:"id" json:"id"`
	UserID         *int64              `db:"user_id" json:"user_id"`
	Name           string              `db:"name" json:"name"`
	Symbol         string              `db:"symbol" json:"symbol"`
	InvestmentType InvestmentType      `db:"investment_type" json:"investment_type"`
	Amount         decimal.Decimal     `db:"amount" json:"amount"`
	PurchasePrice  decimal.Decimal     `db:"purchase_price" json:"purchase_price"`
	CurrentPrice   decimal.NullDecimal `db:"current_price" json:"current_price"`
	PurchaseDate   Date                `db:"purchase_date" json:"purchase_date"`
	Description    *string             `db:"description" json:"description"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time          `db:"updated_at" json:"updated_at"`
}

func (r InvestmentRecord) IsSell() bool { return r.Amount.IsNegative() }

// RecordFilter narrows a listing. Conditions are conjunctive; a nil UserID
// selects the global scope (records without an owner).
type RecordFilter struct {
	UserID    *int64
	Type      InvestmentType
	Symbol    string
	StartDate *Date
	EndDate   *Date
	Skip      int
	Limit     int
}

// Match reports whether r satisfies every condition of f except paging.
func (f RecordFilter) Match(r InvestmentRecord) bool {
	if !SameScope(f.UserID, r.UserID) {
		return false
	}
	if f.Type != "" && r.InvestmentType != f.Type {
		return false
	}
	if f.Symbol != "" && r.Symbol != f.Symbol {
		return false
	}
	if f.StartDate != nil && r.PurchaseDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && f.EndDate.Before(r.PurchaseDate) {
		return false
	}
	return true
}

func SameScope(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ScopeKey identifies the (user, symbol) pair a sell is validated against.
func ScopeKey(userID *int64, symbol string) string {
	if userID == nil {
		return "global:" + symbol
	}
	return fmt.Sprintf("user:%d:%s", *userID, symbol)
}

func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
