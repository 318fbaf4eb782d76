package database

import (
	"errors"
	"sort"

	"investdash/internal/models"
)

var ErrNotFound = errors.New("record not found")

// HoldingCheck inspects every record of one (user, symbol) pair as it would
// look after a pending mutation. A non-nil error aborts the mutation.
type HoldingCheck func(records []models.InvestmentRecord) error

// ApplyFunc derives the updated record from the stored one.
type ApplyFunc func(current models.InvestmentRecord) (models.InvestmentRecord, error)

type holdingKey struct {
	userID *int64
	symbol string
}

func (k holdingKey) String() string { return models.ScopeKey(k.userID, k.symbol) }

func keyOf(r models.InvestmentRecord) holdingKey {
	return holdingKey{userID: r.UserID, symbol: r.Symbol}
}

// affectedKeys returns the distinct holdings touched by replacing cur with
// next, in a stable order so locks are always taken the same way round.
func affectedKeys(cur, next models.InvestmentRecord) []holdingKey {
	keys := []holdingKey{keyOf(cur)}
	if keyOf(next).String() != keyOf(cur).String() {
		keys = append(keys, keyOf(next))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// substitute returns group with the record of id replaced by next, or
// dropped when next belongs elsewhere (or is nil for a delete).
func substitute(group []models.InvestmentRecord, k holdingKey, id int64, next *models.InvestmentRecord) []models.InvestmentRecord {
	out := make([]models.InvestmentRecord, 0, len(group)+1)
	for _, r := range group {
		if r.ID != id {
			out = append(out, r)
		}
	}
	if next != nil && keyOf(*next).String() == k.String() {
		out = append(out, *next)
	}
	return out
}
