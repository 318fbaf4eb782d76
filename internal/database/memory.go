package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"investdash/internal/models"
	"investdash/internal/portfolio"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps records in process memory. It serves the same contract
// as Repo and is used for local runs and tests; a single mutex stands in for
// the per-holding database locks.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]models.InvestmentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]models.InvestmentRecord)}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (models.InvestmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return models.InvestmentRecord{}, fmt.Errorf("investment %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, f models.RecordFilter) ([]models.InvestmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.matching(f)
	start := f.Skip
	if start > len(out) {
		return []models.InvestmentRecord{}, nil
	}
	end := len(out)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return out[start:end], nil
}

// matching returns the filtered records in purchase date, id order. The
// caller holds the lock.
func (s *MemoryStore) matching(f models.RecordFilter) []models.InvestmentRecord {
	out := make([]models.InvestmentRecord, 0, len(s.records))
	for _, rec := range s.records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	portfolio.SortChronological(out)
	return out
}

func (s *MemoryStore) Create(_ context.Context, rec models.InvestmentRecord) (models.InvestmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(rec), nil
}

func (s *MemoryStore) insert(rec models.InvestmentRecord) models.InvestmentRecord {
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = nil
	s.records[rec.ID] = rec
	return rec
}

func (s *MemoryStore) CreateSell(_ context.Context, rec models.InvestmentRecord, check HoldingCheck) (models.InvestmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.holding(keyOf(rec))
	if err := check(append(group, rec)); err != nil {
		return models.InvestmentRecord{}, err
	}
	return s.insert(rec), nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, apply ApplyFunc, check HoldingCheck) (models.InvestmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return models.InvestmentRecord{}, fmt.Errorf("investment %d: %w", id, ErrNotFound)
	}
	next, err := apply(cur)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	for _, k := range affectedKeys(cur, next) {
		if err := check(substitute(s.holding(k), k, id, &next)); err != nil {
			return models.InvestmentRecord{}, err
		}
	}
	now := time.Now().UTC()
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = &now
	s.records[id] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64, check HoldingCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return fmt.Errorf("investment %d: %w", id, ErrNotFound)
	}
	k := keyOf(cur)
	if err := check(substitute(s.holding(k), k, id, nil)); err != nil {
		return err
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) SetCurrentPrice(_ context.Context, userID *int64, symbol string, price decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, rec := range s.matching(models.RecordFilter{UserID: userID, Symbol: symbol}) {
		if rec.IsSell() {
			continue
		}
		rec.CurrentPrice = decimal.NewNullDecimal(price)
		rec.UpdatedAt = &now
		s.records[rec.ID] = rec
		n++
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) holding(k holdingKey) []models.InvestmentRecord {
	return s.matching(models.RecordFilter{UserID: k.userID, Symbol: k.symbol})
}
