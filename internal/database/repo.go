package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"investdash/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const recordColumns = `id, user_id, name, symbol, investment_type, amount, purchase_price, current_price, purchase_date, description, created_at, updated_at`

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) Get(ctx context.Context, id int64) (models.InvestmentRecord, error) {
	var rec models.InvestmentRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM investments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InvestmentRecord{}, fmt.Errorf("investment %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns matching records ordered by purchase date, then id.
func (r *Repo) List(ctx context.Context, f models.RecordFilter) ([]models.InvestmentRecord, error) {
	where, args := filterClause(f)
	q := `SELECT ` + recordColumns + ` FROM investments WHERE ` + where + ` ORDER BY purchase_date ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Skip > 0 {
		args = append(args, f.Skip)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.InvestmentRecord{}
	for rows.Next() {
		var rec models.InvestmentRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func filterClause(f models.RecordFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID == nil {
		conds = append(conds, "user_id IS NULL")
	} else {
		add("user_id = $%d", *f.UserID)
	}
	if f.Type != "" {
		add("investment_type = $%d", string(f.Type))
	}
	if f.Symbol != "" {
		add("symbol = $%d", f.Symbol)
	}
	if f.StartDate != nil {
		add("purchase_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("purchase_date <= $%d", *f.EndDate)
	}
	return strings.Join(conds, " AND "), args
}

func (r *Repo) Create(ctx context.Context, rec models.InvestmentRecord) (models.InvestmentRecord, error) {
	var out models.InvestmentRecord
	err := r.db.GetContext(ctx, &out, insertQuery, insertArgs(rec)...)
	if err != nil {
		r.logPgError("insert investment", err)
		return models.InvestmentRecord{}, err
	}
	return out, nil
}

const insertQuery = `INSERT INTO investments (user_id, name, symbol, investment_type, amount, purchase_price, current_price, purchase_date, description, created_at)
	VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, now()) RETURNING ` + recordColumns

func insertArgs(rec models.InvestmentRecord) []interface{} {
	return []interface{}{rec.UserID, rec.Name, rec.Symbol, string(rec.InvestmentType), rec.Amount, rec.PurchasePrice, rec.CurrentPrice, rec.PurchaseDate, rec.Description}
}

// CreateSell inserts a sale while holding the lock of its (user, symbol)
// pair. check sees the pair's records including the new sale, so two
// concurrent sales cannot both pass against the same snapshot.
func (r *Repo) CreateSell(ctx context.Context, rec models.InvestmentRecord, check HoldingCheck) (models.InvestmentRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	defer tx.Rollback()

	k := keyOf(rec)
	group, err := lockHolding(ctx, tx, k)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	if err := check(append(group, rec)); err != nil {
		return models.InvestmentRecord{}, err
	}

	var out models.InvestmentRecord
	if err := tx.GetContext(ctx, &out, insertQuery, insertArgs(rec)...); err != nil {
		r.logPgError("insert sale", err)
		return models.InvestmentRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.InvestmentRecord{}, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id int64, apply ApplyFunc, check HoldingCheck) (models.InvestmentRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	defer tx.Rollback()

	var cur models.InvestmentRecord
	if err := tx.GetContext(ctx, &cur, `SELECT `+recordColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.InvestmentRecord{}, fmt.Errorf("investment %d: %w", id, ErrNotFound)
		}
		return models.InvestmentRecord{}, err
	}
	next, err := apply(cur)
	if err != nil {
		return models.InvestmentRecord{}, err
	}
	for _, k := range affectedKeys(cur, next) {
		group, err := lockHolding(ctx, tx, k)
		if err != nil {
			return models.InvestmentRecord{}, err
		}
		if err := check(substitute(group, k, id, &next)); err != nil {
			return models.InvestmentRecord{}, err
		}
	}

	var out models.InvestmentRecord
	q := `UPDATE investments SET user_id = $1, name = $2, symbol = $3, investment_type = $4, amount = $5::numeric,
		purchase_price = $6::numeric, current_price = $7::numeric, purchase_date = $8, description = $9, updated_at = now()
		WHERE id = $10 RETURNING ` + recordColumns
	if err := tx.GetContext(ctx, &out, q, append(insertArgs(next), id)...); err != nil {
		r.logPgError("update investment", err)
		return models.InvestmentRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.InvestmentRecord{}, err
	}
	return out, nil
}

// Delete removes a record for good once check accepts the remaining
// records of its holding.
func (r *Repo) Delete(ctx context.Context, id int64, check HoldingCheck) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cur models.InvestmentRecord
	if err := tx.GetContext(ctx, &cur, `SELECT `+recordColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("investment %d: %w", id, ErrNotFound)
		}
		return err
	}
	k := keyOf(cur)
	group, err := lockHolding(ctx, tx, k)
	if err != nil {
		return err
	}
	if err := check(substitute(group, k, id, nil)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM investments WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// SetCurrentPrice stamps price on every buy of symbol in the user's scope
// and returns how many records changed.
func (r *Repo) SetCurrentPrice(ctx context.Context, userID *int64, symbol string, price decimal.Decimal) (int64, error) {
	where, args := filterClause(models.RecordFilter{UserID: userID, Symbol: symbol})
	args = append(args, price)
	q := fmt.Sprintf(`UPDATE investments SET current_price = $%d::numeric, updated_at = now() WHERE %s AND amount > 0`, len(args), where)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// lockHolding takes the transaction-scoped advisory lock of k and returns
// the holding's records as of that moment.
func lockHolding(ctx context.Context, tx *sqlx.Tx, k holdingKey) ([]models.InvestmentRecord, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, k.String()); err != nil {
		return nil, fmt.Errorf("lock %s: %w", k, err)
	}
	where, args := filterClause(models.RecordFilter{UserID: k.userID, Symbol: k.symbol})
	group := []models.InvestmentRecord{}
	if err := tx.SelectContext(ctx, &group, `SELECT `+recordColumns+` FROM investments WHERE `+where+` ORDER BY purchase_date ASC, id ASC`, args...); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *Repo) logPgError(op string, err error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		r.log.WithFields(logrus.Fields{"op": op, "pg_code": string(pqErr.Code), "constraint": pqErr.Constraint}).Warn(pqErr.Message)
	}
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
