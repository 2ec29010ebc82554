package history

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arcbooks/arcbooks/internal/tenant"
)

// Repository gives schema-scoped access to account balance history.
type Repository interface {
	WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes history operations within one tenant transaction.
// There is deliberately no update or delete: the table is append-only.
type TxRepository interface {
	Insert(ctx context.Context, change BalanceChange) (BalanceChange, error)
	List(ctx context.Context, filters ListFilters) ([]BalanceChange, int, error)
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]BalanceChange, error)
	ListByJournalEntry(ctx context.Context, journalEntryID int64) ([]BalanceChange, error)
	BalanceAsOf(ctx context.Context, accountID int64, at time.Time) (*float64, error)
}

type repository struct {
	router *tenant.Router
}

// NewRepository returns a Repository routed through the tenant schema router.
func NewRepository(router *tenant.Router) Repository {
	return &repository{router: router}
}

func (r *repository) WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error {
	return r.router.WithSchema(ctx, schema, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NewTxRepository wraps an existing schema-scoped transaction so journal
// posting can append history records inside its own transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const changeColumns = `id, tenant_id, account_id, journal_entry_id, journal_entry_line_id, previous_balance, new_balance,
change_amount, change_type, change_date, description, source_module, source_id, created_by, created_at`

func scanChange(row pgx.Row) (BalanceChange, error) {
	var c BalanceChange
	err := row.Scan(&c.ID, &c.TenantID, &c.AccountID, &c.JournalEntryID, &c.JournalEntryLineID, &c.PreviousBalance, &c.NewBalance,
		&c.ChangeAmount, &c.ChangeType, &c.ChangeDate, &c.Description, &c.SourceModule, &c.SourceID, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BalanceChange{}, ErrRecordNotFound
		}
		return BalanceChange{}, err
	}
	return c, nil
}

func (r *txRepository) Insert(ctx context.Context, change BalanceChange) (BalanceChange, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO account_balance_history
(tenant_id, account_id, journal_entry_id, journal_entry_line_id, previous_balance, new_balance, change_amount,
 change_type, change_date, description, source_module, source_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING `+changeColumns,
		change.TenantID, change.AccountID, change.JournalEntryID, change.JournalEntryLineID, change.PreviousBalance,
		change.NewBalance, change.ChangeAmount, change.ChangeType, change.ChangeDate, change.Description,
		change.SourceModule, change.SourceID, change.CreatedBy)
	return scanChange(row)
}

func (r *txRepository) List(ctx context.Context, filters ListFilters) ([]BalanceChange, int, error) {
	query := `SELECT ` + changeColumns + ` FROM account_balance_history WHERE TRUE`
	countQuery := `SELECT COUNT(*) FROM account_balance_history WHERE TRUE`
	args := []any{}
	argCount := 0

	addClause := func(clause string, value any) {
		argCount++
		c := clause + `$` + strconv.Itoa(argCount)
		query += c
		countQuery += c
		args = append(args, value)
	}
	if filters.AccountID != nil {
		addClause(` AND account_id = `, *filters.AccountID)
	}
	if filters.JournalEntryID != nil {
		addClause(` AND journal_entry_id = `, *filters.JournalEntryID)
	}
	if filters.From != nil {
		addClause(` AND change_date >= `, *filters.From)
	}
	if filters.To != nil {
		addClause(` AND change_date <= `, *filters.To)
	}

	var total int
	if err := r.tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY change_date DESC, id DESC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var changes []BalanceChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, 0, err
		}
		changes = append(changes, c)
	}
	return changes, total, rows.Err()
}

func (r *txRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]BalanceChange, error) {
	query := `SELECT ` + changeColumns + ` FROM account_balance_history WHERE account_id=$1 ORDER BY change_date DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryChanges(ctx, query, args...)
}

func (r *txRepository) ListByJournalEntry(ctx context.Context, journalEntryID int64) ([]BalanceChange, error) {
	return r.queryChanges(ctx, `SELECT `+changeColumns+` FROM account_balance_history WHERE journal_entry_id=$1 ORDER BY id ASC`, journalEntryID)
}

// BalanceAsOf returns the balance from the most recent record dated at or
// before the target, or nil when no record precedes it.
func (r *txRepository) BalanceAsOf(ctx context.Context, accountID int64, at time.Time) (*float64, error) {
	var balance float64
	err := r.tx.QueryRow(ctx, `SELECT new_balance FROM account_balance_history
WHERE account_id=$1 AND change_date <= $2 ORDER BY change_date DESC, id DESC LIMIT 1`, accountID, at).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *txRepository) queryChanges(ctx context.Context, query string, args ...any) ([]BalanceChange, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []BalanceChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
