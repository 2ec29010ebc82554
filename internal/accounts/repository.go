package accounts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arcbooks/arcbooks/internal/shared"
	"github.com/arcbooks/arcbooks/internal/tenant"
)

// Repository encapsulates DB operations for the chart of accounts. Every
// access runs inside a schema-scoped transaction opened by the tenant router.
type Repository interface {
	WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available within one tenant transaction.
type TxRepository interface {
	Insert(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) error
	Get(ctx context.Context, id int64) (Account, error)
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	GetDeleted(ctx context.Context, id int64) (Account, error)
	MaxNumberInRange(ctx context.Context, rng NumberRange) (int, bool, error)
	NumberExists(ctx context.Context, number string, excludeID int64) (bool, error)
	ActiveChildCount(ctx context.Context, parentID int64) (int, error)
	LineUsageCount(ctx context.Context, accountID int64) (int, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error)
	Hierarchy(ctx context.Context) ([]AccountNode, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Restore(ctx context.Context, id int64) error
	UpdateBalance(ctx context.Context, id int64, newBalance float64) error
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

// NewTxRepository wraps an existing schema-scoped transaction so other
// components (journal posting) can compose account updates into their own
// transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const accountColumns = `id, tenant_id, account_number, account_name, account_type, account_subtype, account_detail_type,
parent_account_id, opening_balance, current_balance, currency_code, is_active, is_system_account, track_tax,
default_tax_id, bank_name, bank_account_number, lifecycle_state, deleted_at, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.AccountNumber, &a.AccountName, &a.AccountType, &a.AccountSubtype, &a.AccountDetailType,
		&a.ParentAccountID, &a.OpeningBalance, &a.CurrentBalance, &a.CurrencyCode, &a.IsActive, &a.IsSystemAccount, &a.TrackTax,
		&a.DefaultTaxID, &a.BankName, &a.BankAccountNumber, &a.Lifecycle.State, &a.Lifecycle.DeletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO chart_of_accounts
(tenant_id, account_number, account_name, account_type, account_subtype, account_detail_type, parent_account_id,
 opening_balance, current_balance, currency_code, is_active, is_system_account, track_tax, default_tax_id, bank_name, bank_account_number)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING `+accountColumns,
		a.TenantID, a.AccountNumber, a.AccountName, a.AccountType, a.AccountSubtype, a.AccountDetailType, a.ParentAccountID,
		a.OpeningBalance, a.CurrentBalance, a.CurrencyCode, a.IsActive, a.IsSystemAccount, a.TrackTax, a.DefaultTaxID, a.BankName, a.BankAccountNumber)
	return scanAccount(row)
}

func (r *txRepository) Update(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET
account_number=$2, account_name=$3, account_subtype=$4, account_detail_type=$5, parent_account_id=$6,
currency_code=$7, track_tax=$8, default_tax_id=$9, bank_name=$10, bank_account_number=$11, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`,
		a.ID, a.AccountNumber, a.AccountName, a.AccountSubtype, a.AccountDetailType, a.ParentAccountID,
		a.CurrencyCode, a.TrackTax, a.DefaultTaxID, a.BankName, a.BankAccountNumber)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 AND lifecycle_state='ACTIVE'`, id))
}

// GetForUpdate locks the account row so concurrent balance updates serialize.
func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 AND lifecycle_state='ACTIVE' FOR UPDATE`, id))
}

func (r *txRepository) GetDeleted(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 AND lifecycle_state='DELETED'`, id))
}

func (r *txRepository) MaxNumberInRange(ctx context.Context, rng NumberRange) (int, bool, error) {
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(account_number::int) FROM chart_of_accounts
WHERE lifecycle_state='ACTIVE' AND account_number ~ '^[0-9]+$' AND account_number::int BETWEEN $1 AND $2`, rng.Min, rng.Max).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *txRepository) NumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chart_of_accounts WHERE account_number=$1 AND lifecycle_state='ACTIVE' AND id <> $2)`, number, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) ActiveChildCount(ctx context.Context, parentID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM chart_of_accounts WHERE parent_account_id=$1 AND lifecycle_state='ACTIVE'`, parentID).Scan(&count)
	return count, err
}

func (r *txRepository) LineUsageCount(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id=$1 AND e.lifecycle_state='ACTIVE'`, accountID).Scan(&count)
	return count, err
}

// List uses a dynamic query due to filter combinations.
func (r *txRepository) List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	query := `SELECT ` + accountColumns + ` FROM chart_of_accounts WHERE lifecycle_state='ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM chart_of_accounts WHERE lifecycle_state='ACTIVE'`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (account_name ILIKE $` + strconv.Itoa(argCount) + ` OR account_number ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY account_number ASC, account_name ASC`
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

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

// Hierarchy returns top-level active accounts with their direct children,
// ordered by account number then name.
func (r *txRepository) Hierarchy(ctx context.Context) ([]AccountNode, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts
WHERE lifecycle_state='ACTIVE' AND is_active ORDER BY account_number ASC, account_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byParent := make(map[int64][]Account)
	for _, a := range all {
		if a.ParentAccountID != nil {
			byParent[*a.ParentAccountID] = append(byParent[*a.ParentAccountID], a)
		}
	}
	var nodes []AccountNode
	for _, a := range all {
		if a.ParentAccountID == nil {
			nodes = append(nodes, AccountNode{Account: a, Children: byParent[a.ID]})
		}
	}
	return nodes, nil
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET is_active=$2, updated_at=NOW() WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET lifecycle_state='DELETED', deleted_at=$2, updated_at=NOW() WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) Restore(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET lifecycle_state='ACTIVE', deleted_at=NULL, updated_at=NOW() WHERE id=$1 AND lifecycle_state='DELETED'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) UpdateBalance(ctx context.Context, id int64, newBalance float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, newBalance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
