package journals

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arcbooks/arcbooks/internal/accounts"
	"github.com/arcbooks/arcbooks/internal/history"
	"github.com/arcbooks/arcbooks/internal/shared"
	"github.com/arcbooks/arcbooks/internal/tenant"
)

// Repository gives schema-scoped access to journal entries.
type Repository interface {
	WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes journal operations within one tenant transaction.
// Accounts and History expose the same transaction to the ledger and balance
// history, so posting commits or rolls back as one unit.
type TxRepository interface {
	Insert(ctx context.Context, entry Entry, lines []LineInput) (Entry, error)
	UpdateHeader(ctx context.Context, entry Entry) error
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error
	Get(ctx context.Context, id int64) (Entry, error)
	GetForUpdate(ctx context.Context, id int64) (Entry, error)
	GetDeleted(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filters ListFilters) ([]Entry, int, error)
	MaxEntrySequence(ctx context.Context) (int, error)
	EntryNumberExists(ctx context.Context, number string, excludeID int64) (bool, error)
	MarkPosted(ctx context.Context, id int64, postedBy int64, at time.Time) error
	MarkVoided(ctx context.Context, id int64) error
	MarkReversed(ctx context.Context, id int64, reversalDate time.Time) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Restore(ctx context.Context, id int64) error

	Accounts() accounts.TxRepository
	History() history.TxRepository
}

// ListFilters narrows journal entry queries.
type ListFilters struct {
	shared.ListFilters
	Status    *Status
	EntryType *EntryType
	From      *time.Time
	To        *time.Time
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

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Accounts() accounts.TxRepository {
	return accounts.NewTxRepository(r.tx)
}

func (r *txRepository) History() history.TxRepository {
	return history.NewTxRepository(r.tx)
}

const entryColumns = `id, tenant_id, entry_number, entry_date, entry_type, is_adjusting, is_closing, is_reversing,
reversed, reversal_of, reversal_date, description, reference, memo, status, source_module, source_id,
total_debit, total_credit, approved_by, approved_at, posted_by, posted_at, created_by,
lifecycle_state, deleted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.EntryType, &e.IsAdjusting, &e.IsClosing, &e.IsReversing,
		&e.Reversed, &e.ReversalOf, &e.ReversalDate, &e.Description, &e.Reference, &e.Memo, &e.Status, &e.SourceModule, &e.SourceID,
		&e.TotalDebit, &e.TotalCredit, &e.ApprovedBy, &e.ApprovedAt, &e.PostedBy, &e.PostedAt, &e.CreatedBy,
		&e.Lifecycle.State, &e.Lifecycle.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) Insert(ctx context.Context, entry Entry, lines []LineInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, entry_number, entry_date, entry_type, is_adjusting, is_closing, is_reversing, reversal_of, reversal_date,
 description, reference, memo, status, source_module, source_id, total_debit, total_credit, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
RETURNING `+entryColumns,
		entry.TenantID, entry.EntryNumber, entry.EntryDate, entry.EntryType, entry.IsAdjusting, entry.IsClosing, entry.IsReversing,
		entry.ReversalOf, entry.ReversalDate, entry.Description, entry.Reference, entry.Memo, entry.Status, entry.SourceModule,
		entry.SourceID, entry.TotalDebit, entry.TotalCredit, entry.CreatedBy)
	created, err := scanEntry(row)
	if err != nil {
		return Entry{}, err
	}
	if err := r.insertLines(ctx, created.ID, lines); err != nil {
		return Entry{}, err
	}
	created.Lines, err = r.entryLines(ctx, created.ID)
	return created, err
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for i, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_entry_lines
(journal_entry_id, account_id, line_number, debit, credit, description, memo, contact_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entryID, line.AccountID, i+1, line.Debit, line.Credit, line.Description, line.Memo, line.ContactID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateHeader(ctx context.Context, entry Entry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET
entry_number=$2, entry_date=$3, entry_type=$4, is_adjusting=$5, is_closing=$6, is_reversing=$7,
description=$8, reference=$9, memo=$10, total_debit=$11, total_credit=$12, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`,
		entry.ID, entry.EntryNumber, entry.EntryDate, entry.EntryType, entry.IsAdjusting, entry.IsClosing, entry.IsReversing,
		entry.Description, entry.Reference, entry.Memo, entry.TotalDebit, entry.TotalCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return err
	}
	return r.insertLines(ctx, entryID, lines)
}

func (r *txRepository) entryLines(ctx context.Context, entryID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, journal_entry_id, account_id, line_number, debit, credit,
description, memo, contact_id, created_at, updated_at
FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY line_number ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountID, &l.LineNumber, &l.Debit, &l.Credit,
			&l.Description, &l.Memo, &l.ContactID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) get(ctx context.Context, id int64, lifecycle string, lock string) (Entry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 AND lifecycle_state='`+lifecycle+`'`+lock, id))
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = r.entryLines(ctx, id)
	return entry, err
}

func (r *txRepository) Get(ctx context.Context, id int64) (Entry, error) {
	return r.get(ctx, id, "ACTIVE", "")
}

// GetForUpdate locks the header row so concurrent posting attempts serialize
// and exactly one succeeds.
func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Entry, error) {
	return r.get(ctx, id, "ACTIVE", " FOR UPDATE")
}

func (r *txRepository) GetDeleted(ctx context.Context, id int64) (Entry, error) {
	return r.get(ctx, id, "DELETED", "")
}

func (r *txRepository) List(ctx context.Context, filters ListFilters) ([]Entry, int, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE lifecycle_state='ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM journal_entries WHERE lifecycle_state='ACTIVE'`
	args := []any{}
	argCount := 0

	addClause := func(clause string, value any) {
		argCount++
		c := clause + `$` + strconv.Itoa(argCount)
		query += c
		countQuery += c
		args = append(args, value)
	}
	if filters.Status != nil {
		addClause(` AND status = `, *filters.Status)
	}
	if filters.EntryType != nil {
		addClause(` AND entry_type = `, *filters.EntryType)
	}
	if filters.From != nil {
		addClause(` AND entry_date >= `, *filters.From)
	}
	if filters.To != nil {
		addClause(` AND entry_date <= `, *filters.To)
	}
	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		clause := ` AND (entry_number ILIKE ` + p + ` OR description ILIKE ` + p + ` OR reference ILIKE ` + p + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY entry_date DESC, entry_number DESC`
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

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range entries {
		entries[i].Lines, err = r.entryLines(ctx, entries[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return entries, total, nil
}

// MaxEntrySequence returns the highest numeric suffix among generated entry
// numbers for non-deleted entries, or zero when there are none.
func (r *txRepository) MaxEntrySequence(ctx context.Context) (int, error) {
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(SUBSTRING(entry_number FROM 4)::int) FROM journal_entries
WHERE entry_number ~ '^JE-[0-9]+$' AND lifecycle_state='ACTIVE'`).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *txRepository) EntryNumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries
WHERE entry_number=$1 AND lifecycle_state='ACTIVE' AND id <> $2)`, number, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, postedBy int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='posted', posted_by=$2, posted_at=$3, updated_at=NOW()
WHERE id=$1 AND status='draft' AND lifecycle_state='ACTIVE'`, id, postedBy, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyPosted
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='voided', updated_at=NOW()
WHERE id=$1 AND status='draft' AND lifecycle_state='ACTIVE'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, id int64, reversalDate time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed=TRUE, reversal_date=$2, updated_at=NOW()
WHERE id=$1 AND status='posted' AND NOT reversed AND lifecycle_state='ACTIVE'`, id, reversalDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET lifecycle_state='DELETED', deleted_at=$2, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) Restore(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET lifecycle_state='ACTIVE', deleted_at=NULL, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='DELETED'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}
