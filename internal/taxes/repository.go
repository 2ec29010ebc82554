package taxes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arcbooks/arcbooks/internal/shared"
	"github.com/arcbooks/arcbooks/internal/tenant"
)

// Repository gives schema-scoped access to taxes, tax groups and exemptions.
type Repository interface {
	WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes tax operations within one tenant transaction.
type TxRepository interface {
	InsertTax(ctx context.Context, t Tax) (Tax, error)
	UpdateTax(ctx context.Context, t Tax) error
	GetTax(ctx context.Context, id int64) (Tax, error)
	GetTaxes(ctx context.Context, ids []int64) ([]Tax, error)
	ListTaxes(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error)
	SoftDeleteTax(ctx context.Context, id int64, at time.Time) error

	InsertGroup(ctx context.Context, g TaxGroup, taxIDs []int64) (TaxGroup, error)
	UpdateGroup(ctx context.Context, g TaxGroup, taxIDs []int64) error
	GetGroup(ctx context.Context, id int64) (TaxGroup, error)
	ListGroups(ctx context.Context, filters shared.ListFilters) ([]TaxGroup, int, error)
	SoftDeleteGroup(ctx context.Context, id int64, at time.Time) error

	InsertExemption(ctx context.Context, e TaxExemption) (TaxExemption, error)
	UpdateExemption(ctx context.Context, e TaxExemption) error
	GetExemption(ctx context.Context, id int64) (TaxExemption, error)
	ListExemptions(ctx context.Context, filters shared.ListFilters) ([]TaxExemption, int, error)
	ExemptionsForContact(ctx context.Context, contactID int64) ([]TaxExemption, error)
	SoftDeleteExemption(ctx context.Context, id int64, at time.Time) error
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

const taxColumns = `id, tenant_id, name, tax_type, rate, is_active, lifecycle_state, deleted_at, created_at, updated_at`

func scanTax(row pgx.Row) (Tax, error) {
	var t Tax
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Type, &t.Rate, &t.IsActive,
		&t.Lifecycle.State, &t.Lifecycle.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tax{}, ErrTaxNotFound
		}
		return Tax{}, err
	}
	return t, nil
}

func (r *txRepository) InsertTax(ctx context.Context, t Tax) (Tax, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO taxes (tenant_id, name, tax_type, rate, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING `+taxColumns, t.TenantID, t.Name, t.Type, t.Rate, t.IsActive)
	return scanTax(row)
}

func (r *txRepository) UpdateTax(ctx context.Context, t Tax) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE taxes SET name=$2, tax_type=$3, rate=$4, is_active=$5, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, t.ID, t.Name, t.Type, t.Rate, t.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaxNotFound
	}
	return nil
}

func (r *txRepository) GetTax(ctx context.Context, id int64) (Tax, error) {
	return scanTax(r.tx.QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id=$1 AND lifecycle_state='ACTIVE'`, id))
}

// GetTaxes returns the taxes for the given IDs. Missing or deleted IDs make
// the whole lookup fail so calculations never silently drop a tax.
func (r *txRepository) GetTaxes(ctx context.Context, ids []int64) ([]Tax, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = ANY($1) AND lifecycle_state='ACTIVE'`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]Tax, len(ids))
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Tax, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, ErrInvalidTaxIDs
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *txRepository) ListTaxes(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error) {
	query := `SELECT ` + taxColumns + ` FROM taxes WHERE lifecycle_state='ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM taxes WHERE lifecycle_state='ACTIVE'`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
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

	query += ` ORDER BY name ASC`
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

	var taxes []Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, 0, err
		}
		taxes = append(taxes, t)
	}
	return taxes, total, rows.Err()
}

func (r *txRepository) SoftDeleteTax(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE taxes SET lifecycle_state='DELETED', deleted_at=$2, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaxNotFound
	}
	return nil
}

const groupColumns = `id, tenant_id, name, description, is_active, lifecycle_state, deleted_at, created_at, updated_at`

func scanGroup(row pgx.Row) (TaxGroup, error) {
	var g TaxGroup
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.Description, &g.IsActive,
		&g.Lifecycle.State, &g.Lifecycle.DeletedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaxGroup{}, ErrTaxGroupNotFound
		}
		return TaxGroup{}, err
	}
	return g, nil
}

func (r *txRepository) InsertGroup(ctx context.Context, g TaxGroup, taxIDs []int64) (TaxGroup, error) {
	created, err := scanGroup(r.tx.QueryRow(ctx, `INSERT INTO tax_groups (tenant_id, name, description, is_active)
VALUES ($1,$2,$3,$4) RETURNING `+groupColumns, g.TenantID, g.Name, g.Description, g.IsActive))
	if err != nil {
		return TaxGroup{}, err
	}
	if err := r.replaceGroupTaxes(ctx, created.ID, taxIDs); err != nil {
		return TaxGroup{}, err
	}
	created.Taxes, err = r.groupTaxes(ctx, created.ID)
	return created, err
}

func (r *txRepository) UpdateGroup(ctx context.Context, g TaxGroup, taxIDs []int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE tax_groups SET name=$2, description=$3, is_active=$4, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, g.ID, g.Name, g.Description, g.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaxGroupNotFound
	}
	if taxIDs != nil {
		return r.replaceGroupTaxes(ctx, g.ID, taxIDs)
	}
	return nil
}

func (r *txRepository) replaceGroupTaxes(ctx context.Context, groupID int64, taxIDs []int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM tax_group_taxes WHERE tax_group_id=$1`, groupID); err != nil {
		return err
	}
	for i, taxID := range taxIDs {
		if _, err := r.tx.Exec(ctx, `INSERT INTO tax_group_taxes (tax_group_id, tax_id, order_index) VALUES ($1,$2,$3)`,
			groupID, taxID, i); err != nil {
			return err
		}
	}
	return nil
}

// groupTaxes returns the group's taxes in stored order.
func (r *txRepository) groupTaxes(ctx context.Context, groupID int64) ([]Tax, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+prefixedTaxColumns("t")+` FROM taxes t
JOIN tax_group_taxes gt ON gt.tax_id = t.id
WHERE gt.tax_group_id=$1 AND t.lifecycle_state='ACTIVE'
ORDER BY gt.order_index ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taxes []Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, rows.Err()
}

func prefixedTaxColumns(alias string) string {
	return alias + `.id, ` + alias + `.tenant_id, ` + alias + `.name, ` + alias + `.tax_type, ` + alias + `.rate, ` +
		alias + `.is_active, ` + alias + `.lifecycle_state, ` + alias + `.deleted_at, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func (r *txRepository) GetGroup(ctx context.Context, id int64) (TaxGroup, error) {
	g, err := scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM tax_groups WHERE id=$1 AND lifecycle_state='ACTIVE'`, id))
	if err != nil {
		return TaxGroup{}, err
	}
	g.Taxes, err = r.groupTaxes(ctx, id)
	return g, err
}

func (r *txRepository) ListGroups(ctx context.Context, filters shared.ListFilters) ([]TaxGroup, int, error) {
	query := `SELECT ` + groupColumns + ` FROM tax_groups WHERE lifecycle_state='ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM tax_groups WHERE lifecycle_state='ACTIVE'`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
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

	var groups []TaxGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range groups {
		groups[i].Taxes, err = r.groupTaxes(ctx, groups[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return groups, total, nil
}

func (r *txRepository) SoftDeleteGroup(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE tax_groups SET lifecycle_state='DELETED', deleted_at=$2, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaxGroupNotFound
	}
	return nil
}

const exemptionColumns = `id, tenant_id, contact_id, tax_id, exemption_type, certificate_number, certificate_expiry,
reason, is_active, lifecycle_state, deleted_at, created_at, updated_at`

func scanExemption(row pgx.Row) (TaxExemption, error) {
	var e TaxExemption
	err := row.Scan(&e.ID, &e.TenantID, &e.ContactID, &e.TaxID, &e.ExemptionType, &e.CertificateNumber, &e.CertificateExpiry,
		&e.Reason, &e.IsActive, &e.Lifecycle.State, &e.Lifecycle.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaxExemption{}, ErrExemptionNotFound
		}
		return TaxExemption{}, err
	}
	return e, nil
}

func (r *txRepository) InsertExemption(ctx context.Context, e TaxExemption) (TaxExemption, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO tax_exemptions
(tenant_id, contact_id, tax_id, exemption_type, certificate_number, certificate_expiry, reason, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+exemptionColumns,
		e.TenantID, e.ContactID, e.TaxID, e.ExemptionType, e.CertificateNumber, e.CertificateExpiry, e.Reason, e.IsActive)
	return scanExemption(row)
}

func (r *txRepository) UpdateExemption(ctx context.Context, e TaxExemption) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE tax_exemptions SET contact_id=$2, tax_id=$3, exemption_type=$4,
certificate_number=$5, certificate_expiry=$6, reason=$7, is_active=$8, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`,
		e.ID, e.ContactID, e.TaxID, e.ExemptionType, e.CertificateNumber, e.CertificateExpiry, e.Reason, e.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExemptionNotFound
	}
	return nil
}

func (r *txRepository) GetExemption(ctx context.Context, id int64) (TaxExemption, error) {
	return scanExemption(r.tx.QueryRow(ctx, `SELECT `+exemptionColumns+` FROM tax_exemptions WHERE id=$1 AND lifecycle_state='ACTIVE'`, id))
}

func (r *txRepository) ListExemptions(ctx context.Context, filters shared.ListFilters) ([]TaxExemption, int, error) {
	query := `SELECT ` + exemptionColumns + ` FROM tax_exemptions WHERE lifecycle_state='ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM tax_exemptions WHERE lifecycle_state='ACTIVE'`
	args := []any{}
	argCount := 0

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

	query += ` ORDER BY id ASC`
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

	var exemptions []TaxExemption
	for rows.Next() {
		e, err := scanExemption(rows)
		if err != nil {
			return nil, 0, err
		}
		exemptions = append(exemptions, e)
	}
	return exemptions, total, rows.Err()
}

func (r *txRepository) ExemptionsForContact(ctx context.Context, contactID int64) ([]TaxExemption, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+exemptionColumns+` FROM tax_exemptions
WHERE contact_id=$1 AND lifecycle_state='ACTIVE' AND is_active ORDER BY id ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exemptions []TaxExemption
	for rows.Next() {
		e, err := scanExemption(rows)
		if err != nil {
			return nil, err
		}
		exemptions = append(exemptions, e)
	}
	return exemptions, rows.Err()
}

func (r *txRepository) SoftDeleteExemption(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE tax_exemptions SET lifecycle_state='DELETED', deleted_at=$2, updated_at=NOW()
WHERE id=$1 AND lifecycle_state='ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExemptionNotFound
	}
	return nil
}
