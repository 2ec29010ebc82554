package tenant

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// Repository encapsulates DB operations for the tenant registry in the
// public schema.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, t Tenant) (Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetBySchema(ctx context.Context, schemaName string) (Tenant, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Tenant, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	ActiveSchemas(ctx context.Context) ([]string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository backed by the shared pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const tenantColumns = `id, name, schema_name, is_active, lifecycle_state, deleted_at, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.SchemaName, &t.IsActive, &t.Lifecycle.State, &t.Lifecycle.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// Insert runs inside the provisioning transaction so the registry row and the
// schema creation commit or roll back together.
func (r *repository) Insert(ctx context.Context, tx pgx.Tx, t Tenant) (Tenant, error) {
	row := tx.QueryRow(ctx, `INSERT INTO public.tenants (id, name, schema_name, is_active, lifecycle_state)
VALUES ($1, $2, $3, $4, $5) RETURNING `+tenantColumns,
		t.ID, t.Name, t.SchemaName, t.IsActive, shared.LifecycleActive)
	inserted, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, ErrSchemaExists
		}
		return Tenant{}, err
	}
	return inserted, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM public.tenants WHERE id = $1`, id))
}

func (r *repository) GetBySchema(ctx context.Context, schemaName string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM public.tenants WHERE schema_name = $1`, schemaName))
}

// List uses a dynamic query due to filter combinations.
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Tenant, int, error) {
	query := `SELECT ` + tenantColumns + ` FROM public.tenants WHERE lifecycle_state = 'ACTIVE'`
	countQuery := `SELECT COUNT(*) FROM public.tenants WHERE lifecycle_state = 'ACTIVE'`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR schema_name ILIKE $` + strconv.Itoa(argCount) + `)`
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
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
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

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	return tenants, total, rows.Err()
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE public.tenants SET is_active = $2, updated_at = NOW() WHERE id = $1 AND lifecycle_state = 'ACTIVE'`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE public.tenants SET lifecycle_state = 'DELETED', deleted_at = $2, updated_at = NOW() WHERE id = $1 AND lifecycle_state = 'ACTIVE'`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *repository) Restore(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE public.tenants SET lifecycle_state = 'ACTIVE', deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND lifecycle_state = 'DELETED'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *repository) ActiveSchemas(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT schema_name FROM public.tenants WHERE lifecycle_state = 'ACTIVE' AND is_active ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}
