package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcbooks/arcbooks/internal/platform/db"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Mailer enqueues outbound mail. Delivery failures are non-fatal to
// provisioning; the tenant's own data commits independently.
type Mailer interface {
	EnqueueWelcome(ctx context.Context, to, tenantName string) error
}

// AuditPort records provisioning actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts provisioned tenants.
type MetricsPort interface {
	RecordTenantProvisioned()
}

// OnboardInput groups fields required to provision a tenant.
type OnboardInput struct {
	Name        string
	SchemaName  string
	OwnerUserID int64
	OwnerEmail  string
}

// Validate ensures onboarding input meets minimum criteria.
func (in OnboardInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.BadRequest("TenantNameRequired", "tenant name is required")
	}
	if strings.TrimSpace(in.SchemaName) == "" {
		return ErrInvalidSchemaName
	}
	return nil
}

// Provisioner creates the isolated namespace for a new tenant: the registry
// row, the schema with its tables, the seed system accounts and the default
// role binding, all in one transaction.
type Provisioner struct {
	pool    *pgxpool.Pool
	repo    Repository
	router  *Router
	audit   AuditPort
	mailer  Mailer
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewProvisioner constructs a Provisioner. audit, mailer and metrics may be nil.
func NewProvisioner(pool *pgxpool.Pool, repo Repository, router *Router, audit AuditPort, mailer Mailer, metrics MetricsPort, logger *slog.Logger) *Provisioner {
	return &Provisioner{pool: pool, repo: repo, router: router, audit: audit, mailer: mailer, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (p *Provisioner) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// EnsureSharedSchema applies the idempotent public-schema DDL and seed roles.
func (p *Provisioner) EnsureSharedSchema(ctx context.Context) error {
	for _, stmt := range sharedDDL {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("tenant: shared ddl: %w", err)
		}
	}
	for _, role := range seedRoles {
		if _, err := p.pool.Exec(ctx, `INSERT INTO public.roles (code, name) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`, role.Code, role.Name); err != nil {
			return fmt.Errorf("tenant: seed role %s: %w", role.Code, err)
		}
	}
	return nil
}

// Onboard provisions a new tenant synchronously and returns its registry row.
func (p *Provisioner) Onboard(ctx context.Context, input OnboardInput) (Tenant, error) {
	if err := input.Validate(); err != nil {
		return Tenant{}, err
	}
	schema, err := p.router.Normalize(input.SchemaName)
	if err != nil {
		return Tenant{}, err
	}

	created := Tenant{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(input.Name),
		SchemaName: schema,
		IsActive:   true,
	}

	err = db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		inserted, err := p.repo.Insert(ctx, tx, created)
		if err != nil {
			return err
		}
		created = inserted

		if _, err := tx.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P06" {
				return ErrSchemaExists
			}
			return fmt.Errorf("tenant: create schema: %w", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %s, public`, pgx.Identifier{schema}.Sanitize())); err != nil {
			return fmt.Errorf("tenant: set search_path: %w", err)
		}
		for _, stmt := range tenantDDL {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("tenant: tenant ddl: %w", err)
			}
		}
		for _, acc := range systemAccounts {
			if _, err := tx.Exec(ctx, `INSERT INTO chart_of_accounts (tenant_id, account_number, account_name, account_type, is_system_account) VALUES ($1, $2, $3, $4, TRUE)`,
				created.ID, acc.Number, acc.Name, acc.Type); err != nil {
				return fmt.Errorf("tenant: seed account %s: %w", acc.Number, err)
			}
		}
		if input.OwnerUserID != 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO public.tenant_user_roles (tenant_id, user_id, role_id)
SELECT $1, $2, id FROM public.roles WHERE code = 'owner'`, created.ID, input.OwnerUserID); err != nil {
				return fmt.Errorf("tenant: bind owner role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}

	if p.metrics != nil {
		p.metrics.RecordTenantProvisioned()
	}
	if p.audit != nil {
		_ = p.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.OwnerUserID,
			TenantID: created.ID.String(),
			Action:   "tenant.onboard",
			Entity:   "tenant",
			EntityID: created.ID.String(),
			Meta:     map[string]any{"schema": schema, "name": created.Name},
			At:       p.now(),
		})
	}
	if p.mailer != nil && input.OwnerEmail != "" {
		if err := p.mailer.EnqueueWelcome(ctx, input.OwnerEmail, created.Name); err != nil {
			p.logger.Warn("enqueue welcome mail", slog.Any("error", err), slog.String("tenant", created.ID.String()))
		}
	}
	return created, nil
}
