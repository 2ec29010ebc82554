package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/platform/cache"
	"github.com/arcbooks/arcbooks/internal/shared"
)

const schemaCacheTTL = 10 * time.Minute

// Service exposes registry operations over tenants. Schema lookups go through
// the injected cache so the hot per-request resolution avoids a registry read.
type Service struct {
	repo  Repository
	cache cache.Cache
	now   func() time.Time
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(repo Repository, c cache.Cache) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{repo: repo, cache: c, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns the tenant registry row.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns tenants matching the filters with a total count.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Tenant, int, error) {
	return s.repo.List(ctx, filters)
}

// ResolveSchema maps a tenant id to its schema name, using the cache.
func (s *Service) ResolveSchema(ctx context.Context, id uuid.UUID) (string, error) {
	key := "tenant:schema:" + id.String()
	if schema, err := s.cache.Get(ctx, key); err == nil && schema != "" {
		return schema, nil
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if t.Lifecycle.Deleted() || !t.IsActive {
		return "", ErrTenantNotFound
	}
	_ = s.cache.Set(ctx, key, t.SchemaName, schemaCacheTTL)
	return t.SchemaName, nil
}

// SetActive enables or disables a tenant and drops its cached schema lookup.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, "tenant:schema:"+id.String())
	return nil
}

// SoftDelete marks a tenant deleted; the schema itself is retained.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, "tenant:schema:"+id.String())
	return nil
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) error {
	return s.repo.Restore(ctx, id)
}

// ActiveSchemas lists schema names of all live tenants.
func (s *Service) ActiveSchemas(ctx context.Context) ([]string, error) {
	return s.repo.ActiveSchemas(ctx)
}
