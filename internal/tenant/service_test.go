package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/arcbooks/arcbooks/internal/platform/cache"
	"github.com/arcbooks/arcbooks/internal/shared"
)

type memoryTenantRepo struct {
	tenants map[uuid.UUID]Tenant
	reads   int
}

func newMemoryTenantRepo() *memoryTenantRepo {
	return &memoryTenantRepo{tenants: make(map[uuid.UUID]Tenant)}
}

func (r *memoryTenantRepo) Insert(ctx context.Context, tx pgx.Tx, t Tenant) (Tenant, error) {
	for _, existing := range r.tenants {
		if existing.SchemaName == t.SchemaName {
			return Tenant{}, ErrSchemaExists
		}
	}
	t.Lifecycle = shared.ActiveLifecycle()
	r.tenants[t.ID] = t
	return t, nil
}

func (r *memoryTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	r.reads++
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (r *memoryTenantRepo) GetBySchema(ctx context.Context, schemaName string) (Tenant, error) {
	for _, t := range r.tenants {
		if t.SchemaName == schemaName {
			return t, nil
		}
	}
	return Tenant{}, ErrTenantNotFound
}

func (r *memoryTenantRepo) List(ctx context.Context, filters shared.ListFilters) ([]Tenant, int, error) {
	var out []Tenant
	for _, t := range r.tenants {
		if t.Lifecycle.Deleted() {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r *memoryTenantRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	t, ok := r.tenants[id]
	if !ok || t.Lifecycle.Deleted() {
		return ErrTenantNotFound
	}
	t.IsActive = active
	r.tenants[id] = t
	return nil
}

func (r *memoryTenantRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	t, ok := r.tenants[id]
	if !ok || t.Lifecycle.Deleted() {
		return ErrTenantNotFound
	}
	t.Lifecycle = shared.DeletedLifecycle(at)
	r.tenants[id] = t
	return nil
}

func (r *memoryTenantRepo) Restore(ctx context.Context, id uuid.UUID) error {
	t, ok := r.tenants[id]
	if !ok || !t.Lifecycle.Deleted() {
		return ErrTenantNotFound
	}
	t.Lifecycle = shared.ActiveLifecycle()
	r.tenants[id] = t
	return nil
}

func (r *memoryTenantRepo) ActiveSchemas(ctx context.Context) ([]string, error) {
	var out []string
	for _, t := range r.tenants {
		if !t.Lifecycle.Deleted() && t.IsActive {
			out = append(out, t.SchemaName)
		}
	}
	return out, nil
}

type memoryCache struct {
	entries map[string]string
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return "", cache.ErrMiss
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func seedTenant(t *testing.T, repo *memoryTenantRepo, schema string) Tenant {
	t.Helper()
	tn, err := repo.Insert(context.Background(), nil, Tenant{ID: uuid.New(), Name: schema, SchemaName: schema, IsActive: true})
	require.NoError(t, err)
	return tn
}

func TestResolveSchemaCachesLookups(t *testing.T) {
	repo := newMemoryTenantRepo()
	tn := seedTenant(t, repo, "tenant_acme")
	svc := NewService(repo, &memoryCache{})
	ctx := context.Background()

	schema, err := svc.ResolveSchema(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, "tenant_acme", schema)

	schema, err = svc.ResolveSchema(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, "tenant_acme", schema)
	require.Equal(t, 1, repo.reads, "second lookup must hit the cache")
}

func TestResolveSchemaRejectsInactiveTenant(t *testing.T) {
	repo := newMemoryTenantRepo()
	tn := seedTenant(t, repo, "tenant_acme")
	svc := NewService(repo, &memoryCache{})
	ctx := context.Background()

	require.NoError(t, svc.SetActive(ctx, tn.ID, false))
	_, err := svc.ResolveSchema(ctx, tn.ID)
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestSetActiveInvalidatesCachedSchema(t *testing.T) {
	repo := newMemoryTenantRepo()
	tn := seedTenant(t, repo, "tenant_acme")
	mc := &memoryCache{}
	svc := NewService(repo, mc)
	ctx := context.Background()

	_, err := svc.ResolveSchema(ctx, tn.ID)
	require.NoError(t, err)
	require.NotEmpty(t, mc.entries)

	require.NoError(t, svc.SetActive(ctx, tn.ID, false))
	require.Empty(t, mc.entries)
}

func TestSoftDeleteAndRestoreLifecycle(t *testing.T) {
	repo := newMemoryTenantRepo()
	tn := seedTenant(t, repo, "tenant_acme")
	svc := NewService(repo, &memoryCache{})
	ctx := context.Background()

	require.NoError(t, svc.SoftDelete(ctx, tn.ID))
	_, err := svc.ResolveSchema(ctx, tn.ID)
	require.ErrorIs(t, err, ErrTenantNotFound)

	require.NoError(t, svc.Restore(ctx, tn.ID))
	schema, err := svc.ResolveSchema(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, "tenant_acme", schema)

	// restoring twice fails: the tenant is already live
	require.ErrorIs(t, svc.Restore(ctx, tn.ID), ErrTenantNotFound)
}

func TestOnboardInputValidation(t *testing.T) {
	require.Error(t, OnboardInput{Name: "", SchemaName: "acme"}.Validate())
	require.ErrorIs(t, OnboardInput{Name: "Acme", SchemaName: " "}.Validate(), ErrInvalidSchemaName)
	require.NoError(t, OnboardInput{Name: "Acme", SchemaName: "acme"}.Validate())
}
