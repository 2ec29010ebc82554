package tenant

import (
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// Tenant is a registry row in the shared public schema. Each tenant owns one
// isolated database schema named by SchemaName; SchemaName is immutable after
// provisioning.
type Tenant struct {
	ID         uuid.UUID
	Name       string
	SchemaName string
	IsActive   bool
	Lifecycle  shared.Lifecycle
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrTenantNotFound indicates the tenant is absent from the registry.
	ErrTenantNotFound = shared.NotFound("TenantNotFound", "tenant not found")
	// ErrSchemaNotFound indicates the tenant schema does not exist in the database.
	ErrSchemaNotFound = shared.NotFound("TenantSchemaNotFound", "tenant schema not found")
	// ErrSchemaExists indicates a provisioning collision on the schema name.
	ErrSchemaExists = shared.Conflict("TenantSchemaExists", "tenant schema already exists")
	// ErrInvalidSchemaName indicates the schema name fails validation.
	ErrInvalidSchemaName = shared.BadRequest("InvalidTenantSchemaName", "schema name must be lowercase alphanumeric/underscore, start with a letter and fit 63 chars")
)
