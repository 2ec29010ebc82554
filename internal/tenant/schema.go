package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchemaPrefix is prepended to tenant identifiers that are not already
// fully qualified schema names.
const DefaultSchemaPrefix = "tenant_"

// Postgres identifiers are truncated at 63 bytes; a longer name would
// silently collide.
const maxSchemaNameLen = 63

var schemaNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NormalizeSchemaName canonicalizes a tenant identifier into its
// fully-qualified schema name and validates it.
func NormalizeSchemaName(prefix, name string) (string, error) {
	schema := strings.ToLower(strings.TrimSpace(name))
	if schema == "" {
		return "", ErrInvalidSchemaName
	}
	if !strings.HasPrefix(schema, prefix) {
		schema = prefix + schema
	}
	if len(schema) > maxSchemaNameLen || !schemaNamePattern.MatchString(schema) {
		return "", ErrInvalidSchemaName
	}
	return schema, nil
}

// Router executes units of work confined to one tenant's schema. It is the
// only component that manipulates search_path; everything else receives an
// already-scoped transaction handle.
type Router struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewRouter constructs a Router. An empty prefix falls back to
// DefaultSchemaPrefix.
func NewRouter(pool *pgxpool.Pool, prefix string) *Router {
	if prefix == "" {
		prefix = DefaultSchemaPrefix
	}
	return &Router{pool: pool, prefix: prefix}
}

// Normalize resolves a tenant identifier to its canonical schema name.
func (r *Router) Normalize(name string) (string, error) {
	return NormalizeSchemaName(r.prefix, name)
}

// WithSchema runs fn inside a RepeatableRead transaction whose search_path is
// pinned to the tenant schema (with public as fallback for shared reference
// tables). The schema must exist; the whole transaction rolls back when fn
// returns an error, re-returning that error.
func (r *Router) WithSchema(ctx context.Context, schemaName string, fn func(context.Context, pgx.Tx) error) error {
	schema, err := r.Normalize(schemaName)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tenant: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schema).Scan(&exists); err != nil {
		return fmt.Errorf("tenant: check schema: %w", err)
	}
	if !exists {
		return ErrSchemaNotFound
	}

	// SET LOCAL scopes the search_path to this transaction only.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %s, public`, pgx.Identifier{schema}.Sanitize())); err != nil {
		return fmt.Errorf("tenant: set search_path: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tenant: commit tx: %w", err)
	}
	return nil
}

// WithSchemaTx composes fn onto an existing schema-scoped transaction when
// one is supplied, so nested operations do not open a second transaction.
// With a nil tx it behaves exactly like WithSchema.
func (r *Router) WithSchemaTx(ctx context.Context, schemaName string, tx pgx.Tx, fn func(context.Context, pgx.Tx) error) error {
	if tx != nil {
		return fn(ctx, tx)
	}
	return r.WithSchema(ctx, schemaName, fn)
}
