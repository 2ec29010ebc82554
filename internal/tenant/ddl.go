package tenant

// DDL executed when provisioning. The shared statements are idempotent and
// applied at startup; the per-tenant statements run once inside the
// provisioning transaction with search_path pinned to the new schema.

var sharedDDL = []string{
	`CREATE TABLE IF NOT EXISTS public.tenants (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		schema_name VARCHAR(63) NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS public.users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS public.roles (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS public.permissions (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS public.role_permissions (
		role_id BIGINT NOT NULL REFERENCES public.roles(id),
		permission_id BIGINT NOT NULL REFERENCES public.permissions(id),
		PRIMARY KEY (role_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS public.tenant_user_roles (
		tenant_id UUID NOT NULL REFERENCES public.tenants(id),
		user_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL REFERENCES public.roles(id),
		PRIMARY KEY (tenant_id, user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS public.audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor_id BIGINT NOT NULL DEFAULT 0,
		tenant_id TEXT,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		meta JSONB,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

var tenantDDL = []string{
	`CREATE TABLE chart_of_accounts (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		account_number VARCHAR(10) NOT NULL,
		account_name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_subtype TEXT NOT NULL DEFAULT '',
		account_detail_type TEXT NOT NULL DEFAULT '',
		parent_account_id BIGINT REFERENCES chart_of_accounts(id),
		opening_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		current_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		currency_code CHAR(3) NOT NULL DEFAULT 'USD',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_system_account BOOLEAN NOT NULL DEFAULT FALSE,
		track_tax BOOLEAN NOT NULL DEFAULT FALSE,
		default_tax_id BIGINT,
		bank_name TEXT,
		bank_account_number TEXT,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX uq_coa_number ON chart_of_accounts (account_number) WHERE lifecycle_state = 'ACTIVE'`,
	`CREATE TABLE journal_entries (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		entry_number VARCHAR(32) NOT NULL,
		entry_date DATE NOT NULL,
		entry_type TEXT NOT NULL DEFAULT 'standard',
		is_adjusting BOOLEAN NOT NULL DEFAULT FALSE,
		is_closing BOOLEAN NOT NULL DEFAULT FALSE,
		is_reversing BOOLEAN NOT NULL DEFAULT FALSE,
		reversed BOOLEAN NOT NULL DEFAULT FALSE,
		reversal_of BIGINT REFERENCES journal_entries(id),
		reversal_date DATE,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		source_module TEXT NOT NULL DEFAULT 'manual',
		source_id UUID,
		total_debit NUMERIC(18,2) NOT NULL DEFAULT 0,
		total_credit NUMERIC(18,2) NOT NULL DEFAULT 0,
		approved_by BIGINT,
		approved_at TIMESTAMPTZ,
		posted_by BIGINT,
		posted_at TIMESTAMPTZ,
		created_by BIGINT NOT NULL DEFAULT 0,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX uq_je_number ON journal_entries (entry_number) WHERE lifecycle_state = 'ACTIVE'`,
	`CREATE TABLE journal_entry_lines (
		id BIGSERIAL PRIMARY KEY,
		journal_entry_id BIGINT NOT NULL REFERENCES journal_entries(id),
		account_id BIGINT NOT NULL REFERENCES chart_of_accounts(id),
		line_number INT NOT NULL,
		debit NUMERIC(18,2) NOT NULL DEFAULT 0,
		credit NUMERIC(18,2) NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		contact_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX ix_jel_entry ON journal_entry_lines (journal_entry_id)`,
	`CREATE TABLE taxes (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name TEXT NOT NULL,
		tax_type TEXT NOT NULL,
		rate NUMERIC(7,4) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE tax_groups (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE tax_group_taxes (
		tax_group_id BIGINT NOT NULL REFERENCES tax_groups(id),
		tax_id BIGINT NOT NULL REFERENCES taxes(id),
		order_index INT NOT NULL,
		PRIMARY KEY (tax_group_id, tax_id)
	)`,
	`CREATE TABLE tax_exemptions (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		contact_id BIGINT NOT NULL,
		tax_id BIGINT REFERENCES taxes(id),
		exemption_type TEXT NOT NULL,
		certificate_number TEXT NOT NULL DEFAULT '',
		certificate_expiry DATE,
		reason TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE account_balance_history (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		account_id BIGINT NOT NULL REFERENCES chart_of_accounts(id),
		journal_entry_id BIGINT REFERENCES journal_entries(id),
		journal_entry_line_id BIGINT REFERENCES journal_entry_lines(id),
		previous_balance NUMERIC(18,2) NOT NULL,
		new_balance NUMERIC(18,2) NOT NULL,
		change_amount NUMERIC(18,2) NOT NULL,
		change_type TEXT NOT NULL,
		change_date TIMESTAMPTZ NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source_module TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		created_by BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX ix_abh_account_date ON account_balance_history (account_id, change_date)`,
	`CREATE TABLE bank_accounts (
		id BIGSERIAL PRIMARY KEY,
		tenant_id UUID NOT NULL,
		account_name TEXT NOT NULL,
		bank_name TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		currency_code CHAR(3) NOT NULL DEFAULT 'USD',
		chart_account_id BIGINT REFERENCES chart_of_accounts(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		lifecycle_state TEXT NOT NULL DEFAULT 'ACTIVE',
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// seedRoles are the default role bindings created for every new tenant.
var seedRoles = []struct {
	Code string
	Name string
}{
	{Code: "owner", Name: "Owner"},
	{Code: "accountant", Name: "Accountant"},
	{Code: "viewer", Name: "Viewer"},
}

// systemAccounts are undeletable accounts every tenant starts with.
var systemAccounts = []struct {
	Number string
	Name   string
	Type   string
}{
	{Number: "3000", Name: "Retained Earnings", Type: "equity"},
	{Number: "3010", Name: "Opening Balance Equity", Type: "equity"},
}
