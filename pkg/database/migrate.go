package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration is one named, ordered schema step. Steps must be idempotent
// or guarded by the schema_migrations ledger; they are applied exactly
// once per database.
type migration struct {
	Name string
	SQL  string
}

var migrations = []migration{
	{
		Name: "001_tenants",
		SQL: `CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			settings JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deactivated_at TIMESTAMPTZ
		)`,
	},
	{
		Name: "002_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			tenant_id UUID REFERENCES tenants(id),
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Name: "003_contracts",
		SQL: `CREATE TABLE IF NOT EXISTS contracts (
			id UUID PRIMARY KEY,
			tenant_id UUID REFERENCES tenants(id),
			auftrag TEXT NOT NULL DEFAULT '',
			titel TEXT NOT NULL DEFAULT '',
			standort TEXT NOT NULL DEFAULT '',
			geraet_nr TEXT NOT NULL DEFAULT '',
			beschreibung TEXT,
			status TEXT NOT NULL DEFAULT 'offen' CHECK (status IN ('offen','inbearb','fertig')),
			approval_status TEXT NOT NULL DEFAULT 'pending' CHECK (approval_status IN ('pending','approved','rejected')),
			assigned_to UUID,
			approver_id UUID,
			approval_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_contracts_tenant_status ON contracts (tenant_id, status);
		CREATE INDEX IF NOT EXISTS idx_contracts_updated_at ON contracts (updated_at)`,
	},
	{
		Name: "004_contract_history",
		SQL: `CREATE TABLE IF NOT EXISTS contract_history (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			field_name TEXT NOT NULL,
			old_value TEXT,
			new_value TEXT,
			changed_by UUID,
			changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_contract_history_contract ON contract_history (contract_id, changed_at)`,
	},
	{
		Name: "005_workflow_transitions",
		SQL: `CREATE TABLE IF NOT EXISTS workflow_transitions (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			from_status TEXT,
			to_status TEXT NOT NULL,
			transition_by UUID,
			reason TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_transitions_contract ON workflow_transitions (contract_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_workflow_transitions_status_date ON workflow_transitions (to_status, created_at)`,
	},
	{
		Name: "006_contract_approvals",
		SQL: `CREATE TABLE IF NOT EXISTS contract_approvals (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			approver_id UUID NOT NULL,
			requested_by UUID,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
			comments TEXT,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			action_date TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_contract_approvals_open
			ON contract_approvals (contract_id) WHERE status = 'pending'`,
	},
	{
		Name: "007_contract_slas",
		SQL: `CREATE TABLE IF NOT EXISTS contract_slas (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
			sla_type TEXT NOT NULL,
			target_value TEXT NOT NULL,
			actual_value TEXT,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','met','at_risk','breached')),
			due_date TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ
		)`,
	},
	{
		Name: "008_contract_duplicates",
		SQL: `CREATE TABLE IF NOT EXISTS contract_duplicates (
			id UUID PRIMARY KEY,
			contract1_id UUID NOT NULL,
			contract2_id UUID NOT NULL,
			similarity_score NUMERIC(4,3) NOT NULL CHECK (similarity_score >= 0 AND similarity_score <= 1),
			reasons JSONB,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','merged','dismissed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_by UUID,
			resolved_at TIMESTAMPTZ,
			CHECK (contract1_id < contract2_id),
			UNIQUE (contract1_id, contract2_id)
		)`,
	},
	{
		Name: "009_validation_rules",
		SQL: `CREATE TABLE IF NOT EXISTS validation_rules (
			id UUID PRIMARY KEY,
			tenant_id UUID REFERENCES tenants(id),
			field_name TEXT NOT NULL,
			rule_type TEXT NOT NULL CHECK (rule_type IN ('required','pattern','enum','range','date_range','unique')),
			rule_config JSONB,
			error_message TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_validation_rules_tenant_field ON validation_rules (tenant_id, field_name)`,
	},
	{
		Name: "010_contract_metrics",
		SQL: `CREATE TABLE IF NOT EXISTS contract_metrics (
			id UUID PRIMARY KEY,
			tenant_id UUID REFERENCES tenants(id),
			metric_date DATE NOT NULL,
			total_contracts INTEGER NOT NULL DEFAULT 0,
			status_distribution JSONB,
			completion_rate NUMERIC(5,2) NOT NULL DEFAULT 0,
			new_contracts_today INTEGER NOT NULL DEFAULT 0,
			completed_today INTEGER NOT NULL DEFAULT 0,
			stale BOOLEAN NOT NULL DEFAULT FALSE,
			computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_contract_metrics_scope_date
			ON contract_metrics (COALESCE(tenant_id::text, 'global'), metric_date)`,
	},
	{
		Name: "011_contract_archives",
		SQL: `CREATE TABLE IF NOT EXISTS contract_archives (
			id UUID PRIMARY KEY,
			original_id UUID NOT NULL,
			tenant_id UUID,
			contract_data JSONB NOT NULL,
			history_data JSONB NOT NULL,
			archived_by UUID,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			retention_until TIMESTAMPTZ NOT NULL,
			reason TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_contract_archives_original ON contract_archives (original_id)`,
	},
	{
		Name: "012_deletion_requests",
		SQL: `CREATE TABLE IF NOT EXISTS deletion_requests (
			id UUID PRIMARY KEY,
			tenant_id UUID,
			requested_by UUID NOT NULL,
			request_type TEXT NOT NULL CHECK (request_type IN ('user_data','contract','all_data')),
			target_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','completed','rejected')),
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ,
			processed_by UUID
		);
		CREATE INDEX IF NOT EXISTS idx_deletion_requests_status ON deletion_requests (status, created_at)`,
	},
}

// Migrate applies pending schema migrations in order, recording each in
// schema_migrations. Safe to run on every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	const ledger = `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := db.ExecContext(ctx, ledger); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	var names []string
	if err := db.SelectContext(ctx, &names, `SELECT name FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for _, name := range names {
		applied[name] = true
	}

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
	}

	return nil
}
