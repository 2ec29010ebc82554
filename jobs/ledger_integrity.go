package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/arcbooks/arcbooks/internal/journals"
	"github.com/arcbooks/arcbooks/internal/tenant"
)

// TaskTypeLedgerIntegrity is the task type for the nightly ledger check.
const TaskTypeLedgerIntegrity = "ledger:integrity_check"

// ledgerScanConcurrency bounds how many tenant schemas are scanned at once.
const ledgerScanConcurrency = 4

// NewLedgerIntegrityTask constructs the scheduled integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerIntegrity, nil)
}

// SchemaLister enumerates the schemas of live tenants.
type SchemaLister interface {
	ActiveSchemas(ctx context.Context) ([]string, error)
}

// LedgerIntegrityJob sweeps every active tenant schema and reports entries
// whose totals no longer balance and accounts whose running balance has
// drifted from the balance history. Findings are logged, never repaired:
// the history table is the evidence trail and stays append-only.
type LedgerIntegrityJob struct {
	schemas SchemaLister
	router  *tenant.Router
	logger  *slog.Logger
}

// NewLedgerIntegrityJob constructs the job.
func NewLedgerIntegrityJob(schemas SchemaLister, router *tenant.Router, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{schemas: schemas, router: router, logger: logger}
}

// Handle processes TaskTypeLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	schemas, err := j.schemas.ActiveSchemas(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ledgerScanConcurrency)
	for _, schema := range schemas {
		schema := schema
		g.Go(func() error {
			return j.scanSchema(ctx, schema)
		})
	}
	return g.Wait()
}

func (j *LedgerIntegrityJob) scanSchema(ctx context.Context, schema string) error {
	return j.router.WithSchema(ctx, schema, func(ctx context.Context, tx pgx.Tx) error {
		if err := j.checkEntryTotals(ctx, tx, schema); err != nil {
			return err
		}
		return j.checkBalanceDrift(ctx, tx, schema)
	})
}

// checkEntryTotals flags posted entries whose header totals differ beyond
// the posting tolerance.
func (j *LedgerIntegrityJob) checkEntryTotals(ctx context.Context, tx pgx.Tx, schema string) error {
	rows, err := tx.Query(ctx, `SELECT id, entry_number, total_debit, total_credit
FROM journal_entries
WHERE status = 'posted' AND lifecycle_state = 'ACTIVE'
  AND ABS(total_debit - total_credit) > $1`, journals.BalanceTolerance)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id            int64
			number        string
			debit, credit float64
		)
		if err := rows.Scan(&id, &number, &debit, &credit); err != nil {
			return err
		}
		j.logger.Error("ledger integrity: unbalanced posted entry",
			slog.String("schema", schema),
			slog.Int64("entry_id", id),
			slog.String("entry_number", number),
			slog.Float64("total_debit", debit),
			slog.Float64("total_credit", credit))
	}
	return rows.Err()
}

// checkBalanceDrift compares each account's current balance against its
// opening balance plus the signed sum of its history deltas.
func (j *LedgerIntegrityJob) checkBalanceDrift(ctx context.Context, tx pgx.Tx, schema string) error {
	rows, err := tx.Query(ctx, `SELECT a.id, a.account_number, a.current_balance,
       a.opening_balance + COALESCE(SUM(h.new_balance - h.previous_balance), 0) AS expected
FROM chart_of_accounts a
LEFT JOIN account_balance_history h ON h.account_id = a.id
WHERE a.lifecycle_state = 'ACTIVE'
GROUP BY a.id, a.account_number, a.current_balance, a.opening_balance
HAVING ABS(a.current_balance - (a.opening_balance + COALESCE(SUM(h.new_balance - h.previous_balance), 0))) > $1`,
		journals.BalanceTolerance)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                int64
			number            string
			current, expected float64
		)
		if err := rows.Scan(&id, &number, &current, &expected); err != nil {
			return err
		}
		j.logger.Error("ledger integrity: account balance drift",
			slog.String("schema", schema),
			slog.Int64("account_id", id),
			slog.String("account_number", number),
			slog.Float64("current_balance", current),
			slog.Float64("expected_balance", expected))
	}
	return rows.Err()
}
