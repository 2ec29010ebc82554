package history

import (
	"context"
	"time"
)

// Service exposes read access to the append-only balance history. Writes
// happen only inside journal posting, which composes its own TxRepository.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns history records matching the filters with a total count.
func (s *Service) List(ctx context.Context, schema string, filters ListFilters) ([]BalanceChange, int, error) {
	var changes []BalanceChange
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		changes, total, err = tx.List(ctx, filters)
		return err
	})
	return changes, total, err
}

// ListByAccount returns the most recent changes for one account.
func (s *Service) ListByAccount(ctx context.Context, schema string, accountID int64, limit int) ([]BalanceChange, error) {
	var changes []BalanceChange
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		changes, err = tx.ListByAccount(ctx, accountID, limit)
		return err
	})
	return changes, err
}

// ListByJournalEntry returns every change a journal entry produced, in
// insertion order.
func (s *Service) ListByJournalEntry(ctx context.Context, schema string, journalEntryID int64) ([]BalanceChange, error) {
	var changes []BalanceChange
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		changes, err = tx.ListByJournalEntry(ctx, journalEntryID)
		return err
	})
	return changes, err
}

// BalanceAsOf returns the account balance at a point in time: the new_balance
// of the latest record dated at or before the target. Nil means no record
// precedes the target date.
func (s *Service) BalanceAsOf(ctx context.Context, schema string, accountID int64, at time.Time) (*float64, error) {
	var balance *float64
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		balance, err = tx.BalanceAsOf(ctx, accountID, at)
		return err
	})
	return balance, err
}
