package history

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryHistoryRepo struct {
	changes []BalanceChange
	nextID  int64
}

func (r *memoryHistoryRepo) WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryHistoryTx{repo: r})
}

type memoryHistoryTx struct {
	repo *memoryHistoryRepo
}

func (t *memoryHistoryTx) Insert(ctx context.Context, change BalanceChange) (BalanceChange, error) {
	t.repo.nextID++
	change.ID = t.repo.nextID
	t.repo.changes = append(t.repo.changes, change)
	return change, nil
}

func (t *memoryHistoryTx) List(ctx context.Context, filters ListFilters) ([]BalanceChange, int, error) {
	var out []BalanceChange
	for _, c := range t.repo.changes {
		if filters.AccountID != nil && c.AccountID != *filters.AccountID {
			continue
		}
		if filters.JournalEntryID != nil && (c.JournalEntryID == nil || *c.JournalEntryID != *filters.JournalEntryID) {
			continue
		}
		if filters.From != nil && c.ChangeDate.Before(*filters.From) {
			continue
		}
		if filters.To != nil && c.ChangeDate.After(*filters.To) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangeDate.After(out[j].ChangeDate) })
	return out, len(out), nil
}

func (t *memoryHistoryTx) ListByAccount(ctx context.Context, accountID int64, limit int) ([]BalanceChange, error) {
	id := accountID
	out, _, err := t.List(ctx, ListFilters{AccountID: &id})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryHistoryTx) ListByJournalEntry(ctx context.Context, journalEntryID int64) ([]BalanceChange, error) {
	id := journalEntryID
	out, _, err := t.List(ctx, ListFilters{JournalEntryID: &id})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (t *memoryHistoryTx) BalanceAsOf(ctx context.Context, accountID int64, at time.Time) (*float64, error) {
	var best *BalanceChange
	for i := range t.repo.changes {
		c := &t.repo.changes[i]
		if c.AccountID != accountID || c.ChangeDate.After(at) {
			continue
		}
		if best == nil || c.ChangeDate.After(best.ChangeDate) || (c.ChangeDate.Equal(best.ChangeDate) && c.ID > best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	balance := best.NewBalance
	return &balance, nil
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func seedHistory(t *testing.T, repo *memoryHistoryRepo) {
	t.Helper()
	tx := &memoryHistoryTx{repo: repo}
	ctx := context.Background()
	records := []BalanceChange{
		{AccountID: 1, PreviousBalance: 0, NewBalance: 100, ChangeAmount: 100, ChangeType: ChangeDebit, ChangeDate: day(1)},
		{AccountID: 1, PreviousBalance: 100, NewBalance: 250, ChangeAmount: 150, ChangeType: ChangeDebit, ChangeDate: day(5)},
		{AccountID: 1, PreviousBalance: 250, NewBalance: 200, ChangeAmount: 50, ChangeType: ChangeCredit, ChangeDate: day(10)},
		{AccountID: 2, PreviousBalance: 0, NewBalance: 75, ChangeAmount: 75, ChangeType: ChangeCredit, ChangeDate: day(3)},
	}
	for _, rec := range records {
		_, err := tx.Insert(ctx, rec)
		require.NoError(t, err)
	}
}

func TestBalanceAsOfReturnsLatestPrecedingRecord(t *testing.T) {
	repo := &memoryHistoryRepo{}
	seedHistory(t, repo)
	svc := NewService(repo)
	ctx := context.Background()

	balance, err := svc.BalanceAsOf(ctx, "tenant_test", 1, day(7))
	require.NoError(t, err)
	require.NotNil(t, balance)
	require.Equal(t, 250.0, *balance)

	balance, err = svc.BalanceAsOf(ctx, "tenant_test", 1, day(5))
	require.NoError(t, err)
	require.NotNil(t, balance)
	require.Equal(t, 250.0, *balance)

	balance, err = svc.BalanceAsOf(ctx, "tenant_test", 1, day(30))
	require.NoError(t, err)
	require.NotNil(t, balance)
	require.Equal(t, 200.0, *balance)
}

func TestBalanceAsOfBeforeFirstRecordIsNil(t *testing.T) {
	repo := &memoryHistoryRepo{}
	seedHistory(t, repo)
	svc := NewService(repo)

	balance, err := svc.BalanceAsOf(context.Background(), "tenant_test", 1, day(1).Add(-time.Hour))
	require.NoError(t, err)
	require.Nil(t, balance)
}

func TestListFiltersByAccountAndDateRange(t *testing.T) {
	repo := &memoryHistoryRepo{}
	seedHistory(t, repo)
	svc := NewService(repo)

	accountID := int64(1)
	from := day(2)
	to := day(9)
	changes, total, err := svc.List(context.Background(), "tenant_test", ListFilters{AccountID: &accountID, From: &from, To: &to})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, changes, 1)
	require.Equal(t, 250.0, changes[0].NewBalance)
}

func TestListByAccountHonorsLimit(t *testing.T) {
	repo := &memoryHistoryRepo{}
	seedHistory(t, repo)
	svc := NewService(repo)

	changes, err := svc.ListByAccount(context.Background(), "tenant_test", 1, 2)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	// newest first
	require.Equal(t, 200.0, changes[0].NewBalance)
	require.Equal(t, 250.0, changes[1].NewBalance)
}
