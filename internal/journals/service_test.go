package journals

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcbooks/arcbooks/internal/accounts"
	"github.com/arcbooks/arcbooks/internal/history"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// memoryLedger backs the journal, account and history fakes with one shared
// store so posting side effects are observable across all three.
type memoryLedger struct {
	accounts map[int64]accounts.Account
	history  []history.BalanceChange
	entries  map[int64]Entry
	nextID   int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{accounts: make(map[int64]accounts.Account), entries: make(map[int64]Entry)}
}

func (l *memoryLedger) addAccount(t accounts.AccountType, number string, balance float64) accounts.Account {
	l.nextID++
	a := accounts.Account{
		ID:             l.nextID,
		AccountNumber:  number,
		AccountName:    string(t) + " " + number,
		AccountType:    t,
		OpeningBalance: balance,
		CurrentBalance: balance,
		IsActive:       true,
		Lifecycle:      shared.ActiveLifecycle(),
	}
	l.accounts[a.ID] = a
	return a
}

func (l *memoryLedger) WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryJournalTx{ledger: l})
}

type memoryJournalTx struct {
	ledger *memoryLedger
}

func (t *memoryJournalTx) Accounts() accounts.TxRepository {
	return &memoryLedgerAccounts{ledger: t.ledger}
}

func (t *memoryJournalTx) History() history.TxRepository {
	return &memoryLedgerHistory{ledger: t.ledger}
}

func (t *memoryJournalTx) Insert(ctx context.Context, entry Entry, lines []LineInput) (Entry, error) {
	t.ledger.nextID++
	entry.ID = t.ledger.nextID
	entry.Lifecycle = shared.ActiveLifecycle()
	for i, line := range lines {
		t.ledger.nextID++
		entry.Lines = append(entry.Lines, Line{
			ID:             t.ledger.nextID,
			JournalEntryID: entry.ID,
			AccountID:      line.AccountID,
			LineNumber:     i + 1,
			Debit:          line.Debit,
			Credit:         line.Credit,
			Description:    line.Description,
			Memo:           line.Memo,
			ContactID:      line.ContactID,
		})
	}
	t.ledger.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryJournalTx) UpdateHeader(ctx context.Context, entry Entry) error {
	existing, ok := t.ledger.entries[entry.ID]
	if !ok || existing.Lifecycle.Deleted() {
		return ErrEntryNotFound
	}
	entry.Lines = existing.Lines
	entry.Lifecycle = existing.Lifecycle
	t.ledger.entries[entry.ID] = entry
	return nil
}

func (t *memoryJournalTx) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	entry, ok := t.ledger.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Lines = nil
	for i, line := range lines {
		t.ledger.nextID++
		entry.Lines = append(entry.Lines, Line{
			ID:             t.ledger.nextID,
			JournalEntryID: entryID,
			AccountID:      line.AccountID,
			LineNumber:     i + 1,
			Debit:          line.Debit,
			Credit:         line.Credit,
		})
	}
	t.ledger.entries[entryID] = entry
	return nil
}

func (t *memoryJournalTx) Get(ctx context.Context, id int64) (Entry, error) {
	entry, ok := t.ledger.entries[id]
	if !ok || entry.Lifecycle.Deleted() {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (t *memoryJournalTx) GetForUpdate(ctx context.Context, id int64) (Entry, error) {
	return t.Get(ctx, id)
}

func (t *memoryJournalTx) GetDeleted(ctx context.Context, id int64) (Entry, error) {
	entry, ok := t.ledger.entries[id]
	if !ok || !entry.Lifecycle.Deleted() {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (t *memoryJournalTx) List(ctx context.Context, filters ListFilters) ([]Entry, int, error) {
	var out []Entry
	for _, entry := range t.ledger.entries {
		if entry.Lifecycle.Deleted() {
			continue
		}
		if filters.Status != nil && entry.Status != *filters.Status {
			continue
		}
		out = append(out, entry)
	}
	return out, len(out), nil
}

func (t *memoryJournalTx) MaxEntrySequence(ctx context.Context) (int, error) {
	max := 0
	for _, entry := range t.ledger.entries {
		if entry.Lifecycle.Deleted() || !strings.HasPrefix(entry.EntryNumber, "JE-") {
			continue
		}
		if seq, err := strconv.Atoi(entry.EntryNumber[3:]); err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (t *memoryJournalTx) EntryNumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	for _, entry := range t.ledger.entries {
		if entry.Lifecycle.Deleted() || entry.ID == excludeID {
			continue
		}
		if entry.EntryNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryJournalTx) MarkPosted(ctx context.Context, id int64, postedBy int64, at time.Time) error {
	entry, ok := t.ledger.entries[id]
	if !ok || entry.Status != StatusDraft {
		return ErrAlreadyPosted
	}
	entry.Status = StatusPosted
	entry.PostedBy = &postedBy
	entry.PostedAt = &at
	t.ledger.entries[id] = entry
	return nil
}

func (t *memoryJournalTx) MarkVoided(ctx context.Context, id int64) error {
	entry, ok := t.ledger.entries[id]
	if !ok || entry.Status != StatusDraft {
		return ErrEntryNotFound
	}
	entry.Status = StatusVoided
	t.ledger.entries[id] = entry
	return nil
}

func (t *memoryJournalTx) MarkReversed(ctx context.Context, id int64, reversalDate time.Time) error {
	entry, ok := t.ledger.entries[id]
	if !ok || entry.Status != StatusPosted || entry.Reversed {
		return ErrAlreadyReversed
	}
	entry.Reversed = true
	entry.ReversalDate = &reversalDate
	t.ledger.entries[id] = entry
	return nil
}

func (t *memoryJournalTx) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	entry, ok := t.ledger.entries[id]
	if !ok || entry.Lifecycle.Deleted() {
		return ErrEntryNotFound
	}
	entry.Lifecycle = shared.DeletedLifecycle(at)
	t.ledger.entries[id] = entry
	return nil
}

func (t *memoryJournalTx) Restore(ctx context.Context, id int64) error {
	entry, ok := t.ledger.entries[id]
	if !ok || !entry.Lifecycle.Deleted() {
		return ErrEntryNotFound
	}
	entry.Lifecycle = shared.ActiveLifecycle()
	t.ledger.entries[id] = entry
	return nil
}

type memoryLedgerAccounts struct {
	ledger *memoryLedger
}

func (m *memoryLedgerAccounts) Insert(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	m.ledger.nextID++
	a.ID = m.ledger.nextID
	m.ledger.accounts[a.ID] = a
	return a, nil
}

func (m *memoryLedgerAccounts) Update(ctx context.Context, a accounts.Account) error {
	m.ledger.accounts[a.ID] = a
	return nil
}

func (m *memoryLedgerAccounts) Get(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := m.ledger.accounts[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return a, nil
}

func (m *memoryLedgerAccounts) GetForUpdate(ctx context.Context, id int64) (accounts.Account, error) {
	return m.Get(ctx, id)
}

func (m *memoryLedgerAccounts) GetDeleted(ctx context.Context, id int64) (accounts.Account, error) {
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func (m *memoryLedgerAccounts) MaxNumberInRange(ctx context.Context, rng accounts.NumberRange) (int, bool, error) {
	return 0, false, nil
}

func (m *memoryLedgerAccounts) NumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	return false, nil
}

func (m *memoryLedgerAccounts) ActiveChildCount(ctx context.Context, parentID int64) (int, error) {
	return 0, nil
}

func (m *memoryLedgerAccounts) LineUsageCount(ctx context.Context, accountID int64) (int, error) {
	return 0, nil
}

func (m *memoryLedgerAccounts) List(ctx context.Context, filters shared.ListFilters) ([]accounts.Account, int, error) {
	return nil, 0, nil
}

func (m *memoryLedgerAccounts) Hierarchy(ctx context.Context) ([]accounts.AccountNode, error) {
	return nil, nil
}

func (m *memoryLedgerAccounts) SetActive(ctx context.Context, id int64, active bool) error {
	return nil
}

func (m *memoryLedgerAccounts) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func (m *memoryLedgerAccounts) Restore(ctx context.Context, id int64) error {
	return nil
}

func (m *memoryLedgerAccounts) UpdateBalance(ctx context.Context, id int64, newBalance float64) error {
	a, ok := m.ledger.accounts[id]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	a.CurrentBalance = newBalance
	m.ledger.accounts[id] = a
	return nil
}

type memoryLedgerHistory struct {
	ledger *memoryLedger
}

func (m *memoryLedgerHistory) Insert(ctx context.Context, change history.BalanceChange) (history.BalanceChange, error) {
	m.ledger.nextID++
	change.ID = m.ledger.nextID
	m.ledger.history = append(m.ledger.history, change)
	return change, nil
}

func (m *memoryLedgerHistory) List(ctx context.Context, filters history.ListFilters) ([]history.BalanceChange, int, error) {
	return m.ledger.history, len(m.ledger.history), nil
}

func (m *memoryLedgerHistory) ListByAccount(ctx context.Context, accountID int64, limit int) ([]history.BalanceChange, error) {
	return nil, nil
}

func (m *memoryLedgerHistory) ListByJournalEntry(ctx context.Context, journalEntryID int64) ([]history.BalanceChange, error) {
	var out []history.BalanceChange
	for _, c := range m.ledger.history {
		if c.JournalEntryID != nil && *c.JournalEntryID == journalEntryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryLedgerHistory) BalanceAsOf(ctx context.Context, accountID int64, at time.Time) (*float64, error) {
	return nil, nil
}

const journalSchema = "tenant_test"

func newTestService(ledger *memoryLedger) *Service {
	return NewService(slog.Default(), ledger)
}

func entryDate() time.Time {
	return time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)
}

func balancedLines(cash, revenue accounts.Account, amount float64) []LineInput {
	return []LineInput{
		{AccountID: cash.ID, Debit: amount},
		{AccountID: revenue.ID, Credit: amount},
	}
}

func TestCreateComputesTotalsAndNumber(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)

	created, err := svc.Create(context.Background(), journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines:     balancedLines(cash, revenue, 500),
	})
	require.NoError(t, err)
	require.Equal(t, "JE-000001", created.EntryNumber)
	require.Equal(t, StatusDraft, created.Status)
	require.Equal(t, 500.0, created.TotalDebit)
	require.Equal(t, 500.0, created.TotalCredit)
	require.Len(t, created.Lines, 2)

	next, err := svc.Create(context.Background(), journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines:     balancedLines(cash, revenue, 100),
	})
	require.NoError(t, err)
	require.Equal(t, "JE-000002", next.EntryNumber)
}

func TestCreateRejectsInvalidLineSets(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	_, err := svc.Create(ctx, journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines:     []LineInput{{AccountID: cash.ID, Debit: 100}},
	})
	require.ErrorIs(t, err, ErrTooFewLines)

	_, err = svc.Create(ctx, journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines: []LineInput{
			{AccountID: cash.ID, Debit: 100, Credit: 100},
			{AccountID: revenue.ID, Credit: 100},
		},
	})
	require.ErrorIs(t, err, ErrLineInvalid)

	_, err = svc.Create(ctx, journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines: []LineInput{
			{AccountID: cash.ID},
			{AccountID: revenue.ID, Credit: 100},
		},
	})
	require.ErrorIs(t, err, ErrLineInvalid)

	_, err = svc.Create(ctx, journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines: []LineInput{
			{AccountID: cash.ID, Debit: 100},
			{AccountID: revenue.ID, Credit: 99.5},
		},
	})
	require.ErrorIs(t, err, ErrNotBalanced)
}

func TestCreateToleratesSubCentImbalance(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)

	_, err := svc.Create(context.Background(), journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines: []LineInput{
			{AccountID: cash.ID, Debit: 100.004},
			{AccountID: revenue.ID, Credit: 100},
		},
	})
	require.NoError(t, err)
}

func TestPostAppliesSignConventionAndHistory(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 50)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 20)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{
		EntryDate: entryDate(),
		Lines:     balancedLines(cash, revenue, 500),
	})
	require.NoError(t, err)

	posted, err := svc.Post(ctx, journalSchema, created.ID, 42)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedBy)
	require.Equal(t, int64(42), *posted.PostedBy)

	// debit grows the asset, credit grows the revenue
	require.Equal(t, 550.0, ledger.accounts[cash.ID].CurrentBalance)
	require.Equal(t, 520.0, ledger.accounts[revenue.ID].CurrentBalance)

	require.Len(t, ledger.history, 2)
	require.Equal(t, 50.0, ledger.history[0].PreviousBalance)
	require.Equal(t, 550.0, ledger.history[0].NewBalance)
	require.Equal(t, history.ChangeDebit, ledger.history[0].ChangeType)
	require.Equal(t, 20.0, ledger.history[1].PreviousBalance)
	require.Equal(t, 520.0, ledger.history[1].NewBalance)
	require.Equal(t, history.ChangeCredit, ledger.history[1].ChangeType)
}

func TestPostAlreadyPostedFails(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.NoError(t, err)

	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyPosted)
	// second attempt must not double-apply
	require.Equal(t, 100.0, ledger.accounts[cash.ID].CurrentBalance)
}

func TestVoidTransitions(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	draft, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	require.NoError(t, svc.Void(ctx, journalSchema, draft.ID, 7))
	// voiding a draft never touches balances
	require.Equal(t, 0.0, ledger.accounts[cash.ID].CurrentBalance)

	posted, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, posted.ID, 1)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Void(ctx, journalSchema, posted.ID, 7), ErrCannotVoidPosted)
}

func TestUpdateRejectsNonDraft(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.NoError(t, err)

	desc := "edited"
	_, err = svc.Update(ctx, journalSchema, created.ID, UpdateInput{Description: &desc})
	require.ErrorIs(t, err, ErrCannotModifyPosted)
}

func TestReverseSwapsLinesAndNetsBalances(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 50)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 20)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 500)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.NoError(t, err)

	reversalDate := entryDate().AddDate(0, 1, 0)
	reversal, err := svc.Reverse(ctx, journalSchema, created.ID, reversalDate, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, reversal.Status)
	require.Equal(t, TypeReversing, reversal.EntryType)
	require.True(t, reversal.IsReversing)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, created.ID, *reversal.ReversalOf)
	require.Equal(t, reversalDate, reversal.EntryDate)

	// debit and credit swapped per line
	require.Equal(t, 0.0, reversal.Lines[0].Debit)
	require.Equal(t, 500.0, reversal.Lines[0].Credit)
	require.Equal(t, 500.0, reversal.Lines[1].Debit)
	require.Equal(t, 0.0, reversal.Lines[1].Credit)

	// balances net back to pre-posting values
	require.Equal(t, 50.0, ledger.accounts[cash.ID].CurrentBalance)
	require.Equal(t, 20.0, ledger.accounts[revenue.ID].CurrentBalance)

	original, err := svc.Get(ctx, journalSchema, created.ID)
	require.NoError(t, err)
	require.True(t, original.Reversed)

	_, err = svc.Reverse(ctx, journalSchema, created.ID, reversalDate, 1)
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestReverseRequiresPostedEntry(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	draft, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, journalSchema, draft.ID, entryDate(), 1)
	require.ErrorIs(t, err, ErrNotPosted)

	_, err = svc.Reverse(ctx, journalSchema, draft.ID, time.Time{}, 1)
	require.ErrorIs(t, err, ErrReversalDateRequired)
}

func TestDeleteAndRestoreDraft(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	draft, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, journalSchema, draft.ID))

	_, err = svc.Get(ctx, journalSchema, draft.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)

	restored, err := svc.Restore(ctx, journalSchema, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, restored.Status)
}

func TestDeletePostedEntryFails(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, journalSchema, created.ID), ErrCannotModifyPosted)
}

func TestDuplicateCreatesFreshDraft(t *testing.T) {
	ledger := newMemoryLedger()
	cash := ledger.addAccount(accounts.TypeAsset, "1000", 0)
	revenue := ledger.addAccount(accounts.TypeRevenue, "4000", 0)
	svc := newTestService(ledger)
	ctx := context.Background()

	created, err := svc.Create(ctx, journalSchema, CreateInput{EntryDate: entryDate(), Lines: balancedLines(cash, revenue, 100)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, journalSchema, created.ID, 1)
	require.NoError(t, err)
	balanceAfterPost := ledger.accounts[cash.ID].CurrentBalance

	newDate := entryDate().AddDate(0, 0, 7)
	copyEntry, err := svc.Duplicate(ctx, journalSchema, created.ID, DuplicateInput{EntryDate: &newDate}, 9)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, copyEntry.Status)
	require.NotEqual(t, created.EntryNumber, copyEntry.EntryNumber)
	require.Equal(t, newDate, copyEntry.EntryDate)
	require.Len(t, copyEntry.Lines, 2)
	require.Equal(t, created.Lines[0].Debit, copyEntry.Lines[0].Debit)
	require.Nil(t, copyEntry.PostedBy)

	// duplicating has no balance effect
	require.Equal(t, balanceAfterPost, ledger.accounts[cash.ID].CurrentBalance)
}
