package accounts

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcbooks/arcbooks/internal/shared"
)

type memoryAccountRepo struct {
	accounts map[int64]Account
	usage    map[int64]int
	nextID   int64
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[int64]Account), usage: make(map[int64]int)}
}

func (r *memoryAccountRepo) WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAccountTx{repo: r})
}

type memoryAccountTx struct {
	repo *memoryAccountRepo
}

func (t *memoryAccountTx) Insert(ctx context.Context, a Account) (Account, error) {
	t.repo.nextID++
	a.ID = t.repo.nextID
	a.Lifecycle = shared.ActiveLifecycle()
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memoryAccountTx) Update(ctx context.Context, a Account) error {
	existing, ok := t.repo.accounts[a.ID]
	if !ok || existing.Lifecycle.Deleted() {
		return ErrAccountNotFound
	}
	t.repo.accounts[a.ID] = a
	return nil
}

func (t *memoryAccountTx) Get(ctx context.Context, id int64) (Account, error) {
	a, ok := t.repo.accounts[id]
	if !ok || a.Lifecycle.Deleted() {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryAccountTx) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return t.Get(ctx, id)
}

func (t *memoryAccountTx) GetDeleted(ctx context.Context, id int64) (Account, error) {
	a, ok := t.repo.accounts[id]
	if !ok || !a.Lifecycle.Deleted() {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryAccountTx) MaxNumberInRange(ctx context.Context, rng NumberRange) (int, bool, error) {
	max := 0
	found := false
	for _, a := range t.repo.accounts {
		if a.Lifecycle.Deleted() {
			continue
		}
		n, err := strconv.Atoi(a.AccountNumber)
		if err != nil || n < rng.Min || n > rng.Max {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	return max, found, nil
}

func (t *memoryAccountTx) NumberExists(ctx context.Context, number string, excludeID int64) (bool, error) {
	for _, a := range t.repo.accounts {
		if a.Lifecycle.Deleted() || a.ID == excludeID {
			continue
		}
		if a.AccountNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryAccountTx) ActiveChildCount(ctx context.Context, parentID int64) (int, error) {
	count := 0
	for _, a := range t.repo.accounts {
		if a.Lifecycle.Deleted() {
			continue
		}
		if a.ParentAccountID != nil && *a.ParentAccountID == parentID {
			count++
		}
	}
	return count, nil
}

func (t *memoryAccountTx) LineUsageCount(ctx context.Context, accountID int64) (int, error) {
	return t.repo.usage[accountID], nil
}

func (t *memoryAccountTx) List(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	var out []Account
	for _, a := range t.repo.accounts {
		if a.Lifecycle.Deleted() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, len(out), nil
}

func (t *memoryAccountTx) Hierarchy(ctx context.Context) ([]AccountNode, error) {
	byParent := make(map[int64][]Account)
	var roots []Account
	for _, a := range t.repo.accounts {
		if a.Lifecycle.Deleted() || !a.IsActive {
			continue
		}
		if a.ParentAccountID != nil {
			byParent[*a.ParentAccountID] = append(byParent[*a.ParentAccountID], a)
		} else {
			roots = append(roots, a)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].AccountNumber < roots[j].AccountNumber })
	var nodes []AccountNode
	for _, root := range roots {
		nodes = append(nodes, AccountNode{Account: root, Children: byParent[root.ID]})
	}
	return nodes, nil
}

func (t *memoryAccountTx) SetActive(ctx context.Context, id int64, active bool) error {
	a, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	a.IsActive = active
	t.repo.accounts[id] = a
	return nil
}

func (t *memoryAccountTx) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	a, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	a.Lifecycle = shared.DeletedLifecycle(at)
	t.repo.accounts[id] = a
	return nil
}

func (t *memoryAccountTx) Restore(ctx context.Context, id int64) error {
	a, err := t.GetDeleted(ctx, id)
	if err != nil {
		return err
	}
	a.Lifecycle = shared.ActiveLifecycle()
	t.repo.accounts[id] = a
	return nil
}

func (t *memoryAccountTx) UpdateBalance(ctx context.Context, id int64, newBalance float64) error {
	a, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	a.CurrentBalance = newBalance
	t.repo.accounts[id] = a
	return nil
}

const testSchema = "tenant_test"

func TestNextNumberFreshTenantReturnsRangeMin(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	number, err := svc.NextNumber(context.Background(), testSchema, TypeAsset)
	require.NoError(t, err)
	require.Equal(t, "1000", number)
}

func TestNextNumberIncrementsHighestInRange(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset, AccountNumber: "1005"})
	require.NoError(t, err)
	// liability numbers must not affect the asset range
	_, err = svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Loans", AccountType: TypeLiability, AccountNumber: "2500"})
	require.NoError(t, err)

	number, err := svc.NextNumber(ctx, testSchema, TypeAsset)
	require.NoError(t, err)
	require.Equal(t, "1006", number)
}

func TestNextNumberRangeExhausted(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Last Asset", AccountType: TypeAsset, AccountNumber: "1999"})
	require.NoError(t, err)

	_, err = svc.NextNumber(ctx, testSchema, TypeAsset)
	require.ErrorIs(t, err, ErrNumberRangeExhausted)
}

func TestCreateAutoAssignsNumber(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	created, err := svc.Create(context.Background(), testSchema, CreateAccountInput{AccountName: "Sales", AccountType: TypeRevenue})
	require.NoError(t, err)
	require.Equal(t, "4000", created.AccountNumber)
	require.Equal(t, created.OpeningBalance, created.CurrentBalance)
}

func TestCreateRejectsDuplicateNumber(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset, AccountNumber: "1000"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Petty Cash", AccountType: TypeAsset, AccountNumber: "1000"})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestCreateRejectsNumberOutsideTypeRange(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	_, err := svc.Create(context.Background(), testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset, AccountNumber: "2500"})
	require.ErrorIs(t, err, ErrNumberOutOfRange)
}

func TestCreateRejectsParentTypeMismatch(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	ctx := context.Background()

	parent, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Current Assets", AccountType: TypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Sales", AccountType: TypeRevenue, ParentAccountID: &parent.ID})
	require.ErrorIs(t, err, ErrParentTypeMismatch)
}

func TestSystemAccountImmutable(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)
	ctx := context.Background()

	tx := &memoryAccountTx{repo: repo}
	system, err := tx.Insert(ctx, Account{AccountName: "Retained Earnings", AccountType: TypeEquity, AccountNumber: "3000", IsActive: true, IsSystemAccount: true})
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.Update(ctx, testSchema, system.ID, UpdateAccountInput{AccountName: &name})
	require.ErrorIs(t, err, ErrSystemAccountImmutable)

	require.ErrorIs(t, svc.Delete(ctx, testSchema, system.ID), ErrSystemAccountImmutable)
	require.ErrorIs(t, svc.SetActive(ctx, testSchema, system.ID, false), ErrSystemAccountImmutable)
}

func TestDeleteWithChildrenConflictsUntilChildrenGone(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	ctx := context.Background()

	parent, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Current Assets", AccountType: TypeAsset})
	require.NoError(t, err)
	child, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset, ParentAccountID: &parent.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, testSchema, parent.ID), ErrAccountHasChildren)

	require.NoError(t, svc.Delete(ctx, testSchema, child.ID))
	require.NoError(t, svc.Delete(ctx, testSchema, parent.ID))
}

func TestDeleteAccountInUseConflicts(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset})
	require.NoError(t, err)
	repo.usage[account.ID] = 3

	require.ErrorIs(t, svc.Delete(ctx, testSchema, account.ID), ErrAccountInUse)
}

func TestRestoreRequiresDeletedAccount(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	ctx := context.Background()

	account, err := svc.Create(ctx, testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Restore(ctx, testSchema, account.ID), ErrAccountNotFound)
	require.NoError(t, svc.Delete(ctx, testSchema, account.ID))
	require.NoError(t, svc.Restore(ctx, testSchema, account.ID))
}

func TestCreateRejectsUnknownCurrency(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())
	_, err := svc.Create(context.Background(), testSchema, CreateAccountInput{AccountName: "Cash", AccountType: TypeAsset, CurrencyCode: "ZZZ"})
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestApplyBalanceSignConvention(t *testing.T) {
	cases := []struct {
		accountType AccountType
		isDebit     bool
		want        float64
	}{
		{TypeAsset, true, 150},
		{TypeAsset, false, 50},
		{TypeExpense, true, 150},
		{TypeExpense, false, 50},
		{TypeLiability, true, 50},
		{TypeLiability, false, 150},
		{TypeEquity, true, 50},
		{TypeEquity, false, 150},
		{TypeRevenue, true, 50},
		{TypeRevenue, false, 150},
	}
	for _, tc := range cases {
		got := ApplyBalance(tc.accountType, 100, 50, tc.isDebit)
		if got != tc.want {
			t.Fatalf("ApplyBalance(%s, debit=%v) = %v, want %v", tc.accountType, tc.isDebit, got, tc.want)
		}
	}
}
