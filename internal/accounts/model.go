package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// AccountType enumerates the five ledger account classes.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
)

// NumberRange is the numeric account-number band reserved for a type.
type NumberRange struct {
	Min int
	Max int
}

var numberRanges = map[AccountType]NumberRange{
	TypeAsset:     {Min: 1000, Max: 1999},
	TypeLiability: {Min: 2000, Max: 2999},
	TypeEquity:    {Min: 3000, Max: 3999},
	TypeRevenue:   {Min: 4000, Max: 4999},
	TypeExpense:   {Min: 5000, Max: 5999},
}

// RangeFor returns the number range of a type, reporting whether the type is known.
func RangeFor(t AccountType) (NumberRange, bool) {
	r, ok := numberRanges[t]
	return r, ok
}

// DebitIncreases reports whether a debit grows balances of this type. Asset
// and expense accounts grow on debit; liability, equity and revenue grow on
// credit.
func (t AccountType) DebitIncreases() bool {
	return t == TypeAsset || t == TypeExpense
}

// ApplyBalance applies one debit or credit amount to a balance under the
// standard sign convention and returns the new balance.
func ApplyBalance(t AccountType, balance, amount float64, isDebit bool) float64 {
	if t.DebitIncreases() == isDebit {
		return balance + amount
	}
	return balance - amount
}

// Account is one row of a tenant's chart of accounts.
type Account struct {
	ID                int64
	TenantID          uuid.UUID
	AccountNumber     string
	AccountName       string
	AccountType       AccountType
	AccountSubtype    string
	AccountDetailType string
	ParentAccountID   *int64
	OpeningBalance    float64
	CurrentBalance    float64
	CurrencyCode      string
	IsActive          bool
	IsSystemAccount   bool
	TrackTax          bool
	DefaultTaxID      *int64
	BankName          *string
	BankAccountNumber *string
	Lifecycle         shared.Lifecycle
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AccountNode is an account with its direct children, for hierarchy views.
type AccountNode struct {
	Account
	Children []Account
}

var (
	// ErrAccountNotFound indicates the account is absent or outside the tenant scope.
	ErrAccountNotFound = shared.NotFound("AccountNotFound", "account not found")
	// ErrInvalidAccountType indicates an unknown account type.
	ErrInvalidAccountType = shared.BadRequest("InvalidAccountType", "account type must be asset, liability, equity, revenue or expense")
	// ErrInvalidCurrency indicates an unrecognized ISO 4217 code.
	ErrInvalidCurrency = shared.BadRequest("InvalidCurrencyCode", "currency code is not a valid ISO 4217 code")
	// ErrDuplicateNumber indicates the account number is taken within the tenant.
	ErrDuplicateNumber = shared.Conflict("DuplicateAccountNumber", "account number already in use")
	// ErrNumberOutOfRange indicates the number falls outside the type's band.
	ErrNumberOutOfRange = shared.BadRequest("AccountNumberOutOfRange", "account number outside the range for its type")
	// ErrNumberRangeExhausted indicates no number is left in the type's band.
	ErrNumberRangeExhausted = shared.BadRequest("AccountNumberRangeExhausted", "no account numbers left in the range for this type")
	// ErrParentNotFound indicates the referenced parent account is absent.
	ErrParentNotFound = shared.NotFound("ParentAccountNotFound", "parent account not found")
	// ErrParentTypeMismatch indicates the child type differs from the parent type.
	ErrParentTypeMismatch = shared.BadRequest("ParentAccountTypeMismatch", "child account type must equal parent account type")
	// ErrSystemAccountImmutable indicates mutation of a system account.
	ErrSystemAccountImmutable = shared.Forbidden("SystemAccountImmutable", "system accounts cannot be modified or deleted")
	// ErrAccountHasChildren indicates deletion of an account that still has children.
	ErrAccountHasChildren = shared.Conflict("AccountHasChildren", "account has child accounts")
	// ErrAccountInUse indicates the account is referenced by journal lines.
	ErrAccountInUse = shared.Conflict("AccountInUse", "account is referenced by journal entries")
)
