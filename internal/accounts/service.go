package accounts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// Service implements chart-of-accounts operations for one tenant at a time;
// the schema name scopes every call.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccountInput groups fields for account creation.
type CreateAccountInput struct {
	TenantID          uuid.UUID
	AccountNumber     string
	AccountName       string
	AccountType       AccountType
	AccountSubtype    string
	AccountDetailType string
	ParentAccountID   *int64
	OpeningBalance    float64
	CurrencyCode      string
	TrackTax          bool
	DefaultTaxID      *int64
	BankName          *string
	BankAccountNumber *string
}

// UpdateAccountInput patches an account; nil fields are left unchanged.
type UpdateAccountInput struct {
	AccountNumber     *string
	AccountName       *string
	AccountSubtype    *string
	AccountDetailType *string
	ParentAccountID   *int64
	ClearParent       bool
	CurrencyCode      *string
	TrackTax          *bool
	DefaultTaxID      *int64
}

// NextNumber returns the next free account number for a type: the range
// minimum when the tenant has none, otherwise highest-in-range plus one.
func (s *Service) NextNumber(ctx context.Context, schema string, accountType AccountType) (string, error) {
	var number string
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		n, err := nextNumberTx(ctx, tx, accountType)
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	return number, err
}

func nextNumberTx(ctx context.Context, tx TxRepository, accountType AccountType) (string, error) {
	rng, ok := RangeFor(accountType)
	if !ok {
		return "", ErrInvalidAccountType
	}
	max, found, err := tx.MaxNumberInRange(ctx, rng)
	if err != nil {
		return "", err
	}
	if !found {
		return strconv.Itoa(rng.Min), nil
	}
	next := max + 1
	if next > rng.Max {
		return "", ErrNumberRangeExhausted
	}
	return strconv.Itoa(next), nil
}

// Create validates and inserts a new account; a missing number is
// auto-assigned from the type's range.
func (s *Service) Create(ctx context.Context, schema string, input CreateAccountInput) (Account, error) {
	if strings.TrimSpace(input.AccountName) == "" {
		return Account{}, shared.BadRequest("AccountNameRequired", "account name is required")
	}
	rng, ok := RangeFor(input.AccountType)
	if !ok {
		return Account{}, ErrInvalidAccountType
	}
	code, err := normalizeCurrency(input.CurrencyCode)
	if err != nil {
		return Account{}, err
	}

	var created Account
	err = s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		number := strings.TrimSpace(input.AccountNumber)
		if number == "" {
			number, err = nextNumberTx(ctx, tx, input.AccountType)
			if err != nil {
				return err
			}
		} else {
			if err := validateNumberInRange(number, rng); err != nil {
				return err
			}
			taken, err := tx.NumberExists(ctx, number, 0)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateNumber
			}
		}

		if input.ParentAccountID != nil {
			parent, err := tx.Get(ctx, *input.ParentAccountID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return ErrParentNotFound
				}
				return err
			}
			if parent.AccountType != input.AccountType {
				return ErrParentTypeMismatch
			}
		}

		inserted, err := tx.Insert(ctx, Account{
			TenantID:          input.TenantID,
			AccountNumber:     number,
			AccountName:       strings.TrimSpace(input.AccountName),
			AccountType:       input.AccountType,
			AccountSubtype:    input.AccountSubtype,
			AccountDetailType: input.AccountDetailType,
			ParentAccountID:   input.ParentAccountID,
			OpeningBalance:    input.OpeningBalance,
			CurrentBalance:    input.OpeningBalance,
			CurrencyCode:      code,
			IsActive:          true,
			TrackTax:          input.TrackTax,
			DefaultTaxID:      input.DefaultTaxID,
			BankName:          input.BankName,
			BankAccountNumber: input.BankAccountNumber,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// Update patches an account. System accounts are immutable; the account type
// itself never changes, so the parent invariant is checked against the
// existing type.
func (s *Service) Update(ctx context.Context, schema string, id int64, input UpdateAccountInput) (Account, error) {
	var updated Account
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsSystemAccount {
			return ErrSystemAccountImmutable
		}

		rng, _ := RangeFor(existing.AccountType)
		if input.AccountNumber != nil {
			number := strings.TrimSpace(*input.AccountNumber)
			if err := validateNumberInRange(number, rng); err != nil {
				return err
			}
			taken, err := tx.NumberExists(ctx, number, existing.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateNumber
			}
			existing.AccountNumber = number
		}
		if input.AccountName != nil {
			if strings.TrimSpace(*input.AccountName) == "" {
				return shared.BadRequest("AccountNameRequired", "account name is required")
			}
			existing.AccountName = strings.TrimSpace(*input.AccountName)
		}
		if input.AccountSubtype != nil {
			existing.AccountSubtype = *input.AccountSubtype
		}
		if input.AccountDetailType != nil {
			existing.AccountDetailType = *input.AccountDetailType
		}
		if input.ClearParent {
			existing.ParentAccountID = nil
		} else if input.ParentAccountID != nil {
			if *input.ParentAccountID == existing.ID {
				return shared.BadRequest("AccountParentSelf", "account cannot be its own parent")
			}
			parent, err := tx.Get(ctx, *input.ParentAccountID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return ErrParentNotFound
				}
				return err
			}
			if parent.AccountType != existing.AccountType {
				return ErrParentTypeMismatch
			}
			existing.ParentAccountID = input.ParentAccountID
		}
		if input.CurrencyCode != nil {
			code, err := normalizeCurrency(*input.CurrencyCode)
			if err != nil {
				return err
			}
			existing.CurrencyCode = code
		}
		if input.TrackTax != nil {
			existing.TrackTax = *input.TrackTax
		}
		if input.DefaultTaxID != nil {
			existing.DefaultTaxID = input.DefaultTaxID
		}

		if err := tx.Update(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// Get fetches one active account.
func (s *Service) Get(ctx context.Context, schema string, id int64) (Account, error) {
	var account Account
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	return account, err
}

// List returns accounts matching the filters with a total count.
func (s *Service) List(ctx context.Context, schema string, filters shared.ListFilters) ([]Account, int, error) {
	var accounts []Account
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, total, err = tx.List(ctx, filters)
		return err
	})
	return accounts, total, err
}

// Hierarchy returns top-level active accounts with direct children.
func (s *Service) Hierarchy(ctx context.Context, schema string) ([]AccountNode, error) {
	var nodes []AccountNode
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		nodes, err = tx.Hierarchy(ctx)
		return err
	})
	return nodes, err
}

// Delete soft-deletes an account. System accounts, accounts with live
// children and accounts referenced by journal lines are protected.
func (s *Service) Delete(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsSystemAccount {
			return ErrSystemAccountImmutable
		}
		children, err := tx.ActiveChildCount(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return ErrAccountHasChildren
		}
		used, err := tx.LineUsageCount(ctx, id)
		if err != nil {
			return err
		}
		if used > 0 {
			return ErrAccountInUse
		}
		return tx.SoftDelete(ctx, id, s.now())
	})
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetDeleted(ctx, id); err != nil {
			return err
		}
		return tx.Restore(ctx, id)
	})
}

// SetActive enables or disables an account without deleting it.
func (s *Service) SetActive(ctx context.Context, schema string, id int64, active bool) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing.IsSystemAccount {
			return ErrSystemAccountImmutable
		}
		return tx.SetActive(ctx, id, active)
	})
}

func validateNumberInRange(number string, rng NumberRange) error {
	n, err := strconv.Atoi(number)
	if err != nil {
		return ErrNumberOutOfRange
	}
	if n < rng.Min || n > rng.Max {
		return ErrNumberOutOfRange
	}
	return nil
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD", nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}
