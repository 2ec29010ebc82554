package taxes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// Service implements tax, tax group and exemption operations plus the tax
// calculation entry points.
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

// TaxInput carries fields for tax create/update.
type TaxInput struct {
	TenantID uuid.UUID
	Name     string
	Type     TaxType
	Rate     float64
	IsActive bool
}

func (in TaxInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.BadRequest("TaxNameRequired", "tax name is required")
	}
	if !in.Type.Valid() {
		return ErrInvalidTaxType
	}
	if in.Rate < 0 || in.Rate > 100 {
		return ErrInvalidTaxRate
	}
	return nil
}

// CreateTax validates and inserts a tax rule.
func (s *Service) CreateTax(ctx context.Context, schema string, input TaxInput) (Tax, error) {
	if err := input.validate(); err != nil {
		return Tax{}, err
	}
	var created Tax
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertTax(ctx, Tax{
			TenantID: input.TenantID,
			Name:     strings.TrimSpace(input.Name),
			Type:     input.Type,
			Rate:     input.Rate,
			IsActive: input.IsActive,
		})
		return err
	})
	return created, err
}

// UpdateTax replaces a tax rule's fields.
func (s *Service) UpdateTax(ctx context.Context, schema string, id int64, input TaxInput) (Tax, error) {
	if err := input.validate(); err != nil {
		return Tax{}, err
	}
	var updated Tax
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetTax(ctx, id)
		if err != nil {
			return err
		}
		existing.Name = strings.TrimSpace(input.Name)
		existing.Type = input.Type
		existing.Rate = input.Rate
		existing.IsActive = input.IsActive
		if err := tx.UpdateTax(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	return updated, err
}

// GetTax fetches one active tax.
func (s *Service) GetTax(ctx context.Context, schema string, id int64) (Tax, error) {
	var tax Tax
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		tax, err = tx.GetTax(ctx, id)
		return err
	})
	return tax, err
}

// ListTaxes returns taxes matching the filters with a total count.
func (s *Service) ListTaxes(ctx context.Context, schema string, filters shared.ListFilters) ([]Tax, int, error) {
	var taxes []Tax
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		taxes, total, err = tx.ListTaxes(ctx, filters)
		return err
	})
	return taxes, total, err
}

// DeleteTax soft-deletes a tax rule.
func (s *Service) DeleteTax(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		return tx.SoftDeleteTax(ctx, id, s.now())
	})
}

// GroupInput carries fields for tax group create/update. TaxIDs order is the
// group's compounding order.
type GroupInput struct {
	TenantID    uuid.UUID
	Name        string
	Description string
	IsActive    bool
	TaxIDs      []int64
}

// CreateGroup validates member taxes and inserts a group preserving order.
func (s *Service) CreateGroup(ctx context.Context, schema string, input GroupInput) (TaxGroup, error) {
	if strings.TrimSpace(input.Name) == "" {
		return TaxGroup{}, shared.BadRequest("TaxGroupNameRequired", "tax group name is required")
	}
	var created TaxGroup
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		if len(input.TaxIDs) > 0 {
			if _, err := tx.GetTaxes(ctx, input.TaxIDs); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.InsertGroup(ctx, TaxGroup{
			TenantID:    input.TenantID,
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			IsActive:    input.IsActive,
		}, input.TaxIDs)
		return err
	})
	return created, err
}

// UpdateGroup replaces a group's fields and, when TaxIDs is non-nil, its
// ordered membership.
func (s *Service) UpdateGroup(ctx context.Context, schema string, id int64, input GroupInput) (TaxGroup, error) {
	if strings.TrimSpace(input.Name) == "" {
		return TaxGroup{}, shared.BadRequest("TaxGroupNameRequired", "tax group name is required")
	}
	var updated TaxGroup
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if len(input.TaxIDs) > 0 {
			if _, err := tx.GetTaxes(ctx, input.TaxIDs); err != nil {
				return err
			}
		}
		existing.Name = strings.TrimSpace(input.Name)
		existing.Description = input.Description
		existing.IsActive = input.IsActive
		if err := tx.UpdateGroup(ctx, existing, input.TaxIDs); err != nil {
			return err
		}
		updated, err = tx.GetGroup(ctx, id)
		return err
	})
	return updated, err
}

// GetGroup fetches one active group with its ordered taxes.
func (s *Service) GetGroup(ctx context.Context, schema string, id int64) (TaxGroup, error) {
	var group TaxGroup
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		group, err = tx.GetGroup(ctx, id)
		return err
	})
	return group, err
}

// ListGroups returns groups matching the filters with a total count.
func (s *Service) ListGroups(ctx context.Context, schema string, filters shared.ListFilters) ([]TaxGroup, int, error) {
	var groups []TaxGroup
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		groups, total, err = tx.ListGroups(ctx, filters)
		return err
	})
	return groups, total, err
}

// DeleteGroup soft-deletes a tax group.
func (s *Service) DeleteGroup(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		return tx.SoftDeleteGroup(ctx, id, s.now())
	})
}

// ExemptionInput carries fields for exemption create/update. A nil TaxID
// exempts the contact from every tax.
type ExemptionInput struct {
	TenantID          uuid.UUID
	ContactID         int64
	TaxID             *int64
	ExemptionType     ExemptionType
	CertificateNumber string
	CertificateExpiry *time.Time
	Reason            string
	IsActive          bool
}

func (in ExemptionInput) validate() error {
	if in.ContactID <= 0 {
		return ErrInvalidExemption
	}
	if !in.ExemptionType.Valid() {
		return shared.BadRequest("InvalidExemptionType", "exemption type must be resale, non_profit, government or other")
	}
	return nil
}

// CreateExemption validates and inserts an exemption.
func (s *Service) CreateExemption(ctx context.Context, schema string, input ExemptionInput) (TaxExemption, error) {
	if err := input.validate(); err != nil {
		return TaxExemption{}, err
	}
	var created TaxExemption
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		if input.TaxID != nil {
			if _, err := tx.GetTax(ctx, *input.TaxID); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.InsertExemption(ctx, TaxExemption{
			TenantID:          input.TenantID,
			ContactID:         input.ContactID,
			TaxID:             input.TaxID,
			ExemptionType:     input.ExemptionType,
			CertificateNumber: input.CertificateNumber,
			CertificateExpiry: input.CertificateExpiry,
			Reason:            input.Reason,
			IsActive:          input.IsActive,
		})
		return err
	})
	return created, err
}

// UpdateExemption replaces an exemption's fields.
func (s *Service) UpdateExemption(ctx context.Context, schema string, id int64, input ExemptionInput) (TaxExemption, error) {
	if err := input.validate(); err != nil {
		return TaxExemption{}, err
	}
	var updated TaxExemption
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetExemption(ctx, id)
		if err != nil {
			return err
		}
		if input.TaxID != nil {
			if _, err := tx.GetTax(ctx, *input.TaxID); err != nil {
				return err
			}
		}
		existing.ContactID = input.ContactID
		existing.TaxID = input.TaxID
		existing.ExemptionType = input.ExemptionType
		existing.CertificateNumber = input.CertificateNumber
		existing.CertificateExpiry = input.CertificateExpiry
		existing.Reason = input.Reason
		existing.IsActive = input.IsActive
		if err := tx.UpdateExemption(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	return updated, err
}

// GetExemption fetches one active exemption.
func (s *Service) GetExemption(ctx context.Context, schema string, id int64) (TaxExemption, error) {
	var exemption TaxExemption
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		exemption, err = tx.GetExemption(ctx, id)
		return err
	})
	return exemption, err
}

// ListExemptions returns exemptions matching the filters with a total count.
func (s *Service) ListExemptions(ctx context.Context, schema string, filters shared.ListFilters) ([]TaxExemption, int, error) {
	var exemptions []TaxExemption
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		exemptions, total, err = tx.ListExemptions(ctx, filters)
		return err
	})
	return exemptions, total, err
}

// DeleteExemption soft-deletes an exemption.
func (s *Service) DeleteExemption(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		return tx.SoftDeleteExemption(ctx, id, s.now())
	})
}

// CalculateTax computes tax on a base amount for an ad-hoc list of tax IDs,
// ordered by type rank. A contact ID of zero skips exemption lookups.
func (s *Service) CalculateTax(ctx context.Context, schema string, baseAmount float64, taxIDs []int64, contactID int64) (Result, error) {
	if len(taxIDs) == 0 {
		return Result{}, ErrInvalidTaxIDs
	}
	var result Result
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		taxes, err := tx.GetTaxes(ctx, taxIDs)
		if err != nil {
			return err
		}
		exemptions, err := s.contactExemptions(ctx, tx, contactID)
		if err != nil {
			return err
		}
		result = Calculate(baseAmount, SortForCalculation(taxes), exemptions, s.now())
		return nil
	})
	return result, err
}

// CalculateTaxWithGroup computes tax using a group's stored tax order.
func (s *Service) CalculateTaxWithGroup(ctx context.Context, schema string, baseAmount float64, groupID int64, contactID int64) (Result, error) {
	var result Result
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if len(group.Taxes) == 0 {
			return ErrTaxGroupEmpty
		}
		exemptions, err := s.contactExemptions(ctx, tx, contactID)
		if err != nil {
			return err
		}
		result = Calculate(baseAmount, group.Taxes, exemptions, s.now())
		return nil
	})
	return result, err
}

func (s *Service) contactExemptions(ctx context.Context, tx TxRepository, contactID int64) ([]TaxExemption, error) {
	if contactID <= 0 {
		return nil, nil
	}
	return tx.ExemptionsForContact(ctx, contactID)
}
