package taxes

import (
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// TaxType enumerates the supported tax behaviors.
type TaxType string

const (
	TypeNormal      TaxType = "normal"
	TypeCompound    TaxType = "compound"
	TypeWithholding TaxType = "withholding"
)

// Rank orders taxes for ad-hoc tax-ID lists: non-compounding taxes resolve
// before compound ones, so compound taxes see the untouched base unless the
// caller (a tax group) stores an explicit order. This ordering is load-bearing
// for historical calculations and must not be changed.
func (t TaxType) Rank() int {
	switch t {
	case TypeNormal:
		return 0
	case TypeWithholding:
		return 1
	case TypeCompound:
		return 2
	default:
		return 3
	}
}

// Valid reports whether the type is one of the known tax types.
func (t TaxType) Valid() bool {
	return t == TypeNormal || t == TypeCompound || t == TypeWithholding
}

// Tax is one tax rule with a percentage rate.
type Tax struct {
	ID        int64
	TenantID  uuid.UUID
	Name      string
	Type      TaxType
	Rate      float64
	IsActive  bool
	Lifecycle shared.Lifecycle
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaxGroup bundles taxes with an explicit application order.
type TaxGroup struct {
	ID          int64
	TenantID    uuid.UUID
	Name        string
	Description string
	IsActive    bool
	Lifecycle   shared.Lifecycle
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Taxes       []Tax
}

// ExemptionType labels why a contact is exempt.
type ExemptionType string

const (
	ExemptResale     ExemptionType = "resale"
	ExemptNonProfit  ExemptionType = "non_profit"
	ExemptGovernment ExemptionType = "government"
	ExemptOther      ExemptionType = "other"
)

// Valid reports whether the exemption type is known.
func (t ExemptionType) Valid() bool {
	switch t {
	case ExemptResale, ExemptNonProfit, ExemptGovernment, ExemptOther:
		return true
	}
	return false
}

// TaxExemption excuses a contact from one tax, or from all taxes when TaxID
// is nil.
type TaxExemption struct {
	ID                int64
	TenantID          uuid.UUID
	ContactID         int64
	TaxID             *int64
	ExemptionType     ExemptionType
	CertificateNumber string
	CertificateExpiry *time.Time
	Reason            string
	IsActive          bool
	Lifecycle         shared.Lifecycle
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppliesTo reports whether this exemption covers the given tax at the given
// time. A nil TaxID covers every tax; an expired certificate covers none.
func (e TaxExemption) AppliesTo(taxID int64, at time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.CertificateExpiry != nil && e.CertificateExpiry.Before(at) {
		return false
	}
	return e.TaxID == nil || *e.TaxID == taxID
}

var (
	// ErrTaxNotFound indicates the tax is absent or outside the tenant scope.
	ErrTaxNotFound = shared.NotFound("TaxNotFound", "tax not found")
	// ErrTaxGroupNotFound indicates the tax group is absent.
	ErrTaxGroupNotFound = shared.NotFound("TaxGroupNotFound", "tax group not found")
	// ErrExemptionNotFound indicates the exemption is absent.
	ErrExemptionNotFound = shared.NotFound("TaxExemptionNotFound", "tax exemption not found")
	// ErrInvalidTaxType indicates an unknown tax type.
	ErrInvalidTaxType = shared.BadRequest("InvalidTaxType", "tax type must be normal, compound or withholding")
	// ErrInvalidTaxRate indicates a rate outside 0-100.
	ErrInvalidTaxRate = shared.BadRequest("InvalidTaxRate", "tax rate must be between 0 and 100")
	// ErrInvalidTaxIDs indicates one or more requested tax IDs do not exist.
	ErrInvalidTaxIDs = shared.BadRequest("InvalidTaxIds", "one or more tax ids are invalid")
	// ErrTaxGroupEmpty indicates a calculation against a group with no taxes.
	ErrTaxGroupEmpty = shared.BadRequest("TaxGroupEmpty", "tax group has no taxes")
	// ErrInvalidExemption indicates a malformed exemption definition.
	ErrInvalidExemption = shared.BadRequest("InvalidTaxExemption", "invalid tax exemption")
)
