package journals

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// Status is the journal entry state. Draft entries carry no balance effect;
// posting applies the entry to account balances; voided is terminal.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoided Status = "voided"
)

// EntryType classifies an entry.
type EntryType string

const (
	TypeStandard  EntryType = "standard"
	TypeAdjusting EntryType = "adjusting"
	TypeClosing   EntryType = "closing"
	TypeReversing EntryType = "reversing"
)

// Valid reports whether the entry type is known.
func (t EntryType) Valid() bool {
	switch t {
	case TypeStandard, TypeAdjusting, TypeClosing, TypeReversing:
		return true
	}
	return false
}

// BalanceTolerance is the maximum debit/credit difference treated as equal.
const BalanceTolerance = 0.01

// Entry is a double-entry journal entry header with its lines.
type Entry struct {
	ID           int64
	TenantID     uuid.UUID
	EntryNumber  string
	EntryDate    time.Time
	EntryType    EntryType
	IsAdjusting  bool
	IsClosing    bool
	IsReversing  bool
	Reversed     bool
	ReversalOf   *int64
	ReversalDate *time.Time
	Description  string
	Reference    string
	Memo         string
	Status       Status
	SourceModule string
	SourceID     *uuid.UUID
	TotalDebit   float64
	TotalCredit  float64
	ApprovedBy   *int64
	ApprovedAt   *time.Time
	PostedBy     *int64
	PostedAt     *time.Time
	CreatedBy    int64
	Lifecycle    shared.Lifecycle
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []Line
}

// Line is one debit-or-credit leg of a journal entry.
type Line struct {
	ID             int64
	JournalEntryID int64
	AccountID      int64
	LineNumber     int
	Debit          float64
	Credit         float64
	Description    string
	Memo           string
	ContactID      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LineInput carries one line for create/update.
type LineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
	Memo        string
	ContactID   *int64
}

var (
	// ErrEntryNotFound indicates the entry is absent or outside the tenant scope.
	ErrEntryNotFound = shared.NotFound("JournalEntryNotFound", "journal entry not found")
	// ErrNotBalanced indicates total debits and credits differ beyond tolerance.
	ErrNotBalanced = shared.BadRequest("JournalEntryNotBalanced", "journal entry debits and credits are not balanced")
	// ErrLineInvalid indicates a line violating the debit-XOR-credit rule.
	ErrLineInvalid = shared.BadRequest("JournalEntryLineInvalid", "each line must have exactly one of debit or credit greater than zero")
	// ErrTooFewLines indicates an entry with fewer than two lines.
	ErrTooFewLines = shared.BadRequest("JournalEntryTooFewLines", "journal entry requires at least two lines")
	// ErrAlreadyPosted indicates posting an entry that is already posted.
	ErrAlreadyPosted = shared.Conflict("JournalEntryAlreadyPosted", "journal entry is already posted")
	// ErrCannotModifyPosted indicates editing or deleting a non-draft entry.
	ErrCannotModifyPosted = shared.Conflict("JournalEntryCannotModifyPosted", "posted or voided journal entries cannot be modified")
	// ErrCannotVoidPosted indicates voiding a posted entry directly.
	ErrCannotVoidPosted = shared.Forbidden("JournalEntryCannotVoidPosted", "posted journal entries must be reversed, not voided")
	// ErrNotPosted indicates reversing an entry that was never posted.
	ErrNotPosted = shared.Forbidden("JournalEntryNotPosted", "only posted journal entries can be reversed")
	// ErrAlreadyReversed indicates reversing an entry a second time.
	ErrAlreadyReversed = shared.Forbidden("JournalEntryAlreadyReversed", "journal entry has already been reversed")
	// ErrReversalDateRequired indicates a reversal without a date.
	ErrReversalDateRequired = shared.BadRequest("JournalEntryReversalDateRequired", "reversal date is required")
	// ErrDuplicateEntryNumber indicates the entry number is taken within the tenant.
	ErrDuplicateEntryNumber = shared.Conflict("JournalEntryDuplicateNumber", "journal entry number already in use")
	// ErrInvalidEntryType indicates an unknown entry type.
	ErrInvalidEntryType = shared.BadRequest("InvalidJournalEntryType", "entry type must be standard, adjusting, closing or reversing")
)

// ValidateLines enforces the double-entry invariants: at least two lines,
// exactly one positive side per line, and equal debit/credit totals within
// tolerance. It returns the computed totals for the header.
func ValidateLines(lines []LineInput) (totalDebit, totalCredit float64, err error) {
	if len(lines) < 2 {
		return 0, 0, ErrTooFewLines
	}
	for _, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return 0, 0, ErrLineInvalid
		}
		hasDebit := line.Debit > 0
		hasCredit := line.Credit > 0
		if hasDebit == hasCredit {
			return 0, 0, ErrLineInvalid
		}
		totalDebit += line.Debit
		totalCredit += line.Credit
	}
	if math.Abs(totalDebit-totalCredit) > BalanceTolerance {
		return 0, 0, ErrNotBalanced
	}
	return totalDebit, totalCredit, nil
}

// linesAsInputs converts stored lines back to inputs, for re-validation and
// for building reversal/duplicate entries.
func linesAsInputs(lines []Line) []LineInput {
	out := make([]LineInput, len(lines))
	for i, l := range lines {
		out[i] = LineInput{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			Memo:        l.Memo,
			ContactID:   l.ContactID,
		}
	}
	return out
}

// swapLines returns the lines with debit and credit exchanged, so posting
// them cancels the original entry's ledger effect.
func swapLines(lines []Line) []LineInput {
	out := linesAsInputs(lines)
	for i := range out {
		out[i].Debit, out[i].Credit = out[i].Credit, out[i].Debit
	}
	return out
}
