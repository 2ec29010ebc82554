package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// ChangeType labels the origin of a balance change.
type ChangeType string

const (
	ChangeDebit  ChangeType = "debit"
	ChangeCredit ChangeType = "credit"
)

// BalanceChange is one append-only record of an account balance mutation.
// Records are never updated or deleted after insertion.
type BalanceChange struct {
	ID                 int64
	TenantID           uuid.UUID
	AccountID          int64
	JournalEntryID     *int64
	JournalEntryLineID *int64
	PreviousBalance    float64
	NewBalance         float64
	ChangeAmount       float64
	ChangeType         ChangeType
	ChangeDate         time.Time
	Description        string
	SourceModule       string
	SourceID           string
	CreatedBy          int64
	CreatedAt          time.Time
}

// ListFilters narrows balance history queries.
type ListFilters struct {
	shared.ListFilters
	AccountID      *int64
	JournalEntryID *int64
	From           *time.Time
	To             *time.Time
}

// ErrRecordNotFound indicates the balance history record is absent.
var ErrRecordNotFound = shared.NotFound("BalanceHistoryNotFound", "balance history record not found")
