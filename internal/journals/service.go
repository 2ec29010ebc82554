package journals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/accounts"
	"github.com/arcbooks/arcbooks/internal/history"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// AuditPort records journal actions in the shared audit log.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posted journal entries.
type MetricsPort interface {
	RecordJournalPosting()
}

// Service implements the journal entry state machine. Posting, reversal and
// their balance side effects run inside one schema-scoped transaction.
type Service struct {
	logger  *slog.Logger
	repo    Repository
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{logger: logger, repo: repo, now: time.Now}
}

// WithAudit attaches an audit sink. Audit failures are logged, never fatal.
func (s *Service) WithAudit(audit AuditPort) *Service {
	s.audit = audit
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(metrics MetricsPort) *Service {
	s.metrics = metrics
	return s
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput groups fields for journal entry creation.
type CreateInput struct {
	TenantID     uuid.UUID
	EntryNumber  string
	EntryDate    time.Time
	EntryType    EntryType
	IsAdjusting  bool
	IsClosing    bool
	Description  string
	Reference    string
	Memo         string
	SourceModule string
	SourceID     *uuid.UUID
	CreatedBy    int64
	Lines        []LineInput
}

// UpdateInput patches a draft entry; nil fields are left unchanged. A non-nil
// Lines replaces the whole line set.
type UpdateInput struct {
	EntryNumber *string
	EntryDate   *time.Time
	EntryType   *EntryType
	IsAdjusting *bool
	IsClosing   *bool
	Description *string
	Reference   *string
	Memo        *string
	Lines       []LineInput
}

func nextEntryNumber(ctx context.Context, tx TxRepository) (string, error) {
	seq, err := tx.MaxEntrySequence(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("JE-%06d", seq+1), nil
}

// Create validates the line set and persists a new draft entry. A missing
// entry number is generated from the tenant's sequence.
func (s *Service) Create(ctx context.Context, schema string, input CreateInput) (Entry, error) {
	if input.EntryType == "" {
		input.EntryType = TypeStandard
	}
	if !input.EntryType.Valid() {
		return Entry{}, ErrInvalidEntryType
	}
	totalDebit, totalCredit, err := ValidateLines(input.Lines)
	if err != nil {
		return Entry{}, err
	}
	if input.EntryDate.IsZero() {
		input.EntryDate = s.now()
	}
	sourceModule := input.SourceModule
	if sourceModule == "" {
		sourceModule = "manual"
	}

	var created Entry
	err = s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		number := strings.TrimSpace(input.EntryNumber)
		if number == "" {
			number, err = nextEntryNumber(ctx, tx)
			if err != nil {
				return err
			}
		} else {
			taken, err := tx.EntryNumberExists(ctx, number, 0)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateEntryNumber
			}
		}

		created, err = tx.Insert(ctx, Entry{
			TenantID:     input.TenantID,
			EntryNumber:  number,
			EntryDate:    input.EntryDate,
			EntryType:    input.EntryType,
			IsAdjusting:  input.IsAdjusting || input.EntryType == TypeAdjusting,
			IsClosing:    input.IsClosing || input.EntryType == TypeClosing,
			IsReversing:  input.EntryType == TypeReversing,
			Description:  input.Description,
			Reference:    input.Reference,
			Memo:         input.Memo,
			Status:       StatusDraft,
			SourceModule: sourceModule,
			SourceID:     input.SourceID,
			TotalDebit:   totalDebit,
			TotalCredit:  totalCredit,
			CreatedBy:    input.CreatedBy,
		}, input.Lines)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return created, nil
}

// Update patches a draft entry. Posted and voided entries reject edits.
func (s *Service) Update(ctx context.Context, schema string, id int64, input UpdateInput) (Entry, error) {
	var updated Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusDraft {
			return ErrCannotModifyPosted
		}

		if input.EntryNumber != nil {
			number := strings.TrimSpace(*input.EntryNumber)
			taken, err := tx.EntryNumberExists(ctx, number, existing.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateEntryNumber
			}
			existing.EntryNumber = number
		}
		if input.EntryDate != nil {
			existing.EntryDate = *input.EntryDate
		}
		if input.EntryType != nil {
			if !input.EntryType.Valid() {
				return ErrInvalidEntryType
			}
			existing.EntryType = *input.EntryType
		}
		if input.IsAdjusting != nil {
			existing.IsAdjusting = *input.IsAdjusting
		}
		if input.IsClosing != nil {
			existing.IsClosing = *input.IsClosing
		}
		if input.Description != nil {
			existing.Description = *input.Description
		}
		if input.Reference != nil {
			existing.Reference = *input.Reference
		}
		if input.Memo != nil {
			existing.Memo = *input.Memo
		}
		if input.Lines != nil {
			totalDebit, totalCredit, err := ValidateLines(input.Lines)
			if err != nil {
				return err
			}
			if err := tx.ReplaceLines(ctx, existing.ID, input.Lines); err != nil {
				return err
			}
			existing.TotalDebit = totalDebit
			existing.TotalCredit = totalCredit
		}

		if err := tx.UpdateHeader(ctx, existing); err != nil {
			return err
		}
		updated, err = tx.Get(ctx, existing.ID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return updated, nil
}

// Get fetches one active entry with its lines.
func (s *Service) Get(ctx context.Context, schema string, id int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.Get(ctx, id)
		return err
	})
	return entry, err
}

// List returns entries matching the filters with a total count.
func (s *Service) List(ctx context.Context, schema string, filters ListFilters) ([]Entry, int, error) {
	var entries []Entry
	var total int
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, total, err = tx.List(ctx, filters)
		return err
	})
	return entries, total, err
}

// Post applies a draft entry to account balances. The entry header and every
// touched account row are locked, so two concurrent posts of the same entry
// serialize and the loser sees a non-draft status.
func (s *Service) Post(ctx context.Context, schema string, id int64, postedBy int64) (Entry, error) {
	var posted Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusPosted:
			return ErrAlreadyPosted
		case StatusVoided:
			return ErrCannotModifyPosted
		}
		if _, _, err := ValidateLines(linesAsInputs(entry.Lines)); err != nil {
			return err
		}

		if err := s.applyLines(ctx, tx, entry, postedBy); err != nil {
			return err
		}
		if err := tx.MarkPosted(ctx, entry.ID, postedBy, s.now()); err != nil {
			return err
		}
		posted, err = tx.Get(ctx, entry.ID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordJournalPosting()
	}
	s.recordAudit(ctx, posted, postedBy, "journal_entry.posted")
	return posted, nil
}

// applyLines propagates each line to its account balance and appends one
// balance history record per line. Account rows are locked before the
// read-modify-write so concurrent postings to the same account cannot lose
// updates.
func (s *Service) applyLines(ctx context.Context, tx TxRepository, entry Entry, actorID int64) error {
	acctTx := tx.Accounts()
	histTx := tx.History()
	for _, line := range entry.Lines {
		account, err := acctTx.GetForUpdate(ctx, line.AccountID)
		if err != nil {
			return err
		}

		amount := line.Debit
		changeType := history.ChangeDebit
		isDebit := true
		if line.Credit > 0 {
			amount = line.Credit
			changeType = history.ChangeCredit
			isDebit = false
		}
		newBalance := accounts.ApplyBalance(account.AccountType, account.CurrentBalance, amount, isDebit)

		if err := acctTx.UpdateBalance(ctx, account.ID, newBalance); err != nil {
			return err
		}
		entryID := entry.ID
		lineID := line.ID
		sourceID := ""
		if entry.SourceID != nil {
			sourceID = entry.SourceID.String()
		}
		if _, err := histTx.Insert(ctx, history.BalanceChange{
			TenantID:           entry.TenantID,
			AccountID:          account.ID,
			JournalEntryID:     &entryID,
			JournalEntryLineID: &lineID,
			PreviousBalance:    account.CurrentBalance,
			NewBalance:         newBalance,
			ChangeAmount:       amount,
			ChangeType:         changeType,
			ChangeDate:         entry.EntryDate,
			Description:        entry.Description,
			SourceModule:       entry.SourceModule,
			SourceID:           sourceID,
			CreatedBy:          actorID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Void cancels a draft entry. Posted entries must be reversed instead.
func (s *Service) Void(ctx context.Context, schema string, id int64, actorID int64) error {
	var voided Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusPosted:
			return ErrCannotVoidPosted
		case StatusVoided:
			return ErrCannotModifyPosted
		}
		voided = entry
		return tx.MarkVoided(ctx, entry.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, voided, actorID, "journal_entry.voided")
	return nil
}

// Delete soft-deletes a draft or voided entry. Posted entries are immutable.
func (s *Service) Delete(ctx context.Context, schema string, id int64) error {
	return s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status == StatusPosted {
			return ErrCannotModifyPosted
		}
		return tx.SoftDelete(ctx, entry.ID, s.now())
	})
}

// Restore reverses a soft delete. The line set is re-validated so a restored
// draft cannot come back unbalanced, and the entry number must still be free.
func (s *Service) Restore(ctx context.Context, schema string, id int64) (Entry, error) {
	var restored Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetDeleted(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status == StatusDraft {
			if _, _, err := ValidateLines(linesAsInputs(entry.Lines)); err != nil {
				return err
			}
		}
		taken, err := tx.EntryNumberExists(ctx, entry.EntryNumber, entry.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEntryNumber
		}
		if err := tx.Restore(ctx, entry.ID); err != nil {
			return err
		}
		restored, err = tx.Get(ctx, entry.ID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return restored, nil
}

// Reverse creates and posts a new entry with debit and credit swapped per
// line, dated at the reversal date, then marks the original reversed. The
// original entry must be posted and not yet reversed.
func (s *Service) Reverse(ctx context.Context, schema string, id int64, reversalDate time.Time, actorID int64) (Entry, error) {
	if reversalDate.IsZero() {
		return Entry{}, ErrReversalDateRequired
	}
	var reversal Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if original.Status != StatusPosted {
			return ErrNotPosted
		}
		if original.Reversed {
			return ErrAlreadyReversed
		}

		number, err := nextEntryNumber(ctx, tx)
		if err != nil {
			return err
		}
		originalID := original.ID
		created, err := tx.Insert(ctx, Entry{
			TenantID:     original.TenantID,
			EntryNumber:  number,
			EntryDate:    reversalDate,
			EntryType:    TypeReversing,
			IsReversing:  true,
			ReversalOf:   &originalID,
			ReversalDate: &reversalDate,
			Description:  "Reversal of " + original.EntryNumber,
			Reference:    original.Reference,
			Memo:         original.Memo,
			Status:       StatusDraft,
			SourceModule: original.SourceModule,
			SourceID:     original.SourceID,
			TotalDebit:   original.TotalCredit,
			TotalCredit:  original.TotalDebit,
			CreatedBy:    actorID,
		}, swapLines(original.Lines))
		if err != nil {
			return err
		}

		if err := s.applyLines(ctx, tx, created, actorID); err != nil {
			return err
		}
		if err := tx.MarkPosted(ctx, created.ID, actorID, s.now()); err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, reversalDate); err != nil {
			return err
		}
		reversal, err = tx.Get(ctx, created.ID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordJournalPosting()
	}
	s.recordAudit(ctx, reversal, actorID, "journal_entry.reversed")
	return reversal, nil
}

// DuplicateInput optionally overrides fields on the copy.
type DuplicateInput struct {
	EntryNumber *string
	EntryDate   *time.Time
}

// Duplicate copies any entry into a fresh draft with its lines intact. The
// copy never inherits posting state, so it has no balance effect until posted.
func (s *Service) Duplicate(ctx context.Context, schema string, id int64, input DuplicateInput, actorID int64) (Entry, error) {
	var copyEntry Entry
	err := s.repo.WithTenant(ctx, schema, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}

		number := ""
		if input.EntryNumber != nil {
			number = strings.TrimSpace(*input.EntryNumber)
		}
		if number == "" {
			number, err = nextEntryNumber(ctx, tx)
			if err != nil {
				return err
			}
		} else {
			taken, err := tx.EntryNumberExists(ctx, number, 0)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicateEntryNumber
			}
		}
		entryDate := original.EntryDate
		if input.EntryDate != nil {
			entryDate = *input.EntryDate
		}

		copyEntry, err = tx.Insert(ctx, Entry{
			TenantID:     original.TenantID,
			EntryNumber:  number,
			EntryDate:    entryDate,
			EntryType:    original.EntryType,
			IsAdjusting:  original.IsAdjusting,
			IsClosing:    original.IsClosing,
			IsReversing:  original.IsReversing,
			Description:  original.Description,
			Reference:    original.Reference,
			Memo:         original.Memo,
			Status:       StatusDraft,
			SourceModule: original.SourceModule,
			SourceID:     original.SourceID,
			TotalDebit:   original.TotalDebit,
			TotalCredit:  original.TotalCredit,
			CreatedBy:    actorID,
		}, linesAsInputs(original.Lines))
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return copyEntry, nil
}

func (s *Service) recordAudit(ctx context.Context, entry Entry, actorID int64, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		TenantID: entry.TenantID.String(),
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta: map[string]any{
			"entryNumber": entry.EntryNumber,
			"totalDebit":  entry.TotalDebit,
			"totalCredit": entry.TotalCredit,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
