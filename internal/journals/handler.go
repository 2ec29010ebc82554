package journals

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Handler wires HTTP endpoints for journal entries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers journal entry routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/restore", h.restore)
	r.Post("/{id}/reverse", h.reverse)
	r.Post("/{id}/duplicate", h.duplicate)
}

type lineRequest struct {
	AccountID   int64   `json:"accountId" validate:"required,gt=0"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description"`
	Memo        string  `json:"memo"`
	ContactID   *int64  `json:"contactId"`
}

func lineInputs(lines []lineRequest) []LineInput {
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

type createEntryRequest struct {
	EntryNumber string        `json:"entryNumber"`
	EntryDate   string        `json:"entryDate" validate:"required"`
	EntryType   string        `json:"entryType" validate:"omitempty,oneof=standard adjusting closing reversing"`
	IsAdjusting bool          `json:"isAdjusting"`
	IsClosing   bool          `json:"isClosing"`
	Description string        `json:"description"`
	Reference   string        `json:"reference"`
	Memo        string        `json:"memo"`
	SourceID    *string       `json:"sourceId"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "entry date must be YYYY-MM-DD")
		return
	}
	var sourceID *uuid.UUID
	if req.SourceID != nil {
		parsed, err := uuid.Parse(*req.SourceID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid source id")
			return
		}
		sourceID = &parsed
	}

	created, err := h.service.Create(r.Context(), actor.SchemaName, CreateInput{
		TenantID:    actor.TenantID,
		EntryNumber: req.EntryNumber,
		EntryDate:   entryDate,
		EntryType:   EntryType(req.EntryType),
		IsAdjusting: req.IsAdjusting,
		IsClosing:   req.IsClosing,
		Description: req.Description,
		Reference:   req.Reference,
		Memo:        req.Memo,
		SourceID:    sourceID,
		CreatedBy:   actor.UserID,
		Lines:       lineInputs(req.Lines),
	})
	if err != nil {
		h.logger.Error("create journal entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type updateEntryRequest struct {
	EntryNumber *string       `json:"entryNumber"`
	EntryDate   *string       `json:"entryDate"`
	EntryType   *string       `json:"entryType" validate:"omitempty,oneof=standard adjusting closing reversing"`
	IsAdjusting *bool         `json:"isAdjusting"`
	IsClosing   *bool         `json:"isClosing"`
	Description *string       `json:"description"`
	Reference   *string       `json:"reference"`
	Memo        *string       `json:"memo"`
	Lines       []lineRequest `json:"lines" validate:"omitempty,min=2,dive"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal entry id")
		return
	}
	var req updateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := UpdateInput{
		EntryNumber: req.EntryNumber,
		IsAdjusting: req.IsAdjusting,
		IsClosing:   req.IsClosing,
		Description: req.Description,
		Reference:   req.Reference,
		Memo:        req.Memo,
	}
	if req.EntryDate != nil {
		entryDate, err := parseDate(*req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "entry date must be YYYY-MM-DD")
			return
		}
		input.EntryDate = &entryDate
	}
	if req.EntryType != nil {
		t := EntryType(*req.EntryType)
		input.EntryType = &t
	}
	if req.Lines != nil {
		input.Lines = lineInputs(req.Lines)
	}

	updated, err := h.service.Update(r.Context(), actor.SchemaName, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	q := r.URL.Query()
	filters := ListFilters{ListFilters: shared.ListFilters{Search: q.Get("search")}}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if status := q.Get("status"); status != "" {
		s := Status(status)
		filters.Status = &s
	}
	if entryType := q.Get("entryType"); entryType != "" {
		t := EntryType(entryType)
		filters.EntryType = &t
	}
	if from, err := parseDate(q.Get("from")); err == nil {
		filters.From = &from
	}
	if to, err := parseDate(q.Get("to")); err == nil {
		filters.To = &to
	}

	entries, total, err := h.service.List(r.Context(), actor.SchemaName, filters)
	if err != nil {
		h.logger.Error("list journal entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"journalEntries": entries,
		"pagination":     shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor shared.ActorContext, id int64) (any, error) {
		return h.service.Get(ctx, actor.SchemaName, id)
	})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor shared.ActorContext, id int64) (any, error) {
		return h.service.Post(ctx, actor.SchemaName, id, actor.UserID)
	})
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor shared.ActorContext, id int64) (any, error) {
		return nil, h.service.Void(ctx, actor.SchemaName, id, actor.UserID)
	})
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor shared.ActorContext, id int64) (any, error) {
		return nil, h.service.Delete(ctx, actor.SchemaName, id)
	})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, actor shared.ActorContext, id int64) (any, error) {
		return h.service.Restore(ctx, actor.SchemaName, id)
	})
}

type reverseRequest struct {
	ReversalDate string `json:"reversalDate" validate:"required"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal entry id")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reversalDate, err := parseDate(req.ReversalDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "reversal date must be YYYY-MM-DD")
		return
	}

	reversal, err := h.service.Reverse(r.Context(), actor.SchemaName, id, reversalDate, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

type duplicateRequest struct {
	EntryNumber *string `json:"entryNumber"`
	EntryDate   *string `json:"entryDate"`
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal entry id")
		return
	}
	var req duplicateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	input := DuplicateInput{EntryNumber: req.EntryNumber}
	if req.EntryDate != nil {
		entryDate, err := parseDate(*req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "entry date must be YYYY-MM-DD")
			return
		}
		input.EntryDate = &entryDate
	}

	copyEntry, err := h.service.Duplicate(r.Context(), actor.SchemaName, id, input, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, copyEntry)
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(context.Context, shared.ActorContext, int64) (any, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := entryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal entry id")
		return
	}
	body, err := fn(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if body == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}

func entryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
