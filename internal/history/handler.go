package history

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Handler wires HTTP endpoints for balance history reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers balance history routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/account/{accountId}", h.listByAccount)
	r.Get("/account/{accountId}/as-of", h.balanceAsOf)
	r.Get("/journal-entry/{entryId}", h.listByJournalEntry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	q := r.URL.Query()
	filters := ListFilters{}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if id, err := strconv.ParseInt(q.Get("accountId"), 10, 64); err == nil {
		filters.AccountID = &id
	}
	if id, err := strconv.ParseInt(q.Get("journalEntryId"), 10, 64); err == nil {
		filters.JournalEntryID = &id
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = &from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = &to
	}

	changes, total, err := h.service.List(r.Context(), actor.SchemaName, filters)
	if err != nil {
		h.logger.Error("list balance history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"history":    changes,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) listByAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	changes, err := h.service.ListByAccount(r.Context(), actor.SchemaName, accountID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changes)
}

func (h *Handler) balanceAsOf(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("date"))
	if err != nil {
		if at, err = time.Parse("2006-01-02", r.URL.Query().Get("date")); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be RFC3339 or YYYY-MM-DD")
			return
		}
		// date-only targets include the whole day
		at = at.Add(24*time.Hour - time.Nanosecond)
	}

	balance, err := h.service.BalanceAsOf(r.Context(), actor.SchemaName, accountID, at)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accountId": accountID, "asOf": at, "balance": balance})
}

func (h *Handler) listByJournalEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal entry id")
		return
	}
	changes, err := h.service.ListByJournalEntry(r.Context(), actor.SchemaName, entryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changes)
}
