package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Handler wires HTTP endpoints for the chart of accounts. The middleware
// stack has already resolved the actor and tenant schema into the context.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers chart-of-accounts routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/hierarchy", h.hierarchy)
	r.Get("/next-number", h.nextNumber)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
	r.Post("/{id}/enable", h.enable)
	r.Post("/{id}/disable", h.disable)
}

type createAccountRequest struct {
	AccountNumber     string  `json:"accountNumber"`
	AccountName       string  `json:"accountName" validate:"required,min=1"`
	AccountType       string  `json:"accountType" validate:"required,oneof=asset liability equity revenue expense"`
	AccountSubtype    string  `json:"accountSubtype"`
	AccountDetailType string  `json:"accountDetailType"`
	ParentAccountID   *int64  `json:"parentAccountId"`
	OpeningBalance    float64 `json:"openingBalance"`
	CurrencyCode      string  `json:"currencyCode" validate:"omitempty,len=3"`
	TrackTax          bool    `json:"trackTax"`
	DefaultTaxID      *int64  `json:"defaultTaxId"`
	BankName          *string `json:"bankName"`
	BankAccountNumber *string `json:"bankAccountNumber"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), actor.SchemaName, CreateAccountInput{
		TenantID:          actor.TenantID,
		AccountNumber:     req.AccountNumber,
		AccountName:       req.AccountName,
		AccountType:       AccountType(req.AccountType),
		AccountSubtype:    req.AccountSubtype,
		AccountDetailType: req.AccountDetailType,
		ParentAccountID:   req.ParentAccountID,
		OpeningBalance:    req.OpeningBalance,
		CurrencyCode:      req.CurrencyCode,
		TrackTax:          req.TrackTax,
		DefaultTaxID:      req.DefaultTaxID,
		BankName:          req.BankName,
		BankAccountNumber: req.BankAccountNumber,
	})
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type updateAccountRequest struct {
	AccountNumber     *string `json:"accountNumber"`
	AccountName       *string `json:"accountName"`
	AccountSubtype    *string `json:"accountSubtype"`
	AccountDetailType *string `json:"accountDetailType"`
	ParentAccountID   *int64  `json:"parentAccountId"`
	ClearParent       bool    `json:"clearParent"`
	CurrencyCode      *string `json:"currencyCode"`
	TrackTax          *bool   `json:"trackTax"`
	DefaultTaxID      *int64  `json:"defaultTaxId"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	updated, err := h.service.Update(r.Context(), actor.SchemaName, id, UpdateAccountInput{
		AccountNumber:     req.AccountNumber,
		AccountName:       req.AccountName,
		AccountSubtype:    req.AccountSubtype,
		AccountDetailType: req.AccountDetailType,
		ParentAccountID:   req.ParentAccountID,
		ClearParent:       req.ClearParent,
		CurrencyCode:      req.CurrencyCode,
		TrackTax:          req.TrackTax,
		DefaultTaxID:      req.DefaultTaxID,
	})
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
	filters := shared.ListFilters{Search: q.Get("search")}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if active := q.Get("isActive"); active != "" {
		val := active == "true"
		filters.IsActive = &val
	}
	accounts, total, err := h.service.List(r.Context(), actor.SchemaName, filters)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accounts":   accounts,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	nodes, err := h.service.Hierarchy(r.Context(), actor.SchemaName)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nodes)
}

func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	number, err := h.service.NextNumber(r.Context(), actor.SchemaName, AccountType(r.URL.Query().Get("type")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"accountNumber": number})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, schema string, id int64) (any, error) {
		return h.service.Get(ctx, schema, id)
	})
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, schema string, id int64) (any, error) {
		return nil, h.service.Delete(ctx, schema, id)
	})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, schema string, id int64) (any, error) {
		return nil, h.service.Restore(ctx, schema, id)
	})
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, schema string, id int64) (any, error) {
		return nil, h.service.SetActive(ctx, schema, id, true)
	})
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(ctx context.Context, schema string, id int64) (any, error) {
		return nil, h.service.SetActive(ctx, schema, id, false)
	})
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int64) (any, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	body, err := fn(r.Context(), actor.SchemaName, id)
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
