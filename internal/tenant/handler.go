package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Handler wires HTTP endpoints for tenant administration.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	provisioner *Provisioner
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, provisioner *Provisioner) *Handler {
	return &Handler{logger: logger, service: service, provisioner: provisioner, validator: validator.New()}
}

// MountRoutes registers tenant routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.onboard)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
	r.Post("/{id}/enable", h.enable)
	r.Post("/{id}/disable", h.disable)
}

type onboardRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	SchemaName  string `json:"schemaName" validate:"required,min=2"`
	OwnerUserID int64  `json:"ownerUserId"`
	OwnerEmail  string `json:"ownerEmail" validate:"omitempty,email"`
}

func (h *Handler) onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.provisioner.Onboard(r.Context(), OnboardInput{
		Name:        req.Name,
		SchemaName:  req.SchemaName,
		OwnerUserID: req.OwnerUserID,
		OwnerEmail:  req.OwnerEmail,
	})
	if err != nil {
		h.logger.Error("onboard tenant", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := shared.ListFilters{Search: q.Get("search")}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	tenants, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list tenants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tenants":    tenants,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.SoftDelete)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Restore)
}

func (h *Handler) enable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID) error {
		return h.service.SetActive(ctx, id, true)
	})
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID) error {
		return h.service.SetActive(ctx, id, false)
	})
}

// transition handles the id-only state changes.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	if err := fn(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
