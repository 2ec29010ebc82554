package taxes

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arcbooks/arcbooks/internal/platform/httpx"
	"github.com/arcbooks/arcbooks/internal/shared"
)

// Handler wires HTTP endpoints for taxes, tax groups and exemptions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers tax routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createTax)
	r.Get("/", h.listTaxes)
	r.Post("/calculate", h.calculate)
	r.Get("/{id}", h.getTax)
	r.Put("/{id}", h.updateTax)
	r.Delete("/{id}", h.deleteTax)

	r.Route("/groups", func(r chi.Router) {
		r.Post("/", h.createGroup)
		r.Get("/", h.listGroups)
		r.Get("/{id}", h.getGroup)
		r.Put("/{id}", h.updateGroup)
		r.Delete("/{id}", h.deleteGroup)
		r.Post("/{id}/calculate", h.calculateWithGroup)
	})

	r.Route("/exemptions", func(r chi.Router) {
		r.Post("/", h.createExemption)
		r.Get("/", h.listExemptions)
		r.Get("/{id}", h.getExemption)
		r.Put("/{id}", h.updateExemption)
		r.Delete("/{id}", h.deleteExemption)
	})
}

type taxRequest struct {
	Name     string  `json:"name" validate:"required,min=1"`
	Type     string  `json:"type" validate:"required,oneof=normal compound withholding"`
	Rate     float64 `json:"rate" validate:"gte=0,lte=100"`
	IsActive *bool   `json:"isActive"`
}

func (h *Handler) createTax(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	created, err := h.service.CreateTax(r.Context(), actor.SchemaName, TaxInput{
		TenantID: actor.TenantID,
		Name:     req.Name,
		Type:     TaxType(req.Type),
		Rate:     req.Rate,
		IsActive: active,
	})
	if err != nil {
		h.logger.Error("create tax", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateTax(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax id")
		return
	}
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.service.UpdateTax(r.Context(), actor.SchemaName, id, TaxInput{
		TenantID: actor.TenantID,
		Name:     req.Name,
		Type:     TaxType(req.Type),
		Rate:     req.Rate,
		IsActive: active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) getTax(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax id")
		return
	}
	tax, err := h.service.GetTax(r.Context(), actor.SchemaName, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tax)
}

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	filters := listFilters(r)
	taxes, total, err := h.service.ListTaxes(r.Context(), actor.SchemaName, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"taxes":      taxes,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax id")
		return
	}
	if err := h.service.DeleteTax(r.Context(), actor.SchemaName, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type calculateRequest struct {
	Amount    float64 `json:"amount" validate:"gte=0"`
	TaxIDs    []int64 `json:"taxIds" validate:"required,min=1"`
	ContactID int64   `json:"contactId"`
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req calculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.CalculateTax(r.Context(), actor.SchemaName, req.Amount, req.TaxIDs, req.ContactID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type calculateGroupRequest struct {
	Amount    float64 `json:"amount" validate:"gte=0"`
	ContactID int64   `json:"contactId"`
}

func (h *Handler) calculateWithGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	groupID, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax group id")
		return
	}
	var req calculateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	result, err := h.service.CalculateTaxWithGroup(r.Context(), actor.SchemaName, req.Amount, groupID, req.ContactID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type groupRequest struct {
	Name        string  `json:"name" validate:"required,min=1"`
	Description string  `json:"description"`
	IsActive    *bool   `json:"isActive"`
	TaxIDs      []int64 `json:"taxIds"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	created, err := h.service.CreateGroup(r.Context(), actor.SchemaName, GroupInput{
		TenantID:    actor.TenantID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    active,
		TaxIDs:      req.TaxIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax group id")
		return
	}
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.service.UpdateGroup(r.Context(), actor.SchemaName, id, GroupInput{
		TenantID:    actor.TenantID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    active,
		TaxIDs:      req.TaxIDs,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax group id")
		return
	}
	group, err := h.service.GetGroup(r.Context(), actor.SchemaName, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	filters := listFilters(r)
	groups, total, err := h.service.ListGroups(r.Context(), actor.SchemaName, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"taxGroups":  groups,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tax group id")
		return
	}
	if err := h.service.DeleteGroup(r.Context(), actor.SchemaName, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exemptionRequest struct {
	ContactID         int64   `json:"contactId" validate:"required,gt=0"`
	TaxID             *int64  `json:"taxId"`
	ExemptionType     string  `json:"exemptionType" validate:"required,oneof=resale non_profit government other"`
	CertificateNumber string  `json:"certificateNumber"`
	CertificateExpiry *string `json:"certificateExpiry"`
	Reason            string  `json:"reason"`
	IsActive          *bool   `json:"isActive"`
}

func (h *Handler) exemptionInput(actor shared.ActorContext, req exemptionRequest) (ExemptionInput, error) {
	var expiry *time.Time
	if req.CertificateExpiry != nil {
		t, err := time.Parse("2006-01-02", *req.CertificateExpiry)
		if err != nil {
			return ExemptionInput{}, shared.BadRequest("InvalidCertificateExpiry", "certificate expiry must be YYYY-MM-DD")
		}
		expiry = &t
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return ExemptionInput{
		TenantID:          actor.TenantID,
		ContactID:         req.ContactID,
		TaxID:             req.TaxID,
		ExemptionType:     ExemptionType(req.ExemptionType),
		CertificateNumber: req.CertificateNumber,
		CertificateExpiry: expiry,
		Reason:            req.Reason,
		IsActive:          active,
	}, nil
}

func (h *Handler) createExemption(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	var req exemptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := h.exemptionInput(actor, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateExemption(r.Context(), actor.SchemaName, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateExemption(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exemption id")
		return
	}
	var req exemptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := h.exemptionInput(actor, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.UpdateExemption(r.Context(), actor.SchemaName, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) getExemption(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exemption id")
		return
	}
	exemption, err := h.service.GetExemption(r.Context(), actor.SchemaName, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exemption)
}

func (h *Handler) listExemptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	filters := listFilters(r)
	exemptions, total, err := h.service.ListExemptions(r.Context(), actor.SchemaName, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"exemptions": exemptions,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) deleteExemption(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing tenant context")
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid exemption id")
		return
	}
	if err := h.service.DeleteExemption(r.Context(), actor.SchemaName, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func listFilters(r *http.Request) shared.ListFilters {
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
	return filters
}
