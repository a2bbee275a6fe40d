package inventory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/rbac"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers inventory routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.handleListMaterials)
	r.Get("/materials/alerts", h.handleAlerts)
	r.Get("/materials/{id}", h.handleGetMaterial)
	r.Get("/materials/{id}/history", h.handleHistory)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.Writers...))
		r.Post("/materials", h.handleCreateMaterial)
		r.Patch("/materials/{id}", h.handleUpdateMaterial)
		r.Delete("/materials/{id}", h.handleDeleteMaterial)
		r.Post("/purchases", h.handlePurchase)
		r.Post("/wastages", h.handleWastage)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.RoleAdmin))
		r.Post("/adjustments", h.handleReconcile)
	})
}

type materialRequest struct {
	Type          string          `json:"type" validate:"required"`
	Size          string          `json:"size"`
	Thickness     string          `json:"thickness"`
	OpeningStock  decimal.Decimal `json:"openingStock" validate:"gte=0"`
	LowStockAlert decimal.Decimal `json:"lowStockAlert" validate:"gte=0"`
	Rate          decimal.Decimal `json:"rate" validate:"gte=0"`
}

type materialPatchRequest struct {
	Type          *string          `json:"type"`
	Size          *string          `json:"size"`
	Thickness     *string          `json:"thickness"`
	LowStockAlert *decimal.Decimal `json:"lowStockAlert"`
	Rate          *decimal.Decimal `json:"rate"`
}

type purchaseRequest struct {
	MaterialID uuid.UUID       `json:"materialId" validate:"required"`
	Date       shared.Date     `json:"date"`
	Supplier   string          `json:"supplier"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	Rate       decimal.Decimal `json:"rate" validate:"gte=0"`
}

type wastageRequest struct {
	MaterialID uuid.UUID       `json:"materialId" validate:"required"`
	Date       shared.Date     `json:"date"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	Reason     string          `json:"reason"`
}

type reconcileRequest struct {
	MaterialID uuid.UUID       `json:"materialId" validate:"required"`
	NewStock   decimal.Decimal `json:"newStock"`
	Reason     string          `json:"reason"`
	Date       shared.Date     `json:"date"`
}

func (h *Handler) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := MaterialFilter{
		Type: strings.TrimSpace(q.Get("type")),
		Page: shared.ParsePage(q.Get("limit"), q.Get("offset")),
	}
	materials, err := h.service.ListMaterials(r.Context(), p.Business, filter)
	if err != nil {
		h.fail(w, r, "list materials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orEmpty(materials))
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	materials, err := h.service.StockAlerts(r.Context(), p.Business)
	if err != nil {
		h.fail(w, r, "stock alerts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orEmpty(materials))
}

func (h *Handler) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMaterial(r.Context(), p.Business, id)
	if err != nil {
		h.fail(w, r, "get material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), p.Business, id)
	if err != nil {
		h.fail(w, r, "material history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req materialRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.CreateMaterial(r.Context(), p.Business, MaterialInput{
		Type:          req.Type,
		Size:          req.Size,
		Thickness:     req.Thickness,
		OpeningStock:  req.OpeningStock,
		LowStockAlert: req.LowStockAlert,
		Rate:          req.Rate,
		ActorID:       p.UserID,
	})
	if err != nil {
		h.fail(w, r, "create material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	var req materialPatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.UpdateMaterial(r.Context(), p.Business, id, MaterialPatch{
		Type:          req.Type,
		Size:          req.Size,
		Thickness:     req.Thickness,
		LowStockAlert: req.LowStockAlert,
		Rate:          req.Rate,
		ActorID:       p.UserID,
	})
	if err != nil {
		h.fail(w, r, "update material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMaterial(r.Context(), p.Business, id, p.UserID); err != nil {
		h.fail(w, r, "delete material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req purchaseRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	purchase, err := h.service.RecordPurchase(r.Context(), p.Business, PurchaseInput{
		MaterialID:     req.MaterialID,
		Date:           req.Date.Time,
		Supplier:       req.Supplier,
		Quantity:       req.Quantity,
		Rate:           req.Rate,
		ActorID:        p.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, r, "record purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) handleWastage(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req wastageRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	wastage, err := h.service.RecordWastage(r.Context(), p.Business, WastageInput{
		MaterialID:     req.MaterialID,
		Date:           req.Date.Time,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		ActorID:        p.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, r, "record wastage", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wastage)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reconcileRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	adj, err := h.service.Reconcile(r.Context(), p.Business, ReconcileInput{
		MaterialID: req.MaterialID,
		NewStock:   req.NewStock,
		Reason:     req.Reason,
		Date:       req.Date.Time,
		ActorID:    p.UserID,
	})
	if err != nil {
		h.fail(w, r, "reconcile", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return httpx.Validate(h.validate, target)
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request) (shared.Principal, uuid.UUID, bool) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrMaterialNotFound)
		return shared.Principal{}, uuid.Nil, false
	}
	return p, id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("inventory "+op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
