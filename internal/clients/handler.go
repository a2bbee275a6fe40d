package clients

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/rbac"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Handler exposes client endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients", h.handleList)
	r.Get("/clients/{id}", h.handleGet)
	r.With(h.rbac.RequireAny(rbac.Writers...)).Post("/clients", h.handleCreate)
}

type createRequest struct {
	Name    string `json:"name" validate:"required"`
	Mobile  string `json:"mobile" validate:"omitempty,max=20"`
	Address string `json:"address"`
	GST     string `json:"gst" validate:"omitempty,len=15"`
	Type    string `json:"type"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), p.Business, CreateInput{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
		GST:     req.GST,
		Type:    req.Type,
		ActorID: p.UserID,
	})
	if err != nil {
		h.fail(w, "create client", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	c, err := h.service.Get(r.Context(), p.Business, id)
	if err != nil {
		h.fail(w, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := shared.RequirePrincipal(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), p.Business, ListFilter{
		Search: q.Get("q"),
		Page:   shared.ParsePage(q.Get("limit"), q.Get("offset")),
	})
	if err != nil {
		h.fail(w, "list clients", err)
		return
	}
	if list == nil {
		list = []Client{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("clients "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
