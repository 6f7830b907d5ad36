package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/stores/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes the store registry over HTTP. All routes are global-admin
// operations and run against the master database only.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("stores service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/stores", h.list)
	r.Post("/stores", h.create)
	r.Get("/stores/{storeID}", h.get)
	r.Delete("/stores/{storeID}", h.deactivate)
	r.Post("/stores/{storeID}/provision", h.provision)
	r.Get("/system/metrics", h.metrics)
}

type createRequest struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	WhatsAppNumber *string `json:"whatsappNumber"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	store, err := h.svc.Create(r.Context(), service.CreateInput{
		Name:           req.Name,
		Slug:           req.Slug,
		WhatsAppNumber: req.WhatsAppNumber,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, store)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var includeInactive bool
	if err := httpx.BindQuery(r, "includeInactive", &includeInactive); err != nil {
		httpx.Validation(w, logger, map[string][]string{"includeInactive": {"must be a boolean"}})
		return
	}

	stores, err := h.svc.List(r.Context(), includeInactive)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"stores": stores})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := h.storeID(w, r, logger)
	if !ok {
		return
	}

	store, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, store)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := h.storeID(w, r, logger)
	if !ok {
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusNoContent, nil)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := h.storeID(w, r, logger)
	if !ok {
		return
	}

	store, err := h.svc.Provision(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, store)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	m, err := h.svc.Metrics(r.Context())
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, m)
}

func (h *Handler) storeID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w, logger, "store not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httpx.Validation(w, logger, validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		httpx.NotFound(w, logger, "store not found")
	case errors.Is(err, service.ErrConflictSlug):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "store slug already exists",
		})
	default:
		logger.Error("stores handler failure", zap.Error(err))
		httpx.Internal(w, logger)
	}
}
