package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/ecosystem/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes the ecosystem audit over HTTP. Validation is read-only;
// repair mutates and is a distinct POST.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("ecosystem service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/ecosystem/validate", h.validateAll)
	r.Get("/ecosystem/{storeID}/validate", h.validate)
	r.Post("/ecosystem/{storeID}/repair", h.repair)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := h.storeID(w, r, logger)
	if !ok {
		return
	}

	report, err := h.svc.Validate(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, report)
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := h.storeID(w, r, logger)
	if !ok {
		return
	}

	result, err := h.svc.Repair(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, result)
}

func (h *Handler) validateAll(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	reports, err := h.svc.ValidateAll(r.Context())
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"reports": reports})
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
	if errors.Is(err, service.ErrNotFound) {
		httpx.NotFound(w, logger, "store not found")
		return
	}
	logger.Error("ecosystem handler failure", zap.Error(err))
	httpx.Internal(w, logger)
}
