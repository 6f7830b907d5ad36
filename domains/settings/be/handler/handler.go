package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/settings/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes store settings over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("settings service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.put)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	settings, err := h.svc.Get(r.Context())
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, settings)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"unable to read request body"}})
		return
	}

	settings, err := h.svc.Put(r.Context(), json.RawMessage(body))
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, settings)
}

func (h *Handler) writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var invalid *service.InvalidPayloadError
	switch {
	case errors.As(err, &invalid):
		httpx.Validation(w, logger, map[string][]string{"payload": {invalid.Reason}})
	case errors.Is(err, service.ErrNoStore):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeValidation,
			Title:  "No Store Selected",
			Status: http.StatusBadRequest,
			Detail: "request has no resolved store",
		})
	default:
		logger.Error("settings handler failure", zap.Error(err))
		httpx.Internal(w, logger)
	}
}
