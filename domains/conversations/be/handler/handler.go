package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/conversations/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes conversations, messages and auto-responses over HTTP.
// /webhook/whatsapp is what the messaging provider calls for each inbound
// message; the rest serve the store dashboard.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("conversations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// WebhookRoutes mounts the provider-facing endpoint. The caller identifies
// the store through the x-store-id header, not a session.
func (h *Handler) WebhookRoutes(r chi.Router) {
	r.Post("/webhook/whatsapp", h.inbound)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/conversations", h.list)
	r.Get("/conversations/{conversationID}", h.get)
	r.Post("/conversations/{conversationID}/close", h.close)
	r.Get("/conversations/{conversationID}/messages", h.listMessages)
	r.Post("/conversations/{conversationID}/messages", h.sendOutbound)
	r.Get("/auto-responses", h.listAutoResponses)
	r.Put("/auto-responses", h.upsertAutoResponse)
}

type inboundRequest struct {
	Phone        string  `json:"phone"`
	CustomerName *string `json:"customerName"`
	Body         string  `json:"body"`
	MediaPath    *string `json:"mediaPath"`
}

type outboundRequest struct {
	Body      string  `json:"body"`
	MediaPath *string `json:"mediaPath"`
}

type autoResponseRequest struct {
	TriggerKeyword string `json:"triggerKeyword"`
	ResponseText   string `json:"responseText"`
	IsEnabled      bool   `json:"isEnabled"`
}

func (h *Handler) inbound(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req inboundRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	result, err := h.svc.ProcessInbound(r.Context(), service.InboundInput{
		Phone:        req.Phone,
		CustomerName: req.CustomerName,
		Body:         req.Body,
		MediaPath:    req.MediaPath,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, result)
}

func (h *Handler) sendOutbound(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger)
	if !ok {
		return
	}

	var req outboundRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	message, err := h.svc.SendOutbound(r.Context(), id, req.Body, req.MediaPath)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, message)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger)
	if !ok {
		return
	}

	conversation, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, conversation)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	q := r.URL.Query()

	var status *string
	if raw := q.Get("status"); raw != "" {
		status = &raw
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	conversations, err := h.svc.List(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"conversations": conversations})
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger)
	if !ok {
		return
	}

	if err := h.svc.Close(r.Context(), id); err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusNoContent, nil)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.svc.ListMessages(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) listAutoResponses(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	responses, err := h.svc.ListAutoResponses(r.Context())
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"autoResponses": responses})
}

func (h *Handler) upsertAutoResponse(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req autoResponseRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	response, err := h.svc.UpsertAutoResponse(r.Context(), req.TriggerKeyword, req.ResponseText, req.IsEnabled)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, response)
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w, logger, "conversation not found")
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
		httpx.NotFound(w, logger, "conversation not found")
	case errors.Is(err, service.ErrNoStore):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeValidation,
			Title:  "No Store Selected",
			Status: http.StatusBadRequest,
			Detail: "request has no resolved store",
		})
	default:
		logger.Error("conversations handler failure", zap.Error(err))
		httpx.Internal(w, logger)
	}
}
