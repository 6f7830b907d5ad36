package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/orders/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes orders and customers over HTTP. Every route requires a
// resolved store on the request context.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("orders service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{orderID}", h.get)
	r.Patch("/orders/{orderID}/status", h.updateStatus)
	r.Get("/customers", h.searchCustomers)
	r.Get("/customers/{customerID}", h.getCustomer)
	r.Patch("/customers/{customerID}/address", h.updateAddress)
}

type createRequest struct {
	CustomerPhone string        `json:"customerPhone"`
	CustomerName  *string       `json:"customerName"`
	Notes         *string       `json:"notes"`
	Items         []itemRequest `json:"items"`
}

type itemRequest struct {
	ProductID      *int64 `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type addressRequest struct {
	Address string `json:"address"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	items := make([]service.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.ItemInput{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	order, err := h.svc.Create(r.Context(), service.CreateInput{
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Notes:         req.Notes,
		Items:         items,
	})
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "orderID")
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, order)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "orderID")
	if !ok {
		return
	}

	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	q := r.URL.Query()

	opts := service.ListOptions{}
	if status := q.Get("status"); status != "" {
		opts.Status = &status
	}
	if phone := q.Get("customerPhone"); phone != "" {
		opts.CustomerPhone = &phone
	}
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))

	orders, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "customerID")
	if !ok {
		return
	}

	customer, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, customer)
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	id, ok := pathID(w, r, logger, "customerID")
	if !ok {
		return
	}

	var req addressRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	customer, err := h.svc.UpdateCustomerAddress(r.Context(), id, req.Address)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, customer)
}

func (h *Handler) searchCustomers(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	customers, err := h.svc.SearchCustomers(r.Context(), q.Get("search"), limit)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, map[string]any{"customers": customers})
}

func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.NotFound(w, logger, "resource not found")
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
		httpx.NotFound(w, logger, "order not found")
	case errors.Is(err, service.ErrInvalidTransition):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "status transition not allowed",
		})
	case errors.Is(err, service.ErrNoStore):
		httpx.Error(w, logger, httpx.Problem{
			Type:   httpx.ProblemTypeValidation,
			Title:  "No Store Selected",
			Status: http.StatusBadRequest,
			Detail: "request has no resolved store",
		})
	default:
		logger.Error("orders handler failure", zap.Error(err))
		httpx.Internal(w, logger)
	}
}
