package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orderline-app/orderline/domains/accounts/be/service"
	"github.com/orderline-app/orderline/platform/go/httpx"
	platformlogging "github.com/orderline-app/orderline/platform/go/logging"
)

// Handler exposes authentication endpoints.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("accounts service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the public login route. Register is mounted separately under
// the admin router because only global operators may create accounts.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/login", h.login)
}

// AdminRoutes mounts account management for global operators.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/auth/register", h.register)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    *string `json:"fullName"`
	AccessLevel string  `json:"accessLevel"`
	StoreID     *int64  `json:"storeId"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.Error(w, logger, httpx.Problem{
				Type:   httpx.ProblemTypeAuth,
				Title:  "Unauthorized",
				Status: http.StatusUnauthorized,
				Detail: "invalid email or password",
			})
			return
		}
		logger.Error("login failure", zap.Error(err))
		httpx.Internal(w, logger)
		return
	}
	httpx.JSON(w, logger, http.StatusOK, session)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	logger := platformlogging.FromRequest(r, h.logger)

	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Validation(w, logger, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		AccessLevel: req.AccessLevel,
		StoreID:     req.StoreID,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.Error(w, logger, httpx.Problem{
				Type:   httpx.ProblemTypeConflict,
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: "email already registered",
			})
			return
		}
		httpx.Validation(w, logger, map[string][]string{"body": {err.Error()}})
		return
	}
	httpx.JSON(w, logger, http.StatusCreated, map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"accessLevel": user.AccessLevel,
		"storeId":     user.StoreID,
	})
}
