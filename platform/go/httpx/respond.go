package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Problem is an RFC 7807 style error payload.
type Problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Detail string              `json:"detail,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

const (
	ProblemTypeValidation = "https://orderline.app/problems/validation-error"
	ProblemTypeNotFound   = "https://orderline.app/problems/not-found"
	ProblemTypeConflict   = "https://orderline.app/problems/conflict"
	ProblemTypeAuth       = "https://orderline.app/problems/unauthorized"
	ProblemTypeInternal   = "https://orderline.app/problems/internal-error"
)

// JSON writes v with the given status. Encoding failures are logged and the
// connection is left to the client to abandon; headers are already out.
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("encode response", zap.Error(err))
	}
}

// Error writes a problem+json payload.
func Error(w http.ResponseWriter, logger *zap.Logger, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil && logger != nil {
		logger.Error("encode problem response", zap.Error(err))
	}
}

// NotFound is the standard not-found problem.
func NotFound(w http.ResponseWriter, logger *zap.Logger, detail string) {
	Error(w, logger, Problem{Type: ProblemTypeNotFound, Title: "Not Found", Status: http.StatusNotFound, Detail: detail})
}

// Validation reports per-field input errors.
func Validation(w http.ResponseWriter, logger *zap.Logger, fields map[string][]string) {
	Error(w, logger, Problem{Type: ProblemTypeValidation, Title: "Validation Error", Status: http.StatusUnprocessableEntity, Errors: fields})
}

// Internal hides the cause from the client; callers log it themselves.
func Internal(w http.ResponseWriter, logger *zap.Logger) {
	Error(w, logger, Problem{Type: ProblemTypeInternal, Title: "Internal Server Error", Status: http.StatusInternalServerError})
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
