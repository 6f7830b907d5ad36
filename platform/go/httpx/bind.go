package httpx

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// BindQuery binds one query parameter into dst using OpenAPI form-style
// semantics, matching what generated server bindings do. An absent parameter
// leaves dst untouched; a malformed value returns an error.
func BindQuery(r *http.Request, name string, dst any) error {
	return runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst)
}
