package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
)

// ValidateBearerViaContract satisfies operations that declare bearerAuth in
// the contract. It only checks token presence; signature verification and
// access-level checks belong to the JWT middleware that runs earlier in the
// chain.
func ValidateBearerViaContract(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}
	r := input.RequestValidationInput.Request
	if r == nil {
		return fmt.Errorf("no request in validation input")
	}
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return fmt.Errorf("missing or invalid Authorization header")
	}
	return nil
}

// NewContractValidator loads an embedded OpenAPI document and builds request
// validation middleware over it. Requests that do not match the contract
// never reach the handlers.
func NewContractValidator(contract []byte) (func(http.Handler) http.Handler, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(contract)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi contract: %w", err)
	}
	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateBearerViaContract,
		},
	}), nil
}
