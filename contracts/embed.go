// Package contracts embeds the OpenAPI documents the API server validates
// requests against. Generated Go bindings are produced from the same files by
// tools/codegen/openapi.
package contracts

import _ "embed"

//go:embed admin.yaml
var admin []byte

// Admin returns the contract covering the global operator surface.
func Admin() []byte {
	return admin
}
