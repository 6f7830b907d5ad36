// This file triggers Go code generation from OpenAPI contracts.
// Run manually with:
//   go generate ./tools/codegen/openapi/go
//
// Generates code into /generated/go/<surface>/ following config files
// stored under /tools/codegen/openapi/go/configs/.

package main

//go:generate go tool oapi-codegen -config ./configs/admin.yaml ../../../../contracts/admin.yaml

func main() {}
