// Package api carries the embedded OpenAPI contract served and enforced by
// the HTTP adapter.
package api

import _ "embed"

//go:embed openapi.yaml
var Contract []byte
