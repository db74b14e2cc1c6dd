// Package docs carries the OpenAPI description served at /docs/swagger.yaml.
package docs

import _ "embed"

//go:embed swagger.yaml
var Swagger []byte
