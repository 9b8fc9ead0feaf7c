// Package schemas embeds the JSON Schemas shipped with survcv.
package schemas

import _ "embed"

// SpecSchemaJSON is the JSON Schema for evaluation spec files.
//
//go:embed spec.schema.json
var SpecSchemaJSON string
