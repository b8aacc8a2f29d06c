// Package docs registers the worker's OpenAPI document with swag so http-swagger can serve it.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var template string

// SwaggerInfo holds the exported document metadata. The worker sets Version at startup.
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "faqlearn worker API",
	Description:      "Review queue, feedback, triggers and jobs of the FAQ learning worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  template,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
