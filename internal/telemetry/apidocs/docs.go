// Package apidocs registers the OpenAPI 2.0 document of the diagnostics API
// with swag, in the layout `swag init` emits. It follows the @ annotations on
// the handlers in internal/telemetry and the DTOs in pkg/types; the package
// tests fail when a DTO field is missing from the definitions.
//
// Regenerate with:
//
//	swag init -g cmd/storybox/docs.go -o internal/telemetry/apidocs --packageName apidocs
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "storybox maintainers"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/events": {
            "get": {
                "description": "Most recent controller events, oldest first. Served only when an event source is configured.",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Recent controller events",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {"$ref": "#/definitions/types.EventRecord"}
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["diagnostics"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "ok", "schema": {"type": "string"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["diagnostics"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Prometheus text exposition", "schema": {"type": "string"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "200 only while the controller is idle with a loaded model.",
                "produces": ["text/plain"],
                "tags": ["diagnostics"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "ready", "schema": {"type": "string"}},
                    "503": {"description": "not ready", "schema": {"type": "string"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Read-only mirror of the controller state. It is never used for control decisions.",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Appliance status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.Status"}
                    }
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 404},
                "error": {"type": "string", "example": "not found"}
            }
        },
        "types.EventRecord": {
            "type": "object",
            "properties": {
                "cycle_id": {"type": "string", "example": "7f0c2d4e-1b2a-4c3d-9e8f-0a1b2c3d4e5f"},
                "fields": {"type": "object", "additionalProperties": true},
                "name": {"type": "string", "example": "generation_done"},
                "time_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.GenerationStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "finished_unix": {"type": "integer", "example": 1700000000},
                "id": {"type": "string", "example": "5d0c3c0a-4a0e-4d3f-9a53-1f4c6f0c9a11"},
                "steps": {"type": "integer", "example": 256},
                "tokens": {"type": "integer", "example": 256},
                "tokens_per_second": {"type": "number", "example": 18.5}
            }
        },
        "types.ModelStatus": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "example": "llama2c-q80"},
                "load_seconds": {"type": "number", "example": 1.42},
                "path": {"type": "string", "example": "/data/stories15M_q80.bin"},
                "seq_len": {"type": "integer", "example": 256},
                "state": {"type": "string", "example": "loaded"},
                "vocab_size": {"type": "integer", "example": 32000}
            }
        },
        "types.Status": {
            "type": "object",
            "properties": {
                "busy": {"type": "boolean"},
                "error": {"type": "string"},
                "generations": {"type": "integer", "example": 3},
                "last_generation": {"$ref": "#/definitions/types.GenerationStatus"},
                "model": {"$ref": "#/definitions/types.ModelStatus"},
                "prompt": {"type": "string"},
                "ready": {"type": "boolean"},
                "state": {"type": "string", "example": "idle"},
                "steps": {"type": "integer", "example": 256},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "storybox diagnostics API",
	Description:      "Read-only diagnostics for the storybox appliance: status, health checks, events and metrics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
