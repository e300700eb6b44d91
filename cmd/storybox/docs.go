package main

// General API documentation for swaggo. Regenerate internal/telemetry/apidocs with
// `swag init -g cmd/storybox/docs.go -o internal/telemetry/apidocs --packageName apidocs`
// and serve it by building with -tags=swagger.
//
// @title           storybox diagnostics API
// @version         1.0
// @description     Read-only diagnostics for the storybox appliance: status, health checks, events and metrics.
//
// @contact.name   storybox maintainers
//
// @BasePath  /
//
// @schemes http
