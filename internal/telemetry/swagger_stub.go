//go:build !swagger

package telemetry

import "github.com/go-chi/chi/v5"

// MountSwagger is a no-op by default. Build with -tags=swagger to serve the
// Swagger UI.
func MountSwagger(r chi.Router) {}
