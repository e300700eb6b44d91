//go:build !swagger

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSwaggerNotMountedByDefault(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger served without the swagger tag: %d", w.Code)
	}
}
