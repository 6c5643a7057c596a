package instrumentation

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryHandlerServesRegisteredCounters(t *testing.T) {
	reg := NewRegistry()
	IncTasksCreated(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	reg.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "audiocloud_domain_tasks_created_total") {
		t.Fatalf("expected tasks_created counter in output, got:\n%s", rec.Body.String())
	}
}
