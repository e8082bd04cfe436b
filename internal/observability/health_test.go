package observability_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cyberenchanter/insurance-protocol/internal/observability"
)

func readiness(t *testing.T, h *observability.HealthChecker) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readiness body: %v", err)
	}
	return rec.Code, body
}

func TestReadiness_GatedOnStartupFlag(t *testing.T) {
	h := observability.NewHealthChecker()

	if code, _ := readiness(t, h); code != http.StatusServiceUnavailable {
		t.Errorf("before SetReady: status = %d, want 503", code)
	}
	if h.IsReady() {
		t.Error("IsReady = true before SetReady")
	}

	h.SetReady(true)
	if code, _ := readiness(t, h); code != http.StatusOK {
		t.Errorf("after SetReady: status = %d, want 200", code)
	}
	if !h.IsReady() {
		t.Error("IsReady = false after SetReady")
	}
}

func TestReadiness_DependencyCheckFailureReported(t *testing.T) {
	h := observability.NewHealthChecker()
	h.SetReady(true)

	dbDown := true
	h.AddCheck("postgres", func() error {
		if dbDown {
			return errors.New("connection refused")
		}
		return nil
	})

	code, body := readiness(t, h)
	if code != http.StatusServiceUnavailable {
		t.Errorf("with failing check: status = %d, want 503", code)
	}
	deps, _ := body["dependencies"].(map[string]interface{})
	if deps["postgres"] != "connection refused" {
		t.Errorf("dependencies[postgres] = %v, want error message", deps["postgres"])
	}
	if h.IsReady() {
		t.Error("IsReady = true with failing dependency check")
	}

	dbDown = false
	code, body = readiness(t, h)
	if code != http.StatusOK {
		t.Errorf("with passing check: status = %d, want 200", code)
	}
	deps, _ = body["dependencies"].(map[string]interface{})
	if deps["postgres"] != "ok" {
		t.Errorf("dependencies[postgres] = %v, want ok", deps["postgres"])
	}
}
