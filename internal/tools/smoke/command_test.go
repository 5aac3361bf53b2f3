package smoke

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProbeReportsUnreadyDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/ready" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"DEPENDENCY_UNREADY"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := probe(context.Background(), srv.Client(), srv.URL+"/health/live"); err != nil {
		t.Fatalf("live probe: %v", err)
	}
	err := probe(context.Background(), srv.Client(), srv.URL+"/health/ready")
	if err == nil || !strings.Contains(err.Error(), "DEPENDENCY_UNREADY") {
		t.Fatalf("expected unready error, got %v", err)
	}

	details, err := Check(context.Background(), CheckConfig{BaseURL: srv.URL + "/", Client: srv.Client()})
	if err == nil {
		t.Fatal("expected check to fail on readiness")
	}
	if len(details) != 1 || details[0] != "/health/live: ok" {
		t.Fatalf("unexpected details %v", details)
	}
}
