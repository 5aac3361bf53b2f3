package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/security"
)

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456")
}

func TestAuthMiddlewareMissingTokenReturnsUnauthorized(t *testing.T) {
	h := AuthMiddleware(newTestJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}
}

func TestAuthMiddlewareInvalidTokenReturnsUnauthorized(t *testing.T) {
	other := security.NewJWTManager("iss", "aud", "zyxwvutsrqponmlkjihgfedcba654321")
	token, err := other.SignAccessToken("teacher-1", domain.RoleTeacher, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	h := AuthMiddleware(newTestJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rr.Code)
	}
}

func TestAuthMiddlewareValidBearerTokenSetsIdentity(t *testing.T) {
	jwtMgr := newTestJWTManager()
	token, err := jwtMgr.SignAccessToken("student-7", domain.RoleStudent, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	var got domain.Identity
	h := AuthMiddleware(jwtMgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/attendance", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for valid token, got %d", rr.Code)
	}
	if got.ID != "student-7" || got.Role != domain.RoleStudent {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleTeacher)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name string
		id   *domain.Identity
		want int
	}{
		{name: "missing", id: nil, want: http.StatusUnauthorized},
		{name: "student", id: &domain.Identity{ID: "s", Role: domain.RoleStudent}, want: http.StatusForbidden},
		{name: "teacher", id: &domain.Identity{ID: "t", Role: domain.RoleTeacher}, want: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
			if tc.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tc.id))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}
