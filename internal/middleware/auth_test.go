package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/user"
)

type staticAuth map[string]user.User

func (a staticAuth) Authenticate(_ context.Context, key string) (user.User, error) {
	u, ok := a[key]
	if !ok {
		return user.User{}, errors.New("unknown token")
	}
	return u, nil
}

var auth = staticAuth{
	"member": {ID: "u1", Username: "alice"},
	"admin":  {ID: "u2", Username: "root", IsStaff: true},
}

func whoami(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(u.Username))
}

func serve(h http.Handler, header string, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAttachesUser(t *testing.T) {
	h := middleware.Authenticate(auth)(http.HandlerFunc(whoami))

	cases := []struct {
		header, target string
		status         int
		body           string
	}{
		{"", "/", http.StatusOK, "anonymous"},
		{"Token member", "/", http.StatusOK, "alice"},
		{"token admin", "/", http.StatusOK, "root"},
		{"", "/?token=member", http.StatusOK, "alice"},
		{"Bearer member", "/", http.StatusUnauthorized, ""},
		{"Token", "/", http.StatusUnauthorized, ""},
		{"Token   ", "/", http.StatusUnauthorized, ""},
		{"Token nope", "/", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		rec := serve(h, tc.header, tc.target)
		if rec.Code != tc.status {
			t.Fatalf("%q %s: expected status %d, got %d", tc.header, tc.target, tc.status, rec.Code)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%q %s: expected body %q, got %q", tc.header, tc.target, tc.body, rec.Body.String())
		}
	}
}

func TestRequireUserAndStaff(t *testing.T) {
	member := middleware.Authenticate(auth)(middleware.RequireUser(http.HandlerFunc(whoami)))
	staff := middleware.Authenticate(auth)(middleware.RequireStaff(http.HandlerFunc(whoami)))

	if rec := serve(member, "", "/"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous user route, got %d", rec.Code)
	}
	if rec := serve(member, "Token member", "/"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for member, got %d", rec.Code)
	}
	if rec := serve(staff, "Token member", "/"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-staff, got %d", rec.Code)
	}
	if rec := serve(staff, "Token admin", "/"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := middleware.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ais", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("expected preflight short-circuit, got %d called=%v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
