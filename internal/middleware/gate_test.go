package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/modboard/internal/model"
)

func newTestGate() func(http.Handler) http.Handler {
	return NewAccessGate(AccessGateConfig{
		GuardedPrefixes: []string{"/admin"},
		SignInPath:      "/auth/google/login",
		Resource:        "admin_panel",
		Action:          "view",
	}, adminOnly())
}

func TestAccessGate_AnonymousRedirectsToSignIn(t *testing.T) {
	handler := newTestGate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for anonymous request")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/posts?page=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	want := "/auth/google/login?next=%2Fadmin%2Fposts%3Fpage%3D2"
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestAccessGate_NonAdminRedirectsHome(t *testing.T) {
	handler := newTestGate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for non-admin")
	}))

	req := withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), newTestSession("user@example.com", model.RoleUser))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
}

func TestAccessGate_AdminPasses(t *testing.T) {
	handler := newTestGate()(okHandler())

	req := withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), newTestSession("admin@example.com", model.RoleAdmin))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAccessGate_UnguardedPathPasses(t *testing.T) {
	handler := newTestGate()(okHandler())

	for _, path := range []string{"/", "/api/posts", "/administrator"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestIsGuardedPath(t *testing.T) {
	tests := []struct {
		path     string
		prefixes []string
		want     bool
	}{
		{"/admin", []string{"/admin"}, true},
		{"/admin/", []string{"/admin"}, true},
		{"/admin/posts/1", []string{"/admin/"}, true},
		{"/administrator", []string{"/admin"}, false},
		{"/", []string{"/admin"}, false},
		{"/settings", []string{"/admin", "/settings"}, true},
		{"/anything", []string{"/"}, true},
		{"/admin", nil, false},
	}

	for _, tt := range tests {
		if got := IsGuardedPath(tt.path, tt.prefixes); got != tt.want {
			t.Errorf("IsGuardedPath(%q, %v) = %v, want %v", tt.path, tt.prefixes, got, tt.want)
		}
	}
}
