package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/modboard/internal/middleware"
	"github.com/hitoshi/modboard/internal/model"
)

func newTestAuthHandler(svc *mockAuthService, sessions *mockSessionWriter) *AuthHandler {
	return NewAuthHandler(svc, sessions, AuthHandlerConfig{BaseURL: "https://board.example.com"})
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login_SetsStateAndRedirects(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		getLoginURLFn: func(ctx context.Context, state string) (string, error) {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
		},
	}
	h := newTestAuthHandler(svc, &mockSessionWriter{})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login?next=%2Fadmin", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if !strings.HasPrefix(resp.Header.Get("Location"), "https://accounts.google.com/") {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}

	state := responseCookie(resp, oauthStateCookie)
	if state == nil || state.Value != gotState || len(gotState) != 32 {
		t.Fatalf("state cookie = %v, want value %q", state, gotState)
	}
	if !state.HttpOnly {
		t.Error("state cookie should be HttpOnly")
	}

	next := responseCookie(resp, oauthNextCookie)
	if next == nil {
		t.Fatal("expected next cookie")
	}
	if v, _ := url.QueryUnescape(next.Value); v != "/admin" {
		t.Errorf("next = %q, want /admin", v)
	}
}

func TestAuthHandler_Login_IgnoresUnsafeNext(t *testing.T) {
	for _, next := range []string{"https://evil.example.net/", "//evil.example.net", `/\evil`} {
		h := newTestAuthHandler(&mockAuthService{}, &mockSessionWriter{})
		w := httptest.NewRecorder()
		h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login?next="+url.QueryEscape(next), nil))

		if c := responseCookie(w.Result(), oauthNextCookie); c != nil {
			t.Errorf("next %q should be ignored, got cookie %q", next, c.Value)
		}
	}
}

func TestAuthHandler_Login_DiscoveryFailureReturns502(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(ctx context.Context, state string) (string, error) {
			return "", errors.New("discovery failed")
		},
	}
	h := newTestAuthHandler(svc, &mockSessionWriter{})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestAuthHandler_Callback_StateMismatch(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			t.Fatal("HandleCallback should not be called on state mismatch")
			return nil, nil
		},
	}
	h := newTestAuthHandler(svc, &mockSessionWriter{})

	tests := []struct {
		name   string
		query  string
		cookie string
	}{
		{"no cookie", "?code=c&state=s", ""},
		{"mismatch", "?code=c&state=s", "other"},
		{"empty state", "?code=c&state=", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestAuthHandler_Callback_Success(t *testing.T) {
	session := &model.Session{
		Name:      "Admin",
		Email:     "admin@example.com",
		Role:      model.RoleAdmin,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return session, nil
		},
	}
	sessions := &mockSessionWriter{}
	h := newTestAuthHandler(svc, sessions)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	req.AddCookie(&http.Cookie{Name: oauthNextCookie, Value: url.QueryEscape("/admin")})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "https://board.example.com/admin" {
		t.Errorf("Location = %q, want https://board.example.com/admin", loc)
	}
	if len(sessions.written) != 1 || sessions.written[0] != session {
		t.Errorf("session should be written once, got %v", sessions.written)
	}
	if c := responseCookie(w.Result(), oauthStateCookie); c == nil || c.MaxAge >= 0 {
		t.Error("state cookie should be cleared")
	}
}

func TestAuthHandler_Callback_ExchangeFailureReturns401(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.Session, error) {
			return nil, errors.New("email not verified")
		},
	}
	sessions := &mockSessionWriter{}
	h := newTestAuthHandler(svc, sessions)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if len(sessions.written) != 0 {
		t.Error("no session should be written on failure")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	sessions := &mockSessionWriter{}
	h := newTestAuthHandler(&mockAuthService{}, sessions)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if sessions.cleared != 1 {
		t.Errorf("cleared = %d, want 1", sessions.cleared)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{}, &mockSessionWriter{})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req = req.WithContext(middleware.ContextWithSession(req.Context(), &model.Session{
			Name:  "User",
			Email: "user@example.com",
			Role:  model.RoleUser,
		}))
		w := httptest.NewRecorder()
		h.Me(w, req)

		var body meResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body.Email != "user@example.com" || body.Role != model.RoleUser || body.Name != "User" {
			t.Errorf("body = %+v", body)
		}
	})
}
