package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/modboard/internal/model"
)

// fakeAuthorizer はロールごとの許可リストでAllowを判定するテスト用Authorizer。
type fakeAuthorizer struct {
	allowed map[model.Role]bool
}

func (f *fakeAuthorizer) Allow(role model.Role, resource, action string) bool {
	return f.allowed[role]
}

func adminOnly() *fakeAuthorizer {
	return &fakeAuthorizer{allowed: map[model.Role]bool{model.RoleAdmin: true}}
}

func newTestSession(email string, role model.Role) *model.Session {
	now := time.Now()
	return &model.Session{
		Name:      "Test User",
		Email:     email,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func withSession(req *http.Request, session *model.Session) *http.Request {
	return req.WithContext(ContextWithSession(req.Context(), session))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}
