package middleware

import (
	"net/http"

	"github.com/hitoshi/modboard/internal/model"
)

// NewRequirePermission はAPIルート用の認可ミドルウェアを返す。
// 未ログインは401、権限不足は403をJSONで返し、リダイレクトはしない。
func NewRequirePermission(authorizer Authorizer, resource, action string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !authorizer.Allow(RoleFromContext(r.Context()), resource, action) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
