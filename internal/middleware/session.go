// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/modboard/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionStore はCookieセッションの読み書きに必要なインターフェース。
// auth.SessionManagerが実装する。
type SessionStore interface {
	Read(r *http.Request) *model.Session
	Refresh(session *model.Session) *model.Session
	Write(w http.ResponseWriter, session *model.Session) error
}

// NewSessionMiddleware はCookieからセッションを復元し、リクエストコンテキストに注入する。
// セッションが無い・不正な場合も拒否せず、匿名としてそのまま次へ渡す。
// 発行から一定時間が経過したセッションはCookieを再発行して有効期限を延長する。
func NewSessionMiddleware(store SessionStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := store.Read(r)
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			if refreshed := store.Refresh(session); refreshed != nil {
				if err := store.Write(w, refreshed); err != nil {
					slog.Error("failed to refresh session cookie",
						slog.String("email", session.Email),
						slog.String("error", err.Error()),
					)
				} else {
					session = refreshed
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 匿名の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// RoleFromContext は呼び出し元のロールを返す。セッションが無ければRoleAnonymous。
func RoleFromContext(ctx context.Context) model.Role {
	if s := SessionFromContext(ctx); s != nil && s.Role != "" {
		return s.Role
	}
	return model.RoleAnonymous
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
