package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/modboard/internal/model"
)

// Authorizer はロールの操作可否を判定する。authz.Authorizerが実装する。
type Authorizer interface {
	Allow(role model.Role, resource, action string) bool
}

// AccessGateConfig はアクセスゲートの設定。
type AccessGateConfig struct {
	GuardedPrefixes []string
	SignInPath      string
	HomePath        string
	Resource        string
	Action          string
}

// NewAccessGate は保護対象パスへのアクセスをハンドラーより前に判定する。
//   - 未ログイン: サインインページへ302リダイレクト（元のパスを next に付与）
//   - ログイン済みだが権限なし: ホームへ302リダイレクト
//   - 権限あり: 通過
//
// 保護対象外のパスは常に通過する。SessionMiddlewareの後に配置する。
func NewAccessGate(config AccessGateConfig, authorizer Authorizer) func(next http.Handler) http.Handler {
	if config.HomePath == "" {
		config.HomePath = "/"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsGuardedPath(r.URL.Path, config.GuardedPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			session := SessionFromContext(r.Context())
			if session == nil {
				target := config.SignInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}

			if !authorizer.Allow(RoleFromContext(r.Context()), config.Resource, config.Action) {
				slog.Warn("access gate denied",
					slog.String("email", session.Email),
					slog.String("role", string(session.Role)),
					slog.String("path", r.URL.Path),
				)
				http.Redirect(w, r, config.HomePath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsGuardedPath はpathがいずれかのプレフィックスと一致するか、その配下かを判定する。
// "/admin" は "/admin" と "/admin/..." に一致し、"/administrator" には一致しない。
func IsGuardedPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			return true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
