package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/modboard/internal/authz"
	"github.com/hitoshi/modboard/internal/middleware"
)

// SessionManager はセッションの復元・更新とCookieの書き込み・削除を行う。
// auth.SessionManagerが実装する。
type SessionManager interface {
	middleware.SessionStore
	Clear(w http.ResponseWriter)
}

// MetricsMiddleware はHTTPレスポンスを記録するミドルウェアを提供する。
type MetricsMiddleware interface {
	Middleware() func(next http.Handler) http.Handler
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Sessions          SessionManager
	Authorizer        middleware.Authorizer
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	GuardedPrefixes   []string
	SignInPath        string

	// メトリクス（nilの場合は記録も公開もしない）
	Metrics        MetricsMiddleware
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿
	PostService PostServiceInterface
	Pages       *PageHandler

	// レディネス
	Pinger Pinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Session → Logging → Recovery → SecurityHeaders → CORS → Metrics
//	  → RateLimit(General) → AccessGate
//	変更系: RequirePermission → RateLimit(Mutation) → CSRF
//
// ヘルスチェックと /metrics はレート制限とアクセスゲートの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewSessionMiddleware(deps.Sessions))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService)

	// --- 運用エンドポイント ---
	r.Get("/health", Health)
	if deps.Pinger != nil {
		r.Get("/ready", NewReadyHandler(deps.Pinger))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewAccessGate(middleware.AccessGateConfig{
			GuardedPrefixes: deps.GuardedPrefixes,
			SignInPath:      deps.SignInPath,
			HomePath:        "/",
			Resource:        authz.ResourceAdminPanel,
			Action:          authz.ActionView,
		}, deps.Authorizer))

		// 認証ルート（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 読み取り（セッション不要）
		r.Get("/posts", postHandler.ListPosts)
		r.Get("/posts/{id}", postHandler.GetPost)

		// 変更（管理者のみ）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequirePermission(deps.Authorizer, authz.ResourcePosts, authz.ActionWrite))
			r.Use(deps.RateLimiter.MutationMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Post("/posts", postHandler.CreatePost)
			r.Put("/posts/{id}", postHandler.UpdatePost)
			r.Delete("/posts/{id}", postHandler.DeletePost)
			r.Delete("/posts", postHandler.DeleteAllPosts)
		})

		// ページ（CSRFトークンCookieを発行する）
		if deps.Pages != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
				r.Get("/", deps.Pages.Home)
				r.Get("/admin", deps.Pages.Admin)
			})
		}
	})

	return r
}
