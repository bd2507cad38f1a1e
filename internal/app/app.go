// Package app はコンポーネントの組み立てとプロセスの起動を担う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/modboard/internal/auth"
	"github.com/hitoshi/modboard/internal/authz"
	"github.com/hitoshi/modboard/internal/cache"
	"github.com/hitoshi/modboard/internal/config"
	"github.com/hitoshi/modboard/internal/credential"
	"github.com/hitoshi/modboard/internal/handler"
	"github.com/hitoshi/modboard/internal/logger"
	"github.com/hitoshi/modboard/internal/metrics"
	"github.com/hitoshi/modboard/internal/middleware"
	"github.com/hitoshi/modboard/internal/post"
	"github.com/hitoshi/modboard/internal/security"
	"github.com/hitoshi/modboard/internal/upstream"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間の上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. .env と環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVEL を反映する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("api_host", cfg.APIHost),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// Server は組み立て済みのHTTPハンドラーと終了処理を保持する。
type Server struct {
	Handler http.Handler
	closers []func()
}

// Close はバックグラウンド処理を停止する。
func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
}

// Build はConfigから全依存関係をワイヤリングしたServerを構築する。
// ネットワークへの接続は行わない（OIDCディスカバリは初回サインイン時に行う）。
func Build(cfg *config.Config, reg *prometheus.Registry) (*Server, error) {
	log := slog.Default()

	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. 認可ポリシー
	authorizer, err := authz.New()
	if err != nil {
		return nil, fmt.Errorf("failed to build authorizer: %w", err)
	}

	// 3. 資格情報とセッション
	issuer, err := credential.NewIssuer(cfg.CredentialSecret, cfg.CredentialTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential issuer: %w", err)
	}
	sessions := auth.NewSessionManager(auth.SessionConfig{
		Secret:       cfg.SessionSecret,
		MaxAge:       cfg.SessionMaxAge,
		UpdateAge:    cfg.SessionUpdateAge,
		AdminEmail:   cfg.AdminEmail,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		IssuerURL:    cfg.GoogleIssuerURL,
	})
	authService := auth.NewService(oauthProvider, sessions)

	// 4. キャッシュとアップストリーム
	registry := cache.NewRegistry(collector)
	store := cache.NewStore(registry, cfg.CacheSize, cfg.CacheTTL, collector)
	client := upstream.NewClient(&http.Client{Timeout: cfg.UpstreamTimeout}, cfg.APIHost, log, collector)

	// 5. ドメインサービス
	sanitizer := security.NewContentSanitizer()
	postService := post.NewService(client, issuer, store, registry, sanitizer, authorizer, cfg.AdminEmail)

	pages, err := handler.NewPageHandler(postService, store, sanitizer)
	if err != nil {
		return nil, err
	}

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMutation))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Sessions:          sessions,
		Authorizer:        authorizer,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		GuardedPrefixes: cfg.GuardedPathPrefixes,
		SignInPath:      cfg.SignInPath,
		Metrics:         collector,
		MetricsHandler:  metrics.Handler(reg),
		AuthService:     authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},
		PostService: postService,
		Pages:       pages,
		Pinger:      client,
	})

	return &Server{
		Handler: router,
		closers: []func(){rateLimiter.Stop},
	}, nil
}

// runServe はHTTPサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := Build(cfg, reg)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serve(ctx, server)
}

// serve はサーバーを起動し、ctxのキャンセルでシャットダウンする。
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
