// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/modboard/internal/middleware"
	"github.com/hitoshi/modboard/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieAge   = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(ctx context.Context, state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
}

// SessionWriter はセッションCookieの書き込みと削除を行う。
type SessionWriter interface {
	Write(w http.ResponseWriter, session *model.Session) error
	Clear(w http.ResponseWriter)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionWriter
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionWriter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login?next=/admin
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(r.Context(), state)
	if err != nil {
		slog.Error("failed to build login url", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError())
		return
	}

	// stateをCookieに保存（CSRF対策）
	h.setFlowCookie(w, oauthStateCookie, state, oauthCookieAge)
	if next := safeNext(r.URL.Query().Get("next")); next != "" {
		h.setFlowCookie(w, oauthNextCookie, url.QueryEscape(next), oauthCookieAge)
	}

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	h.setFlowCookie(w, oauthStateCookie, "", -1)

	next := "/"
	if c, err := r.Cookie(oauthNextCookie); err == nil {
		if v, err := url.QueryUnescape(c.Value); err == nil && safeNext(v) != "" {
			next = v
		}
		h.setFlowCookie(w, oauthNextCookie, "", -1)
	}

	// 2. 認可コードの取得
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		slog.Warn("oauth provider returned error", slog.String("error", errParam))
		http.Redirect(w, r, h.config.BaseURL+"/", http.StatusTemporaryRedirect)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// 4. セッションCookieを設定
	if err := h.sessions.Write(w, session); err != nil {
		slog.Error("failed to write session cookie", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 5. サインイン前のページにリダイレクト
	http.Redirect(w, r, h.config.BaseURL+next, http.StatusTemporaryRedirect)
}

// Logout はセッションCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		slog.Info("user signed out", slog.String("email", session.Email))
	}
	h.sessions.Clear(w)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusSeeOther)
}

// meResponse は現在のログインユーザー情報のレスポンス。
type meResponse struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, meResponse{
		Name:  session.Name,
		Email: session.Email,
		Role:  session.Role,
	})
}

func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext はサインイン後の遷移先として安全な同一オリジンのパスだけを返す。
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	return next
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
