package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/hitoshi/modboard/internal/model"
)

// SessionCookieName はセッションCookieの名前。
const SessionCookieName = "modboard_session"

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	Secret       string
	MaxAge       int // 秒
	UpdateAge    int // 秒
	AdminEmail   string
	CookieSecure bool
	CookieDomain string
}

// sessionPayload はCookieに保存する内容。ロールは保存しない。
type sessionPayload struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// SessionManager は署名・暗号化されたCookieにセッションを保存する。
type SessionManager struct {
	codec  *securecookie.SecureCookie
	config SessionConfig
	now    func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
// 署名鍵と暗号鍵はどちらもSecretから導出する。
func NewSessionManager(config SessionConfig) *SessionManager {
	hashKey := sha512.Sum512([]byte("modboard/session/hash:" + config.Secret))
	blockKey := sha256.Sum256([]byte("modboard/session/block:" + config.Secret))

	codec := securecookie.New(hashKey[:], blockKey[:])
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(config.MaxAge)

	return &SessionManager{
		codec:  codec,
		config: config,
		now:    time.Now,
	}
}

// NewSession は検証済みIdentityから新しいセッションを生成する。
func (m *SessionManager) NewSession(identity model.Identity) *model.Session {
	now := m.now()
	return &model.Session{
		Name:      identity.Name,
		Email:     identity.Email,
		Role:      model.RoleFor(identity.Email, m.config.AdminEmail),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(m.config.MaxAge) * time.Second),
	}
}

// Read はリクエストのCookieからセッションを復元する。
// Cookieが無い・改ざんされている・期限切れの場合はnilを返す（匿名扱い）。
// ロールは保存値ではなく、メールアドレスから毎回再計算する。
func (m *SessionManager) Read(r *http.Request) *model.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var payload sessionPayload
	if err := m.codec.Decode(SessionCookieName, cookie.Value, &payload); err != nil {
		return nil
	}
	if payload.Email == "" {
		return nil
	}

	expiresAt := time.Unix(payload.ExpiresAt, 0)
	if !m.now().Before(expiresAt) {
		return nil
	}

	return &model.Session{
		Name:      payload.Name,
		Email:     payload.Email,
		Role:      model.RoleFor(payload.Email, m.config.AdminEmail),
		IssuedAt:  time.Unix(payload.IssuedAt, 0),
		ExpiresAt: expiresAt,
	}
}

// Write はセッションをCookieに書き込む。
func (m *SessionManager) Write(w http.ResponseWriter, session *model.Session) error {
	encoded, err := m.codec.Encode(SessionCookieName, sessionPayload{
		Name:      session.Name,
		Email:     session.Email,
		IssuedAt:  session.IssuedAt.Unix(),
		ExpiresAt: session.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   m.config.MaxAge,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear はセッションCookieを削除する。
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Refresh はセッション発行からUpdateAge以上経過していれば、
// 有効期限を延長した新しいセッションを返す。不要な場合はnilを返す。
func (m *SessionManager) Refresh(session *model.Session) *model.Session {
	if session == nil || m.config.UpdateAge <= 0 {
		return nil
	}
	now := m.now()
	if now.Sub(session.IssuedAt) < time.Duration(m.config.UpdateAge)*time.Second {
		return nil
	}
	refreshed := *session
	refreshed.IssuedAt = now
	refreshed.ExpiresAt = now.Add(time.Duration(m.config.MaxAge) * time.Second)
	return &refreshed
}
