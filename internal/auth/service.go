// Package auth はOAuth認証フローとCookieセッションの管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/modboard/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(ctx context.Context, state string) (string, error)
	// ExchangeCode は認可コードをトークンに交換し、検証済みの利用者情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*model.Identity, error)
}

// Service はサインインに関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	sessions *SessionManager
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, sessions *SessionManager) *Service {
	return &Service{
		oauth:    oauth,
		sessions: sessions,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(ctx context.Context, state string) (string, error) {
	return s.oauth.GetLoginURL(ctx, state)
}

// HandleCallback はOAuthコールバックを処理し、新しいセッションを返す。
// ロールは検証済みのメールアドレスから導出される。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	identity, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	session := s.sessions.NewSession(*identity)
	slog.Info("user signed in",
		slog.String("email", session.Email),
		slog.String("role", string(session.Role)),
	)
	return session, nil
}
