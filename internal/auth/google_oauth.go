package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/hitoshi/modboard/internal/model"
)

const defaultGoogleIssuerURL = "https://accounts.google.com"

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なOIDC Issuer
	IssuerURL string
}

// GoogleOAuthProvider はGoogleのOpenID Connectによる認証を提供する。
// ディスカバリは初回利用時に行い、成功した結果を保持する。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig

	mu       sync.Mutex
	provider *oidc.Provider
	oauth2   *oauth2.Config
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.IssuerURL == "" {
		config.IssuerURL = defaultGoogleIssuerURL
	}
	return &GoogleOAuthProvider{config: config}
}

// discover はOIDCディスカバリを実行し、oauth2設定を構築する。
func (p *GoogleOAuthProvider) discover(ctx context.Context) (*oidc.Provider, *oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provider != nil {
		return p.provider, p.oauth2, nil
	}

	provider, err := oidc.NewProvider(ctx, p.config.IssuerURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	p.provider = provider
	p.oauth2 = &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  p.config.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return p.provider, p.oauth2, nil
}

// GetLoginURL はGoogleの認証URLを生成する。
func (p *GoogleOAuthProvider) GetLoginURL(ctx context.Context, state string) (string, error) {
	_, cfg, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// ExchangeCode は認可コードをトークンに交換し、id_tokenの署名・発行者・audienceを検証した上で
// UserInfoエンドポイントから検証済みのメールアドレスと表示名を取得する。
// UserInfoのsubはid_tokenのsubと一致しなければならない。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.Identity, error) {
	provider, cfg, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("id_token missing from token response")
	}
	idToken, err := provider.Verifier(&oidc.Config{ClientID: p.config.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Subject != idToken.Subject {
		return nil, errors.New("user info subject does not match id_token subject")
	}

	var claims struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse user info claims: %w", err)
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		return nil, errors.New("empty email in user info response")
	}
	if !info.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", email)
	}

	return &model.Identity{
		Name:  claims.Name,
		Email: email,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
