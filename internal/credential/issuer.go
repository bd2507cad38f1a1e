// Package credential はアップストリームAPIへの変更系リクエストに付与する
// 短命なサービス資格情報（HS256 JWT）の発行と検証を行う。
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSubject は発行対象の名前またはロールが空の場合に返される。
	ErrInvalidSubject = errors.New("credential: subject name and role are required")
	// ErrInvalidCredential は資格情報の署名・有効期限・形式の検証に失敗した場合に返される。
	ErrInvalidCredential = errors.New("credential: invalid credential")
)

// DefaultTTL は資格情報の既定の有効期間。
const DefaultTTL = time.Hour

// Subject は資格情報に埋め込む主体。
type Subject struct {
	Name string
	Role string
}

// Claims はサービス資格情報のペイロード。
// アップストリームは name, role, iat, exp を検証する。aud/iss は付与しない。
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer は共有シークレットでサービス資格情報に署名する。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はIssuerの設定を変更する。
type Option func(*Issuer)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer は新しいIssuerを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("credential: secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue は主体に対する署名済み資格情報を発行する。
// 呼び出しごとに jti が異なるため、同一主体でも毎回別のトークンになる。
func (i *Issuer) Issue(sub Subject) (string, error) {
	if sub.Name == "" || sub.Role == "" {
		return "", ErrInvalidSubject
	}

	iat := i.now().Truncate(time.Second)
	claims := Claims{
		Name: sub.Name,
		Role: sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify は資格情報を検証し、埋め込まれた主体を返す。
// アルゴリズムはHS256のみ受け付け、exp は必須。
func (i *Issuer) Verify(token string) (Subject, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return Subject{}, ErrInvalidCredential
	}
	if claims.Name == "" || claims.Role == "" {
		return Subject{}, fmt.Errorf("%w: missing name or role", ErrInvalidCredential)
	}

	return Subject{Name: claims.Name, Role: claims.Role}, nil
}
