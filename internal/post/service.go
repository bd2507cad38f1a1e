// Package post は投稿APIへの読み取りと変更の中継を担う。
// 変更系の操作は認可、入力検証、資格情報の発行、本文のサニタイズを経て
// アップストリームへ転送され、成功時にキャッシュを無効化する。
package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/modboard/internal/authz"
	"github.com/hitoshi/modboard/internal/cache"
	"github.com/hitoshi/modboard/internal/credential"
	"github.com/hitoshi/modboard/internal/model"
	"github.com/hitoshi/modboard/internal/security"
	"github.com/hitoshi/modboard/internal/upstream"
)

// AdminPanelPath は変更成功時に無効化する管理画面のパス。
const AdminPanelPath = "/admin"

// UpstreamClient は投稿APIクライアントのインターフェース。
type UpstreamClient interface {
	ListPosts(ctx context.Context) (json.RawMessage, error)
	GetPost(ctx context.Context, id string) (json.RawMessage, error)
	CreatePost(ctx context.Context, token string, payload []byte) error
	UpdatePost(ctx context.Context, token, id string, payload []byte) error
	DeletePost(ctx context.Context, token, id string) error
	DeleteAllPosts(ctx context.Context, token string) error
}

// CredentialIssuer はサービス資格情報を発行する。
type CredentialIssuer interface {
	Issue(sub credential.Subject) (string, error)
}

// ReadCache は読み取り結果のメモ化ストア。
type ReadCache interface {
	Fetch(ctx context.Context, key string, tags []string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

// Invalidator はキャッシュ無効化シグナル。
type Invalidator interface {
	Invalidate(tag string)
	InvalidatePath(prefix string)
}

// Authorizer はロールの操作可否を判定する。
type Authorizer interface {
	Allow(role model.Role, resource, action string) bool
}

// Service は投稿の中継サービス。
type Service struct {
	upstream    UpstreamClient
	issuer      CredentialIssuer
	cache       ReadCache
	invalidator Invalidator
	sanitizer   security.ContentSanitizerService
	authorizer  Authorizer
	adminEmail  string
}

// NewService はServiceを生成する。
func NewService(
	upstream UpstreamClient,
	issuer CredentialIssuer,
	readCache ReadCache,
	invalidator Invalidator,
	sanitizer security.ContentSanitizerService,
	authorizer Authorizer,
	adminEmail string,
) *Service {
	return &Service{
		upstream:    upstream,
		issuer:      issuer,
		cache:       readCache,
		invalidator: invalidator,
		sanitizer:   sanitizer,
		authorizer:  authorizer,
		adminEmail:  adminEmail,
	}
}

// List は投稿一覧を返す。セッションは不要。
func (s *Service) List(ctx context.Context) (json.RawMessage, error) {
	body, err := s.cache.Fetch(ctx, "posts:list", []string{cache.TagPosts}, func(ctx context.Context) ([]byte, error) {
		return s.upstream.ListPosts(ctx)
	})
	if err != nil {
		return nil, translateError(err, "")
	}
	return json.RawMessage(body), nil
}

// Get は投稿を1件返す。セッションは不要。
func (s *Service) Get(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := s.cache.Fetch(ctx, "posts:get:"+id, []string{cache.TagPosts}, func(ctx context.Context) ([]byte, error) {
		return s.upstream.GetPost(ctx, id)
	})
	if err != nil {
		return nil, translateError(err, id)
	}
	return json.RawMessage(body), nil
}

// Create は投稿を作成する。
func (s *Service) Create(ctx context.Context, sess *model.Session, in model.PostInput) error {
	if err := s.authorizeWrite(sess); err != nil {
		return err
	}
	if apiErr := in.Validate(); apiErr != nil {
		return apiErr
	}
	token, err := s.mint(sess)
	if err != nil {
		return err
	}
	payload, err := s.encode(in)
	if err != nil {
		return err
	}

	if err := s.upstream.CreatePost(ctx, token, payload); err != nil {
		return translateError(err, "")
	}

	s.invalidate()
	slog.Info("post created",
		slog.String("email", sess.Email),
		slog.String("title", in.Title),
	)
	return nil
}

// Update は投稿を更新する。
func (s *Service) Update(ctx context.Context, sess *model.Session, id string, in model.PostInput) error {
	if err := s.authorizeWrite(sess); err != nil {
		return err
	}
	if id == "" {
		return model.NewValidationError("id", "必須項目です")
	}
	if apiErr := in.Validate(); apiErr != nil {
		return apiErr
	}
	token, err := s.mint(sess)
	if err != nil {
		return err
	}
	payload, err := s.encode(in)
	if err != nil {
		return err
	}

	if err := s.upstream.UpdatePost(ctx, token, id, payload); err != nil {
		return translateError(err, id)
	}

	s.invalidate()
	slog.Info("post updated",
		slog.String("email", sess.Email),
		slog.String("post_id", id),
	)
	return nil
}

// Delete は投稿を1件削除する。
func (s *Service) Delete(ctx context.Context, sess *model.Session, id string) error {
	if err := s.authorizeWrite(sess); err != nil {
		return err
	}
	if id == "" {
		return model.NewValidationError("id", "必須項目です")
	}
	token, err := s.mint(sess)
	if err != nil {
		return err
	}

	if err := s.upstream.DeletePost(ctx, token, id); err != nil {
		return translateError(err, id)
	}

	s.invalidate()
	slog.Info("post deleted",
		slog.String("email", sess.Email),
		slog.String("post_id", id),
	)
	return nil
}

// DeleteAll は全投稿を削除する。単一削除とは別の明示的な一括操作。
func (s *Service) DeleteAll(ctx context.Context, sess *model.Session) error {
	if err := s.authorizeWrite(sess); err != nil {
		return err
	}
	token, err := s.mint(sess)
	if err != nil {
		return err
	}

	if err := s.upstream.DeleteAllPosts(ctx, token); err != nil {
		return translateError(err, "")
	}

	s.invalidate()
	slog.Warn("all posts deleted", slog.String("email", sess.Email))
	return nil
}

// authorizeWrite は未ログインなら401、書き込み権限が無ければ403を返す。
func (s *Service) authorizeWrite(sess *model.Session) error {
	if sess == nil || sess.Email == "" || sess.Role == model.RoleAnonymous {
		return model.NewUnauthorizedError()
	}
	if !s.authorizer.Allow(sess.Role, authz.ResourcePosts, authz.ActionWrite) {
		slog.Warn("post write denied",
			slog.String("email", sess.Email),
			slog.String("role", string(sess.Role)),
		)
		return model.NewForbiddenError()
	}
	return nil
}

// mint は転送直前に資格情報を発行する。
// ロールはセッションの値を信用せず、検証済みメールアドレスから再計算する。
func (s *Service) mint(sess *model.Session) (string, error) {
	role := model.RoleFor(sess.Email, s.adminEmail)
	if role != model.RoleAdmin {
		return "", model.NewForbiddenError()
	}

	name := sess.Name
	if name == "" {
		name = sess.Email
	}

	token, err := s.issuer.Issue(credential.Subject{Name: name, Role: string(role)})
	if err != nil {
		slog.Error("failed to issue service credential",
			slog.String("email", sess.Email),
			slog.String("error", err.Error()),
		)
		return "", model.NewCredentialFailedError()
	}
	return token, nil
}

func (s *Service) encode(in model.PostInput) ([]byte, error) {
	in.Content = s.sanitizer.Sanitize(in.Content)
	if in.ImagesURL == nil {
		in.ImagesURL = []string{}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}
	return payload, nil
}

func (s *Service) invalidate() {
	s.invalidator.Invalidate(cache.TagPosts)
	s.invalidator.InvalidatePath(AdminPanelPath)
}

// translateError はアップストリームのエラーを呼び出し元向けのAPIErrorに変換する。
// 詳細はクライアントでログ済みのため、ここでは種別のみを判定する。
func translateError(err error, id string) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		return fmt.Errorf("upstream call failed: %w", err)
	}

	if upErr.Timeout {
		return model.NewUpstreamTimeoutError()
	}

	switch upErr.StatusCode {
	case http.StatusBadRequest:
		return model.NewUpstreamRejectedError()
	case http.StatusNotFound:
		return model.NewPostNotFoundError(id)
	case http.StatusConflict:
		return model.NewUpstreamConflictError()
	case http.StatusUnprocessableEntity:
		return model.NewUpstreamUnprocessableError()
	default:
		return model.NewUpstreamFailedError()
	}
}
