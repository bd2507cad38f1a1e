package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/modboard/internal/middleware"
	"github.com/hitoshi/modboard/internal/model"
)

// maxPostBodyBytes は投稿リクエストボディの上限サイズ。
const maxPostBodyBytes = 1 << 20

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context) (json.RawMessage, error)
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Create(ctx context.Context, sess *model.Session, in model.PostInput) error
	Update(ctx context.Context, sess *model.Session, id string, in model.PostInput) error
	Delete(ctx context.Context, sess *model.Session, id string) error
	DeleteAll(ctx context.Context, sess *model.Session) error
}

// PostHandler は投稿の中継エンドポイントのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// dataResponse は読み取り系のレスポンス。
type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

// statusResponse は変更系の成功レスポンス。
type statusResponse struct {
	Status int `json:"status"`
}

// ListPosts は投稿一覧を返す。
// GET /posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

// GetPost は投稿を1件返す。
// GET /posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	data, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

// CreatePost は投稿を作成する。
// POST /posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePostInput(w, r)
	if !ok {
		return
	}
	if err := h.service.Create(r.Context(), middleware.SessionFromContext(r.Context()), in); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// UpdatePost は投稿を更新する。
// PUT /posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	in, ok := decodePostInput(w, r)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), middleware.SessionFromContext(r.Context()), id, in); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// DeletePost は投稿を1件削除する。
// DELETE /posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.SessionFromContext(r.Context()), id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// DeleteAllPosts は全投稿を削除する。
// DELETE /posts
func (h *PostHandler) DeleteAllPosts(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAll(r.Context(), middleware.SessionFromContext(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// postID はURLパスの投稿IDを返す。
// RawPathが設定されているとchiはエスケープされたままの値でルーティングするため、その場合のみデコードする。
func postID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, true
	}
	id, err := url.PathUnescape(id)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return "", false
	}
	return id, true
}

// decodePostInput はリクエストボディをPostInputとして読み取る。
// 失敗時は400を書き込み、falseを返す。
func decodePostInput(w http.ResponseWriter, r *http.Request) (model.PostInput, bool) {
	var in model.PostInput
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError())
			return in, false
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return in, false
	}
	return in, true
}
