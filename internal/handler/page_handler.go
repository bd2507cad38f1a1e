package handler

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/modboard/internal/cache"
	"github.com/hitoshi/modboard/internal/middleware"
	"github.com/hitoshi/modboard/internal/model"
	"github.com/hitoshi/modboard/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

// PostLister は投稿一覧を取得する。
type PostLister interface {
	List(ctx context.Context) (json.RawMessage, error)
}

// PageCache は描画済みページ断片のメモ化ストア。
type PageCache interface {
	Fetch(ctx context.Context, key string, tags []string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

// PageHandler はサーバー描画のページを返すHTTPハンドラー。
// 投稿一覧の断片はパスタグ付きでメモ化し、変更成功時の無効化で再描画される。
type PageHandler struct {
	posts     PostLister
	cache     PageCache
	sanitizer security.ContentSanitizerService
	tmpl      *template.Template
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(posts PostLister, pageCache PageCache, sanitizer security.ContentSanitizerService) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return &PageHandler{
		posts:     posts,
		cache:     pageCache,
		sanitizer: sanitizer,
		tmpl:      tmpl,
	}, nil
}

type layoutData struct {
	Title   string
	Path    string
	Session *model.Session
	IsAdmin bool
	Body    template.HTML
}

type postView struct {
	ID        string
	Title     string
	Content   template.HTML
	ImagesURL []string
	FileURL   string
	ModType   model.ModType
}

type postsData struct {
	Posts []postView
	Admin bool
}

// Home は公開の投稿一覧ページを返す。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "MOD一覧", false)
}

// Admin は管理画面を返す。アクセス制御はAccessGateで行う。
// GET /admin
func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "管理画面", true)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, title string, admin bool) {
	path := r.URL.Path
	tags := append(cache.PathTags(path), cache.TagPosts)

	body, err := h.cache.Fetch(r.Context(), "page:"+path, tags, func(ctx context.Context) ([]byte, error) {
		return h.renderPosts(ctx, admin)
	})

	status := http.StatusOK
	if err != nil {
		apiErr := toAPIError(err)
		status = mapAPIErrorToHTTPStatus(apiErr)
		body, err = h.execute("error", apiErr)
		if err != nil {
			slog.Error("failed to render error page", slog.String("error", err.Error()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	session := middleware.SessionFromContext(r.Context())
	page, err := h.execute("layout", layoutData{
		Title:   title,
		Path:    path,
		Session: session,
		IsAdmin: session.IsAdmin(),
		Body:    template.HTML(body),
	})
	if err != nil {
		slog.Error("failed to render page", slog.String("path", path), slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if admin {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	w.Write(page)
}

// renderPosts は投稿一覧の断片を描画する。
// 本文は保存時にサニタイズ済みだが、上流の値を信用せず描画前にも再度サニタイズする。
func (h *PageHandler) renderPosts(ctx context.Context, admin bool) ([]byte, error) {
	raw, err := h.posts.List(ctx)
	if err != nil {
		return nil, err
	}

	var posts []model.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		slog.Error("failed to decode posts for page", slog.String("error", err.Error()))
		return nil, model.NewUpstreamFailedError()
	}

	data := postsData{Admin: admin, Posts: make([]postView, 0, len(posts))}
	for _, p := range posts {
		data.Posts = append(data.Posts, postView{
			ID:        p.Key(),
			Title:     p.Title,
			Content:   template.HTML(h.sanitizer.Sanitize(p.Content)),
			ImagesURL: p.ImagesURL,
			FileURL:   p.FileURL,
			ModType:   p.ModType,
		})
	}
	return h.execute("posts", data)
}

func (h *PageHandler) execute(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toAPIError はエラーをAPIErrorに変換する。APIError以外は内部エラーとして扱う。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	slog.Error("page render failed", slog.String("error", err.Error()))
	return model.NewInternalError()
}
