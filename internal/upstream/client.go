// Package upstream は投稿APIホストへのHTTPクライアントを提供する。
// 変更系の呼び出しにはサービス資格情報をBearerトークンとして付与する。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize はアップストリームのレスポンスボディの読み取り上限（10MB）。
const maxResponseSize = 10 << 20

// 操作名。ログとメトリクスのラベルに使用する。
const (
	OpList      = "list"
	OpGet       = "get"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
	OpPing      = "ping"
)

// ErrMalformedResponse はアップストリームが不正なJSONを返した場合のエラー。
var ErrMalformedResponse = errors.New("upstream returned malformed JSON")

// Error はアップストリーム呼び出しの失敗を表す。
// StatusCodeが0の場合はレスポンスを受け取れなかったことを示す。
type Error struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream %s: timeout: %v", e.Op, e.Err)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("upstream %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream %s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Recorder はアップストリーム呼び出しの結果を記録する。
type Recorder interface {
	RecordUpstreamRequest(op string, status int, duration time.Duration)
}

// Client は投稿APIのクライアント。リトライは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	recorder   Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClientに設定されたものが適用される。recorderはnilでもよい。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, recorder Recorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		recorder:   recorder,
	}
}

// ListPosts は投稿一覧を取得し、{data: ...} エンベロープを外した配列を返す。
func (c *Client) ListPosts(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, OpList, http.MethodGet, "/api/posts", "", nil)
	if err != nil {
		return nil, err
	}
	return unwrapData(OpList, body)
}

// GetPost は投稿を1件取得する。
func (c *Client) GetPost(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.do(ctx, OpGet, http.MethodGet, "/api/posts/"+url.PathEscape(id), "", nil)
	if err != nil {
		return nil, err
	}
	return unwrapData(OpGet, body)
}

// CreatePost は投稿を作成する。
func (c *Client) CreatePost(ctx context.Context, token string, payload []byte) error {
	_, err := c.do(ctx, OpCreate, http.MethodPost, "/api/posts/create", token, payload)
	return err
}

// UpdatePost は投稿を更新する。
func (c *Client) UpdatePost(ctx context.Context, token, id string, payload []byte) error {
	_, err := c.do(ctx, OpUpdate, http.MethodPut, "/api/posts/"+url.PathEscape(id), token, payload)
	return err
}

// DeletePost は投稿を1件削除する。
func (c *Client) DeletePost(ctx context.Context, token, id string) error {
	_, err := c.do(ctx, OpDelete, http.MethodDelete, "/api/posts/"+url.PathEscape(id), token, nil)
	return err
}

// DeleteAllPosts は全投稿を削除する。
func (c *Client) DeleteAllPosts(ctx context.Context, token string) error {
	_, err := c.do(ctx, OpDeleteAll, http.MethodPost, "/api/posts/bulk-delete", token, nil)
	return err
}

// Ping はアップストリームの /health_check が2xxを返すか確認する。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, OpPing, http.MethodGet, "/health_check", "", nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path, token string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "modboard/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, 0, start)
		upErr := &Error{Op: op, Err: err, Timeout: isTimeout(err)}
		c.logger.Error("upstream request failed",
			slog.String("op", op),
			slog.Bool("timeout", upErr.Timeout),
			slog.String("error", err.Error()),
		)
		return nil, upErr
	}
	defer resp.Body.Close()
	c.record(op, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("failed to read upstream response body",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("upstream returned error status",
			slog.String("op", op),
			slog.Int("upstream_status", resp.StatusCode),
			slog.String("body", truncate(body, 512)),
		)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode}
	}

	return body, nil
}

func (c *Client) record(op string, status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamRequest(op, status, time.Since(start))
	}
}

// unwrapData は {"data": ...} 形式であれば中身を、そうでなければボディ全体を返す。
func unwrapData(op string, body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, &Error{Op: op, StatusCode: http.StatusOK, Err: ErrMalformedResponse}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		if data, ok := envelope["data"]; ok {
			return data, nil
		}
	}
	return json.RawMessage(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
