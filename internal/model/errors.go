// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodeUpstreamRejected = "UPSTREAM_REJECTED"
	ErrCodeUpstreamInvalid  = "UPSTREAM_UNPROCESSABLE"
	ErrCodeUpstreamConflict = "UPSTREAM_CONFLICT"
	ErrCodeUpstreamFailed   = "UPSTREAM_FAILED"
	ErrCodeUpstreamTimeout  = "UPSTREAM_TIMEOUT"
	ErrCodeCredentialFailed = "CREDENTIAL_FAILED"
	ErrCodeCSRFFailed       = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError はセッションが存在しない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "Googleアカウントでログインしてから再度お試しください。",
	}
}

// NewForbiddenError はロールが不足している場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディを解析できませんでした。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストを送信してください。",
	}
}

// NewValidationError は入力値の検証に失敗した場合のエラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s (%s)", field, reason),
		Category: "validation",
		Action:   "入力内容を修正して再度送信してください。",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "upstream",
		Action:   "投稿IDを確認してください。",
	}
}

// NewUpstreamRejectedError は上流APIが入力を拒否した場合のエラーを生成する。
func NewUpstreamRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamRejected,
		Message:  "投稿APIがリクエストを拒否しました。",
		Category: "upstream",
		Action:   "送信内容を確認して再度お試しください。",
	}
}

// NewUpstreamUnprocessableError は上流APIが入力を処理できないと応答した場合のエラーを生成する。
func NewUpstreamUnprocessableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamInvalid,
		Message:  "投稿APIが投稿内容を処理できませんでした。",
		Category: "upstream",
		Action:   "送信内容を確認して再度お試しください。",
	}
}

// NewUpstreamConflictError は上流APIが競合を返した場合のエラーを生成する。
func NewUpstreamConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamConflict,
		Message:  "投稿が他の操作によって変更されました。",
		Category: "upstream",
		Action:   "一覧を再読み込みしてから再度お試しください。",
	}
}

// NewUpstreamFailedError は上流APIとの通信に失敗した場合のエラーを生成する。
// 原因の詳細はログにのみ記録し、レスポンスには含めない。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "投稿APIに接続できません。",
		Category: "upstream",
		Action:   "しばらく時間をおいてから再度お試しください。",
	}
}

// NewUpstreamTimeoutError は上流APIの応答がタイムアウトした場合のエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "投稿APIからの応答がタイムアウトしました。",
		Category: "upstream",
		Action:   "しばらく時間をおいてから再度お試しください。",
	}
}

// NewCredentialFailedError はサービス資格情報の発行に失敗した場合のエラーを生成する。
func NewCredentialFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCredentialFailed,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく時間をおいてから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。しばらくしてから再度お試しください。",
		Category: "system",
		Action:   "Retry-Afterで指定された時間が経過してから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく時間をおいてから再度お試しください。",
	}
}
