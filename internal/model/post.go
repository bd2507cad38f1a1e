package model

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ModType は投稿のカテゴリを表す。
type ModType string

const (
	ModTypeOutfit   ModType = "Outfit"
	ModTypePreset   ModType = "Preset"
	ModTypeFollower ModType = "Follower"
)

// Valid はModTypeが定義済みの値かどうかを返す。
func (m ModType) Valid() bool {
	switch m {
	case ModTypeOutfit, ModTypePreset, ModTypeFollower:
		return true
	default:
		return false
	}
}

// maxTitleLength はタイトルの最大文字数。
const maxTitleLength = 200

// PostInput は投稿の作成・更新リクエストのボディ。
// 上流APIにはこの形のまま転送する。
type PostInput struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImagesURL []string `json:"imagesUrl"`
	FileURL   string   `json:"fileUrl"`
	ModType   ModType  `json:"modType"`
}

// Validate は必須項目と値の形式を検証する。
// 不正な値を補正することはせず、最初に見つかった問題をエラーとして返す。
func (in *PostInput) Validate() *APIError {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return NewValidationError("title", "必須項目です")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return NewValidationError("title", "200文字以内で入力してください")
	}
	if strings.TrimSpace(in.FileURL) == "" {
		return NewValidationError("fileUrl", "必須項目です")
	}
	if !isAbsoluteHTTPURL(in.FileURL) {
		return NewValidationError("fileUrl", "http(s)の絶対URLを指定してください")
	}
	if in.ModType == "" {
		return NewValidationError("modType", "必須項目です")
	}
	if !in.ModType.Valid() {
		return NewValidationError("modType", "Outfit、Preset、Followerのいずれかを指定してください")
	}
	for _, u := range in.ImagesURL {
		if !isAbsoluteHTTPURL(u) {
			return NewValidationError("imagesUrl", "すべての要素にhttp(s)の絶対URLを指定してください")
		}
	}
	return nil
}

// isAbsoluteHTTPURL はhttp/httpsスキームの絶対URLかどうかを判定する。
func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PostID は上流APIが返す投稿IDを表す。
// 文字列と {"$oid": "..."} 形式の両方を受け付ける。
type PostID string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (id *PostID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = PostID(s)
		return nil
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(b, &oid); err != nil {
		return err
	}
	*id = PostID(oid.OID)
	return nil
}

// Post は上流APIが所有する投稿。
// このサービスは中身を解釈せずに中継するが、ページ描画のために主要項目だけを読む。
type Post struct {
	MongoID   PostID   `json:"_id"`
	ID        PostID   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImagesURL []string `json:"images_url"`
	FileURL   string   `json:"file_url"`
	ModType   ModType  `json:"mod_type"`
}

// Key は投稿の識別子を返す。
func (p *Post) Key() string {
	if p.ID != "" {
		return string(p.ID)
	}
	return string(p.MongoID)
}
