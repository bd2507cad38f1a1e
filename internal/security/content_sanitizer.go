// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿本文（リッチテキストエディタが生成するHTML）を
// アップストリームへ転送する前にサニタイズする。
// bluemondayの許可リストポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// エディタが出力するクラス名（ql-align-center, ql-indent-1 など）のみ許可する。
	editorClassPattern = regexp.MustCompile(`^(ql-[a-z0-9-]+)( ql-[a-z0-9-]+)*$`)
	httpsOnlyPattern   = regexp.MustCompile(`^https://`)
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// script, style, iframe タグおよび on* 属性・style 属性は常に除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h1-h3, strong, em, u, s, blockquote, pre, code, ol, ul, li, a, img, span
//   - class属性: ql- で始まるもののみ
//   - aタグ: http(s)/mailto のみ、target="_blank" と rel="noopener noreferrer" を付与
//   - imgのsrc属性: httpsのみ
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h1", "h2", "h3",
		"strong", "em", "u", "s",
		"blockquote", "pre", "code",
		"ol", "ul", "li", "span",
	)
	p.AllowAttrs("class").Matching(editorClassPattern).OnElements(
		"p", "h1", "h2", "h3", "blockquote", "pre", "ol", "ul", "li", "span",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").Matching(httpsOnlyPattern).OnElements("img")
	p.AllowAttrs("alt").OnElements("img")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
