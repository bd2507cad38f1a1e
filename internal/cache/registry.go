// Package cache はキャッシュ無効化シグナル（タグごとのバージョンカウンタ）と、
// それを参照する読み取り結果のメモ化ストアを提供する。
package cache

import (
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TagPosts は投稿一覧・詳細の読み取り結果に付与するタグ。
const TagPosts = "posts"

const pathTagPrefix = "path:"

// Recorder はキャッシュのヒット・ミス・無効化を記録する。
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheInvalidation(tag string)
}

// Registry はタグごとの単調増加バージョンを保持するプロセス内レジストリ。
// 読み取り側は取得前にバージョンを控え、いずれかのタグが進んでいれば古いとみなす。
type Registry struct {
	mu       sync.RWMutex
	versions map[string]uint64
	recorder Recorder
}

// NewRegistry は空のRegistryを生成する。recorderはnilでもよい。
func NewRegistry(recorder Recorder) *Registry {
	return &Registry{
		versions: make(map[string]uint64),
		recorder: recorder,
	}
}

// Invalidate はタグのバージョンを1つ進める。
func (r *Registry) Invalidate(tag string) {
	r.mu.Lock()
	r.versions[tag]++
	r.mu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordCacheInvalidation(tag)
	}
}

// InvalidatePath はパスプレフィックスに対応するタグを無効化する。
// そのパス配下で描画された結果はすべて古くなる。
func (r *Registry) InvalidatePath(prefix string) {
	r.Invalidate(PathTag(prefix))
}

// Version はタグの現在のバージョンを返す。未使用のタグは0。
func (r *Registry) Version(tag string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[tag]
}

// Snapshot は指定タグの現在のバージョンを控える。
func (r *Registry) Snapshot(tags []string) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := make(Snapshot, len(tags))
	for _, tag := range tags {
		s[tag] = r.versions[tag]
	}
	return s
}

// IsStale は控えたバージョンのいずれかが現在より古ければtrueを返す。
func (r *Registry) IsStale(s Snapshot) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for tag, v := range s {
		if r.versions[tag] > v {
			return true
		}
	}
	return false
}

// Snapshot はタグとバージョンの組。
type Snapshot map[string]uint64

// key はSnapshotを決定的な文字列に変換する。
func (s Snapshot) key() string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var b strings.Builder
	for _, tag := range tags {
		b.WriteString(tag)
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(s[tag], 10))
		b.WriteByte(';')
	}
	return b.String()
}

// PathTag はパスを正規化したタグ名を返す。
func PathTag(p string) string {
	return pathTagPrefix + normalizePath(p)
}

// PathTags はパスとその全祖先に対応するタグを返す。
// "/admin/posts" は path:/, path:/admin, path:/admin/posts になる。
func PathTags(p string) []string {
	clean := normalizePath(p)
	tags := []string{PathTag("/")}
	if clean == "/" {
		return tags
	}

	segments := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	cur := ""
	for _, seg := range segments {
		cur += "/" + seg
		tags = append(tags, PathTag(cur))
	}
	return tags
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
