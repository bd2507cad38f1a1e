package model

import (
	"strings"
	"time"
)

// Role はセッションに付与される権限ロールを表す。
type Role string

const (
	// RoleAnonymous は未ログインの利用者を表す。セッションには保存されない。
	RoleAnonymous Role = "anonymous"
	// RoleUser はログイン済みの一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は投稿の作成・更新・削除が可能な管理者。
	RoleAdmin Role = "admin"
)

// Identity は外部IdP（Google）が検証したユーザー属性を表す。
// サインインフローの間だけ存在する。
type Identity struct {
	Name  string
	Email string
}

// Session はCookieから復元された呼び出し元のセッションを表す。
// Roleは保存されず、復元のたびにメールアドレスから再計算される。
type Session struct {
	Name      string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin はセッションが管理者ロールを持つかどうかを返す。
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// RoleFor はメールアドレスからロールを導出する。
// 設定された管理者アドレスと一致する場合のみRoleAdminを返す。
// 比較は前後の空白を除去し、大文字小文字を区別しない。
func RoleFor(email, adminEmail string) Role {
	email = strings.TrimSpace(email)
	adminEmail = strings.TrimSpace(adminEmail)
	if email != "" && adminEmail != "" && strings.EqualFold(email, adminEmail) {
		return RoleAdmin
	}
	return RoleUser
}
