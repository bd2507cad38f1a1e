// Package authz はロールごとの操作可否をCasbinのRBACポリシーで判定する。
package authz

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/hitoshi/modboard/internal/model"
)

//go:embed model.conf
var modelContent string

// リソース名
const (
	ResourcePosts      = "posts"
	ResourceAdminPanel = "admin_panel"
)

// 操作名
const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionView  = "view"
)

// 既定のポリシー。admin は user を、user は anonymous を継承する。
var (
	defaultPolicies = [][]string{
		{string(model.RoleAnonymous), ResourcePosts, ActionRead},
		{string(model.RoleAdmin), ResourcePosts, ActionWrite},
		{string(model.RoleAdmin), ResourceAdminPanel, ActionView},
	}
	defaultGroupings = [][]string{
		{string(model.RoleAdmin), string(model.RoleUser)},
		{string(model.RoleUser), string(model.RoleAnonymous)},
	}
)

// Authorizer はロール・リソース・操作の組を判定する。
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New は組み込みのモデルと既定ポリシーでAuthorizerを生成する。
func New() (*Authorizer, error) {
	m, err := casbinmodel.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("add casbin policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, fmt.Errorf("add casbin grouping policies: %w", err)
	}

	return &Authorizer{enforcer: enforcer}, nil
}

// Allow はroleがresourceに対してactionを行えるかを返す。
// 判定エラーは拒否として扱う。
func (a *Authorizer) Allow(role model.Role, resource, action string) bool {
	if role == "" {
		role = model.RoleAnonymous
	}
	ok, err := a.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		slog.Error("authorization check failed",
			slog.String("role", string(role)),
			slog.String("resource", resource),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}
