// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/gatekeep/internal/model"
)

// UserRepository はユーザーレコードの永続化インターフェース。
// すべての検索はバインドパラメータによる完全一致で行う。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	// ユーザー名は大文字小文字を区別する完全一致。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// Upsert はユーザーを作成または更新し、IDを返す。
	// ユーザー名が既存の場合はpassword_hashとroleを上書きする（冪等）。
	// プロビジョニング専用であり、ログイン・認可処理からは呼ばない。
	Upsert(ctx context.Context, username, passwordHash string, role model.Role) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。トークンの衝突は一意制約違反として返る。
	Create(ctx context.Context, session *model.Session) error

	// FindByToken は指定トークンのセッションを取得する。
	// 不在または期限切れの場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。
	// 存在しないトークンの削除はエラーにならない（冪等）。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
