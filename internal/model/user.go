// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ラベルを表す。
type Role string

const (
	// RoleUser は一般ユーザーを示す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を示す。
	RoleAdmin Role = "admin"
)

// IsValid はロールが定義済みの値かどうかを判定する。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User は認証対象のユーザーレコードを表す。
// PasswordHashはargon2idのPHC形式文字列であり、平文パスワードは含まない。
// ログイン・認可処理からは読み取り専用として扱う。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
