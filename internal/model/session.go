package model

import "time"

// Session はログイン済みユーザーのセッションを表す。
// Tokenはcrypto/randで生成した32バイトのランダム値（hex表現）であり、
// RoleとUserIDは発行時点のユーザーレコードのスナップショット。
type Session struct {
	Token     string
	UserID    int64
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired は指定時刻においてセッションが期限切れかどうかを判定する。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
