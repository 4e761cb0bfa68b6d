// Package session はセッションの発行・検証・失効を提供する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/gatekeep/internal/model"
	"github.com/hitoshi/gatekeep/internal/repository"
)

// DefaultTTL はセッション有効期間のデフォルト値。
const DefaultTTL = 30 * time.Minute

// tokenLen はセッショントークンのバイト長。hex表現で64文字（256ビット）になる。
const tokenLen = 32

// Manager はセッションのライフサイクルを管理する。
// 明示的に構築してハンドラーに注入する。グローバル状態は持たない。
type Manager struct {
	repo repository.SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewManager はManagerを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewManager(repo repository.SessionRepository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Issue は指定ユーザーに紐付く新しいセッションを発行する。
// ロールは発行時点のスナップショットとしてセッションに固定される。
// 永続化が完了した時点でセッションは確定し、以後のリクエスト中断では巻き戻さない。
func (m *Manager) Issue(ctx context.Context, userID int64, role model.Role) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	session := &model.Session{
		Token:     token,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Validate はトークンに対応する有効なセッションを返す。
// 不在・期限切れ・失効済みはすべてErrSessionInvalidとして区別せずに返す。
// ストア障害はErrSessionInvalidとは別のエラーとして返す。
func (m *Manager) Validate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.ErrSessionInvalid
	}

	session, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, model.ErrSessionInvalid
	}
	if session.IsExpired(m.now()) {
		return nil, model.ErrSessionInvalid
	}

	return session, nil
}

// Revoke はトークンに対応するセッションを失効させる。
// 既に無効なトークンの失効は何もせず成功する（冪等）。
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := m.repo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// PurgeExpired は期限切れセッションを削除し、削除件数を返す。
// バックグラウンドの定期クリーンアップから呼ばれる。
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx)
}

// generateToken は暗号的に安全なランダムトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
