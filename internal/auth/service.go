package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gatekeep/internal/model"
	"github.com/hitoshi/gatekeep/internal/repository"
)

// SessionManager は認証エンジンが必要とするセッション操作のインターフェース。
type SessionManager interface {
	Issue(ctx context.Context, userID int64, role model.Role) (*model.Session, error)
	Validate(ctx context.Context, token string) (*model.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Service は資格情報の検証とロール認可のビジネスロジックを提供する。
// ログイン試行回数などの状態は持たず、各リクエストを独立に処理する。
type Service struct {
	users    repository.UserRepository
	sessions SessionManager

	// dummyHash はユーザー不在時にも1回のargon2計算を行うための照合用ハッシュ。
	// ユーザー名の存在有無で応答時間に差が出ることを防ぐ。
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, sessions SessionManager) (*Service, error) {
	dummy, err := HashPassword("gatekeep-timing-equalizer", DefaultArgon2Params())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Service{
		users:    users,
		sessions: sessions,
		dummyHash: dummy,
	}, nil
}

// Login はユーザー名とパスワードを検証し、成功時にセッションを発行する。
// ユーザー不在とパスワード不一致はどちらもErrInvalidCredentialとして返し、
// 呼び出し元からは区別できない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if username == "" || password == "" {
		return nil, model.ErrInvalidInput
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		slog.Error("user lookup failed",
			slog.String("error", err.Error()),
		)
		return nil, model.ErrStoreUnavailable
	}

	if user == nil {
		// 不在時もダミーハッシュに対して照合し、処理時間を揃える
		if _, verifyErr := VerifyPassword(password, s.dummyHash); verifyErr != nil {
			slog.Error("dummy verify failed", slog.String("error", verifyErr.Error()))
		}
		return nil, model.ErrInvalidCredential
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		// 壊れたハッシュの詳細はログのみに残し、外部には資格情報エラーとして返す
		slog.Error("password verification failed",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.ErrInvalidCredential
	}
	if !ok {
		return nil, model.ErrInvalidCredential
	}

	session, err := s.sessions.Issue(ctx, user.ID, user.Role)
	if err != nil {
		slog.Error("session issue failed",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.ErrStoreUnavailable
	}

	slog.Info("login succeeded",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return session, nil
}

// CheckAdmin はセッションが管理者権限を持つかどうかを判定する。
// セッションが無効な場合は常にfalseを返す（フェイルクローズ）。
// 判定にはセッションに固定されたロールのみを使用する。targetUserIDは
// 監査ログにのみ記録し、認可入力としては一切信用しない。
func (s *Service) CheckAdmin(ctx context.Context, token string, targetUserID int64) bool {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil || session == nil {
		return false
	}

	if targetUserID != 0 && targetUserID != session.UserID {
		slog.Warn("admin check referenced another user id",
			slog.Int64("session_user_id", session.UserID),
			slog.Int64("target_user_id", targetUserID),
		)
	}

	return session.Role == model.RoleAdmin
}

// Logout はセッションを失効させる。無効なトークンでも成功する（冪等）。
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}
