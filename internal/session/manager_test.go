package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/gatekeep/internal/model"
)

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.Session) error
	findByTokenFn   func(ctx context.Context, token string) (*model.Session, error)
	deleteByTokenFn func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) (int64, error)

	deleteByTokenCalls int
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	if m.findByTokenFn != nil {
		return m.findByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	m.deleteByTokenCalls++
	if m.deleteByTokenFn != nil {
		return m.deleteByTokenFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

func TestNewManager_ZeroTTL_UsesDefault(t *testing.T) {
	m := NewManager(&mockSessionRepo{}, 0)
	if m.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", m.ttl, DefaultTTL)
	}

	m = NewManager(&mockSessionRepo{}, -time.Minute)
	if m.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", m.ttl, DefaultTTL)
	}
}

func TestIssue_PersistsSessionWithTTL(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var saved *model.Session
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			saved = session
			return nil
		},
	}

	m := NewManager(repo, 15*time.Minute)
	m.now = func() time.Time { return fixed }

	session, err := m.Issue(context.Background(), 1, model.RoleAdmin)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if saved == nil {
		t.Fatal("session was not persisted")
	}
	if session.UserID != 1 {
		t.Errorf("user id = %d, want 1", session.UserID)
	}
	if session.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", session.Role, model.RoleAdmin)
	}
	if !session.CreatedAt.Equal(fixed) {
		t.Errorf("created at = %v, want %v", session.CreatedAt, fixed)
	}
	if want := fixed.Add(15 * time.Minute); !session.ExpiresAt.Equal(want) {
		t.Errorf("expires at = %v, want %v", session.ExpiresAt, want)
	}
}

func TestIssue_TokenIsLongRandomHex(t *testing.T) {
	m := NewManager(&mockSessionRepo{}, time.Minute)

	a, err := m.Issue(context.Background(), 1, model.RoleUser)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := m.Issue(context.Background(), 1, model.RoleUser)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 32バイト=hex64文字。256ビットの乱数であること
	if len(a.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(a.Token))
	}
	if a.Token == b.Token {
		t.Error("consecutive tokens should never collide")
	}
}

func TestIssue_StoreFault_PropagatesError(t *testing.T) {
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("insert failed")
		},
	}
	m := NewManager(repo, time.Minute)

	if _, err := m.Issue(context.Background(), 1, model.RoleUser); err == nil {
		t.Fatal("expected error when the store rejects the session")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := make(map[string]*model.Session)
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			store[session.Token] = session
			return nil
		},
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return store[token], nil
		},
	}

	m := NewManager(repo, 30*time.Minute)
	m.now = func() time.Time { return fixed }

	issued, err := m.Issue(context.Background(), 42, model.RoleAdmin)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 発行されたトークンの検証が同じ(userID, role)を返すこと
	got, err := m.Validate(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.UserID != 42 {
		t.Errorf("user id = %d, want 42", got.UserID)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", got.Role, model.RoleAdmin)
	}
}

func TestValidate_EmptyToken_Invalid(t *testing.T) {
	m := NewManager(&mockSessionRepo{}, time.Minute)

	if _, err := m.Validate(context.Background(), ""); !errors.Is(err, model.ErrSessionInvalid) {
		t.Errorf("err = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_UnknownToken_Invalid(t *testing.T) {
	m := NewManager(&mockSessionRepo{}, time.Minute)

	if _, err := m.Validate(context.Background(), "no-such-token"); !errors.Is(err, model.ErrSessionInvalid) {
		t.Errorf("err = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_ExpiredToken_Invalid(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return &model.Session{
				Token:     token,
				UserID:    1,
				Role:      model.RoleUser,
				CreatedAt: fixed.Add(-2 * time.Hour),
				ExpiresAt: fixed.Add(-time.Hour),
			}, nil
		},
	}

	m := NewManager(repo, time.Minute)
	m.now = func() time.Time { return fixed }

	if _, err := m.Validate(context.Background(), "stale-token"); !errors.Is(err, model.ErrSessionInvalid) {
		t.Errorf("err = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_StoreFault_NotSessionInvalid(t *testing.T) {
	repo := &mockSessionRepo{
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	m := NewManager(repo, time.Minute)

	// ストア障害は無効セッションと区別して返すこと
	_, err := m.Validate(context.Background(), "some-token")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, model.ErrSessionInvalid) {
		t.Error("store fault must not be reported as an invalid session")
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	repo := &mockSessionRepo{}
	m := NewManager(repo, time.Minute)

	// 存在しないトークンの失効も成功すること
	if err := m.Revoke(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := m.Revoke(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.deleteByTokenCalls != 2 {
		t.Errorf("delete calls = %d, want 2", repo.deleteByTokenCalls)
	}
}

func TestRevoke_InvalidatesSession(t *testing.T) {
	store := make(map[string]*model.Session)
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			store[session.Token] = session
			return nil
		},
		findByTokenFn: func(ctx context.Context, token string) (*model.Session, error) {
			return store[token], nil
		},
		deleteByTokenFn: func(ctx context.Context, token string) error {
			delete(store, token)
			return nil
		},
	}
	m := NewManager(repo, 30*time.Minute)

	issued, err := m.Issue(context.Background(), 1, model.RoleUser)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := m.Validate(context.Background(), issued.Token); err != nil {
		t.Fatalf("session should validate before revoke: %v", err)
	}

	if err := m.Revoke(context.Background(), issued.Token); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 失効後の検証は必ず失敗すること
	if _, err := m.Validate(context.Background(), issued.Token); !errors.Is(err, model.ErrSessionInvalid) {
		t.Errorf("err = %v, want ErrSessionInvalid after revoke", err)
	}
}

func TestRevoke_EmptyToken_NoStoreAccess(t *testing.T) {
	repo := &mockSessionRepo{}
	m := NewManager(repo, time.Minute)

	if err := m.Revoke(context.Background(), ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if repo.deleteByTokenCalls != 0 {
		t.Errorf("delete calls = %d, want 0", repo.deleteByTokenCalls)
	}
}

func TestPurgeExpired_ReturnsDeletedCount(t *testing.T) {
	repo := &mockSessionRepo{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 3, nil
		},
	}
	m := NewManager(repo, time.Minute)

	n, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Errorf("purged = %d, want 3", n)
	}
}
