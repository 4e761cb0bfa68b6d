package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/gatekeep/internal/middleware"
	"github.com/hitoshi/gatekeep/internal/model"
)

type mockAuthService struct {
	loginFn      func(ctx context.Context, username, password string) (*model.Session, error)
	checkAdminFn func(ctx context.Context, token string, targetUserID int64) bool
	logoutFn     func(ctx context.Context, token string) error
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, model.ErrInvalidCredential
}

func (m *mockAuthService) CheckAdmin(ctx context.Context, token string, targetUserID int64) bool {
	if m.checkAdminFn != nil {
		return m.checkAdminFn(ctx, token, targetUserID)
	}
	return false
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieSecure: false,
		SessionTTL:   30 * time.Minute,
	}
}

func postLogin(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLogin_Success_SetsCookieAndReturnsToken(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			if username != "alice" || password != "correct-pw" {
				t.Errorf("credentials = (%q, %q), want (alice, correct-pw)", username, password)
			}
			return &model.Session{Token: "fresh-token", UserID: 1, Role: model.RoleUser}, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	rec := postLogin(t, h, `{"username":"alice","password":"correct-pw"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "success" || body.Session != "fresh-token" {
		t.Errorf("body = %+v, want {success fresh-token}", body)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie should be set")
	}
	if sessionCookie.Value != "fresh-token" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "fresh-token")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HTTP only")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", sessionCookie.SameSite)
	}
	if sessionCookie.MaxAge != int((30 * time.Minute).Seconds()) {
		t.Errorf("MaxAge = %d, want %d", sessionCookie.MaxAge, 1800)
	}
}

func TestLogin_FailureResponsesAreIdentical(t *testing.T) {
	// ユーザー不在・パスワード不一致・入力不備・不正ボディのすべてで
	// ステータスとボディが完全に一致すること
	cases := []struct {
		name string
		body string
		err  error
	}{
		{"unknown user", `{"username":"ghost","password":"pw"}`, model.ErrInvalidCredential},
		{"wrong password", `{"username":"alice","password":"wrong"}`, model.ErrInvalidCredential},
		{"empty input", `{"username":"","password":""}`, model.ErrInvalidInput},
		{"malformed body", `{not json`, nil},
	}

	var bodies []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &mockAuthService{
				loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
					return nil, tc.err
				},
			}
			h := NewAuthHandler(service, testAuthConfig(), nil)

			rec := postLogin(t, h, tc.body)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}

			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Message != invalidCredentialsMessage {
				t.Errorf("message = %q, want %q", body.Message, invalidCredentialsMessage)
			}
			bodies = append(bodies, body.Message)
		})
	}

	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("failure bodies differ: %q vs %q", bodies[i], bodies[0])
		}
	}
}

func TestLogin_StoreFault_Returns500(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			return nil, model.ErrStoreUnavailable
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	rec := postLogin(t, h, `{"username":"alice","password":"pw"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	// ストア障害の詳細を外部に出さないこと
	if body.Message != "service unavailable" {
		t.Errorf("message = %q, want %q", body.Message, "service unavailable")
	}
}

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	var revoked string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "live-token"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if revoked != "live-token" {
		t.Errorf("revoked = %q, want %q", revoked, "live-token")
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared")
	}
}

func TestLogout_WithoutCookie_StillSucceeds(t *testing.T) {
	var logoutCalls int
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			logoutCalls++
			return nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	// Cookieなしのログアウトも成功として扱う（冪等）
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if logoutCalls != 0 {
		t.Errorf("logout calls = %d, want 0", logoutCalls)
	}

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "success" {
		t.Errorf("status = %q, want %q", body.Status, "success")
	}
}

func TestAdmin_Granted(t *testing.T) {
	service := &mockAuthService{
		checkAdminFn: func(ctx context.Context, token string, targetUserID int64) bool {
			if token != "admin-token" {
				t.Errorf("token = %q, want %q", token, "admin-token")
			}
			return true
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "admin-token"})
	rec := httptest.NewRecorder()
	h.Admin(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "admin_access_granted" {
		t.Errorf("status = %q, want %q", body.Status, "admin_access_granted")
	}
}

func TestAdmin_Denied(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "user-token"})
	rec := httptest.NewRecorder()
	h.Admin(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	var body statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "access_denied" {
		t.Errorf("status = %q, want %q", body.Status, "access_denied")
	}
}

func TestAdmin_MissingCookie_Denied(t *testing.T) {
	var sawToken string
	service := &mockAuthService{
		checkAdminFn: func(ctx context.Context, token string, targetUserID int64) bool {
			sawToken = token
			return false
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	h.Admin(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if sawToken != "" {
		t.Errorf("token = %q, want empty", sawToken)
	}
}

func TestAdmin_UserIDQueryIsAuditOnly(t *testing.T) {
	var sawTarget int64
	service := &mockAuthService{
		checkAdminFn: func(ctx context.Context, token string, targetUserID int64) bool {
			sawTarget = targetUserID
			// 判定はセッションのロールのみで行われ、target値では変わらない
			return false
		},
	}
	h := NewAuthHandler(service, testAuthConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin?user_id=99", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "user-token"})
	rec := httptest.NewRecorder()
	h.Admin(rec, req)

	if sawTarget != 99 {
		t.Errorf("target user id = %d, want 99", sawTarget)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
