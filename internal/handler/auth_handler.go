// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/gatekeep/internal/metrics"
	"github.com/hitoshi/gatekeep/internal/middleware"
	"github.com/hitoshi/gatekeep/internal/model"
)

// invalidCredentialsMessage はログイン失敗時の固定メッセージ。
// ユーザー不在・パスワード不一致・入力不備のいずれでも同一の文言を返す。
const invalidCredentialsMessage = "invalid credentials"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (*model.Session, error)
	CheckAdmin(ctx context.Context, token string, targetUserID int64) bool
	Logout(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	SessionTTL   time.Duration
}

// AuthHandler はログイン・ログアウト・管理者チェックのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.Recorder
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil許容。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, m metrics.Recorder) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: m,
	}
}

// loginRequest はログインリクエストのJSONボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功レスポンスのJSONボディ。
type loginResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// statusResponse は結果ステータスのみのJSONボディ。
type statusResponse struct {
	Status string `json:"status"`
}

// Login は資格情報を検証し、成功時にセッションを発行する。
// POST /login
// セッショントークンはHTTP Only Cookieとレスポンスボディの両方で返し、
// URLには決して含めない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// 不正なボディも資格情報エラーと同一の応答にする
		h.recordLoginFailure("malformed_body")
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	h.recordLoginLatency(time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			h.recordLoginFailure("invalid_input")
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, invalidCredentialsMessage)
		case errors.Is(err, model.ErrInvalidCredential):
			h.recordLoginFailure("invalid_credential")
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, invalidCredentialsMessage)
		default:
			h.recordLoginFailure("store_unavailable")
			middleware.WriteServiceUnavailable(w)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
		h.metrics.RecordSessionIssued()
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Status:  "success",
		Session: session.Token,
	})
}

// Logout はセッションを失効させ、Cookieをクリアする。
// POST /logout
// 既に無効なセッションでも成功として扱う（冪等）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// 失効に失敗してもCookieはクリアする
		} else if h.metrics != nil {
			h.metrics.RecordSessionRevoked()
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{Status: "success"})
}

// Admin は呼び出し元セッションの管理者権限を判定する。
// GET /admin
// 判定は検証済みセッションのロールのみから導出する。user_idクエリパラメータは
// 監査ログに記録するだけで、認可判定には使用しない。
// 許可・拒否のどちらも同一のコードパスを通り、応答時間に差を作らない。
func (h *AuthHandler) Admin(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		token = cookie.Value
	}

	// 監査用: リクエストに添えられたユーザーIDは記録のみ
	var targetUserID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			targetUserID = parsed
		}
	}

	granted := h.service.CheckAdmin(r.Context(), token, targetUserID)

	if h.metrics != nil {
		h.metrics.RecordAdminCheck(granted)
	}

	slog.Info("admin check",
		slog.Bool("granted", granted),
		slog.Int64("target_user_id", targetUserID),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)

	w.Header().Set("Content-Type", "application/json")
	if !granted {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(statusResponse{Status: "access_denied"})
		return
	}

	json.NewEncoder(w).Encode(statusResponse{Status: "admin_access_granted"})
}

func (h *AuthHandler) recordLoginFailure(reason string) {
	if h.metrics != nil {
		h.metrics.RecordLoginFailure(reason)
	}
}

func (h *AuthHandler) recordLoginLatency(d time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordLoginLatency(d)
	}
}
