package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatekeep/internal/middleware"
	"github.com/hitoshi/gatekeep/internal/model"
)

// UserGetter はユーザーハンドラーが必要とする参照インターフェース。
type UserGetter interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// UserHandler はログイン済みユーザー情報のHTTPハンドラー。
type UserHandler struct {
	users UserGetter
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserGetter) *UserHandler {
	return &UserHandler{users: users}
}

// Me は現在のログインユーザー情報を返す。
// GET /me
// セッションミドルウェアを通過したリクエストでのみ到達する。
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.FindByID(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to find user", slog.String("error", err.Error()))
		middleware.WriteServiceUnavailable(w)
		return
	}
	if user == nil {
		// セッションは有効だがユーザーが消えている場合は認証エラー扱い
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}
