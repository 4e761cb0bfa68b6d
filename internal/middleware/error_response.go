// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// メッセージは固定文言のみを使用し、ユーザー名や内部詳細を含めない。
type ErrorResponseBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteErrorResponse は統一フォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Status:  "error",
		Message: message,
	})
}

// WriteServiceUnavailable はストア障害時の統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteServiceUnavailable(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "service unavailable")
}
