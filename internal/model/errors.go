package model

import "errors"

// 認証・認可処理のエラー種別。
// ErrInvalidInputとErrInvalidCredentialは外部には同一のメッセージとして
// 提示し、ユーザー名の存在有無を推測させない。
var (
	// ErrInvalidInput は空のユーザー名またはパスワードを示す。
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredential はユーザー不在またはパスワード不一致を示す。
	// 呼び出し元はどちらが原因かを区別できない。
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrStoreUnavailable は永続化層の障害を示す。
	// 詳細はログにのみ記録し、レスポンスには含めない。
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSessionInvalid は不在・期限切れ・失効済みのセッションを示す。
	ErrSessionInvalid = errors.New("session invalid")
)
