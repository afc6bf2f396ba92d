// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, streak, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInsufficientTokens  = "INSUFFICIENT_TOKENS"
	ErrCodeFreezeAlreadyActive = "FREEZE_ALREADY_ACTIVE"
	ErrCodeInvalidInterval     = "INVALID_INTERVAL"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeSubjectRequired     = "SUBJECT_REQUIRED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// NewInsufficientTokensError はフリーズトークン不足エラーを生成する。
func NewInsufficientTokensError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientTokens,
		Message:  "ストリークフリーズのトークンが不足しています。",
		Category: "streak",
		Action:   "トークンを獲得してから再度お試しください。",
	}
}

// NewFreezeAlreadyActiveError はフリーズ重複起動エラーを生成する。
func NewFreezeAlreadyActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeFreezeAlreadyActive,
		Message:  "ストリークフリーズは既に有効です。",
		Category: "streak",
		Action:   "現在のフリーズの有効期限が切れてから再度お試しください。",
	}
}

// NewInvalidIntervalError は開始時刻より前の終了時刻を拒否するエラーを生成する。
func NewInvalidIntervalError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInterval,
		Message:  fmt.Sprintf("無効な時間区間です: %s", reason),
		Category: "validation",
		Action:   "クライアントの時刻設定を確認し、再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewSubjectRequiredError は科目ID未指定エラーを生成する。
func NewSubjectRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSubjectRequired,
		Message:  "科目IDが指定されていません。",
		Category: "validation",
		Action:   "subject_idを指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
