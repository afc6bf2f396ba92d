// Package model はドメインモデルを定義する。
package model

import "time"

// StreakState はユーザーごとのフリーズ状態を表す永続行。
// current/longestストリークは読み取り時にセッション履歴から再計算されるため、
// ここにはフリーズ関連のフィールドのみを持つ。
type StreakState struct {
	UserID            string
	FreezeTokens      int        // 残りフリーズトークン数（0以上）
	FreezeActiveUntil *time.Time // 有効なフリーズの期限。未使用時はnil
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FreezeActive は指定時刻においてフリーズが有効かを返す。
func (s *StreakState) FreezeActive(now time.Time) bool {
	return s.FreezeActiveUntil != nil && s.FreezeActiveUntil.After(now)
}

// StreakView はストリーク照会APIのレスポンスビュー。
// current/longestはセッション履歴から読み取り時に計算された値。
type StreakView struct {
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	FreezeTokens      int        `json:"freeze_tokens"`
	FreezeActive      bool       `json:"freeze_active"`
	FreezeActiveUntil *time.Time `json:"freeze_active_until,omitempty"`
}

// FreezeStatus はフリーズ状態照会APIのレスポンスビュー。
type FreezeStatus struct {
	Tokens      int        `json:"tokens"`
	Active      bool       `json:"active"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
}
