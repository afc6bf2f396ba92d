// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーの連続した学習区間を表す。
// クローズ後のセッションは必ず単一の暦日に収まる。
// 日付をまたぐ区間はクローズ時に日単位へ分割される。
type Session struct {
	ID              string
	UserID          string
	StartedAt       time.Time
	EndedAt         *time.Time // オープン中はnil
	SessionDate     time.Time  // ポリシータイムゾーンでのstarted_atの暦日
	DurationSeconds int        // クローズ時にのみ設定される
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen はセッションがまだクローズされていないかを返す。
func (s *Session) IsOpen() bool {
	return s.EndedAt == nil
}

// SessionSegment は日付分割後の1日分の区間を表す。
// リポジトリのCloseに渡される書き込み単位であり、永続化されるまでIDを持たない。
type SessionSegment struct {
	StartedAt       time.Time
	EndedAt         time.Time
	SessionDate     time.Time
	DurationSeconds int
}

// DailyMinutes は1暦日の学習分数を表す派生ビュー。
// セッションのduration_secondsをsession_dateごとに合計して得られる。
// 永続化されない。
type DailyMinutes struct {
	Date    time.Time
	Minutes int
}
