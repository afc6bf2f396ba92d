// Package model はドメインモデルを定義する。
package model

import "time"

// DayActivity は週間アクティビティの1日分を表す。
type DayActivity struct {
	Date    time.Time `json:"date"`
	Minutes int       `json:"minutes"`
	IsToday bool      `json:"is_today"`
}

// TrendDay は30日トレンドの1日分を表す。
// Completedはその日にcompleted_atがスタンプされたノート数。
type TrendDay struct {
	Date      time.Time `json:"date"`
	Minutes   int       `json:"minutes"`
	Completed int       `json:"completed"`
}

// PeakStudyTime は時間帯分布の集計結果を表す。
// セッション数が3件未満の場合はInsufficientDataがtrueになり、Peakは空になる。
type PeakStudyTime struct {
	Peak             string         `json:"peak,omitempty"`
	Counts           map[string]int `json:"counts"`
	TotalSessions    int            `json:"total_sessions"`
	InsufficientData bool           `json:"insufficient_data"`
}

// SubjectHours は科目ごとの累計学習時間（小数1桁の時間単位）を表す。
type SubjectHours struct {
	SubjectID string  `json:"subject_id"`
	Hours     float64 `json:"hours"`
}

// VelocityWindow は7日間ローリングウィンドウ1つ分の完了ノート数を表す。
type VelocityWindow struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Completed int       `json:"completed"`
}
