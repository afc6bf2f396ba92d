// Package model はドメインモデルを定義する。
package model

import "time"

// ProgressRecord は1ユーザーと1ノートの学習状況を表す。
// (user_id, note_id)で一意。初回のnote.start/note.completeで遅延生成され、
// note.endごとに学習時間が加算される。
type ProgressRecord struct {
	ID                    string
	UserID                string
	NoteID                string
	SubjectID             string
	IsCompleted           bool
	CompletedAt           *time.Time // is_completedがtrueの場合のみ非nil
	TotalTimeSpentSeconds int        // 単調非減少
	LastStudyDate         *time.Time // ポリシータイムゾーンでの最終学習日
	RevisitCount          int        // 完了済みノートの再オープン回数
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SubjectProgress は科目ごとの進捗サマリーを表す。
// 分母となる総ユニット数は外部のノートカタログが持つため、
// このエンジンは記録済みレコードの集計のみを返す。
type SubjectProgress struct {
	SubjectID        string
	CompletedCount   int
	TrackedCount     int
	CompletedNoteIDs []string
}
