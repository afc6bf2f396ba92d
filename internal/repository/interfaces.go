// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/scholarvault/studylog/internal/model"
)

// SplitFunc は開始時刻と終了時刻から日単位のセグメント列を計算する。
// 暦日境界の解釈はサービス層の責務であり、リポジトリは
// トランザクション内でこの関数を呼び出して書き込み単位を得る。
// 終了時刻が開始時刻より前の場合はエラーを返し、書き込みは行われない。
type SplitFunc func(startedAt, endedAt time.Time) ([]model.SessionSegment, error)

// SessionRepository は学習セッションの永続化インターフェース。
// オープンセッションの読み書きは行ロックで直列化される。
type SessionRepository interface {
	// FindOpen は指定ユーザーのオープンセッションを取得する。見つからない場合はnilを返す。
	FindOpen(ctx context.Context, userID string) (*model.Session, error)

	// Open は新しいオープンセッションを作成する。
	// 既存のオープンセッションがある場合は、新セッションの開始時刻を終了時刻として
	// splitで分割クローズしてから作成する（session.end欠落からの自己修復）。
	// 全体を1トランザクションで実行する。
	Open(ctx context.Context, session *model.Session, split SplitFunc) error

	// Close はオープンセッションをsplitの結果に従いクローズする。
	// オープンセッションが存在しない場合は(false, nil)を返す（冪等なno-op）。
	// 分割行の書き込みは全件成功か全件なしのいずれかになる。
	Close(ctx context.Context, userID string, endedAt time.Time, split SplitFunc) (bool, error)

	// DailyMinutes はクローズ済みセッションをsession_dateごとに合計し、
	// from〜to（両端含む）の日次学習分数を昇順で返す。記録のない日は含まれない。
	DailyMinutes(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error)

	// ListStartTimes は指定ユーザーの全セッションのstarted_atを返す。
	// 時間帯分布の集計に使用する。
	ListStartTimes(ctx context.Context, userID string) ([]time.Time, error)

	// ListStaleOpen はolderThanより前に開始され放置されているオープンセッションを返す。
	// スイーパーのクローズ対象抽出に使用する。
	ListStaleOpen(ctx context.Context, olderThan time.Time) ([]*model.Session, error)
}

// SubjectSeconds は科目ごとの累計学習秒数を表す。
type SubjectSeconds struct {
	SubjectID    string
	TotalSeconds int
}

// ProgressRepository はノート進捗の永続化インターフェース。
// 同一(user_id, note_id)への並行呼び出しでも更新が失われないよう、
// 加算系の更新はすべてアトミックなUPSERT/UPDATEで行う。
type ProgressRepository interface {
	// FindByUserAndNote は進捗レコードを取得する。見つからない場合はnilを返す。
	FindByUserAndNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error)

	// IncrementRevisit は完了済みレコードのrevisit_countを1増やす。
	// レコードが存在しない、または未完了の場合は何もしない。
	IncrementRevisit(ctx context.Context, userID, noteID string, at time.Time) error

	// AddStudyTime はtotal_time_spent_secondsへsecondsをアトミックに加算し、
	// last_study_dateをstudyDateに更新する。レコードがなければ遅延生成する。
	AddStudyTime(ctx context.Context, userID, noteID, subjectID string, seconds int, studyDate, at time.Time) error

	// SetCompletion は完了フラグを冪等に設定する。
	// 既にtrueのレコードへのtrue設定はcompleted_atを再スタンプしない。
	// falseへの変更はcompleted_atをクリアするが、累計時間とrevisit_countは保持する。
	SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error)

	// SubjectProgress は科目ごとの完了数・記録済み数・完了ノートID一覧を返す。
	SubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error)

	// SubjectTimeTotals は科目ごとの累計学習秒数を降順で返す。
	SubjectTimeTotals(ctx context.Context, userID string) ([]SubjectSeconds, error)

	// ListCompletedSince はcompleted_atがsince以降のレコードの完了時刻を返す。
	// 30日トレンドとベロシティの集計に使用する。
	ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

// StreakRepository はフリーズ状態の永続化インターフェース。
type StreakRepository interface {
	// Find は指定ユーザーのフリーズ状態を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, userID string) (*model.StreakState, error)

	// TryActivateFreeze はトークンが残っており、かつ有効なフリーズがない場合に限り、
	// トークンを1消費してfreeze_active_untilをuntilに設定する。
	// 1つのUPDATE文の条件として判定するため、並行呼び出しでも二重消費しない。
	// 条件を満たさず更新されなかった場合は(false, nil)を返す。
	TryActivateFreeze(ctx context.Context, userID string, now, until time.Time) (bool, error)

	// GrantTokens はフリーズトークンをn枚付与する。行がなければ遅延生成する。
	// 付与ポリシー自体は外部の関心事であり、ここではカウンタ契約のみを提供する。
	GrantTokens(ctx context.Context, userID string, n int) (*model.StreakState, error)
}
