// Package progress はノート単位の学習進捗トラッキングを提供する。
// ノートの開閉イベントからの学習時間加算、完了フラグの冪等な管理、
// 科目ごとの進捗サマリーを担う。
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarvault/studylog/internal/clock"
	"github.com/scholarvault/studylog/internal/model"
	"github.com/scholarvault/studylog/internal/repository"
)

// Metrics はこのサービスが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordStudySeconds(seconds int)
	RecordNoteCompleted()
}

// Service はノート進捗のトラッキングサービス。
type Service struct {
	repo    repository.ProgressRepository
	policy  *clock.Policy
	metrics Metrics
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProgressRepository, policy *clock.Policy, metrics Metrics) *Service {
	return &Service{
		repo:    repo,
		policy:  policy,
		metrics: metrics,
	}
}

// StartNote はノートのオープンイベントを処理する。
// 完了済みノートの再オープンはrevisit_countを1増やす。
// 未完了・未記録のノートに対してはカウンタを作らず何もしない。
func (s *Service) StartNote(ctx context.Context, userID, noteID string, at time.Time) error {
	if err := s.repo.IncrementRevisit(ctx, userID, noteID, at); err != nil {
		return fmt.Errorf("再訪カウントの更新に失敗しました: %w", err)
	}
	return nil
}

// EndNote はノートのクローズイベントを処理し、学習時間を加算する。
// secondsが負の場合はINVALID_INTERVALエラーとなり、何も書き込まれない。
// last_study_dateはendedAtが属する暦日に更新される。
func (s *Service) EndNote(ctx context.Context, userID, noteID, subjectID string, seconds int, endedAt time.Time) error {
	if seconds < 0 {
		return model.NewInvalidIntervalError(
			fmt.Sprintf("学習時間が負の値です: %d秒", seconds))
	}

	studyDate := s.policy.DateOf(endedAt)
	if err := s.repo.AddStudyTime(ctx, userID, noteID, subjectID, seconds, studyDate, endedAt); err != nil {
		return fmt.Errorf("学習時間の加算に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordStudySeconds(seconds)
	}
	return nil
}

// SetCompletion はノートの完了フラグを設定し、更新後のレコードを返す。
// 既に完了済みのノートへの完了設定はcompleted_atを書き換えない（冪等）。
// 未完了への変更はcompleted_atをクリアするが、累計時間と再訪回数は保持する。
func (s *Service) SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error) {
	record, err := s.repo.SetCompletion(ctx, userID, noteID, subjectID, completed, at)
	if err != nil {
		return nil, fmt.Errorf("完了フラグの更新に失敗しました: %w", err)
	}

	// completed_atが今回の時刻でスタンプされた場合のみ新規完了とみなす
	if completed && record.CompletedAt != nil && record.CompletedAt.Equal(at) {
		slog.Info("ノートが完了しました",
			slog.String("user_id", userID),
			slog.String("note_id", noteID),
			slog.String("subject_id", subjectID),
		)
		if s.metrics != nil {
			s.metrics.RecordNoteCompleted()
		}
	}
	return record, nil
}

// GetNote は1ノートの進捗レコードを返す。見つからない場合はnilを返す。
func (s *Service) GetNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error) {
	record, err := s.repo.FindByUserAndNote(ctx, userID, noteID)
	if err != nil {
		return nil, fmt.Errorf("進捗レコードの取得に失敗しました: %w", err)
	}
	return record, nil
}

// GetSubjectProgress は科目ごとの進捗サマリーを返す。
// 記録が1件もない科目では各カウントが0、完了ノートID一覧が空になる。
func (s *Service) GetSubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	summary, err := s.repo.SubjectProgress(ctx, userID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("科目進捗の取得に失敗しました: %w", err)
	}
	return summary, nil
}
