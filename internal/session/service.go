// Package session は学習セッションのライフサイクル管理を提供する。
// セッションの開始・クローズ、日付をまたぐ区間の日単位分割、
// session.end欠落からの自己修復を担う。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scholarvault/studylog/internal/clock"
	"github.com/scholarvault/studylog/internal/model"
	"github.com/scholarvault/studylog/internal/repository"
)

// Metrics はこのサービスが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordSessionStarted()
	RecordSessionClosed(segments int)
}

// Service は学習セッションのライフサイクルマネージャ。
// ストリークや週間チャートが「実際に学習した日」へ時間を帰属できるよう、
// 日付をまたぐセッションはクローズ時に暦日単位へ分割する。
type Service struct {
	repo    repository.SessionRepository
	policy  *clock.Policy
	metrics Metrics
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SessionRepository, policy *clock.Policy, metrics Metrics) *Service {
	return &Service{
		repo:    repo,
		policy:  policy,
		metrics: metrics,
	}
}

// Start は新しいセッションを開き、そのIDを返す。
// 前回のセッションがクローズされないまま残っている場合（タブのクラッシュ等）は、
// startedAtを終了時刻として先に分割クローズする。
func (s *Service) Start(ctx context.Context, userID string, startedAt time.Time) (string, error) {
	now := time.Now().UTC()
	newSession := &model.Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		StartedAt:   startedAt,
		SessionDate: s.policy.DateOf(startedAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Open(ctx, newSession, s.splitClamped); err != nil {
		return "", fmt.Errorf("セッションの開始に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionStarted()
	}
	return newSession.ID, nil
}

// End はオープンセッションをクローズする。
// オープンセッションが存在しない場合は(false, nil)を返す。
// visibilitychangeとbeforeunloadの両方から届く重複endイベントはここで吸収される。
// endedAtがセッション開始より前の場合はINVALID_INTERVALエラーとなり、何も書き込まれない。
func (s *Service) End(ctx context.Context, userID string, endedAt time.Time) (bool, error) {
	var segmentCount int
	split := func(startedAt, end time.Time) ([]model.SessionSegment, error) {
		segments, err := s.SplitByDay(startedAt, end)
		if err != nil {
			return nil, err
		}
		segmentCount = len(segments)
		return segments, nil
	}

	closed, err := s.repo.Close(ctx, userID, endedAt, split)
	if err != nil {
		return false, err
	}

	if closed {
		if segmentCount > 1 {
			slog.Info("日付をまたぐセッションを分割しました",
				slog.String("user_id", userID),
				slog.Int("segments", segmentCount),
			)
		}
		if s.metrics != nil {
			s.metrics.RecordSessionClosed(segmentCount)
		}
	}
	return closed, nil
}

// SplitByDay は[startedAt, endedAt]の区間を暦日単位のセグメント列に分割する。
// 各セグメントは[max(startedAt, 日の開始), min(endedAt, 日の終了)]で区切られ、
// duration_secondsの合計は必ず元の区間長と一致する。
// endedAtがstartedAtより前の場合はINVALID_INTERVALエラーを返す。
func (s *Service) SplitByDay(startedAt, endedAt time.Time) ([]model.SessionSegment, error) {
	if endedAt.Before(startedAt) {
		return nil, model.NewInvalidIntervalError(
			fmt.Sprintf("終了時刻 %s が開始時刻 %s より前です",
				endedAt.Format(time.RFC3339), startedAt.Format(time.RFC3339)))
	}

	var segments []model.SessionSegment
	cur := startedAt
	for {
		dayEnd := s.policy.StartOfNextDay(cur)
		segEnd := endedAt
		if dayEnd.Before(endedAt) {
			segEnd = dayEnd
		}

		segments = append(segments, model.SessionSegment{
			StartedAt:       cur,
			EndedAt:         segEnd,
			SessionDate:     s.policy.DateOf(cur),
			DurationSeconds: int(segEnd.Sub(cur).Seconds()),
		})

		if !segEnd.Before(endedAt) {
			break
		}
		cur = segEnd
	}

	return segments, nil
}

// splitClamped は自己修復クローズ用の分割関数。
// クロックスキューで終了時刻が開始時刻より前になっていても、
// セッション開始を妨げないようduration 0の単一セグメントへ丸める。
func (s *Service) splitClamped(startedAt, endedAt time.Time) ([]model.SessionSegment, error) {
	if endedAt.Before(startedAt) {
		return []model.SessionSegment{{
			StartedAt:       startedAt,
			EndedAt:         startedAt,
			SessionDate:     s.policy.DateOf(startedAt),
			DurationSeconds: 0,
		}}, nil
	}
	return s.SplitByDay(startedAt, endedAt)
}
