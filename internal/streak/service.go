// Package streak は連続学習日数（ストリーク）の計算とフリーズ機構を提供する。
// current/longestはセッション履歴から読み取り時に毎回再計算され、
// 永続化されるのはフリーズトークンと有効期限のみ。
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarvault/studylog/internal/clock"
	"github.com/scholarvault/studylog/internal/model"
	"github.com/scholarvault/studylog/internal/repository"
)

// historyStart はストリーク履歴の読み取り開始日。
// longestの計算には全履歴が必要なため、十分に過去の固定日を使う。
var historyStart = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Metrics はこのサービスが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordFreezeActivated()
}

// Service はストリークエンジン。
type Service struct {
	streaks      repository.StreakRepository
	sessions     repository.SessionRepository
	policy       *clock.Policy
	minMinutes   int
	freezeWindow time.Duration
	metrics      Metrics
}

// NewService はServiceの新しいインスタンスを生成する。
// minMinutesはその日を「アクティブ」とみなす最低学習分数、
// freezeWindowはフリーズ1回の保護時間。
func NewService(streaks repository.StreakRepository, sessions repository.SessionRepository, policy *clock.Policy, minMinutes int, freezeWindow time.Duration, metrics Metrics) *Service {
	return &Service{
		streaks:      streaks,
		sessions:     sessions,
		policy:       policy,
		minMinutes:   minMinutes,
		freezeWindow: freezeWindow,
		metrics:      metrics,
	}
}

// Get は現在のストリーク状態を計算して返す。
// セッション履歴が1件もないユーザーでは全フィールドがゼロのビューを返す。
func (s *Service) Get(ctx context.Context, userID string, now time.Time) (*model.StreakView, error) {
	state, err := s.streaks.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フリーズ状態の取得に失敗しました: %w", err)
	}

	today := s.policy.DateOf(now)
	days, err := s.sessions.DailyMinutes(ctx, userID, historyStart, today)
	if err != nil {
		return nil, fmt.Errorf("日次学習履歴の取得に失敗しました: %w", err)
	}

	frozen := state != nil && state.FreezeActive(now)
	current, longest := ComputeStreaks(s.normalized(days), s.minMinutes, today, frozen)

	view := &model.StreakView{
		CurrentStreak: current,
		LongestStreak: longest,
		FreezeActive:  frozen,
	}
	if state != nil {
		view.FreezeTokens = state.FreezeTokens
		view.FreezeActiveUntil = state.FreezeActiveUntil
	}
	return view, nil
}

// ActivateFreeze はフリーズトークンを1枚消費し、now+freezeWindowまでの保護を開始する。
// トークンが0枚の場合はINSUFFICIENT_TOKENS、既に有効なフリーズがある場合は
// FREEZE_ALREADY_ACTIVEエラーを返す。判定と消費は単一のUPDATE文で行われるため、
// 並行呼び出しでもトークンが二重消費されることはない。
func (s *Service) ActivateFreeze(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error) {
	until := now.Add(s.freezeWindow)
	activated, err := s.streaks.TryActivateFreeze(ctx, userID, now, until)
	if err != nil {
		return nil, fmt.Errorf("フリーズの有効化に失敗しました: %w", err)
	}

	if !activated {
		// 条件付きUPDATEが不成立だった理由を現在の状態から判定する
		state, err := s.streaks.Find(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("フリーズ状態の取得に失敗しました: %w", err)
		}
		if state != nil && state.FreezeActive(now) {
			return nil, model.NewFreezeAlreadyActiveError()
		}
		return nil, model.NewInsufficientTokensError()
	}

	slog.Info("ストリークフリーズを有効化しました",
		slog.String("user_id", userID),
		slog.Time("active_until", until),
	)
	if s.metrics != nil {
		s.metrics.RecordFreezeActivated()
	}
	return s.FreezeStatus(ctx, userID, now)
}

// GrantTokens はフリーズトークンをn枚付与する。
// 付与の判断基準（継続報酬など）は呼び出し側のポリシーに委ね、
// ここではカウンタの加算と監査ログのみを行う。nが1未満の場合はエラーを返す。
func (s *Service) GrantTokens(ctx context.Context, userID string, n int, now time.Time) (*model.FreezeStatus, error) {
	if n < 1 {
		return nil, model.NewInvalidRequestError("付与するトークン数は1以上である必要があります")
	}

	state, err := s.streaks.GrantTokens(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("フリーズトークンの付与に失敗しました: %w", err)
	}

	slog.Info("フリーズトークンを付与しました",
		slog.String("user_id", userID),
		slog.Int("granted", n),
		slog.Int("tokens", state.FreezeTokens),
	)
	return &model.FreezeStatus{
		Tokens:      state.FreezeTokens,
		Active:      state.FreezeActive(now),
		ActiveUntil: state.FreezeActiveUntil,
	}, nil
}

// FreezeStatus は現在のフリーズ状態を返す。
// 状態行がまだ存在しないユーザーではトークン0枚・無効として扱う。
func (s *Service) FreezeStatus(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error) {
	state, err := s.streaks.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フリーズ状態の取得に失敗しました: %w", err)
	}
	if state == nil {
		return &model.FreezeStatus{}, nil
	}
	return &model.FreezeStatus{
		Tokens:      state.FreezeTokens,
		Active:      state.FreezeActive(now),
		ActiveUntil: state.FreezeActiveUntil,
	}, nil
}

// normalized はDATE列由来の日付をポリシータイムゾーンの00:00へ正規化する。
func (s *Service) normalized(days []model.DailyMinutes) []model.DailyMinutes {
	out := make([]model.DailyMinutes, len(days))
	for i, d := range days {
		out[i] = model.DailyMinutes{
			Date:    s.policy.NormalizeDate(d.Date),
			Minutes: d.Minutes,
		}
	}
	return out
}

// ComputeStreaks は日次学習分数の履歴からcurrent/longestストリークを計算する純粋関数。
// daysは日付昇順であること。minMinutes以上学習した日をアクティブ日とし、
// 連続するアクティブ日の並びをランとして数える。
// 最後のアクティブ日がtodayでなく、かつフリーズも有効でない場合、currentは0になる。
// フリーズは欠けた日を保護するだけで、その日自体をアクティブ日として数えはしない。
func ComputeStreaks(days []model.DailyMinutes, minMinutes int, today time.Time, frozen bool) (current, longest int) {
	var run int
	var lastActive time.Time

	for _, d := range days {
		if d.Minutes < minMinutes {
			continue
		}
		if !lastActive.IsZero() && d.Date.Equal(lastActive.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		lastActive = d.Date
	}

	if lastActive.IsZero() {
		return 0, longest
	}
	if !lastActive.Equal(today) && !frozen {
		return 0, longest
	}
	return run, longest
}
