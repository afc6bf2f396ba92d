// Package analytics はダッシュボード向けの読み取り専用集計ビューを提供する。
// すべてのビューはセッションと進捗レコードから導出され、追加の永続状態を持たない。
// 履歴が空のユーザーでもエラーにせず、ゼロ埋めした構造を返す。
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/scholarvault/studylog/internal/clock"
	"github.com/scholarvault/studylog/internal/model"
	"github.com/scholarvault/studylog/internal/repository"
)

const (
	weeklyDays = 7
	trendDays  = 30

	// 時間帯分布のモードを報告する最低セッション数。
	// これ未満では分布が偶然に支配されるため「データ不足」として扱う。
	peakMinSessions = 3

	velocityWindows    = 8
	velocityWindowDays = 7

	subjectTimeTopN = 5
)

// Metrics はこのサービスが記録するメトリクスのインターフェース。
type Metrics interface {
	ObserveAnalyticsLatency(view string, elapsed time.Duration)
}

// Service は集計ビューの読み取りサービス。
type Service struct {
	sessions repository.SessionRepository
	progress repository.ProgressRepository
	policy   *clock.Policy
	metrics  Metrics
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessions repository.SessionRepository, progress repository.ProgressRepository, policy *clock.Policy, metrics Metrics) *Service {
	return &Service{
		sessions: sessions,
		progress: progress,
		policy:   policy,
		metrics:  metrics,
	}
}

func (s *Service) observe(view string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAnalyticsLatency(view, time.Since(started))
	}
}

// WeeklyActivity は直近7日間（今日を含む、古い順）の日次学習分数を返す。
// 記録のない日はminutes 0で埋められ、今日に当たるエントリにはフラグが付く。
func (s *Service) WeeklyActivity(ctx context.Context, userID string, now time.Time) ([]model.DayActivity, error) {
	defer s.observe("weekly", time.Now())

	today := s.policy.DateOf(now)
	from := today.AddDate(0, 0, -(weeklyDays - 1))

	minutes, err := s.minutesByDate(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}

	out := make([]model.DayActivity, 0, weeklyDays)
	for d := from; !d.After(today); d = s.policy.NextDay(d) {
		out = append(out, model.DayActivity{
			Date:    d,
			Minutes: minutes[d],
			IsToday: d.Equal(today),
		})
	}
	return out, nil
}

// MonthlyTrend は直近30日間（今日を含む、古い順）の日次学習分数と
// 日次完了ノート数を返す。
func (s *Service) MonthlyTrend(ctx context.Context, userID string, now time.Time) ([]model.TrendDay, error) {
	defer s.observe("monthly", time.Now())

	today := s.policy.DateOf(now)
	from := today.AddDate(0, 0, -(trendDays - 1))

	minutes, err := s.minutesByDate(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}

	completedAts, err := s.progress.ListCompletedSince(ctx, userID, from)
	if err != nil {
		return nil, fmt.Errorf("完了履歴の取得に失敗しました: %w", err)
	}
	completed := make(map[time.Time]int)
	for _, at := range completedAts {
		completed[s.policy.DateOf(at)]++
	}

	out := make([]model.TrendDay, 0, trendDays)
	for d := from; !d.After(today); d = s.policy.NextDay(d) {
		out = append(out, model.TrendDay{
			Date:      d,
			Minutes:   minutes[d],
			Completed: completed[d],
		})
	}
	return out, nil
}

// PeakStudyTime は全セッションの開始時刻を時間帯バケットに振り分け、
// セッション数が最多の時間帯をモードとして返す。
// 同数の場合は朝→昼→夕→夜の順で先に現れた方を採用する。
// セッションが3件未満の場合はデータ不足として報告する。
func (s *Service) PeakStudyTime(ctx context.Context, userID string) (*model.PeakStudyTime, error) {
	defer s.observe("peak", time.Now())

	starts, err := s.sessions.ListStartTimes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッション開始時刻の取得に失敗しました: %w", err)
	}

	counts := map[string]int{
		string(clock.BucketMorning):   0,
		string(clock.BucketAfternoon): 0,
		string(clock.BucketEvening):   0,
		string(clock.BucketNight):     0,
	}
	for _, t := range starts {
		counts[string(clock.BucketOf(s.policy.HourOf(t)))]++
	}

	result := &model.PeakStudyTime{
		Counts:        counts,
		TotalSessions: len(starts),
	}
	if len(starts) < peakMinSessions {
		result.InsufficientData = true
		return result, nil
	}

	order := []clock.TimeBucket{clock.BucketMorning, clock.BucketAfternoon, clock.BucketEvening, clock.BucketNight}
	best := order[0]
	for _, b := range order[1:] {
		if counts[string(b)] > counts[string(best)] {
			best = b
		}
	}
	result.Peak = string(best)
	return result, nil
}

// SubjectTime は科目ごとの累計学習時間を時間単位（小数1桁）に変換し、
// 降順の上位5件を返す。
func (s *Service) SubjectTime(ctx context.Context, userID string) ([]model.SubjectHours, error) {
	defer s.observe("subjects", time.Now())

	totals, err := s.progress.SubjectTimeTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("科目別学習時間の取得に失敗しました: %w", err)
	}

	if len(totals) > subjectTimeTopN {
		totals = totals[:subjectTimeTopN]
	}
	out := make([]model.SubjectHours, 0, len(totals))
	for _, t := range totals {
		out = append(out, model.SubjectHours{
			SubjectID: t.SubjectID,
			Hours:     math.Round(float64(t.TotalSeconds)/3600*10) / 10,
		})
	}
	return out, nil
}

// Velocity は今日で終わる直近8個の連続7日間ウィンドウそれぞれの
// 完了ノート数を古い順に返す。ストリークが遅行指標であるのに対し、
// ペースの先行指標として使われる。
func (s *Service) Velocity(ctx context.Context, userID string, now time.Time) ([]model.VelocityWindow, error) {
	defer s.observe("velocity", time.Now())

	today := s.policy.DateOf(now)
	oldest := today.AddDate(0, 0, -(velocityWindows*velocityWindowDays - 1))

	completedAts, err := s.progress.ListCompletedSince(ctx, userID, oldest)
	if err != nil {
		return nil, fmt.Errorf("完了履歴の取得に失敗しました: %w", err)
	}

	out := make([]model.VelocityWindow, velocityWindows)
	for i := 0; i < velocityWindows; i++ {
		to := today.AddDate(0, 0, -(velocityWindows-1-i)*velocityWindowDays)
		out[i] = model.VelocityWindow{
			From: to.AddDate(0, 0, -(velocityWindowDays - 1)),
			To:   to,
		}
	}

	for _, at := range completedAts {
		d := s.policy.DateOf(at)
		// DSTで23/25時間の日があっても日数が1日ずれないよう丸める
		daysAgo := int(math.Round(today.Sub(d).Hours() / 24))
		if daysAgo < 0 || daysAgo >= velocityWindows*velocityWindowDays {
			continue
		}
		idx := velocityWindows - 1 - daysAgo/velocityWindowDays
		out[idx].Completed++
	}
	return out, nil
}

// minutesByDate は日次学習分数を正規化済みの日付をキーとするマップで返す。
func (s *Service) minutesByDate(ctx context.Context, userID string, from, to time.Time) (map[time.Time]int, error) {
	days, err := s.sessions.DailyMinutes(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("日次学習履歴の取得に失敗しました: %w", err)
	}
	out := make(map[time.Time]int, len(days))
	for _, d := range days {
		out[s.policy.NormalizeDate(d.Date)] = d.Minutes
	}
	return out, nil
}
