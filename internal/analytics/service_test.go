package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/scholarvault/studylog/internal/clock"
	"github.com/scholarvault/studylog/internal/model"
	"github.com/scholarvault/studylog/internal/repository"
)

// --- モック ---

type mockSessionRepo struct {
	dailyMinutesFn   func(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error)
	listStartTimesFn func(ctx context.Context, userID string) ([]time.Time, error)
}

func (m *mockSessionRepo) FindOpen(ctx context.Context, userID string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) Open(ctx context.Context, s *model.Session, split repository.SplitFunc) error {
	return nil
}

func (m *mockSessionRepo) Close(ctx context.Context, userID string, endedAt time.Time, split repository.SplitFunc) (bool, error) {
	return false, nil
}

func (m *mockSessionRepo) DailyMinutes(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error) {
	if m.dailyMinutesFn == nil {
		return nil, nil
	}
	return m.dailyMinutesFn(ctx, userID, from, to)
}

func (m *mockSessionRepo) ListStartTimes(ctx context.Context, userID string) ([]time.Time, error) {
	if m.listStartTimesFn == nil {
		return nil, nil
	}
	return m.listStartTimesFn(ctx, userID)
}

func (m *mockSessionRepo) ListStaleOpen(ctx context.Context, olderThan time.Time) ([]*model.Session, error) {
	return nil, nil
}

type mockProgressRepo struct {
	subjectTimeTotalsFn  func(ctx context.Context, userID string) ([]repository.SubjectSeconds, error)
	listCompletedSinceFn func(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

func (m *mockProgressRepo) FindByUserAndNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error) {
	return nil, nil
}

func (m *mockProgressRepo) IncrementRevisit(ctx context.Context, userID, noteID string, at time.Time) error {
	return nil
}

func (m *mockProgressRepo) AddStudyTime(ctx context.Context, userID, noteID, subjectID string, seconds int, studyDate, at time.Time) error {
	return nil
}

func (m *mockProgressRepo) SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error) {
	return nil, nil
}

func (m *mockProgressRepo) SubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	return nil, nil
}

func (m *mockProgressRepo) SubjectTimeTotals(ctx context.Context, userID string) ([]repository.SubjectSeconds, error) {
	if m.subjectTimeTotalsFn == nil {
		return nil, nil
	}
	return m.subjectTimeTotalsFn(ctx, userID)
}

func (m *mockProgressRepo) ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	if m.listCompletedSinceFn == nil {
		return nil, nil
	}
	return m.listCompletedSinceFn(ctx, userID, since)
}

func newTestService(sessions *mockSessionRepo, progress *mockProgressRepo) *Service {
	return NewService(sessions, progress, clock.NewPolicy(time.UTC), nil)
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// --- WeeklyActivity ---

// 新規ユーザーで7件のゼロ埋めエントリが返ることを検証
func TestService_WeeklyActivity_EmptyHistory(t *testing.T) {
	svc := newTestService(&mockSessionRepo{}, &mockProgressRepo{})
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	entries, err := svc.WeeklyActivity(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("WeeklyActivity returned error: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Minutes != 0 {
			t.Errorf("entry %d minutes = %d, want 0", i, e.Minutes)
		}
	}
	if !entries[6].IsToday {
		t.Error("expected last entry to be flagged as today")
	}
	if !entries[0].Date.Equal(day(2025, 6, 4)) {
		t.Errorf("first date = %v, want 2025-06-04", entries[0].Date)
	}
}

// 記録のある日だけ分数が埋まり、順序が古い順であることを検証
func TestService_WeeklyActivity_FillsRecordedDays(t *testing.T) {
	sessions := &mockSessionRepo{
		dailyMinutesFn: func(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error) {
			return []model.DailyMinutes{
				{Date: day(2025, 6, 5), Minutes: 45},
				{Date: day(2025, 6, 10), Minutes: 90},
			}, nil
		},
	}
	svc := newTestService(sessions, &mockProgressRepo{})
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	entries, err := svc.WeeklyActivity(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("WeeklyActivity returned error: %v", err)
	}
	if entries[1].Minutes != 45 {
		t.Errorf("6/5 minutes = %d, want 45", entries[1].Minutes)
	}
	if entries[6].Minutes != 90 {
		t.Errorf("today minutes = %d, want 90", entries[6].Minutes)
	}
	if entries[0].Minutes != 0 {
		t.Errorf("6/4 minutes = %d, want 0", entries[0].Minutes)
	}
}

// --- MonthlyTrend ---

// 30件のエントリに分数と完了数の両方が埋まることを検証
func TestService_MonthlyTrend(t *testing.T) {
	sessions := &mockSessionRepo{
		dailyMinutesFn: func(ctx context.Context, userID string, from, to time.Time) ([]model.DailyMinutes, error) {
			return []model.DailyMinutes{{Date: day(2025, 6, 1), Minutes: 60}}, nil
		},
	}
	progress := &mockProgressRepo{
		listCompletedSinceFn: func(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
			return []time.Time{
				time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	svc := newTestService(sessions, progress)
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	entries, err := svc.MonthlyTrend(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("MonthlyTrend returned error: %v", err)
	}
	if len(entries) != 30 {
		t.Fatalf("expected 30 entries, got %d", len(entries))
	}

	byDate := make(map[time.Time]model.TrendDay)
	for _, e := range entries {
		byDate[e.Date] = e
	}
	if e := byDate[day(2025, 6, 1)]; e.Minutes != 60 || e.Completed != 2 {
		t.Errorf("6/1 = %+v, want minutes 60 / completed 2", e)
	}
	if e := byDate[day(2025, 6, 10)]; e.Completed != 1 {
		t.Errorf("6/10 completed = %d, want 1", e.Completed)
	}
}

// --- PeakStudyTime ---

// セッション3件未満でデータ不足として報告されることを検証
func TestService_PeakStudyTime_InsufficientData(t *testing.T) {
	sessions := &mockSessionRepo{
		listStartTimesFn: func(ctx context.Context, userID string) ([]time.Time, error) {
			return []time.Time{
				time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	svc := newTestService(sessions, &mockProgressRepo{})

	result, err := svc.PeakStudyTime(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("PeakStudyTime returned error: %v", err)
	}
	if !result.InsufficientData {
		t.Error("expected InsufficientData for fewer than 3 sessions")
	}
	if result.Peak != "" {
		t.Errorf("Peak = %q, want empty", result.Peak)
	}
	if result.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", result.TotalSessions)
	}
}

// セッション数が最多の時間帯がモードとして返ることを検証
func TestService_PeakStudyTime_Mode(t *testing.T) {
	sessions := &mockSessionRepo{
		listStartTimesFn: func(ctx context.Context, userID string) ([]time.Time, error) {
			return []time.Time{
				time.Date(2025, 6, 8, 6, 0, 0, 0, time.UTC),   // morning
				time.Date(2025, 6, 9, 22, 0, 0, 0, time.UTC),  // night
				time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC), // night
				time.Date(2025, 6, 11, 2, 0, 0, 0, time.UTC),  // night
				time.Date(2025, 6, 11, 13, 0, 0, 0, time.UTC), // afternoon
			}, nil
		},
	}
	svc := newTestService(sessions, &mockProgressRepo{})

	result, err := svc.PeakStudyTime(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("PeakStudyTime returned error: %v", err)
	}
	if result.InsufficientData {
		t.Fatal("expected sufficient data")
	}
	if result.Peak != string(clock.BucketNight) {
		t.Errorf("Peak = %q, want night", result.Peak)
	}
	if result.Counts[string(clock.BucketNight)] != 3 {
		t.Errorf("night count = %d, want 3", result.Counts[string(clock.BucketNight)])
	}
}

// --- SubjectTime ---

// 降順上位5件に切り詰められ、時間が小数1桁に丸められることを検証
func TestService_SubjectTime_TopFive(t *testing.T) {
	progress := &mockProgressRepo{
		subjectTimeTotalsFn: func(ctx context.Context, userID string) ([]repository.SubjectSeconds, error) {
			return []repository.SubjectSeconds{
				{SubjectID: "math", TotalSeconds: 45000},    // 12.5h
				{SubjectID: "physics", TotalSeconds: 9540},  // 2.65h → 2.7
				{SubjectID: "history", TotalSeconds: 7200},  // 2.0h
				{SubjectID: "english", TotalSeconds: 3600},  // 1.0h
				{SubjectID: "biology", TotalSeconds: 1800},  // 0.5h
				{SubjectID: "chemistry", TotalSeconds: 900}, // 6件目は返らない
			}, nil
		},
	}
	svc := newTestService(&mockSessionRepo{}, progress)

	result, err := svc.SubjectTime(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SubjectTime returned error: %v", err)
	}
	if len(result) != 5 {
		t.Fatalf("expected 5 subjects, got %d", len(result))
	}
	if result[0].SubjectID != "math" || result[0].Hours != 12.5 {
		t.Errorf("top subject = %+v, want math 12.5h", result[0])
	}
	if result[1].Hours != 2.7 {
		t.Errorf("physics hours = %v, want 2.7", result[1].Hours)
	}
}

// 履歴なしで空スライスが返ることを検証
func TestService_SubjectTime_Empty(t *testing.T) {
	svc := newTestService(&mockSessionRepo{}, &mockProgressRepo{})

	result, err := svc.SubjectTime(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SubjectTime returned error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d entries", len(result))
	}
}

// --- Velocity ---

// 8ウィンドウが古い順に並び、完了が正しいウィンドウへ振り分けられることを検証
func TestService_Velocity(t *testing.T) {
	progress := &mockProgressRepo{
		listCompletedSinceFn: func(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
			return []time.Time{
				time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),  // 今日 → 最新ウィンドウ
				time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC),   // 5日前 → 最新ウィンドウ
				time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),   // 7日前 → 1つ前
				time.Date(2025, 4, 22, 9, 0, 0, 0, time.UTC),  // 49日前 → 最古
				time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),  // 範囲外
			}, nil
		},
	}
	svc := newTestService(&mockSessionRepo{}, progress)
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	windows, err := svc.Velocity(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("Velocity returned error: %v", err)
	}
	if len(windows) != 8 {
		t.Fatalf("expected 8 windows, got %d", len(windows))
	}

	if !windows[7].To.Equal(day(2025, 6, 10)) {
		t.Errorf("newest window ends %v, want 2025-06-10", windows[7].To)
	}
	if !windows[7].From.Equal(day(2025, 6, 4)) {
		t.Errorf("newest window starts %v, want 2025-06-04", windows[7].From)
	}
	if !windows[0].From.Equal(day(2025, 4, 16)) {
		t.Errorf("oldest window starts %v, want 2025-04-16", windows[0].From)
	}

	if windows[7].Completed != 2 {
		t.Errorf("newest window completed = %d, want 2", windows[7].Completed)
	}
	if windows[6].Completed != 1 {
		t.Errorf("second-newest window completed = %d, want 1", windows[6].Completed)
	}
	if windows[0].Completed != 1 {
		t.Errorf("oldest window completed = %d, want 1", windows[0].Completed)
	}

	total := 0
	for _, w := range windows {
		total += w.Completed
	}
	if total != 4 {
		t.Errorf("total completed = %d, want 4 (out-of-range excluded)", total)
	}
}

// 履歴なしで8個のゼロウィンドウが返ることを検証
func TestService_Velocity_Empty(t *testing.T) {
	svc := newTestService(&mockSessionRepo{}, &mockProgressRepo{})

	windows, err := svc.Velocity(context.Background(), "user-1", time.Now())
	if err != nil {
		t.Fatalf("Velocity returned error: %v", err)
	}
	if len(windows) != 8 {
		t.Fatalf("expected 8 windows, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Completed != 0 {
			t.Errorf("window %d completed = %d, want 0", i, w.Completed)
		}
	}
}
