package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scholarvault/studylog/internal/middleware"
	"github.com/scholarvault/studylog/internal/model"
)

// --- モックサービス ---

type mockSessionService struct {
	startFn func(ctx context.Context, userID string, startedAt time.Time) (string, error)
	endFn   func(ctx context.Context, userID string, endedAt time.Time) (bool, error)
}

func (m *mockSessionService) Start(ctx context.Context, userID string, startedAt time.Time) (string, error) {
	if m.startFn == nil {
		return "session-1", nil
	}
	return m.startFn(ctx, userID, startedAt)
}

func (m *mockSessionService) End(ctx context.Context, userID string, endedAt time.Time) (bool, error) {
	if m.endFn == nil {
		return true, nil
	}
	return m.endFn(ctx, userID, endedAt)
}

type mockProgressService struct {
	startNoteFn     func(ctx context.Context, userID, noteID string, at time.Time) error
	endNoteFn       func(ctx context.Context, userID, noteID, subjectID string, seconds int, endedAt time.Time) error
	setCompletionFn func(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error)
	getProgressFn   func(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error)
	getNoteFn       func(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error)
}

func (m *mockProgressService) GetNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error) {
	if m.getNoteFn == nil {
		return &model.ProgressRecord{NoteID: noteID}, nil
	}
	return m.getNoteFn(ctx, userID, noteID)
}

func (m *mockProgressService) StartNote(ctx context.Context, userID, noteID string, at time.Time) error {
	if m.startNoteFn == nil {
		return nil
	}
	return m.startNoteFn(ctx, userID, noteID, at)
}

func (m *mockProgressService) EndNote(ctx context.Context, userID, noteID, subjectID string, seconds int, endedAt time.Time) error {
	if m.endNoteFn == nil {
		return nil
	}
	return m.endNoteFn(ctx, userID, noteID, subjectID, seconds, endedAt)
}

func (m *mockProgressService) SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error) {
	if m.setCompletionFn == nil {
		return &model.ProgressRecord{NoteID: noteID, SubjectID: subjectID, IsCompleted: completed}, nil
	}
	return m.setCompletionFn(ctx, userID, noteID, subjectID, completed, at)
}

func (m *mockProgressService) GetSubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error) {
	if m.getProgressFn == nil {
		return &model.SubjectProgress{SubjectID: subjectID}, nil
	}
	return m.getProgressFn(ctx, userID, subjectID)
}

type mockStreakService struct {
	getFn      func(ctx context.Context, userID string, now time.Time) (*model.StreakView, error)
	activateFn func(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error)
	statusFn   func(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error)
	grantFn    func(ctx context.Context, userID string, n int, now time.Time) (*model.FreezeStatus, error)
}

func (m *mockStreakService) Get(ctx context.Context, userID string, now time.Time) (*model.StreakView, error) {
	if m.getFn == nil {
		return &model.StreakView{}, nil
	}
	return m.getFn(ctx, userID, now)
}

func (m *mockStreakService) ActivateFreeze(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error) {
	if m.activateFn == nil {
		return &model.FreezeStatus{Active: true}, nil
	}
	return m.activateFn(ctx, userID, now)
}

func (m *mockStreakService) FreezeStatus(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error) {
	if m.statusFn == nil {
		return &model.FreezeStatus{}, nil
	}
	return m.statusFn(ctx, userID, now)
}

func (m *mockStreakService) GrantTokens(ctx context.Context, userID string, n int, now time.Time) (*model.FreezeStatus, error) {
	if m.grantFn == nil {
		return &model.FreezeStatus{Tokens: n}, nil
	}
	return m.grantFn(ctx, userID, n, now)
}

type mockAnalyticsService struct {
	weeklyFn func(ctx context.Context, userID string, now time.Time) ([]model.DayActivity, error)
}

func (m *mockAnalyticsService) WeeklyActivity(ctx context.Context, userID string, now time.Time) ([]model.DayActivity, error) {
	if m.weeklyFn == nil {
		return make([]model.DayActivity, 7), nil
	}
	return m.weeklyFn(ctx, userID, now)
}

func (m *mockAnalyticsService) MonthlyTrend(ctx context.Context, userID string, now time.Time) ([]model.TrendDay, error) {
	return make([]model.TrendDay, 30), nil
}

func (m *mockAnalyticsService) PeakStudyTime(ctx context.Context, userID string) (*model.PeakStudyTime, error) {
	return &model.PeakStudyTime{InsufficientData: true}, nil
}

func (m *mockAnalyticsService) SubjectTime(ctx context.Context, userID string) ([]model.SubjectHours, error) {
	return nil, nil
}

func (m *mockAnalyticsService) Velocity(ctx context.Context, userID string, now time.Time) ([]model.VelocityWindow, error) {
	return make([]model.VelocityWindow, 8), nil
}

// testDeps は全ルートをモックで構成したRouterDepsを返す。
func testDeps() *RouterDeps {
	return &RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       middleware.NewRateLimiter(middleware.NewRateLimiterConfig(10000, 10000)),
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionService:    &mockSessionService{},
		ProgressService:   &mockProgressService{},
		StreakService:     &mockStreakService{},
		AnalyticsService:  &mockAnalyticsService{},
	}
}

func doRequest(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- ルーター ---

// /healthが認証なしで応答することを検証
func TestRouter_Health_NoAuth(t *testing.T) {
	router := NewRouter(testDeps())
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// APIルートがX-User-IDなしで401になることを検証
func TestRouter_APIRequiresIdentity(t *testing.T) {
	router := NewRouter(testDeps())

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sessions/start"},
		{http.MethodPost, "/api/sessions/end"},
		{http.MethodGet, "/api/streak"},
		{http.MethodGet, "/api/analytics/weekly"},
		{http.MethodGet, "/api/progress?subject_id=math"},
	}
	for _, p := range paths {
		rec := doRequest(t, router, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

// /metricsがMetricsHandler設定時のみ公開されることを検証
func TestRouter_MetricsRoute(t *testing.T) {
	deps := testDeps()
	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(deps)

	rec := doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// セキュリティヘッダーとCORSヘッダーが全レスポンスに付与されることを検証
func TestRouter_AmbientHeaders(t *testing.T) {
	router := NewRouter(testDeps())
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
