package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/scholarvault/studylog/internal/middleware"
	"github.com/scholarvault/studylog/internal/model"
)

// AnalyticsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
// すべて読み取り専用で、履歴が空のユーザーでもエラーにならない。
type AnalyticsServiceInterface interface {
	WeeklyActivity(ctx context.Context, userID string, now time.Time) ([]model.DayActivity, error)
	MonthlyTrend(ctx context.Context, userID string, now time.Time) ([]model.TrendDay, error)
	PeakStudyTime(ctx context.Context, userID string) (*model.PeakStudyTime, error)
	SubjectTime(ctx context.Context, userID string) ([]model.SubjectHours, error)
	Velocity(ctx context.Context, userID string, now time.Time) ([]model.VelocityWindow, error)
}

// AnalyticsHandler はダッシュボード向け集計ビューのHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Weekly は直近7日間の日次学習分数を取得する。
// GET /api/analytics/weekly
func (h *AnalyticsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	entries, err := h.service.WeeklyActivity(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Monthly は直近30日間の学習分数と完了数のトレンドを取得する。
// GET /api/analytics/monthly
func (h *AnalyticsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	entries, err := h.service.MonthlyTrend(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Peak は時間帯分布のモードを取得する。
// GET /api/analytics/peak
func (h *AnalyticsHandler) Peak(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.PeakStudyTime(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Subjects は科目別学習時間の上位を取得する。
// GET /api/analytics/subjects
func (h *AnalyticsHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.SubjectTime(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if result == nil {
		result = []model.SubjectHours{}
	}
	writeJSON(w, http.StatusOK, result)
}

// Velocity は直近8週間の完了ペースを取得する。
// GET /api/analytics/velocity
func (h *AnalyticsHandler) Velocity(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.Velocity(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
