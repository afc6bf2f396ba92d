package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scholarvault/studylog/internal/middleware"
	"github.com/scholarvault/studylog/internal/model"
)

// StreakServiceInterface はストリークハンドラーが必要とするサービスインターフェース。
type StreakServiceInterface interface {
	// Get は現在のストリーク状態を計算して返す。
	Get(ctx context.Context, userID string, now time.Time) (*model.StreakView, error)
	// ActivateFreeze はフリーズトークンを1枚消費して保護を開始する。
	ActivateFreeze(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error)
	// FreezeStatus は現在のフリーズ状態を返す。
	FreezeStatus(ctx context.Context, userID string, now time.Time) (*model.FreezeStatus, error)
	// GrantTokens はフリーズトークンをn枚付与する。
	GrantTokens(ctx context.Context, userID string, n int, now time.Time) (*model.FreezeStatus, error)
}

// grantTokensRequest はトークン付与リクエストのボディ。
type grantTokensRequest struct {
	Count int `json:"count"`
}

// StreakHandler はストリークとフリーズのHTTPハンドラー。
type StreakHandler struct {
	service StreakServiceInterface
}

// NewStreakHandler はStreakHandlerを生成する。
func NewStreakHandler(service StreakServiceInterface) *StreakHandler {
	return &StreakHandler{service: service}
}

// Get はストリーク状態を取得する。
// GET /api/streak
func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	view, err := h.service.Get(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ActivateFreeze はストリークフリーズを有効化する。
// トークン不足は409 INSUFFICIENT_TOKENS、二重有効化は409 FREEZE_ALREADY_ACTIVE。
// POST /api/streak/freeze
func (h *StreakHandler) ActivateFreeze(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	status, err := h.service.ActivateFreeze(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GrantTokens はフリーズトークンを付与する。
// ボディ省略時は1枚付与する。付与ポリシーの判断は呼び出し側に委ねる。
// POST /api/streak/freeze/grant
func (h *StreakHandler) GrantTokens(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	req := grantTokensRequest{Count: 1}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}

	status, err := h.service.GrantTokens(r.Context(), userID, req.Count, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// FreezeStatus はフリーズ状態を取得する。
// GET /api/streak/freeze
func (h *StreakHandler) FreezeStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	status, err := h.service.FreezeStatus(r.Context(), userID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
