package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scholarvault/studylog/internal/middleware"
	"github.com/scholarvault/studylog/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// Start は新しいセッションを開き、そのIDを返す。
	Start(ctx context.Context, userID string, startedAt time.Time) (string, error)
	// End はオープンセッションをクローズする。オープンセッションがなければ(false, nil)。
	End(ctx context.Context, userID string, endedAt time.Time) (bool, error)
}

// SessionHandler は学習セッションイベントのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

// startSessionRequest はセッション開始リクエストのボディ。
// started_atを省略するとサーバー時刻が使われる。
type startSessionRequest struct {
	StartedAt string `json:"started_at,omitempty"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

// endSessionRequest はセッション終了リクエストのボディ。
type endSessionRequest struct {
	EndedAt string `json:"ended_at,omitempty"`
}

// endSessionResponse はセッション終了のレスポンス。
// closedがfalseの場合、クローズすべきオープンセッションが存在しなかった。
type endSessionResponse struct {
	Closed bool `json:"closed"`
}

// parseEventTime はRFC3339のタイムスタンプを解析する。空文字列は現在時刻を意味する。
func parseEventTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, value)
}

// Start はセッション開始イベントを処理する。
// POST /api/sessions/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}

	startedAt, err := parseEventTime(req.StartedAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("started_atはRFC3339形式で指定してください"))
		return
	}

	sessionID, err := h.service.Start(r.Context(), userID, startedAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: sessionID})
}

// End はセッション終了イベントを処理する。
// 重複end（visibilitychangeとbeforeunloadの両方から届くなど）は
// closed=falseの成功レスポンスとして吸収される。
// POST /api/sessions/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req endSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}

	endedAt, err := parseEventTime(req.EndedAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ended_atはRFC3339形式で指定してください"))
		return
	}

	closed, err := h.service.End(r.Context(), userID, endedAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, endSessionResponse{Closed: closed})
}
