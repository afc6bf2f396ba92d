package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/scholarvault/studylog/internal/middleware"
	"github.com/scholarvault/studylog/internal/model"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	// StartNote はノートのオープンイベントを処理する。
	StartNote(ctx context.Context, userID, noteID string, at time.Time) error
	// EndNote はノートのクローズイベントを処理し、学習時間を加算する。
	EndNote(ctx context.Context, userID, noteID, subjectID string, seconds int, endedAt time.Time) error
	// SetCompletion はノートの完了フラグを冪等に設定する。
	SetCompletion(ctx context.Context, userID, noteID, subjectID string, completed bool, at time.Time) (*model.ProgressRecord, error)
	// GetNote は1ノートの進捗レコードを返す。見つからない場合はnilを返す。
	GetNote(ctx context.Context, userID, noteID string) (*model.ProgressRecord, error)
	// GetSubjectProgress は科目ごとの進捗サマリーを返す。
	GetSubjectProgress(ctx context.Context, userID, subjectID string) (*model.SubjectProgress, error)
}

// ProgressHandler はノート進捗イベントのHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

type startNoteRequest struct {
	StartedAt string `json:"started_at,omitempty"`
}

type endNoteRequest struct {
	SubjectID       string `json:"subject_id"`
	DurationSeconds int    `json:"duration_seconds"`
	EndedAt         string `json:"ended_at,omitempty"`
}

type completionRequest struct {
	SubjectID string `json:"subject_id"`
	Completed bool   `json:"completed"`
}

// progressRecordResponse は進捗レコードのレスポンス。
type progressRecordResponse struct {
	NoteID                string     `json:"note_id"`
	SubjectID             string     `json:"subject_id"`
	IsCompleted           bool       `json:"is_completed"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	TotalTimeSpentSeconds int        `json:"total_time_spent_seconds"`
	RevisitCount          int        `json:"revisit_count"`
}

type subjectProgressResponse struct {
	SubjectID        string   `json:"subject_id"`
	CompletedCount   int      `json:"completed_count"`
	TrackedCount     int      `json:"tracked_count"`
	CompletedNoteIDs []string `json:"completed_note_ids"`
}

// StartNote はノートのオープンイベントを処理する。
// POST /api/notes/:noteID/start
func (h *ProgressHandler) StartNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	noteID := chi.URLParam(r, "noteID")

	var req startNoteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
			return
		}
	}
	at, err := parseEventTime(req.StartedAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("started_atはRFC3339形式で指定してください"))
		return
	}

	if err := h.service.StartNote(r.Context(), userID, noteID, at); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EndNote はノートのクローズイベントを処理する。
// 5秒未満の極端に短い閲覧を弾くかどうかは呼び出し側の責務であり、
// ここでは負の値のみを不正として扱う。
// POST /api/notes/:noteID/end
func (h *ProgressHandler) EndNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	noteID := chi.URLParam(r, "noteID")

	var req endNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.SubjectID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSubjectRequiredError())
		return
	}
	endedAt, err := parseEventTime(req.EndedAt)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ended_atはRFC3339形式で指定してください"))
		return
	}

	if err := h.service.EndNote(r.Context(), userID, noteID, req.SubjectID, req.DurationSeconds, endedAt); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetCompletion はノートの完了フラグを設定する。
// PUT /api/notes/:noteID/completion
func (h *ProgressHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	noteID := chi.URLParam(r, "noteID")

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.SubjectID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSubjectRequiredError())
		return
	}

	record, err := h.service.SetCompletion(r.Context(), userID, noteID, req.SubjectID, req.Completed, time.Now().UTC())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progressRecordResponse{
		NoteID:                record.NoteID,
		SubjectID:             record.SubjectID,
		IsCompleted:           record.IsCompleted,
		CompletedAt:           record.CompletedAt,
		TotalTimeSpentSeconds: record.TotalTimeSpentSeconds,
		RevisitCount:          record.RevisitCount,
	})
}

// GetNote は1ノートの進捗レコードを取得する。
// まだイベントのないノートでは全フィールドがゼロのレコードを返す。
// GET /api/notes/:noteID
func (h *ProgressHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	noteID := chi.URLParam(r, "noteID")

	record, err := h.service.GetNote(r.Context(), userID, noteID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if record == nil {
		record = &model.ProgressRecord{NoteID: noteID}
	}

	writeJSON(w, http.StatusOK, progressRecordResponse{
		NoteID:                record.NoteID,
		SubjectID:             record.SubjectID,
		IsCompleted:           record.IsCompleted,
		CompletedAt:           record.CompletedAt,
		TotalTimeSpentSeconds: record.TotalTimeSpentSeconds,
		RevisitCount:          record.RevisitCount,
	})
}

// GetProgress は科目ごとの進捗サマリーを取得する。
// GET /api/progress?subject_id=xxx
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSubjectRequiredError())
		return
	}

	summary, err := h.service.GetSubjectProgress(r.Context(), userID, subjectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := subjectProgressResponse{
		SubjectID:        summary.SubjectID,
		CompletedCount:   summary.CompletedCount,
		TrackedCount:     summary.TrackedCount,
		CompletedNoteIDs: summary.CompletedNoteIDs,
	}
	if resp.CompletedNoteIDs == nil {
		resp.CompletedNoteIDs = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}
