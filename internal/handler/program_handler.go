package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/glowup/internal/catalog"
	"github.com/hitoshi/glowup/internal/progress"
)

// ProgressServiceInterface はプログラム・ルーティン・進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	Dashboard(ctx context.Context, userID string, now time.Time) *progress.Dashboard
	Progress(ctx context.Context, userID string, now time.Time) *progress.Summary
	MarkComplete(ctx context.Context, userID string, day int, now time.Time) error
	MarkIncomplete(ctx context.Context, userID string, day int) error
	Day(ctx context.Context, userID string, day int, now time.Time) (*progress.DayView, error)
	Next(ctx context.Context, userID string, viewing int, now time.Time) (*progress.DayView, error)
	Week(ctx context.Context, userID string, week int, now time.Time) (*progress.WeekView, error)
}

// CatalogReader は30日分のルーティン定義を読み出すインターフェース。
type CatalogReader interface {
	Days() []catalog.DayDefinition
}

// ProgramHandler はプログラム、ルーティン、進捗のHTTPハンドラー。
type ProgramHandler struct {
	service ProgressServiceInterface
	catalog CatalogReader
	now     func() time.Time
}

// NewProgramHandler はProgramHandlerを生成する。
func NewProgramHandler(service ProgressServiceInterface, cat CatalogReader) *ProgramHandler {
	return &ProgramHandler{
		service: service,
		catalog: cat,
		now:     time.Now,
	}
}

// completionResponse は完了記録1件のAPIレスポンス。
type completionResponse struct {
	Day         int       `json:"day"`
	CompletedAt time.Time `json:"completedAt"`
}

// progressResponse は完了記録一覧のAPIレスポンス。
type progressResponse struct {
	CurrentDay     int                  `json:"currentDay"`
	Records        []completionResponse `json:"records"`
	CompletedCount int                  `json:"completedCount"`
	Streak         int                  `json:"streak"`
	Degraded       bool                 `json:"degraded"`
}

// Dashboard は進捗画面の内容を返す。
// GET /api/program
func (h *ProgramHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Dashboard(r.Context(), userID, h.now()))
}

// Challenges は30日分のルーティン定義をすべて返す。
// GET /api/challenges
func (h *ProgramHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"days": h.catalog.Days(),
	})
}

// Day は指定日のルーティンを返す。未解放の日は403。
// GET /api/routine/days/{day}
func (h *ProgramHandler) Day(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := intURLParam(w, r, "day")
	if !ok {
		return
	}

	view, err := h.service.Day(r.Context(), userID, day, h.now())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// NextDay は表示中の日から進める先の日を返す。進めない場合は同じ日を返す。
// GET /api/routine/days/{day}/next
func (h *ProgramHandler) NextDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := intURLParam(w, r, "day")
	if !ok {
		return
	}

	view, err := h.service.Next(r.Context(), userID, day, h.now())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Week は週単位の概要を返す。
// GET /api/routine/weeks/{week}
func (h *ProgramHandler) Week(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	week, ok := intURLParam(w, r, "week")
	if !ok {
		return
	}

	view, err := h.service.Week(r.Context(), userID, week, h.now())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Progress は完了記録の一覧と集計を返す。
// GET /api/progress
func (h *ProgramHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	summary := h.service.Progress(r.Context(), userID, h.now())
	records := make([]completionResponse, len(summary.Records))
	for i, rec := range summary.Records {
		records[i] = completionResponse{Day: rec.Day, CompletedAt: rec.CompletedAt}
	}
	writeJSON(w, http.StatusOK, progressResponse{
		CurrentDay:     summary.CurrentDay,
		Records:        records,
		CompletedCount: summary.CompletedCount,
		Streak:         summary.Streak,
		Degraded:       summary.Degraded,
	})
}

// Complete は指定日を完了にする。
// PUT /api/progress/{day}
func (h *ProgramHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := intURLParam(w, r, "day")
	if !ok {
		return
	}

	if err := h.service.MarkComplete(r.Context(), userID, day, h.now()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Incomplete は指定日の完了を取り消す。記録がなくても成功する。
// DELETE /api/progress/{day}
func (h *ProgramHandler) Incomplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := intURLParam(w, r, "day")
	if !ok {
		return
	}

	if err := h.service.MarkIncomplete(r.Context(), userID, day); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
