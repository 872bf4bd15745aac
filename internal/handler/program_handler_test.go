package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/glowup/internal/catalog"
	"github.com/hitoshi/glowup/internal/middleware"
	"github.com/hitoshi/glowup/internal/model"
	"github.com/hitoshi/glowup/internal/progress"
)

// --- モック定義 ---

type mockProgressService struct {
	dashboardFn      func(ctx context.Context, userID string, now time.Time) *progress.Dashboard
	progressFn       func(ctx context.Context, userID string, now time.Time) *progress.Summary
	markCompleteFn   func(ctx context.Context, userID string, day int, now time.Time) error
	markIncompleteFn func(ctx context.Context, userID string, day int) error
	dayFn            func(ctx context.Context, userID string, day int, now time.Time) (*progress.DayView, error)
	nextFn           func(ctx context.Context, userID string, viewing int, now time.Time) (*progress.DayView, error)
	weekFn           func(ctx context.Context, userID string, week int, now time.Time) (*progress.WeekView, error)
}

func (m *mockProgressService) Dashboard(ctx context.Context, userID string, now time.Time) *progress.Dashboard {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, userID, now)
	}
	return &progress.Dashboard{CurrentDay: 1, CurrentWeek: 1, TotalDays: 30}
}

func (m *mockProgressService) Progress(ctx context.Context, userID string, now time.Time) *progress.Summary {
	if m.progressFn != nil {
		return m.progressFn(ctx, userID, now)
	}
	return &progress.Summary{CurrentDay: 1}
}

func (m *mockProgressService) MarkComplete(ctx context.Context, userID string, day int, now time.Time) error {
	if m.markCompleteFn != nil {
		return m.markCompleteFn(ctx, userID, day, now)
	}
	return nil
}

func (m *mockProgressService) MarkIncomplete(ctx context.Context, userID string, day int) error {
	if m.markIncompleteFn != nil {
		return m.markIncompleteFn(ctx, userID, day)
	}
	return nil
}

func (m *mockProgressService) Day(ctx context.Context, userID string, day int, now time.Time) (*progress.DayView, error) {
	if m.dayFn != nil {
		return m.dayFn(ctx, userID, day, now)
	}
	return &progress.DayView{Definition: catalog.DayDefinition{Day: day}}, nil
}

func (m *mockProgressService) Next(ctx context.Context, userID string, viewing int, now time.Time) (*progress.DayView, error) {
	if m.nextFn != nil {
		return m.nextFn(ctx, userID, viewing, now)
	}
	return &progress.DayView{Definition: catalog.DayDefinition{Day: viewing}}, nil
}

func (m *mockProgressService) Week(ctx context.Context, userID string, week int, now time.Time) (*progress.WeekView, error) {
	if m.weekFn != nil {
		return m.weekFn(ctx, userID, week, now)
	}
	return &progress.WeekView{Week: week}, nil
}

type stubCatalog struct {
	days []catalog.DayDefinition
}

func (s stubCatalog) Days() []catalog.DayDefinition { return s.days }

// --- ヘルパー ---

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// withUserID はテスト用にコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newTestProgramHandler(svc ProgressServiceInterface) *ProgramHandler {
	h := NewProgramHandler(svc, stubCatalog{days: []catalog.DayDefinition{{Day: 1, Title: "はじめの一歩"}, {Day: 2, Title: "保湿"}}})
	h.now = func() time.Time { return fixedNow }
	return h
}

// --- GET /api/program ---

func TestProgramHandler_Dashboard(t *testing.T) {
	svc := &mockProgressService{
		dashboardFn: func(ctx context.Context, userID string, now time.Time) *progress.Dashboard {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			if !now.Equal(fixedNow) {
				t.Errorf("now = %v, want %v", now, fixedNow)
			}
			return &progress.Dashboard{StartDate: "2026-05-08", CurrentDay: 3, CurrentWeek: 1, TotalDays: 30, CompletedCount: 2, Streak: 2}
		},
	}
	h := newTestProgramHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/program", nil), "user-1")
	w := httptest.NewRecorder()

	h.Dashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got["currentDay"] != float64(3) {
		t.Errorf("currentDay = %v, want 3", got["currentDay"])
	}
	if got["startDate"] != "2026-05-08" {
		t.Errorf("startDate = %v, want 2026-05-08", got["startDate"])
	}
}

func TestProgramHandler_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := newTestProgramHandler(&mockProgressService{})

	handlers := map[string]http.HandlerFunc{
		"Dashboard":  h.Dashboard,
		"Progress":   h.Progress,
		"Day":        h.Day,
		"Complete":   h.Complete,
		"Incomplete": h.Incomplete,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(http.MethodGet, "/api/program", nil))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

// --- GET /api/challenges ---

func TestProgramHandler_Challenges(t *testing.T) {
	h := newTestProgramHandler(&mockProgressService{})

	w := httptest.NewRecorder()
	h.Challenges(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/challenges", nil), "user-1"))

	var got struct {
		Days []catalog.DayDefinition `json:"days"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got.Days) != 2 || got.Days[1].Title != "保湿" {
		t.Errorf("days = %+v", got.Days)
	}
}

// --- GET /api/routine/days/{day} ---

func TestProgramHandler_Day(t *testing.T) {
	tests := []struct {
		name       string
		param      string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"解放済み", "2", nil, http.StatusOK, ""},
		{"未解放", "9", model.NewDayLockedError(9, 2), http.StatusForbidden, model.ErrCodeDayLocked},
		{"範囲外", "31", model.NewDayOutOfRangeError(31), http.StatusBadRequest, model.ErrCodeDayOutOfRange},
		{"数値でない", "abc", nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"内部エラー", "1", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProgressService{
				dayFn: func(ctx context.Context, userID string, day int, now time.Time) (*progress.DayView, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &progress.DayView{Definition: catalog.DayDefinition{Day: day}, CurrentDay: 2}, nil
				},
			}
			h := newTestProgramHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/routine/days/"+tt.param, nil)
			req = withChiURLParam(withUserID(req, "user-1"), "day", tt.param)
			w := httptest.NewRecorder()

			h.Day(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if body := decodeAPIError(t, w.Result()); body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestProgramHandler_NextDay(t *testing.T) {
	svc := &mockProgressService{
		nextFn: func(ctx context.Context, userID string, viewing int, now time.Time) (*progress.DayView, error) {
			if viewing != 3 {
				t.Errorf("viewing = %d, want 3", viewing)
			}
			// 現在日が3日目なので進めない
			return &progress.DayView{Definition: catalog.DayDefinition{Day: 3}, CurrentDay: 3, NextDay: 3}, nil
		},
	}
	h := newTestProgramHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/api/routine/days/3/next", nil), "user-1"), "day", "3")
	w := httptest.NewRecorder()

	h.NextDay(w, req)

	var got progress.DayView
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.Definition.Day != 3 {
		t.Errorf("day = %d, want 3", got.Definition.Day)
	}
}

func TestProgramHandler_Week_InvalidWeek(t *testing.T) {
	svc := &mockProgressService{
		weekFn: func(ctx context.Context, userID string, week int, now time.Time) (*progress.WeekView, error) {
			return nil, model.NewInvalidRequestError("週は1から5で指定してください")
		},
	}
	h := newTestProgramHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodGet, "/api/routine/weeks/6", nil), "user-1"), "week", "6")
	w := httptest.NewRecorder()

	h.Week(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/progress ---

func TestProgramHandler_Progress_MapsRecords(t *testing.T) {
	completedAt := time.Date(2026, 5, 9, 20, 0, 0, 0, time.UTC)
	svc := &mockProgressService{
		progressFn: func(ctx context.Context, userID string, now time.Time) *progress.Summary {
			return &progress.Summary{
				CurrentDay: 3,
				Records: []model.CompletionRecord{
					{UserID: userID, Day: 1, CompletedAt: completedAt},
					{UserID: userID, Day: 2, CompletedAt: completedAt},
				},
				CompletedCount: 2,
				Streak:         2,
			}
		},
	}
	h := newTestProgramHandler(svc)

	w := httptest.NewRecorder()
	h.Progress(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/progress", nil), "user-1"))

	var got progressResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got.Records) != 2 || got.Records[1].Day != 2 {
		t.Errorf("records = %+v", got.Records)
	}
	if got.CompletedCount != 2 || got.Streak != 2 {
		t.Errorf("count/streak = %d/%d, want 2/2", got.CompletedCount, got.Streak)
	}
}

func TestProgramHandler_Progress_EmptyRecordsIsArray(t *testing.T) {
	h := newTestProgramHandler(&mockProgressService{})

	w := httptest.NewRecorder()
	h.Progress(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/progress", nil), "user-1"))

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if _, ok := got["records"].([]any); !ok {
		t.Errorf("records should be an empty array, got %v", got["records"])
	}
}

// --- PUT/DELETE /api/progress/{day} ---

func TestProgramHandler_Complete(t *testing.T) {
	var gotDay int
	svc := &mockProgressService{
		markCompleteFn: func(ctx context.Context, userID string, day int, now time.Time) error {
			gotDay = day
			return nil
		},
	}
	h := newTestProgramHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/progress/2", nil), "user-1"), "day", "2")
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotDay != 2 {
		t.Errorf("day = %d, want 2", gotDay)
	}
}

func TestProgramHandler_Complete_LockedDay(t *testing.T) {
	svc := &mockProgressService{
		markCompleteFn: func(ctx context.Context, userID string, day int, now time.Time) error {
			return model.NewDayLockedError(day, 1)
		},
	}
	h := newTestProgramHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodPut, "/api/progress/5", nil), "user-1"), "day", "5")
	w := httptest.NewRecorder()

	h.Complete(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestProgramHandler_Incomplete(t *testing.T) {
	called := false
	svc := &mockProgressService{
		markIncompleteFn: func(ctx context.Context, userID string, day int) error {
			called = true
			return nil
		},
	}
	h := newTestProgramHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/progress/1", nil), "user-1"), "day", "1")
	w := httptest.NewRecorder()

	h.Incomplete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if !called {
		t.Error("expected MarkIncomplete to be called")
	}
}
