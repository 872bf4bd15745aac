// Package progress はプログラム参加、日ごとの完了記録、ダッシュボード表示を扱う。
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/glowup/internal/catalog"
	"github.com/hitoshi/glowup/internal/metrics"
	"github.com/hitoshi/glowup/internal/model"
	"github.com/hitoshi/glowup/internal/program"
	"github.com/hitoshi/glowup/internal/repository"
)

// Dashboard は進捗画面の表示内容。
type Dashboard struct {
	StartDate         string                `json:"startDate"`
	CurrentDay        int                   `json:"currentDay"`
	CurrentWeek       int                   `json:"currentWeek"`
	TotalDays         int                   `json:"totalDays"`
	UnlockedDays      []int                 `json:"unlockedDays"`
	CompletedDays     []int                 `json:"completedDays"`
	CompletedCount    int                   `json:"completedCount"`
	Streak            int                   `json:"streak"`
	CompletionPercent int                   `json:"completionPercent"`
	Achievements      []program.Achievement `json:"achievements"`
	Improvements      []program.Improvement `json:"improvements"`
	Degraded          bool                  `json:"degraded"` // 読み込み失敗により一部が既定値
}

// Summary は完了記録の一覧と集計。
type Summary struct {
	CurrentDay     int                      `json:"currentDay"`
	Records        []model.CompletionRecord `json:"-"`
	CompletedCount int                      `json:"completedCount"`
	Streak         int                      `json:"streak"`
	Degraded       bool                     `json:"degraded"`
}

// DayView はルーティン画面の1日分の表示内容。
type DayView struct {
	Definition  catalog.DayDefinition `json:"definition"`
	Completed   bool                  `json:"completed"`
	CurrentDay  int                   `json:"currentDay"`
	Week        int                   `json:"week"`
	PreviousDay int                   `json:"previousDay"`
	NextDay     int                   `json:"nextDay"`
	CanAdvance  bool                  `json:"canAdvance"`
}

// WeekDay は週表示の1日分。
type WeekDay struct {
	Day       int    `json:"day"`
	Title     string `json:"title"`
	Unlocked  bool   `json:"unlocked"`
	Completed bool   `json:"completed"`
}

// WeekView は週単位の概要。
type WeekView struct {
	Week       int       `json:"week"`
	CurrentDay int       `json:"currentDay"`
	Days       []WeekDay `json:"days"`
}

// Service は進捗に関するビジネスロジックを提供する。
type Service struct {
	enrollments repository.EnrollmentRepository
	records     repository.ProgressRepository
	catalog     *catalog.Catalog
	metrics     metrics.MetricsCollector
	loc         *time.Location
}

// NewService はServiceを生成する。locはプログラムの暦日を判定するタイムゾーン。
func NewService(
	enrollments repository.EnrollmentRepository,
	records repository.ProgressRepository,
	cat *catalog.Catalog,
	m metrics.MetricsCollector,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		enrollments: enrollments,
		records:     records,
		catalog:     cat,
		metrics:     m,
		loc:         loc,
	}
}

// state はある時点でのユーザーの進行状況。
type state struct {
	startDate  time.Time
	currentDay int
	records    []model.CompletionRecord
	degraded   bool
}

// enroll は参加情報を確定し、開始日をプログラムのタイムゾーン上の暦日として返す。
// 初回呼び出し時の暦日が開始日となり、以後は変わらない。
func (s *Service) enroll(ctx context.Context, userID string, now time.Time) (time.Time, error) {
	e, err := s.enrollments.Ensure(ctx, userID, program.StartDateOf(now, s.loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to ensure enrollment: %w", err)
	}
	y, m, d := e.StartDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc), nil
}

// load は表示用に進行状況を読み込む。
// 読み込み失敗は致命的にせず、ログに残したうえで既定値（当日開始・完了0件）に落とす。
func (s *Service) load(ctx context.Context, userID string, now time.Time) state {
	st := state{}

	start, err := s.enroll(ctx, userID, now)
	if err != nil {
		slog.WarnContext(ctx, "参加情報の読み込みに失敗しました（当日開始として表示します）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		start = program.StartDateOf(now, s.loc)
		st.degraded = true
	}
	st.startDate = start
	st.currentDay = program.ResolveCurrentDay(start, now)

	records, err := s.records.ListByUserID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "完了記録の読み込みに失敗しました（0件として表示します）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		records = nil
		st.degraded = true
	}
	st.records = records
	return st
}

// Dashboard は進捗画面の内容を組み立てる。初回アクセス時に参加登録を行う。
func (s *Service) Dashboard(ctx context.Context, userID string, now time.Time) *Dashboard {
	st := s.load(ctx, userID, now)
	completed := program.CompletedCount(st.records)
	completedDays := program.CompletedDays(st.records)
	if completedDays == nil {
		completedDays = []int{}
	}

	return &Dashboard{
		StartDate:         st.startDate.Format(time.DateOnly),
		CurrentDay:        st.currentDay,
		CurrentWeek:       program.Week(st.currentDay),
		TotalDays:         program.ProgramLength,
		UnlockedDays:      program.UnlockedDays(st.currentDay),
		CompletedDays:     completedDays,
		CompletedCount:    completed,
		Streak:            program.CurrentStreak(st.records, st.currentDay),
		CompletionPercent: program.CompletionPercent(completed),
		Achievements:      program.Achievements(completed),
		Improvements:      program.ExpectedImprovements(completed),
		Degraded:          st.degraded,
	}
}

// Progress は完了記録の一覧と件数、連続日数を返す。
func (s *Service) Progress(ctx context.Context, userID string, now time.Time) *Summary {
	st := s.load(ctx, userID, now)
	return &Summary{
		CurrentDay:     st.currentDay,
		Records:        st.records,
		CompletedCount: program.CompletedCount(st.records),
		Streak:         program.CurrentStreak(st.records, st.currentDay),
		Degraded:       st.degraded,
	}
}

// MarkComplete は日を完了としてマークする。同じ日を再度マークしても記録は1件のまま。
// 解放されていない日はDAY_LOCKEDとなる。
func (s *Service) MarkComplete(ctx context.Context, userID string, day int, now time.Time) error {
	if !program.ValidDay(day) {
		return model.NewDayOutOfRangeError(day)
	}

	start, err := s.enroll(ctx, userID, now)
	if err != nil {
		return err
	}
	currentDay := program.ResolveCurrentDay(start, now)
	if !program.IsUnlocked(day, currentDay) {
		return model.NewDayLockedError(day, currentDay)
	}

	if err := s.records.Upsert(ctx, model.CompletionRecord{
		UserID:      userID,
		Day:         day,
		CompletedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to mark day complete: %w", err)
	}

	s.metrics.RecordDayCompleted(day)
	slog.InfoContext(ctx, "日を完了にしました",
		slog.String("user_id", userID),
		slog.Int("day", day),
	)
	return nil
}

// MarkIncomplete は日の完了記録を取り消す。記録がない場合も成功とする。
func (s *Service) MarkIncomplete(ctx context.Context, userID string, day int) error {
	if !program.ValidDay(day) {
		return model.NewDayOutOfRangeError(day)
	}
	if err := s.records.Delete(ctx, userID, day); err != nil {
		return fmt.Errorf("failed to mark day incomplete: %w", err)
	}
	return nil
}

// Day は1日分のルーティンと完了状態、前後の移動先を返す。
func (s *Service) Day(ctx context.Context, userID string, day int, now time.Time) (*DayView, error) {
	if !program.ValidDay(day) {
		return nil, model.NewDayOutOfRangeError(day)
	}

	st := s.load(ctx, userID, now)
	if !program.IsUnlocked(day, st.currentDay) {
		return nil, model.NewDayLockedError(day, st.currentDay)
	}
	return s.dayView(day, st)
}

// Next は表示中の日から次の日へ進んだ結果を返す。
// 次の日が未解放または30日目の場合は同じ日のまま返す。
func (s *Service) Next(ctx context.Context, userID string, viewing int, now time.Time) (*DayView, error) {
	if !program.ValidDay(viewing) {
		return nil, model.NewDayOutOfRangeError(viewing)
	}

	st := s.load(ctx, userID, now)
	if !program.IsUnlocked(viewing, st.currentDay) {
		return nil, model.NewDayLockedError(viewing, st.currentDay)
	}
	return s.dayView(program.Next(viewing, st.currentDay), st)
}

func (s *Service) dayView(day int, st state) (*DayView, error) {
	def, err := s.catalog.Day(day)
	if err != nil {
		return nil, model.NewDayOutOfRangeError(day)
	}

	completed := false
	for _, r := range st.records {
		if r.Day == day {
			completed = true
			break
		}
	}

	return &DayView{
		Definition:  def,
		Completed:   completed,
		CurrentDay:  st.currentDay,
		Week:        program.Week(day),
		PreviousDay: program.Previous(day),
		NextDay:     program.Next(day, st.currentDay),
		CanAdvance:  program.CanAdvance(day, st.currentDay),
	}, nil
}

// Week は週の概要を返す。未解放の日も含め、各日の解放・完了状態を付ける。
func (s *Service) Week(ctx context.Context, userID string, week int, now time.Time) (*WeekView, error) {
	days := program.WeekDays(week)
	if days == nil {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("週は1から%dで指定してください", program.WeekCount()))
	}

	st := s.load(ctx, userID, now)
	completed := make(map[int]bool, len(st.records))
	for _, r := range st.records {
		completed[r.Day] = true
	}

	view := &WeekView{Week: week, CurrentDay: st.currentDay, Days: make([]WeekDay, 0, len(days))}
	for _, d := range days {
		def, err := s.catalog.Day(d)
		if err != nil {
			return nil, fmt.Errorf("catalog day %d: %w", d, err)
		}
		view.Days = append(view.Days, WeekDay{
			Day:       d,
			Title:     def.Title,
			Unlocked:  program.IsUnlocked(d, st.currentDay),
			Completed: completed[d],
		})
	}
	return view, nil
}
