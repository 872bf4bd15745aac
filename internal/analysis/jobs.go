package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/glowup/internal/besteffort"
	"github.com/hitoshi/glowup/internal/metrics"
	"github.com/hitoshi/glowup/internal/model"
)

// ErrNoJob はユーザーに分析ジョブが存在しない場合のエラー。
var ErrNoJob = errors.New("analysis job not found")

// ErrJobNotRunning は分析中ではないジョブを中断しようとした場合のエラー。
var ErrJobNotRunning = errors.New("analysis job is not running")

// ResultStore は分析結果の保存先。
type ResultStore interface {
	Create(ctx context.Context, analysis *model.SkinAnalysis) error
}

// saveTimeout は分析結果の保存にかける最大時間。ジョブの中断とは独立に適用する。
const saveTimeout = 5 * time.Second

// JobSnapshot はある時点のジョブの状態。
type JobSnapshot struct {
	ID         string
	Step       Step
	Progress   int
	ImageRef   string
	Result     *model.SkinAnalysis // 結果表示中のみ非nil
	StartedAt  time.Time
	FinishedAt *time.Time
}

type job struct {
	id         string
	userID     string
	imageRef   string
	flow       Flow
	startedAt  time.Time
	finishedAt *time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

func (j *job) snapshot() JobSnapshot {
	return JobSnapshot{
		ID:         j.id,
		Step:       j.flow.Step(),
		Progress:   j.flow.Progress(),
		ImageRef:   j.imageRef,
		Result:     j.flow.Result(),
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}

// JobRunner はユーザーごとに1つの分析ジョブをメモリ上で管理する。
// 新しいアップロードは同じユーザーの実行中ジョブを中断してから開始する。
type JobRunner struct {
	provider Provider
	stages   []Stage
	store    ResultStore
	writer   *besteffort.Writer
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time

	baseCtx context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	jobs    map[string]*job
}

// NewJobRunner はJobRunnerの新しいインスタンスを生成する。
func NewJobRunner(
	provider Provider,
	stages []Stage,
	store ResultStore,
	writer *besteffort.Writer,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *JobRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if writer == nil {
		writer = besteffort.New(logger, m)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{
		provider: provider,
		stages:   stages,
		store:    store,
		writer:   writer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		baseCtx:  ctx,
		stopAll:  cancel,
		jobs:     make(map[string]*job),
	}
}

// Start はユーザーの分析ジョブを開始し、開始直後の状態を返す。
// 同じユーザーの分析中ジョブがあれば中断する。
func (r *JobRunner) Start(userID, imageRef string) JobSnapshot {
	ctx, cancel := context.WithCancel(r.baseCtx)

	r.mu.Lock()
	if prev, ok := r.jobs[userID]; ok {
		r.cancelLocked(prev)
	}
	j := &job{
		id:        uuid.New().String(),
		userID:    userID,
		imageRef:  imageRef,
		flow:      NewFlow().Upload(),
		startedAt: r.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.jobs[userID] = j
	snap := j.snapshot()
	r.mu.Unlock()

	r.metrics.RecordAnalysisStarted()
	r.logger.Info("肌分析ジョブを開始しました",
		slog.String("job_id", j.id),
		slog.String("user_id", userID),
	)

	r.wg.Add(1)
	go r.run(ctx, j)

	return snap
}

func (r *JobRunner) run(ctx context.Context, j *job) {
	defer r.wg.Done()
	defer close(j.done)
	defer j.cancel()

	err := Run(ctx, r.stages, func(checkpoint int) {
		r.transition(j, func(f Flow) (Flow, error) { return f.Advance(checkpoint) })
	})
	if err != nil {
		r.finish(j, "cancelled", func(f Flow) (Flow, error) { return f.Cancel() })
		return
	}

	result, err := r.provider.Analyze(ctx, j.imageRef)
	if err != nil {
		if ctx.Err() != nil {
			r.finish(j, "cancelled", func(f Flow) (Flow, error) { return f.Cancel() })
			return
		}
		r.logger.Error("肌分析に失敗しました",
			slog.String("job_id", j.id),
			slog.String("user_id", j.userID),
			slog.String("error", err.Error()),
		)
		r.finish(j, "failed", func(f Flow) (Flow, error) { return f.Fail() })
		return
	}

	if ctx.Err() != nil {
		r.finish(j, "cancelled", func(f Flow) (Flow, error) { return f.Cancel() })
		return
	}

	result.ID = uuid.New().String()
	result.UserID = j.userID
	result.CreatedAt = r.now()

	// 結果表示への遷移と中断はr.muで排他される。遷移できなければ中断済みなので保存しない。
	if !r.finish(j, "completed", func(f Flow) (Flow, error) { return f.Complete(result) }) {
		return
	}

	// 保存は後続のアップロードに巻き込まれないよう、独立したタイムアウトで行う。
	// doneは保存の後に閉じるため、Waitが返った時点で保存は終わっている。
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	r.writer.Do(saveCtx, "analysis.save", func(ctx context.Context) error {
		return r.store.Create(ctx, result)
	})
	cancel()
}

// transition はジョブのFlowを遷移させる。すでに終了したジョブへの遷移は無視する。
func (r *JobRunner) transition(j *job, fn func(Flow) (Flow, error)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := fn(j.flow)
	if err != nil {
		return false
	}
	j.flow = next
	return true
}

// finish はジョブを終了状態に遷移させる。すでに終了していれば何もせずfalseを返す。
func (r *JobRunner) finish(j *job, outcome string, fn func(Flow) (Flow, error)) bool {
	r.mu.Lock()
	next, err := fn(j.flow)
	if err == nil {
		j.flow = next
		now := r.now()
		j.finishedAt = &now
	}
	startedAt := j.startedAt
	r.mu.Unlock()

	// Cancel経由ですでに終了処理済みの場合は記録しない。
	if err != nil {
		return false
	}
	r.metrics.RecordAnalysisFinished(outcome, r.now().Sub(startedAt))
	r.logger.Info("肌分析ジョブが終了しました",
		slog.String("job_id", j.id),
		slog.String("user_id", j.userID),
		slog.String("outcome", outcome),
	)
	return true
}

// cancelLocked は分析中のジョブを中断する。r.muを保持した状態で呼ぶこと。
func (r *JobRunner) cancelLocked(j *job) bool {
	next, err := j.flow.Cancel()
	if err != nil {
		return false
	}
	j.cancel()
	j.flow = next
	now := r.now()
	j.finishedAt = &now
	r.metrics.RecordAnalysisFinished("cancelled", now.Sub(j.startedAt))
	return true
}

// Current はユーザーの最新ジョブの状態を返す。ジョブがなければErrNoJob。
func (r *JobRunner) Current(userID string) (JobSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[userID]
	if !ok {
		return JobSnapshot{}, ErrNoJob
	}
	return j.snapshot(), nil
}

// Cancel はユーザーの分析中ジョブを中断する。
// ジョブがなければErrNoJob、分析中でなければErrJobNotRunningを返す。
func (r *JobRunner) Cancel(userID string) (JobSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[userID]
	if !ok {
		return JobSnapshot{}, ErrNoJob
	}
	if !r.cancelLocked(j) {
		return j.snapshot(), ErrJobNotRunning
	}
	r.logger.Info("肌分析ジョブを中断しました",
		slog.String("job_id", j.id),
		slog.String("user_id", userID),
	)
	return j.snapshot(), nil
}

// Wait はユーザーの現在のジョブが終了するまで待ち、終了後の状態を返す。
func (r *JobRunner) Wait(ctx context.Context, userID string) (JobSnapshot, error) {
	r.mu.Lock()
	j, ok := r.jobs[userID]
	r.mu.Unlock()
	if !ok {
		return JobSnapshot{}, ErrNoJob
	}

	select {
	case <-ctx.Done():
		return JobSnapshot{}, ctx.Err()
	case <-j.done:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return j.snapshot(), nil
}

// Forget はユーザーのジョブを中断して破棄し、ゴルーチンの終了を待つ。退会時に使う。
// 戻った後にそのユーザーの分析結果が書き込まれることはない。
func (r *JobRunner) Forget(userID string) {
	r.mu.Lock()
	j, ok := r.jobs[userID]
	if ok {
		r.cancelLocked(j)
		delete(r.jobs, userID)
	}
	r.mu.Unlock()

	if ok {
		<-j.done
	}
}

// Close は全ジョブを中断し、実行中のゴルーチンの終了を待つ。
func (r *JobRunner) Close() {
	r.stopAll()
	r.wg.Wait()
}
