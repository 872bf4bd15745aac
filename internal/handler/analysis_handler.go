package handler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hitoshi/glowup/internal/analysis"
	"github.com/hitoshi/glowup/internal/middleware"
	"github.com/hitoshi/glowup/internal/model"
)

// multipartOverhead はmultipartの境界やヘッダーのために画像上限へ上乗せする余裕。
const multipartOverhead = 1 << 20

// jobWaitTimeout は?wait=trueでジョブの終了を待つ最大時間。サーバーのWriteTimeoutより短くする。
const jobWaitTimeout = 10 * time.Second

// PhotoUploader はアップロード画像を正規化・保存するインターフェース。
type PhotoUploader interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
}

// AnalysisJobs はユーザーごとの分析ジョブを操作するインターフェース。
type AnalysisJobs interface {
	Start(userID, imageRef string) analysis.JobSnapshot
	Current(userID string) (analysis.JobSnapshot, error)
	Cancel(userID string) (analysis.JobSnapshot, error)
	Wait(ctx context.Context, userID string) (analysis.JobSnapshot, error)
}

// PhotoFiles は画像参照を保存済みファイルのパスに解決するインターフェース。
type PhotoFiles interface {
	Path(ref string) (string, error)
}

// LatestAnalysisFinder は保存済みの最新の分析結果を取得するインターフェース。
type LatestAnalysisFinder interface {
	FindLatestByUserID(ctx context.Context, userID string) (*model.SkinAnalysis, error)
}

// AnalysisHandler は肌分析のHTTPハンドラー。
type AnalysisHandler struct {
	uploader      PhotoUploader
	jobs          AnalysisJobs
	analyses      LatestAnalysisFinder
	photos        PhotoFiles // nilの場合は写真を配信しない
	maxPhotoBytes int64
}

// NewAnalysisHandler はAnalysisHandlerを生成する。
func NewAnalysisHandler(uploader PhotoUploader, jobs AnalysisJobs, analyses LatestAnalysisFinder, photos PhotoFiles, maxPhotoBytes int64) *AnalysisHandler {
	return &AnalysisHandler{
		uploader:      uploader,
		jobs:          jobs,
		analyses:      analyses,
		photos:        photos,
		maxPhotoBytes: maxPhotoBytes,
	}
}

// analysisResponse は肌分析結果のAPIレスポンス。
type analysisResponse struct {
	ID              string                `json:"id"`
	SkinType        string                `json:"skinType"`
	Score           float64               `json:"score"`
	Concerns        []string              `json:"concerns"`
	ImageRef        string                `json:"imageReference,omitempty"`
	Recommendations model.Recommendations `json:"recommendations"`
	CreatedAt       time.Time             `json:"createdAt"`
}

func toAnalysisResponse(a *model.SkinAnalysis) *analysisResponse {
	if a == nil {
		return nil
	}
	concerns := a.Concerns
	if concerns == nil {
		concerns = []string{}
	}
	return &analysisResponse{
		ID:              a.ID,
		SkinType:        a.SkinType,
		Score:           a.Score,
		Concerns:        concerns,
		ImageRef:        a.ImageRef,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}
}

// jobResponse は分析ジョブの状態のAPIレスポンス。
type jobResponse struct {
	ID         string            `json:"id,omitempty"`
	Step       analysis.Step     `json:"step"`
	Progress   int               `json:"progress"`
	ImageRef   string            `json:"imageReference,omitempty"`
	Result     *analysisResponse `json:"result,omitempty"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

func toJobResponse(s analysis.JobSnapshot) jobResponse {
	resp := jobResponse{
		ID:         s.ID,
		Step:       s.Step,
		Progress:   s.Progress,
		ImageRef:   s.ImageRef,
		Result:     toAnalysisResponse(s.Result),
		FinishedAt: s.FinishedAt,
	}
	if !s.StartedAt.IsZero() {
		startedAt := s.StartedAt
		resp.StartedAt = &startedAt
	}
	return resp
}

// Upload は写真を受け付けて分析ジョブを開始する。
// POST /api/analyses （multipart/form-data、フィールド名 photo）
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPhotoTooLargeError(h.maxPhotoBytes))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPhotoError("multipart形式で送信してください"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("photo")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPhotoError("写真が選択されていません"))
		return
	}
	defer file.Close()

	ref, err := h.uploader.Upload(r.Context(), file)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	snap := h.jobs.Start(userID, ref)
	writeJSON(w, http.StatusAccepted, toJobResponse(snap))
}

// Latest は保存済みの最新の分析結果を返す。
// GET /api/analyses/latest
func (h *AnalysisHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	latest, err := h.analyses.FindLatestByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if latest == nil {
		handleServiceError(w, r, model.NewAnalysisNotFoundError())
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(latest))
}

// LatestPhoto は最新の分析結果に紐づく正規化済みの写真（JPEG）を返す。
// GET /api/analyses/latest/photo
func (h *AnalysisHandler) LatestPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	latest, err := h.analyses.FindLatestByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if latest == nil || latest.ImageRef == "" || h.photos == nil {
		handleServiceError(w, r, model.NewPhotoNotFoundError())
		return
	}

	path, err := h.photos.Path(latest.ImageRef)
	if err != nil {
		slog.WarnContext(r.Context(), "保存されている画像参照が不正です",
			slog.String("user_id", userID),
			slog.String("image_ref", latest.ImageRef),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, r, model.NewPhotoNotFoundError())
		return
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		handleServiceError(w, r, model.NewPhotoNotFoundError())
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeContent(w, r, "", latest.CreatedAt, f)
}

// CurrentJob は現在の分析ジョブの状態を返す。
// ?wait=true の場合は分析中のジョブが終了するまで最大jobWaitTimeout待ってから返す。
// メモリ上にジョブがない場合（再起動後など）は保存済みの最新結果から結果表示状態を復元する。
// GET /api/analyses/jobs/current
func (h *AnalysisHandler) CurrentJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), jobWaitTimeout)
		snap, err := h.jobs.Wait(ctx, userID)
		cancel()
		if err == nil {
			writeJSON(w, http.StatusOK, toJobResponse(snap))
			return
		}
		// 待ち時間切れやジョブなしは通常の取得として扱う
	}

	snap, err := h.jobs.Current(userID)
	if err == nil {
		writeJSON(w, http.StatusOK, toJobResponse(snap))
		return
	}
	if !errors.Is(err, analysis.ErrNoJob) {
		handleServiceError(w, r, err)
		return
	}

	latest, err := h.analyses.FindLatestByUserID(r.Context(), userID)
	if err != nil {
		slog.WarnContext(r.Context(), "最新の分析結果の読み込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		latest = nil
	}
	if latest == nil {
		handleServiceError(w, r, model.NewJobNotFoundError())
		return
	}

	flow := analysis.RestoreFlow(latest)
	writeJSON(w, http.StatusOK, toJobResponse(analysis.JobSnapshot{
		Step:     flow.Step(),
		Progress: flow.Progress(),
		ImageRef: latest.ImageRef,
		Result:   flow.Result(),
	}))
}

// CancelJob は分析中のジョブを中断する。
// DELETE /api/analyses/jobs/current
func (h *AnalysisHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	snap, err := h.jobs.Cancel(userID)
	switch {
	case errors.Is(err, analysis.ErrNoJob):
		handleServiceError(w, r, model.NewJobNotFoundError())
		return
	case errors.Is(err, analysis.ErrJobNotRunning):
		handleServiceError(w, r, model.NewInvalidRequestError("分析中のジョブはありません"))
		return
	case err != nil:
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(snap))
}
