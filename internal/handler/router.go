package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/glowup/internal/metrics"
	"github.com/hitoshi/glowup/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.SessionAuthenticator
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない
	HealthCheck       HealthChecker

	// 認証
	AuthService    AuthServiceInterface
	ProfileEnsurer ProfileEnsurer
	AuthConfig     AuthHandlerConfig

	// プログラム・ルーティン・進捗
	ProgressService ProgressServiceInterface
	Catalog         CatalogReader

	// 肌分析
	PhotoUploader PhotoUploader
	AnalysisJobs  AnalysisJobs
	Analyses      LatestAnalysisFinder
	PhotoFiles    PhotoFiles
	MaxPhotoBytes int64

	// プロフィール・退会
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → Logging → CORS
//	認証が必要なルート: Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）はセッション検証の外に置き、サインアップ・サインインにはIP単位のレート制限をかける。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.ProfileEnsurer, deps.AuthConfig)
	programHandler := NewProgramHandler(deps.ProgressService, deps.Catalog)
	analysisHandler := NewAnalysisHandler(deps.PhotoUploader, deps.AnalysisJobs, deps.Analyses, deps.PhotoFiles, deps.MaxPhotoBytes)
	profileHandler := NewProfileHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
		})
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/api/program", programHandler.Dashboard)
		r.Get("/api/challenges", programHandler.Challenges)

		r.Route("/api/routine", func(r chi.Router) {
			r.Get("/days/{day}", programHandler.Day)
			r.Get("/days/{day}/next", programHandler.NextDay)
			r.Get("/weeks/{week}", programHandler.Week)
		})

		r.Route("/api/progress", func(r chi.Router) {
			r.Get("/", programHandler.Progress)
			r.Put("/{day}", programHandler.Complete)
			r.Delete("/{day}", programHandler.Incomplete)
		})

		r.Route("/api/analyses", func(r chi.Router) {
			r.Post("/", analysisHandler.Upload)
			r.Get("/latest", analysisHandler.Latest)
			r.Get("/latest/photo", analysisHandler.LatestPhoto)
			r.Get("/jobs/current", analysisHandler.CurrentJob)
			r.Delete("/jobs/current", analysisHandler.CancelJob)
		})

		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Patch("/", profileHandler.UpdateProfile)
		})

		r.Delete("/api/users/me", profileHandler.Withdraw)
	})

	return r
}
