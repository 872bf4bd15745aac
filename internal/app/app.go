// Package app はglowupバイナリの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/glowup/internal/analysis"
	"github.com/hitoshi/glowup/internal/auth"
	"github.com/hitoshi/glowup/internal/besteffort"
	"github.com/hitoshi/glowup/internal/catalog"
	"github.com/hitoshi/glowup/internal/config"
	"github.com/hitoshi/glowup/internal/database"
	"github.com/hitoshi/glowup/internal/handler"
	"github.com/hitoshi/glowup/internal/logger"
	"github.com/hitoshi/glowup/internal/metrics"
	"github.com/hitoshi/glowup/internal/middleware"
	"github.com/hitoshi/glowup/internal/photo"
	"github.com/hitoshi/glowup/internal/progress"
	"github.com/hitoshi/glowup/internal/repository"
	"github.com/hitoshi/glowup/internal/security"
	"github.com/hitoshi/glowup/internal/user"
	"github.com/hitoshi/glowup/internal/worker/cleanup"
)

const (
	dbPingTimeout     = 5 * time.Second
	healthPingTimeout = 2 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// appEnv はサブコマンドに渡す初期化済みの設定。
type appEnv struct {
	cfg *config.Config
}

// Init はアプリケーションの初期化を行う。
// .envを読み込んでから環境変数のConfigを構築し、JSON構造化ログをセットアップする。
// 戻り値のio.Closerはログファイルを閉じる。
func Init(w io.Writer) (*config.Config, io.Closer, error) {
	// 1. .envの読み込み（存在しなければ何もしない）
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		// 設定読み込み前でもログを使えるよう既定のロガーを設定する
		if _, logErr := logger.SetupDefault(w, logger.Options{}); logErr != nil {
			return nil, nil, logErr
		}
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログの初期化
	closer, err := logger.SetupDefault(w, logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return cfg, closer, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでctxがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(ctx, w)
	root.SetArgs(args)
	return root.Execute()
}

// withConfig は設定とロガーを初期化してfnを実行する。
func withConfig(w io.Writer, cmd Command, fn func(*appEnv) error) error {
	cfg, closer, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer closer.Close()

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return fn(&appEnv{cfg: cfg})
}

// rateLimiterConfig は1分あたりのリクエスト数をレートリミッターの設定へ変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rl.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rl.AuthBurst = cfg.RateLimitAuth
	}
	return rl
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, rt *appEnv) error {
	cfg := rt.cfg

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. カタログの読み込み（不整合は起動エラー）
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	writer := besteffort.New(slog.Default(), collector)

	// 4. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	analysisRepo := repository.NewPostgresAnalysisRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	progressRepo := repository.NewPostgresProgressRepo(db)

	// 5. 写真の保存先
	store, err := photo.NewLocalStore(cfg.PhotoDir)
	if err != nil {
		return err
	}
	uploader := photo.NewUploader(
		photo.Normalizer{MaxBytes: cfg.PhotoMaxBytes, MaxDimension: cfg.PhotoMaxDimension, MaxPixels: cfg.PhotoMaxPixels},
		store, writer, collector,
	)

	// 6. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, profileRepo, sessionRepo,
		auth.NewTokenIssuer(cfg.SessionSecret), writer, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	progressService := progress.NewService(enrollmentRepo, progressRepo, cat, collector, cfg.ProgramTimezone)

	jobs := analysis.NewJobRunner(
		analysis.StaticProvider{}, analysis.DefaultStages(cfg.AnalysisStageDelay),
		analysisRepo, writer, collector, slog.Default(),
	)
	defer jobs.Close()

	userService := user.NewService(
		userRepo, sessionRepo, profileRepo, analysisRepo,
		uploader, jobs, security.NewTextSanitizer(), writer,
	)

	// 7. ルーターの構築
	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		RateLimiter:    limiter,
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.SetupMetricsRoute(reg),
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db, healthPingTimeout)
		},

		AuthService:    authService,
		ProfileEnsurer: userService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProgressService: progressService,
		Catalog:         cat,

		PhotoUploader: uploader,
		AnalysisJobs:  jobs,
		PhotoFiles:    store,
		Analyses:      analysisRepo,
		MaxPhotoBytes: cfg.PhotoMaxBytes,

		UserService: userService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの掃除をctxがキャンセルされるまで繰り返す。
func runWorker(ctx context.Context, rt *appEnv) error {
	cfg := rt.cfg

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	// ワーカーはHTTPを公開しないため、メトリクスはプロセス内で集計のみ行う
	collector := metrics.NewCollector(prometheus.NewRegistry())
	sweep := cleanup.NewSweepJob(repository.NewPostgresSessionRepo(db), slog.Default(), collector)

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SessionSweepInterval),
	)

	sweep.Start(ctx, cfg.SessionSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(rt *appEnv) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(rt.cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(rt.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runCatalog は埋め込みカタログを検証し、日ごとの概要をwへ出力する。
func runCatalog(w io.Writer) error {
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("catalog is invalid: %w", err)
	}

	for _, d := range cat.Days() {
		fmt.Fprintf(w, "Day %2d  %-24s morning:%d night:%d products:%d techniques:%d\n",
			d.Day, d.Title, len(d.MorningSteps), len(d.NightSteps), len(d.Products), len(d.Techniques))
	}
	fmt.Fprintf(w, "catalog OK: %d days\n", len(cat.Days()))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

func getEnvOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
