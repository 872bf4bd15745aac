// Package user はプロフィール管理と退会処理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/glowup/internal/besteffort"
	"github.com/hitoshi/glowup/internal/model"
	"github.com/hitoshi/glowup/internal/repository"
	"github.com/hitoshi/glowup/internal/security"
)

// maxNameLength は表示名の最大文字数。
const maxNameLength = 100

// PhotoDeleter は保存済み写真の削除インターフェース。
type PhotoDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// JobForgetter は実行中の分析ジョブを破棄するインターフェース。
type JobForgetter interface {
	Forget(userID string)
}

// Profile はプロフィール画面の表示内容。
type Profile struct {
	UserID         string              `json:"userId"`
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	MemberSince    time.Time           `json:"memberSince"`
	LatestAnalysis *model.SkinAnalysis `json:"-"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	profileRepo  repository.ProfileRepository
	analysisRepo repository.AnalysisRepository
	photos       PhotoDeleter
	jobs         JobForgetter
	sanitizer    security.TextSanitizer
	writer       *besteffort.Writer
	validate     *validator.Validate
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// photosとjobsはnilでもよい（退会時の後片付けを省略する）。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	profileRepo repository.ProfileRepository,
	analysisRepo repository.AnalysisRepository,
	photos PhotoDeleter,
	jobs JobForgetter,
	sanitizer security.TextSanitizer,
	writer *besteffort.Writer,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		profileRepo:  profileRepo,
		analysisRepo: analysisRepo,
		photos:       photos,
		jobs:         jobs,
		sanitizer:    sanitizer,
		writer:       writer,
		validate:     validator.New(),
		now:          time.Now,
	}
}

// GetProfile はプロフィールと最新の分析結果を返す。
// プロフィール行がない場合はユーザー情報から組み立てる。
// 分析結果の読み込みに失敗した場合は分析なしとして返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	p := &Profile{
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		MemberSince: user.CreatedAt,
	}

	stored, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "プロフィールの読み込みに失敗しました（アカウント情報で表示します）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if stored != nil {
		p.Name = stored.Name
	}

	latest, err := s.analysisRepo.FindLatestByUserID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "分析結果の読み込みに失敗しました（分析なしとして表示します）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		latest = nil
	}
	p.LatestAnalysis = latest

	return p, nil
}

// UpdateName は表示名を更新する。タグや制御文字は除去し、空になる名前は受け付けない。
func (s *Service) UpdateName(ctx context.Context, userID, name string) (*Profile, error) {
	name = s.sanitizer.Sanitize(name)
	if err := s.validate.Var(name, fmt.Sprintf("required,max=%d", maxNameLength)); err != nil {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("名前は1〜%d文字で入力してください", maxNameLength))
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := s.now()
	if err := s.profileRepo.Upsert(ctx, &model.Profile{
		UserID:    userID,
		Name:      name,
		Email:     user.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	return s.GetProfile(ctx, userID)
}

// EnsureProfile はプロフィール行がなければ作成する。
// サインアップ時の作成に失敗していた場合の補完であり、失敗しても呼び出し元を止めない。
func (s *Service) EnsureProfile(ctx context.Context, user *model.User) {
	s.writer.Do(ctx, "profile.ensure", func(ctx context.Context) error {
		existing, err := s.profileRepo.FindByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		now := s.now()
		return s.profileRepo.Upsert(ctx, &model.Profile{
			UserID:    user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 分析ジョブ → sessions → user（+ CASCADE: profiles, skin_analyses, enrollments, challenge_progress）→ 写真ファイル
// 写真ファイルの削除はベストエフォートで行う。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.InfoContext(ctx, "退会処理を開始します", slog.String("user_id", userID))

	// 1. 実行中の分析が削除後に結果を書き込まないよう先に止める
	if s.jobs != nil {
		s.jobs.Forget(userID)
	}

	// 2. CASCADEで消える前に写真の参照を控えておく
	refs, err := s.analysisRepo.ListImageRefsByUserID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "写真参照の取得に失敗しました（写真ファイルは残ります）",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		refs = nil
	}

	// 3. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 4. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// 5. 写真ファイルを削除
	if s.photos != nil {
		for _, ref := range refs {
			s.writer.Do(ctx, "photo.delete", func(ctx context.Context) error {
				return s.photos.Delete(ctx, ref)
			})
		}
	}

	slog.InfoContext(ctx, "退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
