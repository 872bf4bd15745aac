// Package auth はメールアドレスとパスワードによる認証とセッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/glowup/internal/besteffort"
	"github.com/hitoshi/glowup/internal/metrics"
	"github.com/hitoshi/glowup/internal/model"
	"github.com/hitoshi/glowup/internal/repository"
)

// DefaultMinPasswordLength はパスワードの最小文字数。
const DefaultMinPasswordLength = 6

// bcryptは72バイトを超える入力を扱えない。
const maxPasswordBytes = 72

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int // セッション有効期間（秒）
	MinPasswordLength int // 0の場合はDefaultMinPasswordLength
	BcryptCost        int // 0の場合はbcrypt.DefaultCost
}

// Result はサインアップ・サインインの結果。
type Result struct {
	User    *model.User
	Session *model.Session
	Token   string // Cookieに格納する署名付きトークン
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenIssuer
	writer      *besteffort.Writer
	metrics     metrics.MetricsCollector
	validate    *validator.Validate
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenIssuer,
	writer *besteffort.Writer,
	m metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = DefaultMinPasswordLength
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		writer:      writer,
		metrics:     m,
		validate:    validator.New(),
		config:      config,
		now:         time.Now,
	}
}

// SignUp はアカウントを作成し、セッションを発行する。
// 登録済みのメールアドレスはDUPLICATE_ACCOUNTとなり、プロフィールも作成しない。
// プロフィール作成はベストエフォートで、失敗してもサインアップは成功する。
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*Result, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if err := s.validateCredentials(email, password); err != nil {
		s.metrics.RecordAuthAttempt("signup", "rejected")
		return nil, err
	}
	if err := s.validate.Var(name, "max=100"); err != nil {
		s.metrics.RecordAuthAttempt("signup", "rejected")
		return nil, model.NewInvalidRequestError("名前は100文字以内で入力してください")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthAttempt("signup", "duplicate")
			return nil, model.NewDuplicateAccountError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.writer.Do(ctx, "profile.create", func(ctx context.Context) error {
		return s.profileRepo.Upsert(ctx, &model.Profile{
			UserID:    user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("signup", "success")
	slog.InfoContext(ctx, "新規ユーザーを登録しました", slog.String("user_id", user.ID))
	return result, nil
}

// SignIn はメールアドレスとパスワードを検証し、セッションを発行する。
// 存在しないメールアドレスとパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		s.metrics.RecordAuthAttempt("signin", "rejected")
		return nil, model.NewInvalidEmailError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthAttempt("signin", "invalid_credentials")
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordAuthAttempt("signin", "invalid_credentials")
		return nil, model.NewInvalidCredentialsError()
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("signin", "success")
	slog.InfoContext(ctx, "ユーザーがログインしました", slog.String("user_id", user.ID))
	return result, nil
}

// Authenticate はトークンを検証し、有効なセッションを返す。
// 署名が正しくてもセッション行が失効していればUNAUTHORIZEDとなる。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.UserID() {
		return nil, model.NewUnauthorizedError()
	}
	return session, nil
}

// GetCurrentUser はトークンから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, token string) (*model.User, error) {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Logout はトークンが指すセッションを破棄する。
// 既に無効なトークンの場合は何もしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, claims.SessionID()); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.InfoContext(ctx, "ユーザーがログアウトしました", slog.String("user_id", claims.UserID()))
	return nil
}

func (s *Service) validateCredentials(email, password string) error {
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return model.NewInvalidEmailError()
	}
	if len([]rune(password)) < s.config.MinPasswordLength {
		return model.NewWeakPasswordError(s.config.MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError("パスワードが長すぎます")
	}
	return nil
}

// issue はセッションを作成し永続化したうえでトークンを発行する。
func (s *Service) issue(ctx context.Context, user *model.User) (*Result, error) {
	now := s.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, Session: session, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
