// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/glowup/internal/model"
)

// ErrDuplicateEmail はメールアドレスが登録済みの場合にUserRepository.Createが返すエラー。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字に正規化済み）でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するprofiles、skin_analyses、enrollments、challenge_progressはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はプロフィールを作成し、既に存在する場合はnameとemailを更新する。
	Upsert(ctx context.Context, profile *model.Profile) error
}

// AnalysisRepository は肌分析結果の永続化インターフェース。
// 履歴は保持するが、参照されるのはユーザーごとに最新の1件のみ。
type AnalysisRepository interface {
	// Create は分析結果を追加する。
	Create(ctx context.Context, analysis *model.SkinAnalysis) error

	// FindLatestByUserID はユーザーの最新の分析結果を取得する。見つからない場合はnilを返す。
	FindLatestByUserID(ctx context.Context, userID string) (*model.SkinAnalysis, error)

	// ListImageRefsByUserID はユーザーの分析結果に紐づく画像参照を返す。空の参照は含めない。
	ListImageRefsByUserID(ctx context.Context, userID string) ([]string, error)
}

// EnrollmentRepository はプログラム参加（開始日）の永続化インターフェース。
type EnrollmentRepository interface {
	// Ensure は開始日を1度だけ記録し、記録済みの参加情報を返す。
	// 既に記録がある場合はstartDateを無視して既存の値を返す（first-write-wins）。
	Ensure(ctx context.Context, userID string, startDate time.Time) (*model.Enrollment, error)

	// FindByUserID はユーザーの参加情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Enrollment, error)
}

// ProgressRepository は日ごとの完了記録の永続化インターフェース。
// (user_id, day) が一意キーであり、追記ではなくUPSERT/DELETEで状態を切り替える。
type ProgressRepository interface {
	// ListByUserID はユーザーの完了記録を日の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.CompletionRecord, error)

	// Upsert は完了記録を作成し、既に存在する場合はcompleted_atを更新する。
	Upsert(ctx context.Context, record model.CompletionRecord) error

	// Delete は完了記録を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID string, day int) error
}
