package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（認証エラーはそのままUIに表示される）
	Category string // カテゴリ: auth, validation, program, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryProgram    = "program"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeDayOutOfRange      = "DAY_OUT_OF_RANGE"
	ErrCodeDayLocked          = "DAY_LOCKED"
	ErrCodeAnalysisNotFound   = "ANALYSIS_NOT_FOUND"
	ErrCodeJobNotFound        = "JOB_NOT_FOUND"
	ErrCodeInvalidPhoto       = "INVALID_PHOTO"
	ErrCodePhotoTooLarge      = "PHOTO_TOO_LARGE"
	ErrCodePhotoNotFound      = "PHOTO_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
)

// IsAuthError はerrが認証カテゴリのAPIErrorかどうかを判定する。
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == CategoryAuth
	}
	return false
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
// どちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認して、もう一度お試しください。",
	}
}

// NewDuplicateAccountError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "このメールアドレスは既に登録されています。",
		Category: CategoryAuth,
		Action:   "ログイン画面からサインインしてください。",
	}
}

// NewWeakPasswordError はパスワード長不足のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: CategoryAuth,
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式の誤りを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: CategoryAuth,
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: CategoryAuth,
		Action:   "ログインし直してください。",
	}
}

// NewDayOutOfRangeError はプログラム範囲外（1〜30日以外）の日指定エラーを生成する。
func NewDayOutOfRangeError(day int) *APIError {
	return &APIError{
		Code:     ErrCodeDayOutOfRange,
		Message:  fmt.Sprintf("指定された日は存在しません: %d", day),
		Category: CategoryValidation,
		Action:   "1から30までの日を指定してください。",
	}
}

// NewDayLockedError は未解放の日へのアクセスエラーを生成する。
func NewDayLockedError(day, currentDay int) *APIError {
	return &APIError{
		Code:     ErrCodeDayLocked,
		Message:  fmt.Sprintf("Day %dはまだ解放されていません（現在はDay %d）。", day, currentDay),
		Category: CategoryProgram,
		Action:   "その日が来るまでお待ちください。",
	}
}

// NewAnalysisNotFoundError は保存済み分析結果がない場合のエラーを生成する。
func NewAnalysisNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisNotFound,
		Message:  "肌分析の結果がまだありません。",
		Category: CategoryProgram,
		Action:   "写真をアップロードして分析を開始してください。",
	}
}

// NewJobNotFoundError は実行中または完了済みの分析ジョブがない場合のエラーを生成する。
func NewJobNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  "分析ジョブが見つかりません。",
		Category: CategoryProgram,
		Action:   "写真をアップロードして分析を開始してください。",
	}
}

// NewInvalidPhotoError は画像として扱えないアップロードのエラーを生成する。
func NewInvalidPhotoError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhoto,
		Message:  fmt.Sprintf("画像を読み込めませんでした: %s", reason),
		Category: CategoryValidation,
		Action:   "JPEG、PNG、WebP形式の写真を選択してください。",
	}
}

// NewPhotoTooLargeError は容量上限を超えた画像のエラーを生成する。
func NewPhotoTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePhotoTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: CategoryValidation,
		Action:   "より小さい写真を選択してください。",
	}
}

// NewPhotoNotFoundError は分析結果に紐づく写真がない場合のエラーを生成する。
func NewPhotoNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePhotoNotFound,
		Message:  "分析に使った写真が見つかりません。",
		Category: CategoryProgram,
		Action:   "写真をアップロードし直してください。",
	}
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "リクエストを検証できませんでした。",
		Category: CategoryAuth,
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
