// Package model はドメインモデルを定義する。
package model

import "time"

// User はメールアドレスとパスワードで認証するアカウントを表す。
// 以降の全レコード（プロフィール、分析結果、進捗）はIDを外部キーとして参照する。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string // サインアップ時に入力された表示名
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile はユーザーの公開プロフィールを表す。
// サインアップ直後にベストエフォートで作成されるため、存在しない場合がある。
type Profile struct {
	UserID    string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
