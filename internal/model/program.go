package model

import "time"

// Enrollment はユーザー1人分の30日プログラムへの参加を表す。
// StartDateは初回アクセス時に1度だけ書き込まれ、以後上書きされない（first-write-wins）。
type Enrollment struct {
	UserID    string
	StartDate time.Time // 日付のみ有効（時刻は00:00）
	CreatedAt time.Time
}

// CompletionRecord は (ユーザー, 日) ごとの完了記録を表す。
// (UserID, Day) で一意であり、完了/未完了の切り替えはUPSERT/DELETEで行う。
type CompletionRecord struct {
	UserID      string
	Day         int
	CompletedAt time.Time
}

// SkinAnalysis は肌分析の結果を表す。ユーザーごとに最新の1件が有効となる。
type SkinAnalysis struct {
	ID              string
	UserID          string
	SkinType        string
	Score           float64 // 0〜10
	Concerns        []string
	ImageRef        string // 任意。空文字列は画像なし
	Recommendations Recommendations
	CreatedAt       time.Time
}

// Recommendations は分析結果に付随する推奨事項。
type Recommendations struct {
	Products []string `json:"products"`
	Water    string   `json:"water"`
	Sleep    string   `json:"sleep"`
	Routine  []string `json:"routine"`
}
