package program

import (
	"math"

	"github.com/hitoshi/glowup/internal/model"
)

// CompletedCount は完了記録の件数を返す。
// 同一 (ユーザー, 日) の重複レコードは1件として数える。
func CompletedCount(records []model.CompletionRecord) int {
	type key struct {
		userID string
		day    int
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		seen[key{r.UserID, r.Day}] = struct{}{}
	}
	return len(seen)
}

// CompletedDays は完了済みの日を昇順・重複なしで返す。
func CompletedDays(records []model.CompletionRecord) []int {
	set := completedSet(records)
	days := make([]int, 0, len(set))
	for d := 1; d <= ProgramLength; d++ {
		if _, ok := set[d]; ok {
			days = append(days, d)
		}
	}
	return days
}

// CurrentStreak は現在日から遡って連続して完了している日数を返す。
//
// 現在日が未完了の場合は当日がまだ進行中とみなし、前日から数え始める。
// 最初の未完了日で数え終える。現在日より後の日の記録は無視する。
func CurrentStreak(records []model.CompletionRecord, currentDay int) int {
	set := completedSet(records)
	day := clampDay(currentDay)
	if _, ok := set[day]; !ok {
		day--
	}
	streak := 0
	for ; day >= 1; day-- {
		if _, ok := set[day]; !ok {
			break
		}
		streak++
	}
	return streak
}

func completedSet(records []model.CompletionRecord) map[int]struct{} {
	set := make(map[int]struct{}, len(records))
	for _, r := range records {
		if ValidDay(r.Day) {
			set[r.Day] = struct{}{}
		}
	}
	return set
}

// CompletionPercent は完了日数のプログラム全体に対する割合（0〜100、四捨五入）を返す。
func CompletionPercent(completed int) int {
	return int(math.Round(ratio(completed) * 100))
}

func ratio(completed int) float64 {
	c := max(0, min(completed, ProgramLength))
	return float64(c) / float64(ProgramLength)
}

// Achievement は完了日数に応じて解放されるバッジ。
type Achievement struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	Threshold int    `json:"threshold"`
	Unlocked  bool   `json:"unlocked"`
}

var achievementDefs = []Achievement{
	{ID: "first_week", Title: "最初の1週間", Icon: "🏆", Threshold: 7},
	{ID: "day_15", Title: "15日達成", Icon: "⭐", Threshold: 15},
	{ID: "day_21", Title: "21日達成", Icon: "💎", Threshold: 21},
	{ID: "day_30", Title: "30日達成", Icon: "👑", Threshold: 30},
}

// Achievements は全バッジを閾値の昇順で、解放状態付きで返す。
func Achievements(completed int) []Achievement {
	out := make([]Achievement, len(achievementDefs))
	for i, a := range achievementDefs {
		a.Unlocked = completed >= a.Threshold
		out[i] = a
	}
	return out
}

// Improvement は進捗画面に表示する「期待される改善」の指標。
// Barはプログレスバーの値（0〜100）、Percentはラベルに表示する改善率。
type Improvement struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Bar     float64 `json:"bar"`
	Percent int     `json:"percent"`
}

type improvementDef struct {
	id     string
	label  string
	factor float64
	cap    int
}

var improvementDefs = []improvementDef{
	{id: "hydration", label: "保湿", factor: 1.5, cap: 52},
	{id: "texture", label: "キメ", factor: 1.3, cap: 38},
	{id: "oiliness", label: "皮脂バランス", factor: 1.4, cap: 45},
}

// ExpectedImprovements は完了日数から期待される改善指標を算出する。
// 値は表示用の目安であり、実測ではない。
func ExpectedImprovements(completed int) []Improvement {
	r := ratio(completed)
	out := make([]Improvement, len(improvementDefs))
	for i, d := range improvementDefs {
		out[i] = Improvement{
			ID:      d.id,
			Label:   d.label,
			Bar:     math.Min(100, r*100*d.factor),
			Percent: min(d.cap, int(math.Round(r*float64(d.cap)))),
		}
	}
	return out
}
