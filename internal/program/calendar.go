// Package program は30日プログラムの進行ロジック（現在日の算出、解放判定、完了集計）を提供する。
// すべて入力のみに依存する純粋関数であり、I/Oやグローバルな時計を持たない。
package program

import "time"

// ProgramLength はプログラムの日数。
const ProgramLength = 30

// DaysPerWeek は週表示の1週あたりの日数。
const DaysPerWeek = 7

// ResolveCurrentDay は開始日と現在時刻から現在のプログラム日（1〜30）を算出する。
//
// 両者を開始日のロケーションにおける暦日に丸め、経過日数に1を加えた値を返す。
// 開始日当日は1日目となる。nowが開始日より前（時刻のずれや改ざん）の場合は1を返し、
// 30日を超えて経過した場合は30に丸める。nowに対して単調非減少である。
func ResolveCurrentDay(start, now time.Time) int {
	elapsed := civilDaysBetween(start, now.In(start.Location()))
	if elapsed < 0 {
		return 1
	}
	return clampDay(elapsed + 1)
}

// civilDaysBetween はa, bそれぞれの暦日の差（b - a）を日数で返す。
// 夏時間の切り替えに影響されないよう、暦日をUTCの0時に載せ替えてから差を取る。
func civilDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// StartDateOf は時刻tを暦日（ロケーションloc上の0時）に丸める。
// 参加登録時に開始日として保存する値を作るために使う。
func StartDateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Week は日が属する週番号（1始まり）を返す。
func Week(day int) int {
	if day < 1 {
		return 1
	}
	return (day + DaysPerWeek - 1) / DaysPerWeek
}

// WeekCount はプログラム全体の週数を返す。
func WeekCount() int {
	return Week(ProgramLength)
}

// WeekDays は週に含まれる日を昇順で返す。範囲外の週はnilを返す。
func WeekDays(week int) []int {
	if week < 1 || week > WeekCount() {
		return nil
	}
	first := (week-1)*DaysPerWeek + 1
	last := min(week*DaysPerWeek, ProgramLength)
	days := make([]int, 0, last-first+1)
	for d := first; d <= last; d++ {
		days = append(days, d)
	}
	return days
}

// ValidDay は日がプログラム範囲内かどうかを判定する。
func ValidDay(day int) bool {
	return day >= 1 && day <= ProgramLength
}

func clampDay(day int) int {
	return max(1, min(day, ProgramLength))
}
