package program

// IsUnlocked は日が閲覧・操作可能かどうかを判定する。
// 現在日以下の日のみ解放され、一度解放された日が再びロックされることはない。
func IsUnlocked(day, currentDay int) bool {
	return day <= currentDay
}

// UnlockedDays は解放済みの日（1〜currentDay）を昇順で返す。
func UnlockedDays(currentDay int) []int {
	n := clampDay(currentDay)
	days := make([]int, n)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

// CanAdvance は閲覧中の日から翌日へ進めるかどうかを返す。
// UIは偽の場合に「次へ」操作を無効化する。
func CanAdvance(viewing, currentDay int) bool {
	next := viewing + 1
	return next <= ProgramLength && IsUnlocked(next, currentDay)
}

// Next は翌日へのナビゲーションを適用する。
// 翌日が未解放またはプログラム範囲外の場合はエラーにせず、viewingをそのまま返す。
func Next(viewing, currentDay int) int {
	if !CanAdvance(viewing, currentDay) {
		return viewing
	}
	return viewing + 1
}

// Previous は前日へのナビゲーションを適用する。1日目より前には戻らない。
func Previous(viewing int) int {
	return max(1, viewing-1)
}
