package analysis

import (
	"context"
	"time"
)

// Stage は分析中の1段階。Delayだけ待ってからCheckpoint（0〜100）を報告する。
type Stage struct {
	Delay      time.Duration
	Checkpoint int
}

// DefaultCheckpoints は分析中に報告する進捗値。
var DefaultCheckpoints = []int{20, 40, 60, 80, 100}

// DefaultStages はdelay間隔でDefaultCheckpointsを報告する5段階を返す。
func DefaultStages(delay time.Duration) []Stage {
	stages := make([]Stage, len(DefaultCheckpoints))
	for i, cp := range DefaultCheckpoints {
		stages[i] = Stage{Delay: delay, Checkpoint: cp}
	}
	return stages
}

// Run は各段階を順に待機し、到達したCheckpointをreportに渡す。
// ctxがキャンセルされると待機を中断してctx.Err()を返す。中断時点以降の段階は報告しない。
func Run(ctx context.Context, stages []Stage, report func(checkpoint int)) error {
	for _, s := range stages {
		if s.Delay > 0 {
			timer := time.NewTimer(s.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if report != nil {
			report(s.Checkpoint)
		}
	}
	return nil
}
