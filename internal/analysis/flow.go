package analysis

import (
	"errors"
	"fmt"

	"github.com/hitoshi/glowup/internal/model"
)

// Step はホーム画面の分析フローの段階。
type Step string

const (
	StepUpload    Step = "upload"
	StepAnalyzing Step = "analyzing"
	StepResults   Step = "results"
)

// ErrInvalidTransition は現在の段階では許可されない遷移を要求した場合のエラー。
var ErrInvalidTransition = errors.New("invalid analysis flow transition")

// Flow は upload → analyzing → results の状態を表す不変値。
// 遷移メソッドは新しいFlowを返し、レシーバを変更しない。
type Flow struct {
	step     Step
	progress int
	result   *model.SkinAnalysis
}

// NewFlow はアップロード待ちのFlowを返す。
func NewFlow() Flow {
	return Flow{step: StepUpload}
}

// RestoreFlow は保存済みの分析結果から結果表示中のFlowを復元する。resultがnilならアップロード待ち。
func RestoreFlow(result *model.SkinAnalysis) Flow {
	if result == nil {
		return NewFlow()
	}
	return Flow{step: StepResults, progress: 100, result: result}
}

// Step は現在の段階を返す。
func (f Flow) Step() Step { return f.step }

// Progress は分析の進捗（0〜100）を返す。
func (f Flow) Progress() int { return f.progress }

// Result は分析結果を返す。結果表示中以外はnil。
func (f Flow) Result() *model.SkinAnalysis { return f.result }

// Upload は画像を受け付けて分析中へ遷移する。どの段階からでも遷移でき、サイクルをやり直す。
func (f Flow) Upload() Flow {
	return Flow{step: StepAnalyzing}
}

// Advance は進捗をcheckpointへ進める。分析中のみ有効で、進捗は後戻りしない。
func (f Flow) Advance(checkpoint int) (Flow, error) {
	if f.step != StepAnalyzing {
		return f, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, f.step)
	}
	if checkpoint < f.progress || checkpoint > 100 {
		return f, fmt.Errorf("%w: checkpoint %d after %d", ErrInvalidTransition, checkpoint, f.progress)
	}
	f.progress = checkpoint
	return f, nil
}

// Complete は分析結果を受け取り結果表示へ遷移する。分析中のみ有効。
func (f Flow) Complete(result *model.SkinAnalysis) (Flow, error) {
	if f.step != StepAnalyzing {
		return f, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, f.step)
	}
	if result == nil {
		return f, fmt.Errorf("%w: complete without result", ErrInvalidTransition)
	}
	return Flow{step: StepResults, progress: 100, result: result}, nil
}

// Fail は分析失敗としてアップロード待ちへ戻る。分析中のみ有効。
func (f Flow) Fail() (Flow, error) {
	if f.step != StepAnalyzing {
		return f, fmt.Errorf("%w: fail from %s", ErrInvalidTransition, f.step)
	}
	return NewFlow(), nil
}

// Cancel は分析を中断してアップロード待ちへ戻る。分析中のみ有効。
func (f Flow) Cancel() (Flow, error) {
	if f.step != StepAnalyzing {
		return f, fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, f.step)
	}
	return NewFlow(), nil
}
