// Package besteffort は失敗してもユーザーの主要フローを止めない書き込み（ベストエフォート書き込み）を扱う。
//
// プロフィール作成や分析結果の保存のように、主処理の成功後に行う副次的な書き込みが対象。
// 失敗はWARNでログに残し、メトリクスに記録したうえで握りつぶす。リトライはしない。
package besteffort

import (
	"context"
	"log/slog"

	"github.com/hitoshi/glowup/internal/metrics"
)

// Writer はベストエフォート書き込みを実行する。
type Writer struct {
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// New は新しいWriterを生成する。loggerがnilの場合はslog.Default()を使う。
func New(logger *slog.Logger, m metrics.MetricsCollector) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Writer{logger: logger, metrics: m}
}

// Do はfnを実行し、エラーを記録して破棄する。戻り値はfnが成功したかどうか。
// 呼び出し側は戻り値で処理を分岐させてはならない（ログや表示の補足にのみ使う）。
func (w *Writer) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) bool {
	err := fn(ctx)
	if err == nil {
		return true
	}
	w.logger.WarnContext(ctx, "ベストエフォート書き込みに失敗しました（処理は継続します）",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	w.metrics.RecordBestEffortFailure(operation)
	return false
}
