package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はヘルスチェックの依存先確認にかける最大時間。
const healthCheckTimeout = 2 * time.Second

// HealthChecker は依存先（データベース等）の疎通を確認する関数。
type HealthChecker func(ctx context.Context) error

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// checkがnilまたは成功すれば200、失敗すれば503を返す。
func NewHealthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.WarnContext(r.Context(), "ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
