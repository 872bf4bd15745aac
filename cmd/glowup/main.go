// Command glowup はGlowUp 30日スキンケアプログラムのAPIサーバーとメンテナンスコマンドを提供する。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/glowup/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("glowup exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
