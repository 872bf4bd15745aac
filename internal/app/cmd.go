package app

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（期限切れセッションの掃除）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandCatalog は埋め込みカタログを検証して日ごとの概要を出力する。
	CommandCatalog Command = "catalog"
)

// NewRootCommand はglowupのルートコマンドを構築する。
// サブコマンドなしで起動した場合はserveとして動作する。
// ログはlogWriterへ、catalogなどの通常出力はcmd.OutOrStdout()へ書き出す。
func NewRootCommand(ctx context.Context, logWriter io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "glowup",
		Short:         "GlowUp 30-day skincare program API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(logWriter, CommandServe, func(rt *appEnv) error {
				return runServe(ctx, rt)
			})
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Run the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(logWriter, CommandServe, func(rt *appEnv) error {
					return runServe(ctx, rt)
				})
			},
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "Run background maintenance until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(logWriter, CommandWorker, func(rt *appEnv) error {
					return runWorker(ctx, rt)
				})
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "Apply all embedded SQL migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(logWriter, CommandMigrate, func(rt *appEnv) error {
					return runMigrate(rt)
				})
			},
		},
		newHealthcheckCommand(),
		&cobra.Command{
			Use:   string(CommandCatalog),
			Short: "Validate the embedded routine catalog and print a summary",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCatalog(cmd.OutOrStdout())
			},
		},
	)

	return root
}

// newHealthcheckCommand は軽量なヘルスチェックコマンドを返す。設定の読み込みは行わない。
func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			return runHealthcheck(port)
		},
	}
	cmd.Flags().String("port", getEnvOr("SERVER_PORT", "8080"), "API server port")
	return cmd
}
