package app

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// Version はビルド時に-ldflagsで上書きされる。
var Version = "dev"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandCleanup は期限切れデータを1回削除することを示す。
	CommandCleanup Command = "cleanup"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はvaultコマンドのツリーを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// wはログの出力先。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "vault",
		Short:         "Vault link bookmarking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandServe)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Start the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandServe)
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "Apply all pending database migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandMigrate)
			},
		},
		&cobra.Command{
			Use:   string(CommandCleanup),
			Short: "Delete expired sessions and elapsed email bans once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandCleanup)
			},
		},
		newHealthcheckCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "vault %s (%s %s/%s)\n",
					Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			},
		},
	)

	return root
}

// newHealthcheckCommand はフル初期化をスキップする軽量なヘルスチェックコマンドを生成する。
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe /health on the local server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(port)
		},
	}
	cmd.Flags().StringVar(&port, "port", healthcheckPort(), "port of the local API server")
	return cmd
}

// runWithConfig は設定を読み込んだうえで指定モードを実行する。
func runWithConfig(w io.Writer, command Command) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	switch command {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}
