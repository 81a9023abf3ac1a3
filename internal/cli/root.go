// Package cli 提供 LiteLens 的命令行入口
package cli

import (
	"LiteLens/internal/adapter/datasource/sqlite"
	"LiteLens/internal/cli/render"
	"LiteLens/internal/config"
	"LiteLens/internal/observe"
	"LiteLens/internal/service"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version 在构建时注入
var Version = "v0.1.0"

// configKey 用于在 context 中保存已加载的配置
type configKey struct{}

// NewRootCmd 创建根命令及全部子命令
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "litelens",
		Short: "LiteLens - SQLite 数据库浏览与查询工具",
		Long: `LiteLens 打开一个 SQLite 数据库文件，列出其中的表，浏览和按前缀搜索表数据，
并执行任意 SQL 语句。既可以作为命令行工具使用，也可以通过 serve 子命令提供 HTTP API。`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			// 命令行模式下日志写到 stderr，stdout 只留给查询结果
			slog.SetDefault(observe.NewLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, cfg.Server.LogFormat))
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml 或 ./config.yaml)")
	flags.String("db", "", "SQLite 数据库文件路径")
	flags.String("host", "", "HTTP 监听地址；未启用认证时默认只监听 127.0.0.1")
	flags.Int("port", 0, "HTTP 服务端口")
	flags.Int("grpc-port", 0, "gRPC 健康检查端口，0 表示不启用")
	flags.String("log-level", "", "日志级别 (DEBUG|INFO|WARN|ERROR)")
	flags.StringP("output", "o", "", "输出格式 (table|json|csv|md)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{render.FormatTable, render.FormatJSON, render.FormatCSV, render.FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newTablesCommand())
	rootCmd.AddCommand(newRowsCommand())
	rootCmd.AddCommand(newExecCommand())

	return rootCmd
}

// Execute 运行根命令
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("配置尚未加载")
	}
	return cfg, nil
}

func newManager(cfg *config.Config, watch bool) *sqlite.Manager {
	return sqlite.NewManager(
		sqlite.WithBusyTimeout(cfg.Database.BusyTimeout),
		sqlite.WithSchemaCache(cfg.Database.SchemaCacheSize, cfg.Database.SchemaCacheTTL),
		sqlite.WithWatch(watch && cfg.Database.Watch, 0),
	)
}

// openSession 为一次性命令打开 --db 指定的数据库；返回的 cleanup 必须被调用
func openSession(cmd *cobra.Command, cfg *config.Config) (*service.Session, func(), error) {
	if cfg.Database.Path == "" {
		return nil, nil, errors.New("需要通过 --db 或配置项 database.path 指定数据库文件")
	}
	mgr := newManager(cfg, false)
	session := service.NewSession(mgr)
	cleanup := func() {
		if err := session.Close(); err != nil {
			slog.Warn("关闭数据库时发生错误", "error", err)
		}
	}

	if _, err := session.OpenDatabase(cmd.Context(), cfg.Database.Path); err != nil {
		return nil, nil, err
	}
	if !session.Status(cmd.Context()).Open {
		return nil, nil, fmt.Errorf("数据库文件 '%s' 不存在", cfg.Database.Path)
	}
	return session, cleanup, nil
}
