// file: internal/cli/browse.go
package cli

import (
	"LiteLens/internal/cli/render"
	"strings"

	"github.com/spf13/cobra"
)

func newTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "列出数据库中的所有表及其列",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := openSession(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			tables, err := session.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			return render.Tables(cmd.OutOrStdout(), tables, cfg.Output.Format)
		},
	}
}

func newRowsCommand() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "显示一张表的数据，可按前缀搜索",
		Long: `显示一张表的全部行。使用 --search 时只保留至少有一个值
（转为文本并忽略大小写后）以搜索文本开头的行。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := openSession(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := session.SelectTable(cmd.Context(), args[0]); err != nil {
				return err
			}
			rs, err := session.Search(cmd.Context(), "", search)
			if err != nil {
				return err
			}
			return render.RowSet(cmd.OutOrStdout(), rs, cfg.Output.Format)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "前缀搜索文本")
	return cmd
}

func newExecCommand() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "exec <sql>...",
		Short: "执行任意 SQL 语句",
		Long: `执行一条 SQL 语句并提交。多个参数会用空格连接成一条语句。
使用 --table 时，执行成功后会输出该表刷新后的数据。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			session, cleanup, err := openSession(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if table != "" {
				if _, err := session.SelectTable(cmd.Context(), table); err != nil {
					return err
				}
			}

			out, err := session.RunSQL(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := render.Outcome(cmd.OutOrStdout(), out, cfg.Output.Format); err != nil {
				return err
			}
			if out.RefreshTable == "" {
				return nil
			}
			rs, err := session.Refresh(cmd.Context(), out.RefreshTable)
			if err != nil {
				return err
			}
			return render.RowSet(cmd.OutOrStdout(), rs, cfg.Output.Format)
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "执行前选中的表，成功后刷新显示")
	return cmd
}
