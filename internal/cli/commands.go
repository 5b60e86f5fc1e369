package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"tokenizermanager/internal/console"
	"tokenizermanager/internal/logging"
	"tokenizermanager/internal/model"

	"github.com/spf13/cobra"
)

func newListCmd(o *rootOptions) *cobra.Command {
	var sortBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出分词器",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, notifier := o.newPage(cmd, nil)
			page.Fetch(cmd.Context())
			if err := notifier.err(); err != nil {
				return err
			}

			key, err := parseSortKey(sortBy)
			if err != nil {
				return err
			}
			printTokenizers(cmd.OutOrStdout(), console.SortTokenizers(page.Snapshot().Tokenizers, key))
			return nil
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "model", "排序字段: model, status, channel, updated")
	return cmd
}

func parseSortKey(s string) (console.SortKey, error) {
	switch s {
	case "", "model":
		return console.SortByModel, nil
	case "status":
		return console.SortByStatus, nil
	case "channel":
		return console.SortByChannel, nil
	case "updated":
		return console.SortByLastUpdated, nil
	}
	return 0, fmt.Errorf("未知排序字段 %q", s)
}

func newVerifyCmd(o *rootOptions) *cobra.Command {
	var channelID int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "验证渠道下的分词器",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, notifier := o.newPage(cmd, nil)
			page.Verify(cmd.Context(), channelID)
			if err := notifier.err(); err != nil {
				return err
			}
			printTokenizers(cmd.OutOrStdout(), page.Snapshot().Tokenizers)
			return nil
		},
	}
	cmd.Flags().IntVar(&channelID, "channel", 0, "渠道 ID")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func newUpdateCmd(o *rootOptions) *cobra.Command {
	var (
		channelID int
		models    []string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "更新指定模型的分词器",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, notifier := o.newPage(cmd, nil)
			page.Update(cmd.Context(), channelID, models, force)
			page.Wait()
			printResults(cmd.OutOrStdout(), page.Snapshot().Results)
			return notifier.err()
		},
	}
	cmd.Flags().IntVar(&channelID, "channel", 0, "渠道 ID")
	cmd.Flags().StringSliceVar(&models, "model", nil, "模型名称，可重复")
	cmd.Flags().BoolVar(&force, "force", false, "强制重新下载")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// parseEntry 解析 CH/MODEL，模型名可包含斜杠
func parseEntry(s string) (model.TokenizerInfo, error) {
	ch, name, ok := strings.Cut(s, "/")
	if !ok || name == "" {
		return model.TokenizerInfo{}, fmt.Errorf("无效的条目 %q，格式应为 CH/MODEL", s)
	}
	id, err := strconv.Atoi(ch)
	if err != nil {
		return model.TokenizerInfo{}, fmt.Errorf("无效的渠道 ID %q: %w", ch, err)
	}
	return model.TokenizerInfo{ChannelID: id, ModelName: name}, nil
}

func newBatchCmd(o *rootOptions) *cobra.Command {
	var (
		entries []string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "按渠道分组批量更新分词器",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected := make([]model.TokenizerInfo, 0, len(entries))
			for _, e := range entries {
				info, err := parseEntry(e)
				if err != nil {
					return err
				}
				selected = append(selected, info)
			}

			page, notifier := o.newPage(cmd, promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout(), yes: yes})
			page.SetSelected(selected)
			page.BatchUpdate(cmd.Context())
			page.Wait()
			printResults(cmd.OutOrStdout(), page.Snapshot().Results)
			return notifier.err()
		},
	}
	cmd.Flags().StringArrayVar(&entries, "entry", nil, "要更新的条目 CH/MODEL，可重复")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}

func newForceAllCmd(o *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "force-all",
		Short: "强制更新列表中的全部分词器",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, notifier := o.newPage(cmd, promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout(), yes: yes})
			page.Fetch(cmd.Context())
			if err := notifier.err(); err != nil {
				return err
			}
			if len(page.Snapshot().Tokenizers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "没有分词器")
				return nil
			}
			page.ForceUpdateAll(cmd.Context())
			page.Wait()
			printResults(cmd.OutOrStdout(), page.Snapshot().Results)
			return notifier.err()
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "登录并输出 JWT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := o.client().Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("登录失败: %w", err)
			}
			if !auth.IsAdmin {
				fmt.Fprintln(cmd.ErrOrStderr(), "! 该账户不是管理员，分词器接口将拒绝访问")
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "用户名")
	cmd.Flags().StringVarP(&password, "password", "p", "", "密码")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newConsoleCmd(o *rootOptions) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "打开交互式分词器管理界面",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer f.Close()
			logging.Setup(o.logLevel, f)

			return console.NewView(cmd.Context(), o.client()).Run()
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "tokenizerctl.log", "界面运行期间的日志文件")
	return cmd
}
