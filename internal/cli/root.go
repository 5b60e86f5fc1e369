// Package cli 实现 tokenizerctl 命令行
package cli

import (
	"errors"
	"os"
	"time"

	"tokenizermanager/internal/apiclient"
	"tokenizermanager/internal/console"
	"tokenizermanager/internal/logging"

	"github.com/spf13/cobra"
)

const (
	envServerURL     = "TOKENIZERCTL_SERVER_URL"
	envToken         = "TOKENIZERCTL_TOKEN"
	defaultServerURL = "http://127.0.0.1:16823"
)

// errFailed 操作已通过通知输出，只需要非零退出码
var errFailed = errors.New("operation failed")

type rootOptions struct {
	serverURL string
	token     string
	timeout   time.Duration
	logLevel  string

	clientOpts []apiclient.Option
	scheduler  console.Scheduler
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *rootOptions) client() *apiclient.Client {
	opts := []apiclient.Option{
		apiclient.WithToken(o.token),
		apiclient.WithTimeout(o.timeout),
	}
	return apiclient.New(o.serverURL, append(opts, o.clientOpts...)...)
}

func (o *rootOptions) newPage(cmd *cobra.Command, confirmer console.Confirmer) (*console.Page, *printNotifier) {
	notifier := &printNotifier{out: cmd.ErrOrStderr()}
	opts := []console.Option{console.WithNotifier(notifier)}
	if confirmer != nil {
		opts = append(opts, console.WithConfirmer(confirmer))
	}
	if o.scheduler != nil {
		opts = append(opts, console.WithScheduler(o.scheduler))
	}
	return console.NewPage(o.client(), opts...), notifier
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tokenizerctl",
		Short:        "分词器缓存管理工具",
		Long:         "tokenizerctl 连接 tokenizer-server，查看、验证和更新 TEI 渠道的分词器缓存。",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Setup(o.logLevel, cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.serverURL, "server-url", envOr(envServerURL, defaultServerURL), "tokenizer-server 地址 (env "+envServerURL+")")
	flags.StringVar(&o.token, "token", os.Getenv(envToken), "管理员 JWT (env "+envToken+")")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Minute, "单次请求超时")
	flags.StringVar(&o.logLevel, "log-level", "warn", "日志级别")

	cmd.AddCommand(
		newListCmd(o),
		newVerifyCmd(o),
		newUpdateCmd(o),
		newBatchCmd(o),
		newForceAllCmd(o),
		newLoginCmd(o),
		newConsoleCmd(o),
	)
	return cmd
}
