// Package executor 在 TEI 容器内执行分词器管理脚本，服务端不直接读写分词器文件
package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner 在指定容器内执行命令，返回合并后的输出
type Runner interface {
	Run(ctx context.Context, container string, args ...string) (string, error)
}

type DockerRunner struct {
	bin     string
	timeout time.Duration
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewDockerRunner(bin string, timeout time.Duration) *DockerRunner {
	if bin == "" {
		bin = "docker"
	}
	return &DockerRunner{
		bin:     bin,
		timeout: timeout,
		command: exec.CommandContext,
	}
}

func (r *DockerRunner) Run(ctx context.Context, container string, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmdArgs := append([]string{"exec", container}, args...)
	logrus.WithFields(logrus.Fields{
		"container": container,
		"args":      args,
	}).Debug("执行Docker命令")

	out, err := r.command(ctx, r.bin, cmdArgs...).CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output == "" {
			output = err.Error()
		} else {
			output = output + ": " + err.Error()
		}
		return output, fmt.Errorf("docker exec %s: %w", container, err)
	}
	return output, nil
}
