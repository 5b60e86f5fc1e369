package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// 管理脚本失败时仍以 0 退出，只能通过输出判断
const (
	failureMarker = "❌"
	verifyPassed  = "✅ 验证通过: "
)

var ErrScriptFailed = errors.New("tokenizer manager reported failure")

// Manager 封装 tokenizer_manager.py 的 update/verify 命令
type Manager struct {
	runner   Runner
	script   string
	cacheDir string
}

func NewManager(runner Runner, script, cacheDir string) *Manager {
	return &Manager{
		runner:   runner,
		script:   script,
		cacheDir: cacheDir,
	}
}

// CacheLocation 返回模型在容器内的 HuggingFace 缓存目录
func (m *Manager) CacheLocation(modelName string) string {
	return path.Join(m.cacheDir, "models--"+strings.ReplaceAll(modelName, "/", "--"))
}

func (m *Manager) Update(ctx context.Context, container, modelName string, force bool) (string, error) {
	args := []string{"python3", m.script, "update", "--model", modelName}
	if force {
		args = append(args, "--force")
	}
	out, err := m.runner.Run(ctx, container, args...)
	if err != nil {
		return out, err
	}
	if strings.Contains(out, failureMarker) {
		return out, ErrScriptFailed
	}
	return out, nil
}

// Verify 只看该模型自己的结果行，汇总部分总会出现 ❌
func (m *Manager) Verify(ctx context.Context, container, modelName string) (string, error) {
	out, err := m.runner.Run(ctx, container, "python3", m.script, "verify", "--model", modelName)
	if err != nil {
		return out, err
	}
	if !VerifyPassed(out, modelName) {
		return out, ErrScriptFailed
	}
	return out, nil
}

// VerifyPassed 判断 verify 输出中模型是否通过；找不到模型的结果行视为未通过
func VerifyPassed(out, modelName string) bool {
	passed := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, verifyPassed); ok {
			if name == modelName {
				passed = true
			}
			continue
		}
		if !strings.HasPrefix(line, failureMarker) {
			continue
		}
		// ❌ 验证失败: <model> - <error>
		_, rest, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, " - ")
		if name == modelName {
			return false
		}
	}
	return passed
}

// CacheSize 通过 du 读取缓存目录占用的字节数
func (m *Manager) CacheSize(ctx context.Context, container, modelName string) (int64, error) {
	out, err := m.runner.Run(ctx, container, "du", "-sb", m.CacheLocation(modelName))
	if err != nil {
		return -1, err
	}
	return ParseDuBytes(out)
}

// ParseDuBytes 解析 `du -sb` 输出的第一列
func ParseDuBytes(out string) (int64, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return -1, fmt.Errorf("empty du output")
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return -1, fmt.Errorf("parse du output %q: %w", out, err)
	}
	return n, nil
}
