// Package console 实现分词器管理页面：列表、验证、更新、批量与强制更新以及进度弹窗状态
package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tokenizermanager/internal/model"

	"github.com/sirupsen/logrus"
)

// RefreshDelay 更新成功后重新拉取列表前的等待时间
const RefreshDelay = time.Second

const (
	ProgressIdle = 0
	ProgressDone = 100
)

type TokenizerAPI interface {
	ListTokenizers(ctx context.Context) ([]model.TokenizerInfo, error)
	VerifyTokenizers(ctx context.Context, channelID int) ([]model.UpdateResult, error)
	UpdateTokenizers(ctx context.Context, req *model.TokenizerUpdateRequest) (*model.TokenizerUpdateResponse, error)
}

type Notifier interface {
	Success(msg string)
	Error(msg string)
	Warning(msg string)
}

// Confirmer 展示确认对话框，用户确认后调用 onOK
type Confirmer interface {
	Confirm(title, content string, onOK func())
}

// Scheduler 在 d 之后执行 f
type Scheduler func(d time.Duration, f func())

func afterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// State 页面状态快照
type State struct {
	Tokenizers    []model.TokenizerInfo
	Selected      []model.TokenizerInfo
	Loading       bool
	UpdateLoading bool
	Progress      int
	Results       []model.UpdateResult
	ModalOpen     bool
}

type Page struct {
	api       TokenizerAPI
	notifier  Notifier
	confirmer Confirmer
	after     Scheduler
	onChange  func()

	wg sync.WaitGroup

	mu            sync.Mutex
	tokenizers    []model.TokenizerInfo
	selected      []model.TokenizerInfo
	loading       bool
	updateLoading bool
	progress      int
	results       []model.UpdateResult
	modalOpen     bool
}

type Option func(*Page)

func WithNotifier(n Notifier) Option {
	return func(p *Page) {
		p.notifier = n
	}
}

func WithConfirmer(c Confirmer) Option {
	return func(p *Page) {
		p.confirmer = c
	}
}

func WithScheduler(s Scheduler) Option {
	return func(p *Page) {
		p.after = s
	}
}

// WithOnChange 注册状态变更回调，回调在锁外执行
func WithOnChange(f func()) Option {
	return func(p *Page) {
		p.onChange = f
	}
}

func NewPage(api TokenizerAPI, opts ...Option) *Page {
	p := &Page{
		api:        api,
		notifier:   logNotifier{},
		confirmer:  AutoConfirm{},
		after:      afterFunc,
		tokenizers: make([]model.TokenizerInfo, 0),
		results:    make([]model.UpdateResult, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Page) update(f func()) {
	p.mu.Lock()
	f()
	p.mu.Unlock()
	if p.onChange != nil {
		p.onChange()
	}
}

// Snapshot 返回当前状态的拷贝
func (p *Page) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Tokenizers:    append([]model.TokenizerInfo(nil), p.tokenizers...),
		Selected:      append([]model.TokenizerInfo(nil), p.selected...),
		Loading:       p.loading,
		UpdateLoading: p.updateLoading,
		Progress:      p.progress,
		Results:       append([]model.UpdateResult(nil), p.results...),
		ModalOpen:     p.modalOpen,
	}
}

// Wait 等待所有已派发的更新和延迟刷新完成
func (p *Page) Wait() {
	p.wg.Wait()
}

func (p *Page) setLoading(v bool) {
	p.update(func() { p.loading = v })
}

// Fetch 拉取分词器列表，失败时保留已有列表
func (p *Page) Fetch(ctx context.Context) {
	p.setLoading(true)
	defer p.setLoading(false)

	list, err := p.api.ListTokenizers(ctx)
	if err != nil {
		logrus.WithError(err).Warn("获取分词器列表失败")
		p.notifier.Error("获取分词器列表失败: " + err.Error())
		return
	}
	if list == nil {
		list = make([]model.TokenizerInfo, 0)
	}
	p.update(func() { p.tokenizers = list })
}

// Verify 验证渠道下的分词器，成功后刷新列表
func (p *Page) Verify(ctx context.Context, channelID int) {
	p.setLoading(true)
	defer p.setLoading(false)

	results, err := p.api.VerifyTokenizers(ctx, channelID)
	if err != nil {
		logrus.WithError(err).WithField("channel_id", channelID).Warn("验证分词器失败")
		p.notifier.Error("验证失败: " + err.Error())
		return
	}
	logrus.WithFields(logrus.Fields{
		"channel_id": channelID,
		"results":    len(results),
	}).Info("验证完成")
	p.notifier.Success("验证完成")
	p.Fetch(ctx)
}

// Update 更新指定渠道的模型分词器。进度只取 0 或 100
func (p *Page) Update(ctx context.Context, channelID int, models []string, force bool) {
	p.update(func() {
		p.updateLoading = true
		p.progress = ProgressIdle
		p.results = make([]model.UpdateResult, 0)
	})
	defer p.update(func() { p.updateLoading = false })

	log := logrus.WithFields(logrus.Fields{
		"channel_id": channelID,
		"models":     len(models),
		"force":      force,
	})

	resp, err := p.api.UpdateTokenizers(ctx, &model.TokenizerUpdateRequest{
		ChannelID: channelID,
		Models:    models,
		Force:     force,
	})
	if err != nil {
		log.WithError(err).Warn("更新分词器失败")
		p.notifier.Error("更新失败: " + err.Error())
		return
	}

	results := resp.Results
	if results == nil {
		results = make([]model.UpdateResult, 0)
	}
	p.update(func() {
		p.results = results
		p.progress = ProgressDone
	})
	log.Info(resp.Message)
	p.notifier.Success(resp.Message)

	refreshCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	p.after(RefreshDelay, func() {
		defer p.wg.Done()
		p.Fetch(refreshCtx)
	})
}

func (p *Page) dispatch(ctx context.Context, channelID int, models []string, force bool) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Update(ctx, channelID, models, force)
	}()
}

type channelBatch struct {
	channelID int
	models    []string
}

// groupByChannel 按渠道首次出现的顺序分组
func groupByChannel(entries []model.TokenizerInfo) []channelBatch {
	index := make(map[int]int)
	var batches []channelBatch
	for _, e := range entries {
		i, ok := index[e.ChannelID]
		if !ok {
			i = len(batches)
			index[e.ChannelID] = i
			batches = append(batches, channelBatch{channelID: e.ChannelID})
		}
		batches[i].models = append(batches[i].models, e.ModelName)
	}
	return batches
}

// BatchUpdate 确认后按渠道分组并发更新选中的分词器
func (p *Page) BatchUpdate(ctx context.Context) {
	selected := p.Snapshot().Selected
	if len(selected) == 0 {
		p.notifier.Warning("请选择要更新的分词器")
		return
	}

	p.confirmer.Confirm("确认更新", fmt.Sprintf("确定要更新选中的 %d 个分词器吗？", len(selected)), func() {
		for _, batch := range groupByChannel(selected) {
			p.dispatch(ctx, batch.channelID, batch.models, false)
		}
		p.OpenModal()
	})
}

// ForceUpdateAll 确认后以第一条记录的渠道强制更新列表中的全部模型
func (p *Page) ForceUpdateAll(ctx context.Context) {
	p.confirmer.Confirm("强制更新所有分词器", "这将重新下载所有分词器文件，可能需要较长时间。确定继续吗？", func() {
		tokenizers := p.Snapshot().Tokenizers
		if len(tokenizers) == 0 {
			return
		}
		models := make([]string, 0, len(tokenizers))
		for _, t := range tokenizers {
			models = append(models, t.ModelName)
		}
		p.dispatch(ctx, tokenizers[0].ChannelID, models, true)
		p.OpenModal()
	})
}

func (p *Page) OpenModal() {
	p.update(func() { p.modalOpen = true })
}

func (p *Page) CloseModal() {
	p.update(func() { p.modalOpen = false })
}

// RowKey 返回表格行的唯一键
func RowKey(t model.TokenizerInfo) string {
	return fmt.Sprintf("%d-%s", t.ChannelID, t.ModelName)
}

func (p *Page) IsSelected(t model.TokenizerInfo) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexSelected(RowKey(t)) >= 0
}

func (p *Page) indexSelected(key string) int {
	for i, s := range p.selected {
		if RowKey(s) == key {
			return i
		}
	}
	return -1
}

// Toggle 切换一行的选中状态
func (p *Page) Toggle(t model.TokenizerInfo) {
	p.update(func() {
		if i := p.indexSelected(RowKey(t)); i >= 0 {
			p.selected = append(p.selected[:i:i], p.selected[i+1:]...)
			return
		}
		p.selected = append(p.selected, t)
	})
}

// SelectAll 全部已选中时清空选择，否则选中当前列表的所有行
func (p *Page) SelectAll() {
	p.update(func() {
		if len(p.tokenizers) > 0 && len(p.selected) == len(p.tokenizers) {
			p.selected = nil
			return
		}
		p.selected = append([]model.TokenizerInfo(nil), p.tokenizers...)
	})
}

func (p *Page) SetSelected(entries []model.TokenizerInfo) {
	p.update(func() {
		p.selected = append([]model.TokenizerInfo(nil), entries...)
	})
}

// AutoConfirm 不询问直接确认
type AutoConfirm struct{}

func (AutoConfirm) Confirm(_, _ string, onOK func()) {
	onOK()
}

type logNotifier struct{}

func (logNotifier) Success(msg string) { logrus.Info(msg) }
func (logNotifier) Error(msg string)   { logrus.Error(msg) }
func (logNotifier) Warning(msg string) { logrus.Warn(msg) }
