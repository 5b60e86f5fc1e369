package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tokenizermanager/internal/model"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	pageMain     = "main"
	pageConfirm  = "confirm"
	pageProgress = "progress"

	progressBarWidth = 40
)

var statusColors = map[model.TokenizerStatus]string{
	model.TokenizerStatusAvailable: "green",
	model.TokenizerStatusUpdating:  "blue",
	model.TokenizerStatusError:     "red",
}

// View 终端界面，渲染 Page 的状态并把按键转成页面操作
type View struct {
	ctx  context.Context
	app  *tview.Application
	page *Page

	pages    *tview.Pages
	header   *tview.TextView
	table    *tview.Table
	status   *tview.TextView
	progress *tview.TextView

	mu         sync.Mutex
	statusText string
	sortKey    SortKey
	rows       []model.TokenizerInfo
}

func NewView(ctx context.Context, api TokenizerAPI) *View {
	v := &View{
		ctx: ctx,
		app: tview.NewApplication(),
	}
	v.page = NewPage(api,
		WithNotifier(v),
		WithConfirmer(v),
		WithOnChange(v.scheduleRender),
	)

	v.header = tview.NewTextView().SetDynamicColors(true)
	v.status = tview.NewTextView().SetDynamicColors(true)

	v.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	v.table.SetBorder(true).SetTitle(" 分词器管理 ")

	v.progress = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	v.progress.SetBorder(true).SetTitle(" 分词器更新进度 ")

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 2, 0, false).
		AddItem(v.table, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	v.pages = tview.NewPages().
		AddPage(pageMain, main, true, true).
		AddPage(pageProgress, center(v.progress, 80, 20), true, false)

	v.setupInputCapture()
	return v
}

// Page 返回视图持有的页面状态
func (v *View) Page() *Page {
	return v.page
}

func (v *View) Run() error {
	go v.page.Fetch(v.ctx)
	v.render()
	return v.app.SetRoot(v.pages, true).SetFocus(v.table).Run()
}

func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (v *View) scheduleRender() {
	go v.app.QueueUpdateDraw(v.render)
}

func (v *View) setStatus(color, msg string) {
	v.mu.Lock()
	v.statusText = fmt.Sprintf("[%s]%s[-]", color, tview.Escape(msg))
	v.mu.Unlock()
	v.scheduleRender()
}

func (v *View) Success(msg string) { v.setStatus("green", msg) }
func (v *View) Error(msg string)   { v.setStatus("red", msg) }
func (v *View) Warning(msg string) { v.setStatus("yellow", msg) }

// Confirm 在 UI 协程中弹出确认框
func (v *View) Confirm(title, content string, onOK func()) {
	modal := tview.NewModal().
		SetText(title + "\n\n" + content).
		AddButtons([]string{"确定", "取消"}).
		SetDoneFunc(func(_ int, label string) {
			v.pages.RemovePage(pageConfirm)
			v.app.SetFocus(v.table)
			if label == "确定" {
				onOK()
			}
		})
	v.pages.AddPage(pageConfirm, modal, true, true)
	v.app.SetFocus(modal)
}

func (v *View) currentRow() (model.TokenizerInfo, bool) {
	row, _ := v.table.GetSelection()
	v.mu.Lock()
	defer v.mu.Unlock()
	if row < 1 || row > len(v.rows) {
		return model.TokenizerInfo{}, false
	}
	return v.rows[row-1], true
}

func (v *View) setupInputCapture() {
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if name, _ := v.pages.GetFrontPage(); name == pageConfirm {
			return event
		}

		if event.Key() == tcell.KeyEscape {
			if v.page.Snapshot().ModalOpen {
				v.page.CloseModal()
				return nil
			}
			return event
		}
		if event.Key() != tcell.KeyRune {
			return event
		}

		switch event.Rune() {
		case 'q':
			v.app.Stop()
		case 'r':
			go v.page.Fetch(v.ctx)
		case ' ':
			if row, ok := v.currentRow(); ok {
				v.page.Toggle(row)
			}
		case 'a':
			v.page.SelectAll()
		case 'v':
			if row, ok := v.currentRow(); ok {
				go v.page.Verify(v.ctx, row.ChannelID)
			}
		case 'u':
			if row, ok := v.currentRow(); ok {
				go v.page.Update(v.ctx, row.ChannelID, []string{row.ModelName}, false)
			}
		case 'b':
			v.page.BatchUpdate(v.ctx)
		case 'F':
			v.page.ForceUpdateAll(v.ctx)
		case 'm':
			if v.page.Snapshot().ModalOpen {
				v.page.CloseModal()
			} else {
				v.page.OpenModal()
			}
		case 's':
			v.mu.Lock()
			v.sortKey = v.sortKey.Next()
			v.mu.Unlock()
			v.render()
		default:
			return event
		}
		return nil
	})
}

// render 必须在 UI 协程中调用
func (v *View) render() {
	state := v.page.Snapshot()

	v.mu.Lock()
	v.rows = SortTokenizers(state.Tokenizers, v.sortKey)
	rows := v.rows
	sortKey := v.sortKey
	statusText := v.statusText
	v.mu.Unlock()

	selected := make(map[string]bool, len(state.Selected))
	for _, s := range state.Selected {
		selected[RowKey(s)] = true
	}

	loading := ""
	if state.Loading {
		loading = " [yellow]加载中...[-]"
	}
	v.header.SetText(fmt.Sprintf(
		"共 %d 个分词器，已选 %d 个  排序: %s%s\n[gray]r 刷新  空格 选择  a 全选  v 验证  u 更新  b 批量更新(%d)  F 强制更新全部  m 进度  s 排序  q 退出[-]",
		len(rows), len(state.Selected), sortKey, loading, len(state.Selected),
	))

	v.renderTable(rows, selected)
	v.status.SetText(statusText)
	v.progress.SetText(renderProgress(state))

	if state.ModalOpen {
		v.pages.ShowPage(pageProgress)
	} else {
		v.pages.HidePage(pageProgress)
	}
}

func (v *View) renderTable(rows []model.TokenizerInfo, selected map[string]bool) {
	v.table.Clear()
	for col, title := range []string{"", "模型名称", "状态", "渠道", "最后更新", "缓存大小"} {
		v.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}

	for i, t := range rows {
		r := i + 1
		marker := "[ ]"
		if selected[RowKey(t)] {
			marker = "[x]"
		}
		status := t.Status.Normalize()
		v.table.SetCell(r, 0, tview.NewTableCell(tview.Escape(marker)))
		v.table.SetCell(r, 1, tview.NewTableCell(tview.Escape(t.ModelName)).SetExpansion(1))
		v.table.SetCell(r, 2, tview.NewTableCell(fmt.Sprintf("[%s]%s[-]", statusColors[status], StatusLabel(status))))
		v.table.SetCell(r, 3, tview.NewTableCell(fmt.Sprintf("%s (ID: %d)", tview.Escape(t.ChannelName), t.ChannelID)))
		v.table.SetCell(r, 4, tview.NewTableCell(FormatTime(t.LastUpdated)))
		v.table.SetCell(r, 5, tview.NewTableCell(tview.Escape(t.Size)).SetTextColor(tcell.ColorGray))
	}

	if row, _ := v.table.GetSelection(); row > len(rows) {
		v.table.Select(len(rows), 0)
	} else if row == 0 && len(rows) > 0 {
		v.table.Select(1, 0)
	}
}

func renderProgress(state State) string {
	var b strings.Builder

	filled := progressBarWidth * state.Progress / ProgressDone
	fmt.Fprintf(&b, "[green]%s[-]%s %d%%\n\n",
		strings.Repeat("█", filled), strings.Repeat("░", progressBarWidth-filled), state.Progress)

	if len(state.Results) > 0 {
		b.WriteString("更新结果:\n")
		for _, r := range state.Results {
			color := "green"
			if !r.Success {
				color = "red"
			}
			fmt.Fprintf(&b, "[%s]%s[-] %s", color, ResultLabel(r), tview.Escape(r.ModelName))
			if r.Message != "" {
				fmt.Fprintf(&b, "  [gray]%s[-]", tview.Escape(r.Message))
			}
			b.WriteString("\n")
		}
	}

	if state.UpdateLoading {
		b.WriteString("\n[yellow]正在更新分词器，请稍候...[-]\n")
	}
	b.WriteString("\n[gray]m / Esc 关闭[-]")
	return b.String()
}
