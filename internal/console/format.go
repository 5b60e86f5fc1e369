package console

import (
	"cmp"
	"slices"
	"time"

	"tokenizermanager/internal/model"
)

var statusLabels = map[model.TokenizerStatus]string{
	model.TokenizerStatusAvailable: "可用",
	model.TokenizerStatusUpdating:  "更新中",
	model.TokenizerStatusError:     "错误",
}

// StatusLabel 返回状态的中文标签，未知状态按错误处理
func StatusLabel(status model.TokenizerStatus) string {
	return statusLabels[status.Normalize()]
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func ResultLabel(r model.UpdateResult) string {
	if r.Success {
		return "成功"
	}
	return "失败"
}

type SortKey int

const (
	SortByModel SortKey = iota
	SortByStatus
	SortByChannel
	SortByLastUpdated
)

var sortKeyNames = []string{"模型名称", "状态", "渠道", "最后更新"}

func (k SortKey) String() string {
	if int(k) < 0 || int(k) >= len(sortKeyNames) {
		return "?"
	}
	return sortKeyNames[k]
}

// Next 循环切换排序键
func (k SortKey) Next() SortKey {
	return (k + 1) % SortKey(len(sortKeyNames))
}

// SortTokenizers 返回按 key 稳定排序后的拷贝，最后更新时间按新到旧
func SortTokenizers(list []model.TokenizerInfo, key SortKey) []model.TokenizerInfo {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b model.TokenizerInfo) int {
		switch key {
		case SortByStatus:
			return cmp.Compare(StatusLabel(a.Status), StatusLabel(b.Status))
		case SortByChannel:
			if c := cmp.Compare(a.ChannelName, b.ChannelName); c != 0 {
				return c
			}
			return cmp.Compare(a.ChannelID, b.ChannelID)
		case SortByLastUpdated:
			return b.LastUpdated.Compare(a.LastUpdated)
		default:
			return cmp.Compare(a.ModelName, b.ModelName)
		}
	})
	return out
}
