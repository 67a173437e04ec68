package refresh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/types"
)

// Notifier receives the transient notices produced by the controller.
type Notifier interface {
	Notify(n types.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n types.Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n types.Notice) { f(n) }

type panelTexts struct {
	loading  string
	resolved string
	timeout  string
	cached   string
	updated  string // %d records
	forced   string // %d found
	empty    string
	failed   string
}

var texts = map[types.Panel]panelTexts{
	types.PanelMap: {
		loading:  "正在获取最新位置信息...",
		resolved: "已更新位置数据",
		timeout:  "获取位置信息超时，显示默认数据",
		cached:   "使用现有地图数据",
		updated:  "已更新%d个位置数据",
		forced:   "强制刷新成功! 共找到%d个位置数据",
		empty:    "未找到任何位置数据！",
		failed:   "刷新位置数据失败",
	},
	types.PanelMonitor: {
		loading:  "正在获取最新监控信息...",
		resolved: "已更新监控数据",
		timeout:  "获取监控信息超时，显示默认数据",
		cached:   "使用现有监控数据",
		updated:  "已更新%d个监控数据",
		forced:   "强制刷新成功! 共找到%d个监控数据",
		empty:    "未找到任何监控数据！",
		failed:   "刷新监控数据失败",
	},
	types.PanelNews: {
		loading:  "正在获取最新新闻...",
		resolved: "已更新新闻",
		timeout:  "获取新闻超时，显示默认数据",
		cached:   "使用现有新闻数据",
		updated:  "已更新%d条新闻",
		forced:   "强制刷新成功! 共找到%d条新闻",
		empty:    "未找到任何新闻！",
		failed:   "刷新新闻失败",
	},
}

func textsFor(panel types.Panel) panelTexts {
	if t, ok := texts[panel]; ok {
		return t
	}
	return texts[types.PanelMap]
}

func (c *Controller) notify(panel types.Panel, kind types.NoticeKind, text string) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("notifier panicked", zap.Any("panic", r))
		}
	}()
	c.notifier.Notify(types.NewNotice(panel, kind, text))
}

func (c *Controller) notifyf(panel types.Panel, kind types.NoticeKind, format string, args ...any) {
	c.notify(panel, kind, fmt.Sprintf(format, args...))
}
