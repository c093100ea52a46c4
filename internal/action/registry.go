// Package action 维护动作静态目录与互斥关系。
// 目录在进程启动时固化；互斥关系用枚举键查表表达，不做字符串自由匹配。
package action

import (
	"sort"

	"github.com/lanops/fleet-console/internal/domain"
)

var catalog = map[domain.ActionID]domain.Action{
	domain.ActionDisableShortcuts:    {ID: domain.ActionDisableShortcuts, Label: "禁用桌面快捷方式", ConflictsWith: domain.ActionRestoreShortcuts},
	domain.ActionRestoreShortcuts:    {ID: domain.ActionRestoreShortcuts, Label: "恢复桌面快捷方式", ConflictsWith: domain.ActionDisableShortcuts},
	domain.ActionShowSystemIcons:     {ID: domain.ActionShowSystemIcons, Label: "显示系统图标", ConflictsWith: domain.ActionHideSystemIcons},
	domain.ActionHideSystemIcons:     {ID: domain.ActionHideSystemIcons, Label: "隐藏系统图标", ConflictsWith: domain.ActionShowSystemIcons},
	domain.ActionPanelAutohideOn:     {ID: domain.ActionPanelAutohideOn, Label: "任务栏自动隐藏", ConflictsWith: domain.ActionPanelAutohideOff},
	domain.ActionPanelAutohideOff:    {ID: domain.ActionPanelAutohideOff, Label: "任务栏常驻显示", ConflictsWith: domain.ActionPanelAutohideOn},
	domain.ActionPanelLock:           {ID: domain.ActionPanelLock, Label: "锁定任务栏", ConflictsWith: domain.ActionPanelUnlock},
	domain.ActionPanelUnlock:         {ID: domain.ActionPanelUnlock, Label: "解锁任务栏", ConflictsWith: domain.ActionPanelLock},
	domain.ActionDefaultFirefox:      {ID: domain.ActionDefaultFirefox, Label: "设 Firefox 为默认浏览器", ConflictsWith: domain.ActionDefaultChrome},
	domain.ActionDefaultChrome:       {ID: domain.ActionDefaultChrome, Label: "设 Chrome 为默认浏览器", ConflictsWith: domain.ActionDefaultFirefox},
	domain.ActionDisablePeripherals:  {ID: domain.ActionDisablePeripherals, Label: "禁用键鼠外设", ConflictsWith: domain.ActionEnablePeripherals},
	domain.ActionEnablePeripherals:   {ID: domain.ActionEnablePeripherals, Label: "启用键鼠外设", ConflictsWith: domain.ActionDisablePeripherals},
	domain.ActionDisableRightClick:   {ID: domain.ActionDisableRightClick, Label: "禁用鼠标右键", ConflictsWith: domain.ActionEnableRightClick},
	domain.ActionEnableRightClick:    {ID: domain.ActionEnableRightClick, Label: "启用鼠标右键", ConflictsWith: domain.ActionDisableRightClick},
	domain.ActionDisableSleep:        {ID: domain.ActionDisableSleep, Label: "禁用休眠", ConflictsWith: domain.ActionEnableSleep},
	domain.ActionEnableSleep:         {ID: domain.ActionEnableSleep, Label: "启用休眠", ConflictsWith: domain.ActionDisableSleep},
	domain.ActionDeepLockOn:          {ID: domain.ActionDeepLockOn, Label: "开启 Deep Lock", ConflictsWith: domain.ActionDeepLockOff},
	domain.ActionDeepLockOff:         {ID: domain.ActionDeepLockOff, Label: "关闭 Deep Lock", ConflictsWith: domain.ActionDeepLockOn},
	domain.ActionClearImages:         {ID: domain.ActionClearImages, Label: "清空图片目录", Dangerous: true},
	domain.ActionSendMessage:         {ID: domain.ActionSendMessage, Label: "发送屏幕消息"},
	domain.ActionSetWallpaper:        {ID: domain.ActionSetWallpaper, Label: "推送壁纸"},
	domain.ActionReboot:              {ID: domain.ActionReboot, Label: "重启", Dangerous: true},
	domain.ActionShutdown:            {ID: domain.ActionShutdown, Label: "关机", Dangerous: true},
	domain.ActionKillProcess:         {ID: domain.ActionKillProcess, Label: "结束进程"},
	domain.ActionSystemInfo:          {ID: domain.ActionSystemInfo, Label: "采集系统信息"},
	domain.ActionUpdateSystem:        {ID: domain.ActionUpdateSystem, Label: "系统更新", Streaming: true, Dangerous: true},
	domain.ActionInstallNemo:         {ID: domain.ActionInstallNemo, Label: "安装 Nemo", Streaming: true, ConflictsWith: domain.ActionRemoveNemo},
	domain.ActionRemoveNemo:          {ID: domain.ActionRemoveNemo, Label: "卸载 Nemo", Streaming: true, Dangerous: true, ConflictsWith: domain.ActionInstallNemo},
	domain.ActionInstallScratchJR:    {ID: domain.ActionInstallScratchJR, Label: "安装 ScratchJR", Streaming: true, ConflictsWith: domain.ActionRemoveScratchJR},
	domain.ActionRemoveScratchJR:     {ID: domain.ActionRemoveScratchJR, Label: "卸载 ScratchJR", Streaming: true, ConflictsWith: domain.ActionInstallScratchJR},
	domain.ActionDiscoverIPs:         {ID: domain.ActionDiscoverIPs, Label: "扫描在线主机", Local: true},
}

// Lookup 按 ID 取目录项。
func Lookup(id domain.ActionID) (domain.Action, bool) {
	a, ok := catalog[id]
	return a, ok
}

// All 返回按 ID 排序的完整目录（供前端渲染）。
func All() []domain.Action {
	out := make([]domain.Action, 0, len(catalog))
	for _, a := range catalog {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Toggle 把 id 加入/移出已选集合，并在加入时剔除其互斥动作。
// 返回新集合，不修改入参；除返回值外无任何副作用。
func Toggle(id domain.ActionID, selected map[domain.ActionID]bool) map[domain.ActionID]bool {
	out := make(map[domain.ActionID]bool, len(selected)+1)
	for k, v := range selected {
		if v {
			out[k] = true
		}
	}
	if out[id] { // 已选 → 取消
		delete(out, id)
		return out
	}
	if a, ok := catalog[id]; ok && a.ConflictsWith != "" {
		delete(out, a.ConflictsWith)
	}
	out[id] = true
	return out
}
