package domain

// ActionID 动作标识。与桥接服务的命令目录共用同一组枚举值，
// 标识沿用已部署机房脚本的约定名（葡语），不可随意更名。
type ActionID string

const (
	// 桌面快捷方式备份/恢复
	ActionDisableShortcuts ActionID = "desativar"
	ActionRestoreShortcuts ActionID = "ativar"
	// 系统图标显示/隐藏
	ActionShowSystemIcons ActionID = "mostrar_sistema"
	ActionHideSystemIcons ActionID = "ocultar_sistema"
	// 任务栏自动隐藏
	ActionPanelAutohideOn  ActionID = "desativar_barra_tarefas"
	ActionPanelAutohideOff ActionID = "ativar_barra_tarefas"
	// 任务栏锁定（移除/恢复 applets）
	ActionPanelLock   ActionID = "bloquear_barra_tarefas"
	ActionPanelUnlock ActionID = "desbloquear_barra_tarefas"
	// 默认浏览器
	ActionDefaultFirefox ActionID = "definir_firefox_padrao"
	ActionDefaultChrome  ActionID = "definir_chrome_padrao"
	// 外设（键鼠）启停
	ActionDisablePeripherals ActionID = "desativar_perifericos"
	ActionEnablePeripherals  ActionID = "ativar_perifericos"
	// 鼠标右键启停
	ActionDisableRightClick ActionID = "desativar_botao_direito"
	ActionEnableRightClick  ActionID = "ativar_botao_direito"
	// 休眠按键
	ActionDisableSleep ActionID = "disable_sleep_button"
	ActionEnableSleep  ActionID = "enable_sleep_button"
	// Deep Lock (freeze)
	ActionDeepLockOn  ActionID = "ativar_deep_lock"
	ActionDeepLockOff ActionID = "desativar_deep_lock"
	// 其它单发动作
	ActionClearImages  ActionID = "limpar_imagens"
	ActionSendMessage  ActionID = "enviar_mensagem"
	ActionSetWallpaper ActionID = "definir_papel_de_parede"
	ActionReboot       ActionID = "reiniciar"
	ActionShutdown     ActionID = "desligar"
	ActionKillProcess  ActionID = "kill_process"
	ActionSystemInfo   ActionID = "get_system_info"
	// 流式动作（长耗时，逐行回传）
	ActionUpdateSystem      ActionID = "atualizar_sistema"
	ActionInstallNemo       ActionID = "instalar_nemo"
	ActionRemoveNemo        ActionID = "remover_nemo"
	ActionInstallScratchJR  ActionID = "instalar_scratchjr"
	ActionRemoveScratchJR   ActionID = "desinstalar_scratchjr"
	// 本地动作（无需目标主机）
	ActionDiscoverIPs ActionID = "descobrir_ips"
)

// Action 静态目录中的一项。进程启动时定义，之后不可变。
type Action struct {
	ID            ActionID `json:"id"`
	Label         string   `json:"label"`
	Local         bool     `json:"local"`     // 无目标主机
	Streaming     bool     `json:"streaming"` // 需要实时输出转发
	Dangerous     bool     `json:"dangerous"` // 破坏性，需操作员确认
	ConflictsWith ActionID `json:"conflicts_with,omitempty"`
}
