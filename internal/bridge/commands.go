package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lanops/fleet-console/internal/domain"
)

// ActionRequest 管理/流式端点的请求体。动作专属字段按需出现。
type ActionRequest struct {
	IP       string `json:"ip"`
	Password string `json:"password"`
	Action   string `json:"action"`
	// 动作专属载荷
	Message           string   `json:"message,omitempty"`
	ProcessName       string   `json:"process_name,omitempty"`
	WallpaperData     string   `json:"wallpaper_data,omitempty"`     // data URL
	WallpaperFilename string   `json:"wallpaper_filename,omitempty"`
	BackupFiles       []string `json:"backup_files,omitempty"`
}

// CommandSpec 目录中的一条命令规格。
type CommandSpec struct {
	Build         func(req ActionRequest) (string, error)
	Sudo          bool // 包一层 sudo -S，密码从 stdin 喂入
	FireAndForget bool // 触发即返回（reboot/shutdown 会切断连接）
}

// gsettingsEnv 为无控制终端的 SSH 会话补齐 DBus/显示环境，
// gsettings 才能作用到已登录的桌面会话。
const gsettingsEnv = `
PID=$(pgrep -u "$USER" -x cinnamon-session || pgrep -u "$USER" -x gnome-session-binary | head -n1)
if [ -n "$PID" ]; then
    export $(tr '\0' '\n' < /proc/$PID/environ | grep -E '^(DBUS_SESSION_BUS_ADDRESS|DISPLAY|XAUTHORITY)=' | xargs)
fi
`

// x11Env 同上，仅导出 X11 相关变量（xinput 类动作用）。
const x11Env = `
export DISPLAY=${DISPLAY:-:0}
export XAUTHORITY=${XAUTHORITY:-$HOME/.Xauthority}
`

// shQuote POSIX 单引号转义（等价 shlex.quote）。
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func static(cmd string) CommandSpec {
	return CommandSpec{Build: func(ActionRequest) (string, error) { return cmd, nil }}
}

func sudoStatic(cmd string) CommandSpec {
	return CommandSpec{Sudo: true, Build: func(ActionRequest) (string, error) { return cmd, nil }}
}

func gsettingsVisibility(visible bool) string {
	v := "false"
	msg := "系统图标已隐藏。"
	if visible {
		v = "true"
		msg = "系统图标已显示。"
	}
	return gsettingsEnv + fmt.Sprintf(`
gsettings set org.nemo.desktop computer-icon-visible %[1]s
gsettings set org.nemo.desktop home-icon-visible %[1]s
gsettings set org.nemo.desktop trash-icon-visible %[1]s
gsettings set org.nemo.desktop network-icon-visible %[1]s
echo %[2]s
`, v, shQuote(msg))
}

func panelAutohide(enable bool) string {
	v := "false"
	msg := "任务栏已恢复常驻显示。"
	if enable {
		v = "true"
		msg = "任务栏已设置为自动隐藏。"
	}
	return gsettingsEnv + fmt.Sprintf(`
PANEL_IDS=$(gsettings get org.cinnamon panels-enabled | grep -o -P "'\d+:\d+:\w+'" | sed "s/'//g" | cut -d: -f1)
if [ -z "$PANEL_IDS" ]; then echo "未找到 Cinnamon 面板。"; exit 1; fi
LIST=""
for id in $PANEL_IDS; do LIST+="'$id:%s',"; done
gsettings set org.cinnamon panels-autohide "[${LIST%%,}]"
echo %s
`, v, shQuote(msg))
}

func xdgDefaultBrowser(desktopFile, name string) string {
	return gsettingsEnv + fmt.Sprintf(`
if command -v xdg-settings >/dev/null 2>&1; then
    xdg-settings set default-web-browser %s
    echo %s
else
    echo "错误：远程主机缺少 xdg-settings 命令。" >&2
    exit 1
fi
`, desktopFile, shQuote(name+" 已设为默认浏览器。"))
}

// xinputToggle 批量启停指针/键盘外设；onlyButton3 时仅屏蔽右键映射。
func xinputToggle(enable bool, onlyRightClick bool) string {
	op := "disable"
	if enable {
		op = "enable"
	}
	if onlyRightClick {
		mapArgs := "1 0 3"
		msg := "鼠标右键已禁用。"
		if enable {
			mapArgs = "1 2 3"
			msg = "鼠标右键已恢复。"
		}
		return x11Env + fmt.Sprintf(`
for id in $(xinput list --id-only | head -20); do
    xinput set-button-map "$id" %s 2>/dev/null || true
done
echo %s
`, mapArgs, shQuote(msg))
	}
	msg := "键鼠外设已禁用。"
	if enable {
		msg = "键鼠外设已启用。"
	}
	return x11Env + fmt.Sprintf(`
if ! command -v xinput >/dev/null 2>&1; then
    echo "错误：远程主机缺少 xinput 命令。" >&2
    exit 1
fi
xinput list --id-only | while read -r id; do
    xinput %s "$id" 2>/dev/null || true
done
echo %s
`, op, shQuote(msg))
}

// 流式动作使用的长耗时脚本（apt 系）。
const updateSystemScript = `
set -e
export DEBIAN_FRONTEND=noninteractive
if fuser /var/lib/dpkg/lock-frontend >/dev/null 2>&1; then
    echo "错误：包管理器正被其它进程占用。" >&2
    exit 1
fi
echo "步骤 1/3：更新软件包列表..."
apt-get update
echo "步骤 2/3：修复依赖..."
apt-get --fix-broken install -y
echo "步骤 3/3：升级系统软件包..."
apt-get upgrade -y -o Dpkg::Options::=--force-confdef -o Dpkg::Options::=--force-confold
echo "系统更新完成。"
`

const installNemoScript = `
set -e
export DEBIAN_FRONTEND=noninteractive
echo "W: 更新软件包列表..." >&2
apt-get update
echo "W: 安装 Nemo 与 Cinnamon..." >&2
apt-get install -y --reinstall nemo cinnamon
echo "Nemo 与 Cinnamon 安装完成。"
`

const removeNemoScript = `
set -e
export DEBIAN_FRONTEND=noninteractive
echo "W: 移除 Nemo 及其配置..." >&2
apt-get -y -o Dpkg::Options::=--force-confdef -o Dpkg::Options::=--force-confold purge 'nemo*' >&2
echo "Nemo 已移除。"
`

const removeScratchJRScript = `
set -e
export DEBIAN_FRONTEND=noninteractive
if dpkg-query -W -f='${Status}' scratchjr 2>/dev/null | grep -q "install ok installed"; then
    echo "W: 找到 scratchjr，开始移除..." >&2
    apt-get remove -y scratchjr >&2 || true
    echo "ScratchJR 移除完成。"
else
    echo "ScratchJR 本来就未安装。"
fi
`

const installScratchJRScript = `
set -e
DEB_PATH="$HOME/Documentos/scratchjr_1.3.6_amd64_linux.deb"
if [ -f "$DEB_PATH" ]; then
    echo "从 $DEB_PATH 安装 ScratchJR..."
    echo "$SUDO_PASSWORD" | sudo -S dpkg -i "$DEB_PATH" || echo "$SUDO_PASSWORD" | sudo -S apt-get install -f -y
    echo "ScratchJR 安装完成。"
else
    echo "错误：未在文档目录找到安装包。" >&2
    exit 1
fi
`

// catalog 动作 → 命令规格。键与 domain.ActionID 同一组枚举值。
var catalog = map[string]CommandSpec{
	string(domain.ActionDisableShortcuts): static(`
mkdir -p "$HOME/atalhos_desativados"
for dir in "$HOME/Área de Trabalho" "$HOME/Desktop" "$HOME/Área de trabalho"; do
    if [ -d "$dir" ]; then
        SUB="$HOME/atalhos_desativados/$(basename "$dir")"
        mkdir -p "$SUB"
        find "$dir" -maxdepth 1 -type f -name '*.desktop' -exec mv -t "$SUB/" {} + 2>/dev/null
    fi
done
echo "桌面快捷方式已移入备份。"`),

	string(domain.ActionRestoreShortcuts): {Build: buildRestoreShortcuts},

	string(domain.ActionShowSystemIcons): static(gsettingsVisibility(true)),
	string(domain.ActionHideSystemIcons): static(gsettingsVisibility(false)),

	string(domain.ActionPanelAutohideOn):  static(panelAutohide(true)),
	string(domain.ActionPanelAutohideOff): static(panelAutohide(false)),

	string(domain.ActionPanelLock): static(gsettingsEnv + `
gsettings get org.cinnamon enabled-applets > "$HOME/.applet_config_backup"
gsettings set org.cinnamon enabled-applets "[]"
echo "任务栏已锁定（applets 已移除）。"`),

	string(domain.ActionPanelUnlock): static(gsettingsEnv + `
BACKUP_FILE="$HOME/.applet_config_backup"
if [ -f "$BACKUP_FILE" ]; then
    gsettings set org.cinnamon enabled-applets "$(cat "$BACKUP_FILE")"
    rm "$BACKUP_FILE"
    echo "任务栏已解锁（applets 已恢复）。"
else
    echo "未找到任务栏备份，无法恢复。"
fi`),

	string(domain.ActionDefaultFirefox): static(xdgDefaultBrowser("firefox.desktop", "Firefox")),
	string(domain.ActionDefaultChrome):  static(xdgDefaultBrowser("google-chrome.desktop", "Google Chrome")),

	string(domain.ActionDisablePeripherals): static(xinputToggle(false, false)),
	string(domain.ActionEnablePeripherals):  static(xinputToggle(true, false)),
	string(domain.ActionDisableRightClick):  static(xinputToggle(false, true)),
	string(domain.ActionEnableRightClick):   static(xinputToggle(true, true)),

	string(domain.ActionDisableSleep): sudoStatic(`systemctl mask sleep.target suspend.target hibernate.target hybrid-sleep.target && echo "休眠模式已禁用。"`),
	string(domain.ActionEnableSleep):  sudoStatic(`systemctl unmask sleep.target suspend.target hibernate.target hybrid-sleep.target && echo "休眠模式已恢复。"`),

	string(domain.ActionDeepLockOn):  sudoStatic(`freeze start all`),
	string(domain.ActionDeepLockOff): sudoStatic(`freeze stop all`),

	string(domain.ActionClearImages): static(`
if [ -d "$HOME/Imagens" ]; then
    rm -rf "$HOME/Imagens"/*
    echo "图片目录已清空。"
else
    echo "未找到图片目录。"
fi`),

	string(domain.ActionSendMessage):  {Build: buildSendMessage},
	string(domain.ActionSetWallpaper): {Build: buildSetWallpaper},
	string(domain.ActionKillProcess):  {Build: buildKillProcess},

	string(domain.ActionReboot):   {FireAndForget: true, Build: fireAndForget("reboot")},
	string(domain.ActionShutdown): {FireAndForget: true, Build: fireAndForget("shutdown now")},

	string(domain.ActionSystemInfo): static(`
for cmd in top free df uptime; do
    if ! command -v $cmd >/dev/null 2>&1; then
        echo "错误：远程主机缺少 $cmd 命令。" >&2
        exit 1
    fi
done
echo "---CPU_USAGE---"
LC_ALL=C top -bn1 | grep 'Cpu(s)' | sed -E 's/.*, *([0-9.]+) id.*/\1/' | awk '{printf "%.1f%%", 100 - $1}'
echo ""
echo "----MEMORY----"
LC_ALL=C free -h | grep '^Mem:' | awk '{print $3 "/" $2}'
echo "----DISK----"
LC_ALL=C df -h / | tail -n 1 | awk '{print $3 "/" $2 " (" $5 ")"}'
echo "----UPTIME----"
uptime -p
echo "----END----"`),

	string(domain.ActionUpdateSystem):     sudoScript(updateSystemScript),
	string(domain.ActionInstallNemo):      sudoScript(installNemoScript),
	string(domain.ActionRemoveNemo):       sudoScript(removeNemoScript),
	string(domain.ActionRemoveScratchJR):  sudoScript(removeScratchJRScript),
	string(domain.ActionInstallScratchJR): {Build: func(req ActionRequest) (string, error) {
		return "export SUDO_PASSWORD=" + shQuote(req.Password) + "; " + strings.TrimSpace(installScratchJRScript), nil
	}},
}

// BuildCommand 查目录并构建最终 shell 命令。
func BuildCommand(actionID string, req ActionRequest) (string, CommandSpec, error) {
	spec, ok := catalog[actionID]
	if !ok {
		return "", CommandSpec{}, errors.New("未知动作: " + actionID)
	}
	cmd, err := spec.Build(req)
	if err != nil {
		return "", spec, err
	}
	if spec.Sudo && !strings.Contains(cmd, "sudo -S") {
		cmd = "sudo -S bash -c " + shQuote(cmd)
	}
	return cmd, spec, nil
}

func sudoScript(script string) CommandSpec {
	return CommandSpec{Sudo: true, Build: func(ActionRequest) (string, error) {
		return "sudo -S bash -c " + shQuote(strings.TrimSpace(script)), nil
	}}
}

func fireAndForget(base string) func(ActionRequest) (string, error) {
	return func(req ActionRequest) (string, error) {
		// 连接会随命令生效而断开，后台执行并立即返回
		return fmt.Sprintf("echo %s | sudo -S nohup %s > /dev/null 2>&1 & disown", shQuote(req.Password), base), nil
	}
}

func buildSendMessage(req ActionRequest) (string, error) {
	if req.Message == "" {
		return "", errors.New("消息内容不能为空")
	}
	pango := fmt.Sprintf("<span font_size='xx-large'>%s</span>", htmlEscape(req.Message))
	return x11Env + fmt.Sprintf(`
if ! command -v zenity >/dev/null 2>&1; then
    echo "错误：远程主机缺少 zenity 命令。" >&2
    exit 1
fi
nohup zenity --info --title="管理员消息" --text=%s --width=500 > /dev/null 2>&1 &
echo "屏幕消息已发送。"
`, shQuote(pango)), nil
}

func buildKillProcess(req ActionRequest) (string, error) {
	if req.ProcessName == "" {
		return "", errors.New("进程名不能为空")
	}
	safe := shQuote(req.ProcessName)
	return fmt.Sprintf(`
if pkill -f %s; then
    echo "已向匹配 %s 的进程发送结束信号。"
else
    echo "未找到匹配 %s 的进程。"
fi
`, safe, htmlEscape(req.ProcessName), htmlEscape(req.ProcessName)), nil
}

func buildSetWallpaper(req ActionRequest) (string, error) {
	if req.WallpaperData == "" || req.WallpaperFilename == "" {
		return "", errors.New("缺少壁纸数据或文件名")
	}
	parts := strings.SplitN(req.WallpaperData, ",", 2)
	if len(parts) != 2 {
		return "", errors.New("壁纸 Data URL 格式不正确")
	}
	return gsettingsEnv + fmt.Sprintf(`
mkdir -p "$HOME/Imagens"
REMOTE_PATH="$HOME/Imagens/"%s
echo %s | base64 --decode > "$REMOTE_PATH"
URI="file://$REMOTE_PATH"
if gsettings list-schemas | grep -q 'org.cinnamon.desktop.background'; then
    gsettings set org.cinnamon.desktop.background picture-uri "$URI"
    echo "壁纸已设置（Cinnamon）。"
elif gsettings list-schemas | grep -q 'org.gnome.desktop.background'; then
    gsettings set org.gnome.desktop.background picture-uri "$URI"
    echo "壁纸已设置（GNOME）。"
else
    echo "错误：未找到兼容的壁纸 schema。" >&2
    exit 1
fi
`, shQuote(req.WallpaperFilename), shQuote(parts[1])), nil
}

func buildRestoreShortcuts(req ActionRequest) (string, error) {
	if len(req.BackupFiles) == 0 {
		return "", errors.New("未选择要恢复的快捷方式")
	}
	var b strings.Builder
	b.WriteString(`
BACKUP_ROOT="$HOME/atalhos_desativados"
if [ ! -d "$BACKUP_ROOT" ]; then echo "未找到备份目录。" >&2; exit 1; fi
RESTORED=0
`)
	for _, f := range req.BackupFiles {
		// f 形如 "Desktop/firefox.desktop"，目录名即原位置
		fmt.Fprintf(&b, `
SRC="$BACKUP_ROOT/"%s
DEST_DIR="$HOME/$(dirname %s)"
if [ -f "$SRC" ]; then
    mkdir -p "$DEST_DIR"
    mv "$SRC" "$DEST_DIR/" && RESTORED=$((RESTORED+1))
fi
`, shQuote(f), shQuote(f))
	}
	b.WriteString(`echo "恢复完成，共 $RESTORED 个快捷方式。"`)
	return b.String(), nil
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")
	return r.Replace(s)
}
