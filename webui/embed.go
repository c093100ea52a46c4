package webui

import "embed"

// 嵌入模式需覆盖 css/js，否则 wails build 后运行时加载 404。
//
//go:embed *.html *.css *.js
var Assets embed.FS
