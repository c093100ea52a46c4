package config

// 统一配置加载：当前仅读取环境变量，默认值覆盖常见机房部署。
// 控制台与桥接服务共用本包。

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Config 保存运行时关键参数。
type Config struct {
	DataDir       string // 数据目录（历史库）
	BridgeBase    string // 桥接服务基址（控制台侧）
	BridgeAddr    string // 桥接服务监听地址（服务侧）
	MaxConcurrent int    // 同时在途任务上限 (MAX_CONCURRENT_TASKS)
	SSHUser       string // 目标主机统一 SSH 用户
	SSHTimeoutSec int    // 单条远程命令时限（秒）
	IPPrefix      string // 扫描网段前缀，如 192.168.0.
	IPStart       int
	IPEnd         int

	HistoryRetentionDays int
	HistoryMaxRows       int
	HistoryFlushInterval int
	HistoryBatchSize     int
}

var (
	once   sync.Once
	global *Config
)

// Load 读取全局配置（只初始化一次）。
// 环境变量：
//
//	FLEET_DATA_DIR        数据目录 (默认 data)
//	FLEET_BRIDGE_BASE     桥接服务基址 (默认 http://127.0.0.1:5000)
//	FLEET_BRIDGE_ADDR     桥接监听地址 (默认 :5000)
//	FLEET_MAX_CONCURRENT  在途任务上限 (默认 5)
//	FLEET_SSH_USER        SSH 用户 (默认 aluno)
//	FLEET_SSH_TIMEOUT     远程命令时限秒数 (默认 20)
//	FLEET_IP_PREFIX/START/END  扫描范围 (默认 192.168.0.100-125)
func Load() *Config {
	once.Do(func() {
		c := &Config{
			DataDir:              envOr("FLEET_DATA_DIR", "data"),
			BridgeBase:           envOr("FLEET_BRIDGE_BASE", "http://127.0.0.1:5000"),
			BridgeAddr:           envOr("FLEET_BRIDGE_ADDR", ":5000"),
			MaxConcurrent:        envInt("FLEET_MAX_CONCURRENT", 5),
			SSHUser:              envOr("FLEET_SSH_USER", "aluno"),
			SSHTimeoutSec:        envInt("FLEET_SSH_TIMEOUT", 20),
			IPPrefix:             envOr("FLEET_IP_PREFIX", "192.168.0."),
			IPStart:              envInt("FLEET_IP_START", 100),
			IPEnd:                envInt("FLEET_IP_END", 125),
			HistoryRetentionDays: envInt("FLEET_HISTORY_RETENTION_DAYS", 30),
			HistoryMaxRows:       envInt("FLEET_HISTORY_MAX_ROWS", 10000),
			HistoryFlushInterval: envInt("FLEET_HISTORY_FLUSH_INTERVAL", 2),
			HistoryBatchSize:     envInt("FLEET_HISTORY_BATCH_SIZE", 20),
		}
		_ = os.MkdirAll(c.DataDir, 0755)
		global = c
	})
	return global
}

// DBPath 返回 sqlite 文件路径。
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "dispatch.db") }

// Helpers
func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
