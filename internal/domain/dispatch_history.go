package domain

import "time"

// DispatchHistory 记录一次动作在某台目标主机上的派发结果。
// 注意: 凭据永远不进历史表，Details 在写入前已做脱敏。
type DispatchHistory struct {
	ID         int64     `json:"id"`
	TargetIP   string    `json:"target_ip"`
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}
