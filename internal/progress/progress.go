// Package progress 聚合批次进度。多个 worker 并发完成任务，
// 计数与发布必须在同一把锁内完成，避免增量交错与乱序发布。
package progress

import (
	"math"
	"sync"
)

// Snapshot 一次发布的进度快照。
type Snapshot struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Label     string `json:"label"`
}

// Aggregator 进度状态的唯一写入方。publish 回调须快速返回。
type Aggregator struct {
	mu        sync.Mutex
	processed int
	total     int
	label     string
	publish   func(Snapshot)
}

func New(publish func(Snapshot)) *Aggregator {
	return &Aggregator{publish: publish}
}

// Begin 开始一个新批次，清零计数。
func (a *Aggregator) Begin(total int, label string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed = 0
	a.total = total
	a.label = label
	if a.publish != nil {
		a.publish(a.snapshotLocked())
	}
}

// Record 记录一个任务完成。每次完成恰好调用一次，
// 增量与发布构成一个原子步骤。
func (a *Aggregator) Record() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed++
	snap := a.snapshotLocked()
	if a.publish != nil {
		a.publish(snap)
	}
	return snap
}

func (a *Aggregator) snapshotLocked() Snapshot {
	pct := 0
	if a.total > 0 {
		pct = int(math.Round(float64(a.processed) / float64(a.total) * 100))
	}
	return Snapshot{Processed: a.processed, Total: a.total, Percent: pct, Label: a.label}
}
