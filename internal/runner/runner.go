// Package runner 提供固定宽度的任务池：共享 FIFO 队列 + N 个 worker，
// 每个 worker 循环 "取一个单元 → 等它完成 → 再取"，队列空即退出。
// 并发在途单元数由 worker 数量自然限定，无需额外信号量。
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/lanops/fleet-console/internal/domain"
)

// Unit 一个独立异步工作单元。Run 永远返回 Result，不向外抛错。
type Unit struct {
	ID  string
	Run func(ctx context.Context) domain.Result
}

// Run 以 concurrency 个 worker 消费 units，结果按单元 ID 关联返回
// （完成顺序不确定，关联靠身份而非位置）。空输入立即返回空表。
// 单元失败（含 panic）只影响自身结果，不中断兄弟 worker。
func Run(ctx context.Context, units []Unit, concurrency int, onDone func(Unit, domain.Result)) map[string]domain.Result {
	results := make(map[string]domain.Result, len(units))
	if len(units) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(units) {
		concurrency = len(units)
	}

	queue := make(chan Unit, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range queue {
				res := safeRun(ctx, u)
				mu.Lock()
				results[u.ID] = res
				mu.Unlock()
				if onDone != nil {
					onDone(u, res)
				}
			}
		}()
	}
	wg.Wait()
	return results
}

// safeRun 把单元内的 panic 转成失败 Result，保证池不被拖垮。
func safeRun(ctx context.Context, u Unit) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Result{Success: false, Message: "任务内部错误", Details: fmt.Sprint(r)}
		}
	}()
	return u.Run(ctx)
}
