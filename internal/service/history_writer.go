package service

import (
	"sync"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
	"github.com/lanops/fleet-console/internal/repository"
)

// HistoryWriter 异步批量写历史，避免派发路径被磁盘 IO 拖慢。
type HistoryWriter struct {
	repo          repository.HistoryRepoIface
	ch            chan domain.DispatchHistory
	stop          chan struct{}
	flushInterval time.Duration
	batchSize     int
	wg            sync.WaitGroup
}

func NewHistoryWriter(repo repository.HistoryRepoIface, flushSec int, batchSize int) *HistoryWriter {
	if flushSec <= 0 {
		flushSec = 2
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	hw := &HistoryWriter{repo: repo, ch: make(chan domain.DispatchHistory, batchSize*4), stop: make(chan struct{}), flushInterval: time.Duration(flushSec) * time.Second, batchSize: batchSize}
	hw.wg.Add(1)
	go hw.loop()
	return hw
}

func (w *HistoryWriter) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	batch := make([]domain.DispatchHistory, 0, w.batchSize)
	flush := func() {
		for i := range batch {
			h := batch[i]
			_ = w.repo.Insert(&h)
		}
		batch = batch[:0]
	}
	for {
		select {
		case h := <-w.ch:
			batch = append(batch, h)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}
		case <-w.stop:
			if len(batch) > 0 {
				flush()
			}
			return
		}
	}
}

func (w *HistoryWriter) Write(h domain.DispatchHistory) {
	select {
	case w.ch <- h:
	default: /* drop if full */
	}
}

func (w *HistoryWriter) Close() { close(w.stop); w.wg.Wait() }
