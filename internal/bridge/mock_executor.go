package bridge

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockExecutor 用于测试。按命令关键字匹配预置结果。
type MockExecutor struct {
	mu      sync.Mutex
	scripts map[string]MockResult // key: 命令中包含的关键字
}

type MockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	DelayMs  int
}

func NewMockExecutor() *MockExecutor { return &MockExecutor{scripts: map[string]MockResult{}} }

func (m *MockExecutor) Set(keyword string, res MockResult) {
	m.mu.Lock()
	m.scripts[keyword] = res
	m.mu.Unlock()
}

func (m *MockExecutor) lookup(cmd string) (MockResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.scripts {
		if strings.Contains(cmd, k) {
			return r, true
		}
	}
	return MockResult{}, false
}

func (m *MockExecutor) Exec(ctx context.Context, addr, password, cmd string, timeout time.Duration) (string, string, int, error) {
	r, ok := m.lookup(cmd)
	if !ok {
		return "", "", 127, nil
	}
	if r.DelayMs > 0 {
		select {
		case <-ctx.Done():
			return "", "", -1, ctx.Err()
		case <-time.After(time.Duration(r.DelayMs) * time.Millisecond):
		}
	}
	return r.Stdout, r.Stderr, r.ExitCode, r.Err
}

func (m *MockExecutor) StreamExec(ctx context.Context, addr, password, cmd string, timeout time.Duration, onChunk func([]byte, bool)) (string, string, int, error) {
	r, ok := m.lookup(cmd)
	if !ok {
		return "", "", 127, nil
	}
	if r.DelayMs > 0 {
		select {
		case <-ctx.Done():
			return "", "", -1, ctx.Err()
		case <-time.After(time.Duration(r.DelayMs) * time.Millisecond):
		}
	}
	if r.Err != nil {
		return "", "", -1, r.Err
	}
	if onChunk != nil {
		if r.Stdout != "" {
			onChunk([]byte(r.Stdout), false)
		}
		if r.Stderr != "" {
			onChunk([]byte(r.Stderr), true)
		}
	}
	return r.Stdout, r.Stderr, r.ExitCode, nil
}
