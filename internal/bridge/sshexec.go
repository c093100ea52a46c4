package bridge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gssh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Executor SSH 执行器：按需建立/复用连接，可设最大并发。
// 目标主机统一用同一个 SSH 用户 + 操作员会话密码认证。
type Executor struct {
	pool *ConnectionPool
	sem  chan struct{}
	user string
}

// NewExecutor 创建执行器。maxParallel <=0 表示不限制。
func NewExecutor(user string, maxParallel int) *Executor {
	var sem chan struct{}
	if maxParallel > 0 {
		sem = make(chan struct{}, maxParallel)
	}
	return &Executor{pool: NewConnectionPool(), sem: sem, user: user}
}

// Exec 执行命令并返回 stdout/stderr/exitCode。
// 命令含 "sudo -S" 时把密码写入 stdin 供提权。
func (e *Executor) Exec(ctx context.Context, addr, password, cmd string, timeout time.Duration) (string, string, int, error) {
	if addr == "" {
		return "", "", -1, errors.New("addr empty")
	}
	if cmd == "" {
		return "", "", -1, errors.New("cmd empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if e.sem != nil {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
	}

	client, err := e.pool.Get(e.user, addr, password)
	if err != nil {
		return "", "", -1, err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if strings.Contains(cmd, "sudo -S") {
		session.Stdin = strings.NewReader(password + "\n")
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		// 强制关闭底层连接以中断
		_ = client.Close()
		return stdout.String(), stderr.String(), -1, context.DeadlineExceeded
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		if ee, ok := err.(*gssh.ExitError); ok {
			exitCode = ee.ExitStatus()
		} else {
			return stdout.String(), stderr.String(), -1, err
		}
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// StreamExec 流式执行，实时回调 stdout/stderr 数据块（isErr 标记来源）。
// 最终返回完整输出与 exitCode。
func (e *Executor) StreamExec(ctx context.Context, addr, password, cmd string, timeout time.Duration, onChunk func(data []byte, isErr bool)) (string, string, int, error) {
	if addr == "" {
		return "", "", -1, errors.New("addr empty")
	}
	if cmd == "" {
		return "", "", -1, errors.New("cmd empty")
	}
	if e.sem != nil {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
	}
	client, err := e.pool.Get(e.user, addr, password)
	if err != nil {
		return "", "", -1, err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer session.Close()
	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return "", "", -1, err
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return "", "", -1, err
	}
	if strings.Contains(cmd, "sudo -S") {
		session.Stdin = strings.NewReader(password + "\n")
	}
	if err = session.Start(cmd); err != nil {
		return "", "", -1, err
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, er := stdoutPipe.Read(buf)
			if n > 0 {
				b := buf[:n]
				stdoutBuf.Write(b)
				if onChunk != nil {
					onChunk(b, false)
				}
			}
			if er != nil {
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, er := stderrPipe.Read(buf)
			if n > 0 {
				b := buf[:n]
				stderrBuf.Write(b)
				if onChunk != nil {
					onChunk(b, true)
				}
			}
			if er != nil {
				return
			}
		}
	}()
	waitCh := make(chan error, 1)
	go func() { waitCh <- session.Wait() }()
	var runErr error
	select {
	case <-ctx.Done():
		_ = client.Close()
		runErr = context.DeadlineExceeded
	case runErr = <-waitCh:
	}
	wg.Wait()
	exitCode := 0
	if runErr != nil {
		if ee, ok := runErr.(*gssh.ExitError); ok {
			exitCode = ee.ExitStatus()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, runErr
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// -------- 连接池实现 (简化版) --------

type poolKey string

func makeKey(user, addr, password string) poolKey {
	h := sha256.Sum256([]byte(user + "@" + addr + "|" + password))
	return poolKey(hex.EncodeToString(h[:8]))
}

type ConnectionPool struct {
	mu      sync.Mutex
	clients map[poolKey]*gssh.Client
}

func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{clients: map[poolKey]*gssh.Client{}}
}

// hostKeyCallback 优先校验 known_hosts；文件缺失时退化为不校验
// （机房初装场景）。校验失败的错误文本会透传给控制台用于密钥修复引导。
func hostKeyCallback() gssh.HostKeyCallback {
	home, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(home, ".ssh", "known_hosts")
		if cb, err := knownhosts.New(path); err == nil {
			return cb
		}
	}
	return gssh.InsecureIgnoreHostKey()
}

func (p *ConnectionPool) Get(user, addr, password string) (*gssh.Client, error) {
	pk := makeKey(user, addr, password)
	p.mu.Lock()
	if c, ok := p.clients[pk]; ok {
		p.mu.Unlock()
		// 简单健康检测 (非阻塞)
		_, _, err := c.SendRequest("keepalive@openssh.com", true, nil)
		if err == nil {
			return c, nil
		}
		// 失效，移除并重新创建
		p.mu.Lock()
		delete(p.clients, pk)
		p.mu.Unlock()
	} else {
		p.mu.Unlock()
	}

	conf := &gssh.ClientConfig{
		User:            user,
		Auth:            []gssh.AuthMethod{gssh.Password(password)},
		HostKeyCallback: hostKeyCallback(),
		Timeout:         10 * time.Second,
	}
	// 支持 host:port 或仅 host
	target := addr
	if _, _, errSplit := net.SplitHostPort(addr); errSplit != nil {
		target = addr + ":22"
	}
	c, err := gssh.Dial("tcp", target, conf)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.clients[pk] = c
	p.mu.Unlock()
	return c, nil
}

func (p *ConnectionPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, c := range p.clients {
		_ = c.Close()
		delete(p.clients, k)
	}
}
