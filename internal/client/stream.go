package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lanops/fleet-console/internal/domain"
)

// 流控制哨兵行前缀。哨兵可能被任意切分到多个 chunk，
// 解码器靠缓冲重组保证完整行后再识别。
const (
	streamEndPrefix   = "__STREAM_END__:"
	streamErrorPrefix = "__STREAM_ERROR__:"
)

// Decoder 长连接字节流的行级状态机: STREAMING → {ENDED, ERRORED}。
// 只被处理该流的单个读循环修改，流关闭即丢弃。
type Decoder struct {
	buf      []byte
	terminal bool // 已见到终止哨兵
	res      domain.Result
	ignored  int // 终止哨兵之后仍到达的行数（只计数，不改判定）
	onLine   func(string)
}

func NewDecoder(onLine func(string)) *Decoder {
	return &Decoder{onLine: onLine}
}

// Feed 追加一个 chunk，按换行切分并处理所有完整行，
// 末尾的不完整片段留到下一个 chunk。
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		d.processLine(strings.TrimSuffix(line, "\r"))
	}
}

// Close 流关闭时结算：先处理残留缓冲，再给出最终判定。
// 没见到任何终止哨兵的流按失败处理，绝不默认成功。
func (d *Decoder) Close() domain.Result {
	if len(d.buf) > 0 {
		line := strings.TrimSuffix(string(d.buf), "\r")
		d.buf = nil
		d.processLine(line)
	}
	if !d.terminal {
		return domain.Result{
			Success: false,
			Message: "流结束但未给出明确结论，按失败处理。",
		}
	}
	if d.ignored > 0 {
		note := fmt.Sprintf("终止哨兵之后仍收到 %d 行输出，已忽略。", d.ignored)
		if d.res.Details == "" {
			d.res.Details = note
		} else {
			d.res.Details += "\n" + note
		}
	}
	return d.res
}

func (d *Decoder) processLine(line string) {
	if d.terminal {
		// 首个终止哨兵为准，其后的行只计数
		if line != "" {
			d.ignored++
		}
		return
	}
	switch {
	case strings.HasPrefix(line, streamEndPrefix):
		codeStr := strings.TrimPrefix(line, streamEndPrefix)
		code, err := strconv.Atoi(strings.TrimSpace(codeStr))
		if err != nil {
			code = -1
		}
		d.terminal = true
		if code == 0 {
			d.res = domain.Result{Success: true, Message: "远程命令执行完成（退出码 0）。"}
		} else {
			d.res = domain.Result{Success: false, Message: fmt.Sprintf("远程命令执行失败（退出码 %d）。", code)}
		}
	case strings.HasPrefix(line, streamErrorPrefix):
		d.terminal = true
		d.res = domain.Result{
			Success: false,
			Message: "远程命令报告错误。",
			Details: strings.TrimPrefix(line, streamErrorPrefix),
		}
	case line != "":
		// 普通进度行，原样转发给实时显示，不影响判定
		if d.onLine != nil {
			d.onLine(line)
		}
	}
}

// Stream 对单个 (目标, 动作) 发起流式请求并消费其 chunked 响应。
// 客户端不设超时，由远端进程终止或 ctx 取消（操作员离开）收尾。
func (c *Client) Stream(ctx context.Context, ip string, act domain.ActionID, password string, payload map[string]any, onLine func(string)) domain.Result {
	body := map[string]any{"ip": ip, "password": password, "action": string(act)}
	for k, v := range payload {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return domain.Result{Success: false, Message: "请求构造失败", Details: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/stream-action", bytes.NewReader(b))
	if err != nil {
		return domain.Result{Success: false, Message: "请求构造失败", Details: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return normalizeTransportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Result{Success: false, Message: http.StatusText(resp.StatusCode)}
	}

	dec := NewDecoder(onLine)
	buf := make([]byte, 1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if rerr != nil {
			break
		}
	}
	return dec.Close()
}
