package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecoder_EndZeroIsSuccess(t *testing.T) {
	var lines []string
	d := NewDecoder(func(l string) { lines = append(lines, l) })
	d.Feed([]byte("步骤 1/3\n步骤 2/3\n__STREAM_END__:0\n"))
	res := d.Close()
	if !res.Success {
		t.Fatalf("退出码 0 应成功: %+v", res)
	}
	if len(lines) != 2 {
		t.Fatalf("进度行转发数 %d != 2", len(lines))
	}
}

func TestDecoder_EndNonzeroIsFailure(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("__STREAM_END__:2\n"))
	res := d.Close()
	if res.Success {
		t.Fatalf("退出码 2 不应成功")
	}
	if !strings.Contains(res.Message, "2") {
		t.Fatalf("退出码未体现在结论里: %q", res.Message)
	}
}

func TestDecoder_ErrorSentinel(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("__STREAM_ERROR__:connection reset\n"))
	res := d.Close()
	if res.Success {
		t.Fatalf("错误哨兵不应成功")
	}
	if res.Details != "connection reset" {
		t.Fatalf("错误文本丢失: %+v", res)
	}
}

// 哨兵可能被任意切分到多个 chunk
func TestDecoder_SentinelSplitAcrossChunks(t *testing.T) {
	full := "installing...\n__STREAM_END__:0\n"
	// 逐字节喂入是最苛刻的切分
	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		d := NewDecoder(nil)
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			d.Feed([]byte(full[i:end]))
		}
		res := d.Close()
		if !res.Success {
			t.Fatalf("chunk=%d 时未识别哨兵: %+v", chunkSize, res)
		}
	}
}

// 无终止哨兵的流按失败结算，绝不默认成功
func TestDecoder_AmbiguousCloseIsFailure(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("some output\nmore output\n"))
	res := d.Close()
	if res.Success {
		t.Fatalf("无哨兵的流不应成功")
	}
	if !strings.Contains(res.Message, "失败") {
		t.Fatalf("结论措辞错误: %q", res.Message)
	}
}

// 首个终止哨兵为准，其后的行只计数不改判定
func TestDecoder_FirstSentinelWins(t *testing.T) {
	var lines []string
	d := NewDecoder(func(l string) { lines = append(lines, l) })
	d.Feed([]byte("__STREAM_END__:0\nlate line 1\n__STREAM_ERROR__:late\nlate line 3\n"))
	res := d.Close()
	if !res.Success {
		t.Fatalf("后到的哨兵不应翻转判定: %+v", res)
	}
	if !strings.Contains(res.Details, "3 行") {
		t.Fatalf("被忽略行数未记录: %+v", res)
	}
	if len(lines) != 0 {
		t.Fatalf("终止后仍转发了进度行: %v", lines)
	}
}

// 残留缓冲（末行无换行）也要结算
func TestDecoder_ResidueWithoutNewline(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("__STREAM_END__:0"))
	res := d.Close()
	if !res.Success {
		t.Fatalf("无换行的哨兵未被识别: %+v", res)
	}
}

func TestDecoder_CRLF(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("line\r\n__STREAM_END__:0\r\n"))
	res := d.Close()
	if !res.Success {
		t.Fatalf("CRLF 未处理: %+v", res)
	}
}

func TestDecoder_BadExitCodeIsFailure(t *testing.T) {
	d := NewDecoder(nil)
	d.Feed([]byte("__STREAM_END__:abc\n"))
	res := d.Close()
	if res.Success {
		t.Fatalf("非法退出码不应成功")
	}
}

// 端到端：chunked 响应逐段到达
func TestStream_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(w, "步骤 %d/3\n", i)
			flusher.Flush()
		}
		fmt.Fprint(w, "__STREAM_END__:0\n")
	}))
	defer srv.Close()

	var lines []string
	c := New(srv.URL)
	res := c.Stream(context.Background(), "10.0.0.1", "atualizar_sistema", "pw", nil, func(l string) {
		lines = append(lines, l)
	})
	if !res.Success {
		t.Fatalf("流式端到端失败: %+v", res)
	}
	if len(lines) != 3 {
		t.Fatalf("进度行数 %d != 3: %v", len(lines), lines)
	}
}

// 服务端中途断流（无哨兵）
func TestStream_TruncatedIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "partial output\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	res := c.Stream(context.Background(), "10.0.0.1", "atualizar_sistema", "pw", nil, nil)
	if res.Success {
		t.Fatalf("断流不应成功: %+v", res)
	}
}
