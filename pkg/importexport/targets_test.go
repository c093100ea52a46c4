package importexport

import (
	"strings"
	"testing"

	"github.com/lanops/fleet-console/internal/domain"
)

func TestParseTargetsCSV_WithHeader(t *testing.T) {
	data := "ip,remark\n192.168.0.101,讲台机\n192.168.0.102,\n,skip-me\n"
	ts, err := ParseTargetsCSV([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 {
		t.Fatalf("期望 2 条, got %d", len(ts))
	}
	if ts[0].IP != "192.168.0.101" || ts[0].Remark != "讲台机" {
		t.Fatalf("首行解析错误: %+v", ts[0])
	}
}

func TestParseTargetsCSV_NoHeader(t *testing.T) {
	ts, err := ParseTargetsCSV([]byte("192.168.0.110,备注\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 || ts[0].IP != "192.168.0.110" {
		t.Fatalf("无 header CSV 解析失败: %+v", ts)
	}
}

func TestParseTargetsJSON_FiltersEmptyIP(t *testing.T) {
	ts, err := ParseTargetsJSON([]byte(`[{"ip":"10.0.0.1"},{"ip":""},{"ip":"10.0.0.2","remark":"x"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 {
		t.Fatalf("空 IP 未被过滤: %+v", ts)
	}
}

func TestRenderTargetsCSV_Escaping(t *testing.T) {
	out := RenderTargetsCSV([]domain.TargetEntry{
		{IP: "10.0.0.1", Remark: `含,逗号和"引号"`},
	})
	if !strings.HasPrefix(out, "ip,remark\n") {
		t.Fatalf("缺少 header: %q", out)
	}
	if !strings.Contains(out, `"含,逗号和""引号"""`) {
		t.Fatalf("转义错误: %q", out)
	}
	// 渲染结果必须能被解析回去
	back, err := ParseTargetsCSV([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].Remark != `含,逗号和"引号"` {
		t.Fatalf("往返失败: %+v", back)
	}
}

func TestValidateTargets(t *testing.T) {
	if err := ValidateTargets([]domain.TargetEntry{{IP: "1.1.1.1"}}); err != nil {
		t.Fatalf("合法清单不应报错: %v", err)
	}
	if err := ValidateTargets([]domain.TargetEntry{{IP: " "}}); err == nil {
		t.Fatalf("空 IP 应报错")
	}
}
