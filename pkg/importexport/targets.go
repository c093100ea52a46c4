package importexport

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lanops/fleet-console/internal/domain"
)

// ParseTargetsJSON 解析 JSON 数组为目标清单
func ParseTargetsJSON(data []byte) ([]domain.TargetEntry, error) {
	var ts []domain.TargetEntry
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, err
	}
	out := ts[:0]
	for _, t := range ts {
		if strings.TrimSpace(t.IP) != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// ParseTargetsCSV 解析 CSV (含 header) -> targets
func ParseTargetsCSV(data []byte) ([]domain.TargetEntry, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.TargetEntry{}, nil
	}
	start := 0
	if len(rows[0]) > 0 && strings.Contains(strings.ToLower(strings.Join(rows[0], ",")), "ip") {
		start = 1
	}
	var out []domain.TargetEntry
	for i := start; i < len(rows); i++ {
		cols := rows[i]
		if len(cols) == 0 {
			continue
		}
		ip := strings.TrimSpace(cols[0])
		if ip == "" {
			continue
		}
		t := domain.TargetEntry{IP: ip}
		if len(cols) > 1 {
			t.Remark = strings.TrimSpace(cols[1])
		}
		out = append(out, t)
	}
	return out, nil
}

// RenderTargetsCSV 输出 CSV 字符串 (含 header)
func RenderTargetsCSV(ts []domain.TargetEntry) string {
	var b strings.Builder
	b.WriteString("ip,remark\n")
	for _, t := range ts {
		b.WriteString(escapeCSV(t.IP))
		b.WriteString(",")
		b.WriteString(escapeCSV(t.Remark))
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\n\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}

// SerializeTargetsJSON 输出 JSON 字符串
func SerializeTargetsJSON(ts []domain.TargetEntry) (string, error) {
	b, err := json.Marshal(ts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ValidateTargets 导入前的最小校验
func ValidateTargets(ts []domain.TargetEntry) error {
	for _, t := range ts {
		if strings.TrimSpace(t.IP) == "" {
			return errors.New("empty ip")
		}
	}
	return nil
}
