package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lanops/fleet-console/internal/domain"

	_ "modernc.org/sqlite"
)

// helper 打开内存库并建表
func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestHistoryRepo_InsertAndList(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewHistoryRepo(db)
	if err := r.EnsureSchema(); err != nil {
		t.Fatal(err)
	}

	h := domain.DispatchHistory{TargetIP: "192.168.0.101", Action: "desativar", Success: true, Message: "ok", DurationMs: 120}
	if err := r.Insert(&h); err != nil {
		t.Fatal(err)
	}
	if h.ID == 0 {
		t.Fatalf("Insert 未回填 ID")
	}

	rows, err := r.ListRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].TargetIP != "192.168.0.101" || !rows[0].Success {
		t.Fatalf("列表内容错误: %+v", rows)
	}
}

func TestHistoryRepo_ListFiltered(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewHistoryRepo(db)
	_ = r.EnsureSchema()

	for _, h := range []domain.DispatchHistory{
		{TargetIP: "192.168.0.101", Action: "desativar"},
		{TargetIP: "192.168.0.102", Action: "reiniciar"},
		{TargetIP: "192.168.0.101", Action: "reiniciar"},
	} {
		hh := h
		if err := r.Insert(&hh); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := r.ListFiltered(10, "101", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("按 IP 过滤期望 2 条, got %d", len(rows))
	}
	rows, _ = r.ListFiltered(10, "101", "rein")
	if len(rows) != 1 || rows[0].Action != "reiniciar" {
		t.Fatalf("组合过滤错误: %+v", rows)
	}
}

func TestHistoryRepo_Cleanup(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewHistoryRepo(db)
	_ = r.EnsureSchema()

	now := time.Now()
	for i := 0; i < 5; i++ {
		h := domain.DispatchHistory{TargetIP: "1.1.1.1", Action: "cmd", StartedAt: now.Add(-time.Duration(i) * 24 * time.Hour), FinishedAt: now}
		if err := r.Insert(&h); err != nil {
			t.Fatal(err)
		}
	}
	// 只保留最近 2 天
	if err := r.Cleanup(2, 0); err != nil {
		t.Fatal(err)
	}
	rows, _ := r.ListRecent(10)
	for _, row := range rows {
		if now.Sub(row.StartedAt) > 48*time.Hour {
			t.Fatalf("超龄行未清理: %v", row.StartedAt)
		}
	}
	// 再按最大行数裁剪
	if err := r.Cleanup(0, 1); err != nil {
		t.Fatal(err)
	}
	rows, _ = r.ListRecent(10)
	if len(rows) != 1 {
		t.Fatalf("期望剩 1 行, got %d", len(rows))
	}
}
