package repository

import (
	"testing"

	"github.com/lanops/fleet-console/internal/domain"

	_ "modernc.org/sqlite"
)

func TestTargetRepo_SaveIsUpsert(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewTargetRepo(db)
	if err := r.EnsureSchema(); err != nil {
		t.Fatal(err)
	}

	e := domain.TargetEntry{IP: "192.168.0.101", Remark: "讲台机"}
	if err := r.Save(&e); err != nil {
		t.Fatal(err)
	}
	firstID := e.ID
	if firstID == 0 {
		t.Fatalf("Save 未回填 ID")
	}

	// 同 IP 再存为更新，ID 不变
	e2 := domain.TargetEntry{IP: "192.168.0.101", Remark: "改了备注"}
	if err := r.Save(&e2); err != nil {
		t.Fatal(err)
	}
	if e2.ID != firstID {
		t.Fatalf("更新后 ID 变化: %d != %d", e2.ID, firstID)
	}

	got, err := r.GetByIP("192.168.0.101")
	if err != nil {
		t.Fatal(err)
	}
	if got.Remark != "改了备注" {
		t.Fatalf("备注未更新: %+v", got)
	}
}

func TestTargetRepo_BulkUpsertAndList(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewTargetRepo(db)
	_ = r.EnsureSchema()

	seed := domain.TargetEntry{IP: "10.0.0.1", Remark: "old"}
	if err := r.Save(&seed); err != nil {
		t.Fatal(err)
	}

	batch := []domain.TargetEntry{
		{IP: "10.0.0.1", Remark: "new"},
		{IP: "10.0.0.2"},
		{IP: "10.0.0.3", Remark: "c"},
	}
	if err := r.BulkUpsert(batch); err != nil {
		t.Fatal(err)
	}
	list, err := r.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("期望 3 条, got %d", len(list))
	}
	if list[0].IP != "10.0.0.1" || list[0].Remark != "new" {
		t.Fatalf("bulk 未更新已有行: %+v", list[0])
	}
}

func TestTargetRepo_Delete(t *testing.T) {
	db := openMemDB(t)
	defer db.Close()
	r := NewTargetRepo(db)
	_ = r.EnsureSchema()

	e := domain.TargetEntry{IP: "10.0.0.9"}
	_ = r.Save(&e)
	if err := r.DeleteByIP("10.0.0.9"); err != nil {
		t.Fatal(err)
	}
	list, _ := r.ListAll()
	if len(list) != 0 {
		t.Fatalf("删除后仍有 %d 条", len(list))
	}
	if err := r.DeleteByIP(" "); err == nil {
		t.Fatalf("空 IP 应报错")
	}
}
