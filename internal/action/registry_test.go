package action

import (
	"testing"

	"github.com/lanops/fleet-console/internal/domain"
)

// 互斥关系必须双向成立，否则 Toggle 的化解不对称
func TestCatalog_ConflictSymmetry(t *testing.T) {
	for id, a := range catalog {
		if a.ConflictsWith == "" {
			continue
		}
		other, ok := catalog[a.ConflictsWith]
		if !ok {
			t.Fatalf("%s 的互斥动作 %s 不在目录中", id, a.ConflictsWith)
		}
		if other.ConflictsWith != id {
			t.Fatalf("互斥不对称: %s -> %s 但 %s -> %s", id, a.ConflictsWith, other.ID, other.ConflictsWith)
		}
	}
}

func TestCatalog_LocalActionHasNoConflict(t *testing.T) {
	for id, a := range catalog {
		if a.Local && a.ConflictsWith != "" {
			t.Fatalf("本地动作 %s 不应有互斥关系", id)
		}
	}
}

func TestToggle_AddRemovesConflict(t *testing.T) {
	sel := map[domain.ActionID]bool{domain.ActionDisableShortcuts: true}
	next := Toggle(domain.ActionRestoreShortcuts, sel)
	if next[domain.ActionDisableShortcuts] {
		t.Fatalf("加入 ativar 后 desativar 仍在集合中")
	}
	if !next[domain.ActionRestoreShortcuts] {
		t.Fatalf("ativar 未被加入")
	}
	// 入参不可被修改
	if !sel[domain.ActionDisableShortcuts] {
		t.Fatalf("Toggle 修改了入参集合")
	}

	// 反向同理：先 ativar 再 desativar，只剩 desativar
	rev := Toggle(domain.ActionDisableShortcuts, map[domain.ActionID]bool{domain.ActionRestoreShortcuts: true})
	if len(rev) != 1 || !rev[domain.ActionDisableShortcuts] {
		t.Fatalf("反向化解错误: %v", rev)
	}
}

func TestToggle_SecondToggleRemoves(t *testing.T) {
	sel := map[domain.ActionID]bool{}
	sel = Toggle(domain.ActionReboot, sel)
	if !sel[domain.ActionReboot] {
		t.Fatalf("首次 toggle 未选中")
	}
	sel = Toggle(domain.ActionReboot, sel)
	if sel[domain.ActionReboot] {
		t.Fatalf("二次 toggle 未取消选中")
	}
	if len(sel) != 0 {
		t.Fatalf("期望空集合, got %v", sel)
	}
}

// 无互斥的动作共存不受影响
func TestToggle_UnrelatedUntouched(t *testing.T) {
	sel := map[domain.ActionID]bool{domain.ActionSendMessage: true, domain.ActionClearImages: true}
	next := Toggle(domain.ActionDisableShortcuts, sel)
	if !next[domain.ActionSendMessage] || !next[domain.ActionClearImages] {
		t.Fatalf("无关动作被误删: %v", next)
	}
	if len(next) != 3 {
		t.Fatalf("期望 3 个选中, got %d", len(next))
	}
}

func TestAll_SortedAndComplete(t *testing.T) {
	all := All()
	if len(all) != len(catalog) {
		t.Fatalf("All() 数量 %d != 目录 %d", len(all), len(catalog))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("未按 ID 排序: %s >= %s", all[i-1].ID, all[i].ID)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("no_such_action"); ok {
		t.Fatalf("未知动作不应命中")
	}
}
