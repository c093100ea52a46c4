package secret

import "testing"

func TestVault_FirstValueWins(t *testing.T) {
	v := NewVault()
	if _, ok := v.Cached(); ok {
		t.Fatalf("初始不应有缓存")
	}
	v.Cache("first")
	v.Cache("second")
	cred, ok := v.Cached()
	if !ok || cred != "first" {
		t.Fatalf("应保留首次值, got %q", cred)
	}
}

func TestVault_EmptyIgnored(t *testing.T) {
	v := NewVault()
	v.Cache("")
	if _, ok := v.Cached(); ok {
		t.Fatalf("空凭据不应被缓存")
	}
}

func TestVault_Clear(t *testing.T) {
	v := NewVault()
	v.Cache("pw")
	v.Clear()
	if _, ok := v.Cached(); ok {
		t.Fatalf("Clear 后仍有缓存")
	}
	// 清空后可重新缓存
	v.Cache("new")
	if cred, _ := v.Cached(); cred != "new" {
		t.Fatalf("Clear 后重缓存失败")
	}
}

func TestRedact(t *testing.T) {
	v := NewVault()
	v.Cache("s3cret")
	out := v.Redact("auth failed for pw s3cret on host")
	if out != "auth failed for pw ****** on host" {
		t.Fatalf("未脱敏: %q", out)
	}
	// 未缓存时原样返回
	empty := NewVault()
	if got := empty.Redact("text"); got != "text" {
		t.Fatalf("空凭据应原样返回, got %q", got)
	}
}
