package namespace

import (
	"strings"
	"sync"
	"testing"
)

func TestAllocateUnique(t *testing.T) {
	a := NewAllocator()
	seen := make(map[string]bool)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := a.Allocate("crate")
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if a.Active() != 800 {
		t.Errorf("Active() = %d, want 800", a.Active())
	}
}

func TestReleaseNeverReuses(t *testing.T) {
	a := NewAllocator()
	a.suffix = func() string { return "fixed" }

	first := a.Allocate("crate")
	if !a.InUse(first) {
		t.Fatal("allocated id not in use")
	}
	a.Release(first)
	if a.InUse(first) {
		t.Fatal("released id still in use")
	}

	second := a.Allocate("crate")
	if second == first {
		t.Errorf("id %s reused after release", first)
	}
}

func TestAllocateFormat(t *testing.T) {
	a := NewAllocator()
	id := a.Allocate("Old Chair v2.final")

	if !strings.HasPrefix(id, "preview_Old_Chair_v2_final_1_") {
		t.Errorf("id = %q", id)
	}
	if strings.ContainsAny(id, " .:-") {
		t.Errorf("id %q contains characters hosts reject", id)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"crate", "crate"},
		{"  spaced name ", "spaced_name"},
		{"ns:child", "ns_child"},
		{"ünïcödé", "n_c_d"},
		{"", "asset"},
		{"...", "asset"},
		{strings.Repeat("a", 40), strings.Repeat("a", 32)},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
