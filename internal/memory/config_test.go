package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
)

// withCgroupFiles points the cgroup lookup at files under a temp dir.
func withCgroupFiles(t *testing.T, contents ...string) {
	t.Helper()
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "absent")}
	for i, c := range contents {
		path := filepath.Join(dir, fmt.Sprintf("limit%d", i))
		if err := os.WriteFile(path, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}
	saved := cgroupLimitFiles
	cgroupLimitFiles = files
	t.Cleanup(func() { cgroupLimitFiles = saved })
}

func TestConfigureFromEnv(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })
	withCgroupFiles(t)

	tests := []struct {
		name       string
		limit      string
		ratio      string
		configured bool
		wantLimit  int64
		wantRatio  float64
	}{
		{"unset", "", "", false, 0, 0},
		{"default ratio", "1000000000", "", true, 850000000, DefaultMemoryRatio},
		{"custom ratio", "1000000000", "0.5", true, 500000000, 0.5},
		{"ratio out of range", "1000000000", "1.5", true, 850000000, DefaultMemoryRatio},
		{"invalid limit", "lots", "", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got.Configured != tt.configured {
				t.Fatalf("Configured = %v, want %v", got.Configured, tt.configured)
			}
			if got.GoMemLimit != tt.wantLimit || got.Ratio != tt.wantRatio {
				t.Errorf("limit %d ratio %v, want %d %v", got.GoMemLimit, got.Ratio, tt.wantLimit, tt.wantRatio)
			}
			if tt.configured && debug.SetMemoryLimit(-1) != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", debug.SetMemoryLimit(-1), tt.wantLimit)
			}
		})
	}
}

func TestConfigureFromCgroup(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("MEMORY_RATIO", "0.5")

	tests := []struct {
		name       string
		content    string
		configured bool
		wantLimit  int64
	}{
		{"v2 limit", "2000000000\n", true, 1000000000},
		{"v2 unlimited", "max\n", false, 0},
		{"v1 unlimited", "9223372036854771712\n", false, 0},
		{"garbage", "lots\n", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withCgroupFiles(t, tt.content)
			got := ConfigureFromEnv()
			if got.Configured != tt.configured || got.GoMemLimit != tt.wantLimit {
				t.Fatalf("result = %+v", got)
			}
			if tt.configured && got.Source != "cgroup" {
				t.Errorf("Source = %q, want cgroup", got.Source)
			}
		})
	}
}

func TestMemoryLimitEnvWinsOverCgroup(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })
	withCgroupFiles(t, "2000000000")
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "")

	got := ConfigureFromEnv()
	if got.Source != "MEMORY_LIMIT" || got.ContainerLimit != 1000000000 {
		t.Errorf("result = %+v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{512 * 1024 * 1024, "512.0 MiB"},
		{2 * 1024 * 1024 * 1024, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
