package workers

import (
	"runtime"
	"testing"
)

const testEnv = "TEST_POOL_WORKERS"

func TestPoolSize(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name string
		pool Pool
		env  string
		want int
	}{
		{"per cpu", Pool{Env: testEnv, PerCPU: 2}, "", 2 * cpus},
		{"per cpu capped", Pool{Env: testEnv, PerCPU: 2, Limit: 1}, "", 1},
		{"zero multiplier", Pool{Env: testEnv}, "", 1},
		{"negative multiplier", Pool{Env: testEnv, PerCPU: -1}, "", 1},
		{"fixed", Pool{Env: testEnv, PerCPU: 8, Fixed: 3}, "", 3},
		{"override", Pool{Env: testEnv, Fixed: 3}, "8", 8},
		{"override capped", Pool{Env: testEnv, Fixed: 3, Limit: 5}, "20", 5},
		{"non-numeric override ignored", Pool{Env: testEnv, Fixed: 3}, "lots", 3},
		{"zero override ignored", Pool{Env: testEnv, Fixed: 3}, "0", 3},
		{"negative override ignored", Pool{Env: testEnv, Fixed: 3}, "-5", 3},
		{"no env name", Pool{Fixed: 2}, "9", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testEnv, tt.env)
			if got := tt.pool.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuiltinPools(t *testing.T) {
	t.Setenv(Scheduler.Env, "")
	t.Setenv(Indexer.Env, "")

	if got := Scheduler.Size(); got < 1 || got > Scheduler.Limit {
		t.Errorf("Scheduler.Size() = %d, want 1..%d", got, Scheduler.Limit)
	}
	if got := Indexer.Size(); got != 3 {
		t.Errorf("Indexer.Size() = %d, want 3", got)
	}

	t.Setenv(Scheduler.Env, "2")
	if got := Scheduler.Size(); got != 2 {
		t.Errorf("Scheduler.Size() with override = %d, want 2", got)
	}
}
