package workers

import (
	"errors"
	"runtime"
	"testing"
)

type fakeHost struct {
	cpus   int
	cpuErr error
	avail  uint64
	memErr error
}

func (f fakeHost) LogicalCPUs() (int, error)        { return f.cpus, f.cpuErr }
func (f fakeHost) AvailableMemory() (uint64, error) { return f.avail, f.memErr }

func TestCount(t *testing.T) {
	const gib = uint64(1) << 30
	tests := []struct {
		name   string
		host   fakeHost
		sizing Sizing
		want   int
	}{
		{"half of eight", fakeHost{cpus: 8}, Sizing{Divisor: 2}, 4},
		{"rounds up", fakeHost{cpus: 7}, Sizing{Divisor: 2}, 4},
		{"single cpu", fakeHost{cpus: 1}, Sizing{Divisor: 4}, 1},
		{"zero divisor treated as one", fakeHost{cpus: 6}, Sizing{}, 6},
		{"override wins", fakeHost{cpus: 64}, Sizing{Divisor: 2, Override: 3}, 3},
		{"memory cap", fakeHost{cpus: 16, avail: 2 * gib}, Sizing{Divisor: 1, MemoryPerWorkerMiB: 512}, 4},
		{"memory cap never below one", fakeHost{cpus: 16, avail: gib / 4}, Sizing{Divisor: 1, MemoryPerWorkerMiB: 512}, 1},
		{"memory error ignored", fakeHost{cpus: 4, memErr: errors.New("no meminfo")}, Sizing{Divisor: 1, MemoryPerWorkerMiB: 512}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.host, tt.sizing); got != tt.want {
				t.Fatalf("Count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountFallsBackToGOMAXPROCS(t *testing.T) {
	got := Count(fakeHost{cpuErr: errors.New("unsupported")}, Sizing{Divisor: 1})
	if want := runtime.GOMAXPROCS(0); got != want {
		t.Fatalf("Count = %d, want %d", got, want)
	}
}
