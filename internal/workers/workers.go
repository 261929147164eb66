// Package workers sizes the transcode pool from the host's CPU and memory.
package workers

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host reports the resources a pool may use.
type Host interface {
	LogicalCPUs() (int, error)
	AvailableMemory() (uint64, error)
}

type systemHost struct{}

func (systemHost) LogicalCPUs() (int, error) {
	return cpu.Counts(true)
}

func (systemHost) AvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// System reads the current machine.
var System Host = systemHost{}

// Sizing controls Count.
type Sizing struct {
	// Divisor throttles the pool to a fraction of the logical CPUs, since
	// each worker drives an ffmpeg process that may itself be multi-threaded.
	Divisor int
	// MemoryPerWorkerMiB caps the pool by available memory when positive.
	MemoryPerWorkerMiB int
	// Override, when positive, is returned unchanged.
	Override int
}

// Count returns ceil(cpus / divisor), at least one, capped by available
// memory. CPU detection falls back to GOMAXPROCS when the host cannot be read.
func Count(host Host, s Sizing) int {
	if s.Override > 0 {
		return s.Override
	}
	if host == nil {
		host = System
	}
	cpus, err := host.LogicalCPUs()
	if err != nil || cpus < 1 {
		cpus = runtime.GOMAXPROCS(0)
	}
	divisor := max(s.Divisor, 1)
	workers := max((cpus+divisor-1)/divisor, 1)

	if s.MemoryPerWorkerMiB > 0 {
		if avail, err := host.AvailableMemory(); err == nil {
			byMemory := int(avail / (uint64(s.MemoryPerWorkerMiB) << 20))
			workers = min(workers, max(byMemory, 1))
		}
	}
	return workers
}
