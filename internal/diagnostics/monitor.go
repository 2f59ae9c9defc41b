// Package diagnostics provides resource monitoring used to gate subprocess
// spawning. A machine already out of memory or disk makes subagent failures
// look like backend bugs; the preflight surfaces the real cause first.
package diagnostics

import (
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot captures system resource usage at a point in time.
type ResourceSnapshot struct {
	Timestamp         time.Time
	MemoryFreeMB      uint64
	MemoryUsedPercent float64
	DiskFreeMB        uint64
	DiskUsedPercent   float64
}

// ResourceMonitor samples memory and disk state.
type ResourceMonitor struct {
	diskPath string
}

// NewResourceMonitor creates a monitor sampling disk usage at the given
// path (typically the project directory).
func NewResourceMonitor(diskPath string) *ResourceMonitor {
	if diskPath == "" {
		diskPath = "/"
	}
	return &ResourceMonitor{diskPath: diskPath}
}

// TakeSnapshot samples current resource usage. Probe failures leave the
// corresponding fields zero rather than failing the snapshot.
func (m *ResourceMonitor) TakeSnapshot() ResourceSnapshot {
	snap := ResourceSnapshot{Timestamp: time.Now()}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryFreeMB = vm.Available / (1024 * 1024)
		snap.MemoryUsedPercent = vm.UsedPercent
	}
	if du, err := disk.Usage(m.diskPath); err == nil {
		snap.DiskFreeMB = du.Free / (1024 * 1024)
		snap.DiskUsedPercent = du.UsedPercent
	}
	return snap
}
