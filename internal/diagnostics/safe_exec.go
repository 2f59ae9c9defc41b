package diagnostics

import (
	"fmt"

	"github.com/relayforge/relay/internal/logging"
)

// Default thresholds below which spawning is refused or warned about.
const (
	DefaultMinFreeMemoryMB = 256
	DefaultMinFreeDiskMB   = 512
)

// PreflightResult contains the result of pre-spawn checks.
type PreflightResult struct {
	OK       bool
	Warnings []string
	Errors   []string
	Snapshot ResourceSnapshot
}

// SafeExecutor wraps subprocess spawning with resource safety checks.
type SafeExecutor struct {
	monitor         *ResourceMonitor
	logger          *logging.Logger
	minFreeMemoryMB uint64
	minFreeDiskMB   uint64
}

// NewSafeExecutor creates a safe executor with the given thresholds.
// Zero thresholds select the defaults.
func NewSafeExecutor(monitor *ResourceMonitor, logger *logging.Logger, minFreeMemoryMB, minFreeDiskMB uint64) *SafeExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if minFreeMemoryMB == 0 {
		minFreeMemoryMB = DefaultMinFreeMemoryMB
	}
	if minFreeDiskMB == 0 {
		minFreeDiskMB = DefaultMinFreeDiskMB
	}
	return &SafeExecutor{
		monitor:         monitor,
		logger:          logger,
		minFreeMemoryMB: minFreeMemoryMB,
		minFreeDiskMB:   minFreeDiskMB,
	}
}

// RunPreflight performs pre-spawn health checks. Hard failures (memory)
// block the spawn; disk pressure only warns, since scripts may not write
// anything.
func (e *SafeExecutor) RunPreflight() PreflightResult {
	result := PreflightResult{OK: true}
	if e.monitor == nil {
		return result
	}

	result.Snapshot = e.monitor.TakeSnapshot()

	if result.Snapshot.MemoryFreeMB > 0 && result.Snapshot.MemoryFreeMB < e.minFreeMemoryMB {
		result.OK = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("free memory %dMB below minimum %dMB",
				result.Snapshot.MemoryFreeMB, e.minFreeMemoryMB))
	}
	if result.Snapshot.DiskFreeMB > 0 && result.Snapshot.DiskFreeMB < e.minFreeDiskMB {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("free disk %dMB below minimum %dMB",
				result.Snapshot.DiskFreeMB, e.minFreeDiskMB))
	}

	if !result.OK {
		e.logger.Error("preflight failed", "errors", result.Errors)
	}
	return result
}
