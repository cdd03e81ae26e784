package observability

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ResourceMonitor samples resource usage of the current process relative
// to when it was created
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	Elapsed               time.Duration
	CPUPercent            float64
	MemoryRSS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
}

// NewResourceMonitor creates a resource monitor for this process
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect process: %w", err)
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm, nil
}

// Usage returns current resource usage. Values the platform cannot report
// are left zero.
func (rm *ResourceMonitor) Usage() *ResourceUsage {
	usage := &ResourceUsage{
		Elapsed:        time.Since(rm.startTime),
		GoroutineCount: runtime.NumGoroutine(),
	}

	if cpuTime, err := rm.process.Times(); err == nil && usage.Elapsed > 0 {
		usage.CPUPercent = (cpuTime.Total() - rm.startCPUTime) / usage.Elapsed.Seconds() * 100
	}
	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}
	return usage
}

// Fields renders the usage as log fields
func (u *ResourceUsage) Fields() []zap.Field {
	return []zap.Field{
		zap.Duration("elapsed", u.Elapsed),
		zap.Float64("cpu_percent", u.CPUPercent),
		zap.Uint64("memory_rss_bytes", u.MemoryRSS),
		zap.Float64("system_memory_percent", u.SystemMemoryPercent),
		zap.Int("goroutines", u.GoroutineCount),
	}
}
