package metrics

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot holds process and system resource usage at one point in time
type Snapshot struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // Average CPU of this process since it started, per core
	RSSMB             float64
	PeakRSSMB         float64
	MemoryPercent     float64 // System memory in use
	Goroutines        int
	Elapsed           time.Duration
	Timestamp         time.Time
}

// Collector samples resource usage of the running command
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
	start    time.Time

	mu      sync.Mutex
	peakRSS float64
	last    *Snapshot
}

// NewCollector creates a collector; interval applies to Start
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	// Get handle to current process for CPU and memory tracking
	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		start:    time.Now(),
	}
}

// Start samples periodically at debug level until ctx is cancelled.
// Sampling keeps the peak RSS accurate for long commands.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			s := c.Collect()
			c.logger.Debug("Resource usage",
				zap.String("rss", formatMB(s.RSSMB)),
				zap.Float64("proc_cpu", s.ProcessCPUPercent))
		}
	}
}

// Last returns the most recent snapshot, or nil before the first Collect
func (c *Collector) Last() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Collect takes a snapshot now
func (c *Collector) Collect() *Snapshot {
	s := &Snapshot{
		Goroutines: runtime.NumGoroutine(),
		Elapsed:    time.Since(c.start),
		Timestamp:  time.Now(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}

	if c.proc != nil {
		if procCPU, err := c.proc.CPUPercent(); err == nil {
			s.ProcessCPUPercent = procCPU
		}
		if mi, err := c.proc.MemoryInfo(); err == nil {
			s.RSSMB = float64(mi.RSS) / (1024 * 1024)
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
	}

	c.mu.Lock()
	if s.RSSMB > c.peakRSS {
		c.peakRSS = s.RSSMB
	}
	s.PeakRSSMB = c.peakRSS
	c.last = s
	c.mu.Unlock()

	return s
}

// LogSummary collects a final snapshot and logs it
func (c *Collector) LogSummary(command string) {
	s := c.Collect()
	c.logger.Info("Resource summary",
		zap.String("command", command),
		zap.Duration("elapsed", s.Elapsed),
		zap.Float64("sys_cpu", s.CPUPercent),
		zap.Float64("proc_cpu", s.ProcessCPUPercent),
		zap.String("rss", formatMB(s.RSSMB)),
		zap.String("peak_rss", formatMB(s.PeakRSSMB)),
		zap.Float64("mem_pct", s.MemoryPercent),
		zap.Int("goroutines", s.Goroutines),
	)
}

// formatMB formats megabytes with one decimal place
func formatMB(mb float64) string {
	if mb < 0.1 {
		return "0.0 MB"
	}
	return strconv.FormatFloat(mb, 'f', 1, 64) + " MB"
}
