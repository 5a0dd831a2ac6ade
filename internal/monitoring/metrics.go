// Package monitoring reports process and system load so operators and
// the health endpoint can see whether the service has headroom for
// more jobs.
package monitoring

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemLoad is a point-in-time snapshot of host resource usage.
type SystemLoad struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	LoadAverage1  float64   `json:"load_average_1m"`
	SampledAt     time.Time `json:"sampled_at"`
}

// Collector samples host resource usage on demand.
type Collector struct{}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Sample(ctx context.Context) (*SystemLoad, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return nil, err
	}
	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	avg, err := load.AvgWithContext(ctx)
	var load1 float64
	if err == nil && avg != nil {
		load1 = avg.Load1
	}

	return &SystemLoad{
		CPUPercent:    cpuPct,
		MemoryPercent: vm.UsedPercent,
		LoadAverage1:  load1,
		SampledAt:     time.Now(),
	}, nil
}

// JobGauge tracks how many jobs are currently in flight against the
// global concurrency limit, for the health endpoint to report.
type JobGauge struct {
	Limit int
	InUse func() int
}
