package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemCollector samples process/host resource usage on an interval and
// pushes the results into a Collector's runtime gauges.
type SystemCollector struct {
	metrics  *Collector
	interval time.Duration

	mu         sync.RWMutex
	cpuPercent float64

	stop chan struct{}
}

func NewSystemCollector(metrics *Collector, interval time.Duration) *SystemCollector {
	return &SystemCollector{
		metrics:  metrics,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run samples until Stop is called. Intended to run in its own goroutine,
// started once from cmd/simserver at startup.
func (sc *SystemCollector) Run() {
	sc.sample()
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sc.sample()
		case <-sc.stop:
			return
		}
	}
}

func (sc *SystemCollector) Stop() { close(sc.stop) }

func (sc *SystemCollector) sample() {
	sc.metrics.UpdateGoroutinesCount(runtime.NumGoroutine())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	sc.metrics.UpdateMemoryUsage(mem.HeapAlloc)

	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return
	}
	current := percents[0]

	sc.mu.Lock()
	if sc.cpuPercent == 0 {
		sc.cpuPercent = current
	} else {
		// Exponential moving average, smoothing over sampling spikes.
		const alpha = 0.3
		sc.cpuPercent = alpha*current + (1-alpha)*sc.cpuPercent
	}
	cur := sc.cpuPercent
	sc.mu.Unlock()

	sc.metrics.UpdateCPUUsage(cur)
}
