// Package stats samples executor-level health: remaining system memory, CPU
// load, process heap, and the number of jobs currently running. Samples are
// cached behind an explicit TTL so callers can poll freely.
package stats

import (
	"bufio"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultTTL = time.Second

// ExecutorInfo is a point-in-time health snapshot of this executor process.
type ExecutorInfo struct {
	RemainingMemoryPercent float64   `json:"remaining_memory_percent"`
	RemainingMemoryKB      int64     `json:"remaining_memory_kb"`
	CPULoad1Min            float64   `json:"cpu_load_1min"`
	HeapAllocBytes         uint64    `json:"heap_alloc_bytes"`
	NumGoroutine           int       `json:"num_goroutine"`
	RunningJobs            int       `json:"running_jobs"`
	RefreshedAt            time.Time `json:"refreshed_at"`
}

type Collector struct {
	mu            sync.Mutex
	ttl           time.Duration
	lastRefreshed time.Time
	cached        ExecutorInfo

	runningJobs func() int
	logger      *slog.Logger
}

// NewCollector builds a collector with the given cache TTL. runningJobs may
// be nil when the caller has no job accounting to report.
func NewCollector(ttl time.Duration, runningJobs func() int, logger *slog.Logger) *Collector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{
		ttl:         ttl,
		runningJobs: runningJobs,
		logger:      logger.With("component", "stats-collector"),
	}
}

// Stats returns the cached snapshot, refreshing first when it is older than
// the TTL or when noCache forces a fresh sample.
func (c *Collector) Stats(noCache bool) ExecutorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if noCache || time.Since(c.lastRefreshed) > c.ttl {
		c.refreshLocked()
	}
	return c.cached
}

func (c *Collector) refreshLocked() {
	info := ExecutorInfo{
		NumGoroutine: runtime.NumGoroutine(),
		RefreshedAt:  time.Now(),
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	info.HeapAllocBytes = mem.HeapAlloc

	if c.runningJobs != nil {
		info.RunningJobs = c.runningJobs()
	}

	if totalKB, availableKB, ok := readMemInfo(); ok {
		info.RemainingMemoryKB = availableKB
		if totalKB > 0 {
			info.RemainingMemoryPercent = float64(availableKB) / float64(totalKB) * 100
		}
	}
	if load, ok := readLoadAvg(); ok {
		info.CPULoad1Min = load
	}

	c.cached = info
	c.lastRefreshed = info.RefreshedAt
}

// readMemInfo parses /proc/meminfo; it reports ok=false on platforms without
// procfs, leaving the memory fields zero.
func readMemInfo() (totalKB, availableKB int64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB = value
		case "MemAvailable:":
			availableKB = value
		}
	}
	return totalKB, availableKB, totalKB > 0
}

func readLoadAvg() (float64, bool) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return load, true
}
