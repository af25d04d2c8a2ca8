package ratelimit

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/config"
)

// HealthSampler reports process/system health, sampled at most every
// SampleInterval (§4.D). It is defined as a small interface (§9
// externalization strategy) so a containerized multi-node deployment can
// swap in a cgroup-aware or centrally-reported sampler.
type HealthSampler interface {
	Sample() (Health, error)
}

// Health is one process-health observation.
type Health struct {
	ResidentMemoryMB int64
	FreeSystemMemMB  int64
	LoadPerCPU       float64
}

// OverloadGuard samples health at most once per SampleInterval and sheds
// heavy routes when any configured ceiling is exceeded (§4.D).
type OverloadGuard struct {
	sampler HealthSampler
	cfg     config.OverloadConfig

	mu       sync.Mutex
	lastAt   time.Time
	lastOK   bool
	lastHealth Health
}

func NewOverloadGuard(sampler HealthSampler, cfg config.OverloadConfig) *OverloadGuard {
	return &OverloadGuard{sampler: sampler, cfg: cfg}
}

// HeavyRoutes are the §4.D routes subject to shedding. Light routes
// (presence, health) are always served regardless of overload state.
var HeavyRoutes = map[string]bool{
	"upload_init": true,
	"presigned":   true,
	"invite":      true,
	"admin":       true,
	"activity":    true,
}

// Check returns a 503 apierr.Error with Retry-After if routeClass is a heavy
// route and the process is currently overloaded.
func (g *OverloadGuard) Check(routeClass string) error {
	if !HeavyRoutes[routeClass] {
		return nil
	}
	if g.isOverloaded() {
		return apierr.Overloadedf("server is under load, please retry shortly", 5)
	}
	return nil
}

func (g *OverloadGuard) isOverloaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if time.Since(g.lastAt) < g.cfg.SampleInterval {
		return !g.lastOK
	}

	h, err := g.sampler.Sample()
	g.lastAt = time.Now()
	if err != nil {
		// Sampling failures never fail the request (§7 enrichment policy
		// applies equally to health sampling — it is advisory, not canonical).
		g.lastOK = true
		return false
	}
	g.lastHealth = h

	overloaded := h.ResidentMemoryMB > g.cfg.MaxRSSMB ||
		h.FreeSystemMemMB < g.cfg.MinFreeMemMB ||
		h.LoadPerCPU > g.cfg.MaxLoadPerCPU
	g.lastOK = !overloaded
	return overloaded
}

// ProcSampler is a Linux /proc-based HealthSampler: RSS from
// /proc/self/status, free memory from /proc/meminfo, 1-minute load average
// from /proc/loadavg divided by runtime.NumCPU().
type ProcSampler struct{}

func (ProcSampler) Sample() (Health, error) {
	rss, err := readRSSMB()
	if err != nil {
		return Health{}, err
	}
	free, err := readFreeMemMB()
	if err != nil {
		return Health{}, err
	}
	load, err := readLoad1()
	if err != nil {
		return Health{}, err
	}
	cpus := runtime.NumCPU()
	if cpus < 1 {
		cpus = 1
	}
	return Health{
		ResidentMemoryMB: rss,
		FreeSystemMemMB:  free,
		LoadPerCPU:       load / float64(cpus),
	}, nil
}

func readRSSMB() (int64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					return 0, err
				}
				return kb / 1024, nil
			}
		}
	}
	return 0, fmt.Errorf("VmRSS not found")
}

func readFreeMemMB() (int64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemAvailable:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					return 0, err
				}
				return kb / 1024, nil
			}
		}
	}
	return 0, fmt.Errorf("MemAvailable not found")
}

func readLoad1() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	return strconv.ParseFloat(fields[0], 64)
}
