// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package performance

import (
	"context"
	"io"
	"math"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/prometheus/procfs"
)

const (
	metricCPUIdle     = "/cpu/classes/idle:cpu-seconds"
	metricCPUTotal    = "/cpu/classes/total:cpu-seconds"
	metricHeapFree    = "/memory/classes/heap/released:bytes"
	metricMemoryTotal = "/memory/classes/total:bytes"
)

const cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// RuntimeSampler derives process-level CPU usage from the Go runtime and
// memory usage from the resident set size measured against the memory
// available to the process. It optionally probes a URL for network latency.
// Battery and temperature are not available and are left unset.
type RuntimeSampler struct {
	probeURL  string
	client    *http.Client
	mut       sync.Mutex
	samples   []metrics.Sample
	lastIdle  float64
	lastTotal float64
	// memCeiling returns the memory available to the process in bytes, or 0
	// if unknown.
	memCeiling func() uint64
	procFS     *procfs.FS
	physical   uint64
}

// NewRuntimeSampler returns a RuntimeSampler. An empty probeURL disables the
// latency probe.
func NewRuntimeSampler(probeURL string, probeTimeout time.Duration) *RuntimeSampler {
	s := &RuntimeSampler{
		probeURL: probeURL,
		client:   &http.Client{Timeout: probeTimeout},
		samples: []metrics.Sample{
			{Name: metricCPUIdle},
			{Name: metricCPUTotal},
			{Name: metricHeapFree},
			{Name: metricMemoryTotal},
		},
	}
	if fs, err := procfs.NewDefaultFS(); err == nil {
		s.procFS = &fs
		if mi, err := fs.Meminfo(); err == nil && mi.MemTotal != nil {
			s.physical = *mi.MemTotal * 1024
		}
	}
	s.memCeiling = s.defaultMemCeiling
	return s
}

// defaultMemCeiling returns the Go memory limit if one is set, then the
// cgroup limit, then the physical memory of the host.
func (s *RuntimeSampler) defaultMemCeiling() uint64 {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		return uint64(limit)
	}
	if data, err := os.ReadFile(cgroupMemoryMax); err == nil {
		if limit, ok := parseCgroupMemoryMax(string(data)); ok {
			if s.physical > 0 && s.physical < limit {
				return s.physical
			}
			return limit
		}
	}
	return s.physical
}

// parseCgroupMemoryMax parses the content of a cgroup v2 memory.max file.
// It returns false when no limit is set.
func parseCgroupMemoryMax(data string) (uint64, bool) {
	data = strings.TrimSpace(data)
	if data == "" || data == "max" {
		return 0, false
	}
	v, err := strconv.ParseUint(data, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// memoryUsed returns the resident set size of the process. It falls back to
// the memory the Go runtime holds from the OS where procfs is not available.
func (s *RuntimeSampler) memoryUsed(runtimeTotal, runtimeReleased uint64) uint64 {
	if s.procFS != nil {
		if p, err := s.procFS.Self(); err == nil {
			if stat, err := p.Stat(); err == nil && stat.ResidentMemory() > 0 {
				return uint64(stat.ResidentMemory())
			}
		}
	}
	if runtimeReleased > runtimeTotal {
		return 0
	}
	return runtimeTotal - runtimeReleased
}

func (s *RuntimeSampler) Sample() model.SystemMetrics {
	sm := model.SystemMetrics{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	s.mut.Lock()
	metrics.Read(s.samples)
	idle := float64Value(s.samples[0])
	total := float64Value(s.samples[1])
	released := uint64Value(s.samples[2])
	mem := uint64Value(s.samples[3])

	if dTotal := total - s.lastTotal; s.lastTotal > 0 && dTotal > 0 {
		sm.CPUUsagePercent = clamp((1-(idle-s.lastIdle)/dTotal)*100, 0, 100)
	}
	s.lastIdle, s.lastTotal = idle, total
	s.mut.Unlock()

	if ceiling := s.memCeiling(); ceiling > 0 {
		sm.MemoryUsagePercent = clamp(float64(s.memoryUsed(mem, released))/float64(ceiling)*100, 0, 100)
	}

	if s.probeURL != "" {
		sm.NetworkLatencyMs = s.probe()
	}

	return sm
}

// probe returns the round trip of a HEAD request in milliseconds, or -1 if
// it failed.
func (s *RuntimeSampler) probe() float64 {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodHead, s.probeURL, nil)
	if err != nil {
		return -1
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return -1
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func float64Value(s metrics.Sample) float64 {
	if s.Value.Kind() == metrics.KindFloat64 {
		return s.Value.Float64()
	}
	return 0
}

func uint64Value(s metrics.Sample) uint64 {
	if s.Value.Kind() == metrics.KindUint64 {
		return s.Value.Uint64()
	}
	return 0
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
