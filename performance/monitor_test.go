// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package performance

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/logger"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSampler struct {
	sample model.SystemMetrics
}

func (s staticSampler) Sample() model.SystemMetrics {
	sm := s.sample
	sm.Timestamp = time.Now()
	return sm
}

func newTestLogger(t *testing.T) *mlog.Logger {
	t.Helper()
	log, err := logger.New(&logger.Settings{})
	require.NoError(t, err)
	return log
}

func TestNewMonitor(t *testing.T) {
	_, err := NewMonitor(MonitorConfig{UpdateIntervalMs: 100}, nil, nil)
	require.EqualError(t, err, "logger should not be nil")

	_, err = NewMonitor(MonitorConfig{UpdateIntervalMs: 10}, nil, newTestLogger(t))
	require.ErrorContains(t, err, "UpdateIntervalMs cannot be less than 100")

	_, err = NewMonitor(MonitorConfig{UpdateIntervalMs: 100, ProbeURL: "localhost"}, nil, newTestLogger(t))
	require.ErrorContains(t, err, "ProbeURL is not a valid URL")

	m, err := NewMonitor(MonitorConfig{UpdateIntervalMs: 100}, nil, newTestLogger(t))
	require.NoError(t, err)
	require.IsType(t, &RuntimeSampler{}, m.sampler)
}

func TestMonitorSubscribe(t *testing.T) {
	sampler := staticSampler{sample: model.SystemMetrics{CPUUsagePercent: 42, MemoryUsagePercent: 17, NetworkLatencyMs: 3}}
	m, err := NewMonitor(MonitorConfig{UpdateIntervalMs: 100}, sampler, newTestLogger(t))
	require.NoError(t, err)
	metrics := NewMetrics()
	m.SetMetrics(metrics.EngineMetrics())

	var mut sync.Mutex
	received := map[string]int{}
	subscriber := func(id string) func(model.SystemMetrics) {
		return func(sm model.SystemMetrics) {
			mut.Lock()
			defer mut.Unlock()
			received[id]++
			assert.Equal(t, 42.0, sm.CPUUsagePercent)
		}
	}
	m.Subscribe("a", subscriber("a"))
	m.Subscribe("b", subscriber("b"))

	require.False(t, m.IsRunning())
	m.Start()
	m.Start()
	require.True(t, m.IsRunning())

	require.Eventually(t, func() bool {
		mut.Lock()
		defer mut.Unlock()
		return received["a"] >= 2 && received["b"] >= 2
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, 1, m.Unsubscribe("a"))
	require.Equal(t, 0, m.Unsubscribe("b"))
	require.Equal(t, 42.0, testutil.ToFloat64(metrics.EngineMetrics().CPUUsagePercent))
	require.Equal(t, 17.0, testutil.ToFloat64(metrics.EngineMetrics().MemoryUsagePercent))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.EngineMetrics().NetworkLatencyMs))

	m.Stop()
	m.Stop()
	require.False(t, m.IsRunning())

	// A stopped monitor can be restarted.
	m.Start()
	require.True(t, m.IsRunning())
	m.Stop()
}

func TestRuntimeSampler(t *testing.T) {
	s := NewRuntimeSampler("", time.Second)
	first := s.Sample()
	require.False(t, first.Timestamp.IsZero())
	require.Positive(t, first.Goroutines)
	require.Zero(t, first.CPUUsagePercent)
	require.Zero(t, first.NetworkLatencyMs)
	require.Nil(t, first.BatteryLevel)
	require.Nil(t, first.TemperatureC)

	second := s.Sample()
	require.GreaterOrEqual(t, second.CPUUsagePercent, 0.0)
	require.LessOrEqual(t, second.CPUUsagePercent, 100.0)
	require.GreaterOrEqual(t, second.MemoryUsagePercent, 0.0)
	require.LessOrEqual(t, second.MemoryUsagePercent, 100.0)

	t.Run("probe", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sm := NewRuntimeSampler(server.URL, time.Second).Sample()
		require.GreaterOrEqual(t, sm.NetworkLatencyMs, 0.0)

		server.Close()
		sm = NewRuntimeSampler(server.URL, time.Second).Sample()
		require.Equal(t, -1.0, sm.NetworkLatencyMs)
	})
}

func TestRuntimeSamplerMemory(t *testing.T) {
	const ceiling = 1 << 30

	s := NewRuntimeSampler("", time.Second)
	s.memCeiling = func() uint64 { return ceiling }

	// A large live heap is measured against the memory available to the
	// process, not against what the runtime mapped.
	buf := make([]byte, 200<<20)
	for i := 0; i < len(buf); i += 4096 {
		buf[i] = 1
	}
	sm := s.Sample()
	runtime.KeepAlive(buf)

	require.Greater(t, sm.MemoryUsagePercent, 15.0)
	require.Less(t, sm.MemoryUsagePercent, 60.0)

	s.memCeiling = func() uint64 { return 0 }
	require.Zero(t, s.Sample().MemoryUsagePercent)
}

func TestRuntimeSamplerMemoryFallback(t *testing.T) {
	s := NewRuntimeSampler("", time.Second)
	s.procFS = nil
	require.Equal(t, uint64(300), s.memoryUsed(500, 200))
	require.Zero(t, s.memoryUsed(100, 200))
}

func TestParseCgroupMemoryMax(t *testing.T) {
	testCases := []struct {
		data     string
		expected uint64
		ok       bool
	}{
		{"max\n", 0, false},
		{"", 0, false},
		{"0", 0, false},
		{"invalid", 0, false},
		{"536870912\n", 536870912, true},
	}
	for _, tc := range testCases {
		v, ok := parseCgroupMemoryMax(tc.data)
		assert.Equal(t, tc.ok, ok, tc.data)
		assert.Equal(t, tc.expected, v, tc.data)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.EngineMetrics().RunsStarted.Inc()
	m.ExecutorMetrics().StepTimes.WithLabelValues("wait").Observe(0.1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "loadtest_engine_runs_started_total 1")
	require.Contains(t, rec.Body.String(), `loadtest_step_duration_seconds_count{action="wait"} 1`)

	require.Equal(t, 1, mustGatherAndCount(t, m, "loadtest_engine_runs_started_total"))
}

func mustGatherAndCount(t *testing.T, m *Metrics, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), name)
	require.NoError(t, err)
	return n
}
