// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package performance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// Sampler takes one SystemMetrics sample.
type Sampler interface {
	Sample() model.SystemMetrics
}

// Monitor samples system metrics on a fixed timer, independently of request
// traffic, and hands every sample to the current subscribers. A single
// Monitor is shared by all the runs of an engine.
type Monitor struct {
	config   MonitorConfig
	sampler  Sampler
	log      *mlog.Logger
	metrics  *EngineMetrics
	mut      sync.Mutex
	subs     map[string]func(model.SystemMetrics)
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewMonitor creates and initializes a new Monitor. When sampler is nil a
// RuntimeSampler is used.
func NewMonitor(config MonitorConfig, sampler Sampler, log *mlog.Logger) (*Monitor, error) {
	if log == nil {
		return nil, errors.New("logger should not be nil")
	}
	if err := config.IsValid(); err != nil {
		return nil, fmt.Errorf("could not validate configuration: %w", err)
	}
	if sampler == nil {
		sampler = NewRuntimeSampler(config.ProbeURL, time.Duration(config.ProbeTimeoutMs)*time.Millisecond)
	}
	return &Monitor{
		config:  config,
		sampler: sampler,
		log:     log,
		subs:    make(map[string]func(model.SystemMetrics)),
	}, nil
}

// SetMetrics makes the monitor export the last sample as gauges.
func (m *Monitor) SetMetrics(metrics *EngineMetrics) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.metrics = metrics
}

// Subscribe registers fn to receive samples under the given id.
func (m *Monitor) Subscribe(id string, fn func(model.SystemMetrics)) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.subs[id] = fn
}

// Unsubscribe removes a subscriber. It returns the number of subscribers
// left.
func (m *Monitor) Unsubscribe(id string) int {
	m.mut.Lock()
	defer m.mut.Unlock()
	delete(m.subs, id)
	return len(m.subs)
}

// IsRunning reports whether the sampling loop is active.
func (m *Monitor) IsRunning() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.running
}

// Start begins the sampling loop. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mut.Lock()
	defer m.mut.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	go m.run(m.stopChan, m.doneChan)
}

// Stop stops the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mut.Lock()
	if !m.running {
		m.mut.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.doneChan
	m.mut.Unlock()
	<-done
	m.log.Info("monitor: stopped")
}

func (m *Monitor) run(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)
	m.log.Info("monitor: started", mlog.Int("update_interval_ms", m.config.UpdateIntervalMs))

	ticker := time.NewTicker(time.Duration(m.config.UpdateIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			m.publish(m.sampler.Sample())
		}
	}
}

func (m *Monitor) publish(sample model.SystemMetrics) {
	m.mut.Lock()
	subs := make([]func(model.SystemMetrics), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	metrics := m.metrics
	m.mut.Unlock()

	if metrics != nil {
		metrics.CPUUsagePercent.Set(sample.CPUUsagePercent)
		metrics.MemoryUsagePercent.Set(sample.MemoryUsagePercent)
		metrics.NetworkLatencyMs.Set(sample.NetworkLatencyMs)
	}

	m.log.Debug("monitor: sampled",
		mlog.String("cpu", fmt.Sprintf("%.2f", sample.CPUUsagePercent)),
		mlog.String("memory", fmt.Sprintf("%.2f", sample.MemoryUsagePercent)),
		mlog.Int("subscribers", len(subs)),
	)

	for _, fn := range subs {
		fn(sample)
	}
}
