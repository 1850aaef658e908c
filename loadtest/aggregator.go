// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"math"
	"sync"
	"time"

	"github.com/mattermost/ltengine/loadtest/executor"
	"github.com/mattermost/ltengine/loadtest/model"
)

// counters are the running statistics shared by runs, scenarios and steps.
type counters struct {
	total   int64
	success int64
	failed  int64
	sumMs   float64
	minMs   float64
	maxMs   float64
}

func newCounters() counters {
	return counters{minMs: math.Inf(1)}
}

func (c *counters) record(latencyMs float64, success bool) {
	c.total++
	if success {
		c.success++
	} else {
		c.failed++
	}
	c.sumMs += latencyMs
	c.minMs = min(c.minMs, latencyMs)
	c.maxMs = max(c.maxMs, latencyMs)
}

func (c *counters) stats(elapsed time.Duration) model.Stats {
	s := model.Stats{
		TotalRequests:      c.total,
		SuccessfulRequests: c.success,
		FailedRequests:     c.failed,
		MaxResponseTimeMs:  c.maxMs,
	}
	if c.total > 0 {
		s.AverageResponseTimeMs = c.sumMs / float64(c.total)
		s.MinResponseTimeMs = c.minMs
		s.ErrorRatePercent = float64(c.failed) / float64(c.total) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.ThroughputPerSecond = float64(c.total) / secs
	}
	return s
}

type stepAggregate struct {
	id         string
	name       string
	action     model.StepAction
	counters   counters
	passed     int64
	failed     int64
	assertions []model.AssertionResult
}

type scenarioAggregate struct {
	id         string
	name       string
	executions int64
	counters   counters
	samples    []float64
	steps      []*stepAggregate
	stepIdx    map[string]*stepAggregate
}

// aggregator is the arena owning the LoadTestResult of a single run. It is
// the only place where the result is mutated and every access goes through
// its lock. Once sealed, further updates are discarded.
type aggregator struct {
	mut         sync.Mutex
	limits      SchedulerConfiguration
	result      model.LoadTestResult
	counters    counters
	samples     []float64
	scenarios   []*scenarioAggregate
	scenarioIdx map[string]*scenarioAggregate
	sealed      bool
	final       *model.LoadTestResult
}

func newAggregator(id string, cfg *model.LoadTestConfig, start time.Time, limits SchedulerConfiguration) *aggregator {
	a := &aggregator{
		limits: limits,
		result: model.LoadTestResult{
			ID:            id,
			ConfigID:      cfg.ID,
			ConfigName:    cfg.Name,
			Status:        model.StatusRunning,
			StartTime:     start,
			SchemaVersion: model.SchemaVersion.String(),
		},
		counters:    newCounters(),
		scenarioIdx: make(map[string]*scenarioAggregate, len(cfg.Scenarios)),
	}
	for _, sc := range cfg.Scenarios {
		sa := &scenarioAggregate{
			id:       sc.ID,
			name:     sc.Name,
			counters: newCounters(),
			stepIdx:  make(map[string]*stepAggregate, len(sc.Steps)),
		}
		for _, st := range sc.Steps {
			sta := &stepAggregate{
				id:       st.ID,
				name:     st.Name,
				action:   st.Action,
				counters: newCounters(),
			}
			sa.steps = append(sa.steps, sta)
			sa.stepIdx[st.ID] = sta
		}
		a.scenarios = append(a.scenarios, sa)
		a.scenarioIdx[sc.ID] = sa
	}
	return a
}

// recordExecution counts one dispatched execution of the given scenario.
func (a *aggregator) recordExecution(scenarioID string) bool {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return false
	}
	if sa := a.scenarioIdx[scenarioID]; sa != nil {
		sa.executions++
	}
	return true
}

// recordStep appends one latency sample for the given step, and the error
// and assertion outcome when present. It reports whether the sample was
// accepted.
func (a *aggregator) recordStep(scenarioID, stepID string, out executor.Outcome, now time.Time) bool {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return false
	}

	sa := a.scenarioIdx[scenarioID]
	if sa == nil {
		return false
	}
	sta := sa.stepIdx[stepID]
	if sta == nil {
		return false
	}

	latency := out.LatencyMs()
	sta.counters.record(latency, out.Success)
	sa.counters.record(latency, out.Success)
	a.counters.record(latency, out.Success)

	if len(a.samples) < a.limits.MaxLatencySamples {
		a.samples = append(a.samples, latency)
	}
	if len(sa.samples) < a.limits.MaxLatencySamples {
		sa.samples = append(sa.samples, latency)
	}

	if out.Assertion != nil {
		if out.Assertion.Passed {
			sta.passed++
		} else {
			sta.failed++
		}
		if len(sta.assertions) < a.limits.MaxAssertionResults {
			ar := *out.Assertion
			if ar.Timestamp.IsZero() {
				ar.Timestamp = now
			}
			sta.assertions = append(sta.assertions, ar)
		}
	}

	if !out.Success && out.Error != nil {
		e := *out.Error
		e.Timestamp = now
		e.ScenarioID = scenarioID
		e.StepID = stepID
		a.result.Errors = append(a.result.Errors, e)
	}
	return true
}

// recordError appends an error that isn't tied to a step sample.
func (a *aggregator) recordError(e model.LoadTestError) bool {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return false
	}
	a.result.Errors = append(a.result.Errors, e)
	return true
}

func (a *aggregator) addSystemMetrics(m model.SystemMetrics) {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return
	}
	if len(a.result.SystemMetrics) >= a.limits.MaxSystemSamples {
		a.result.SystemMetrics = a.result.SystemMetrics[1:]
	}
	a.result.SystemMetrics = append(a.result.SystemMetrics, m)
}

// addMetric appends a LoadTestMetric snapshot of the run counters.
func (a *aggregator) addMetric(activeUsers int, now time.Time) {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return
	}
	elapsed := now.Sub(a.result.StartTime)
	s := a.counters.stats(elapsed)
	a.result.Metrics = append(a.result.Metrics, model.LoadTestMetric{
		Timestamp:             now,
		ElapsedSeconds:        elapsed.Seconds(),
		ActiveUsers:           activeUsers,
		TotalRequests:         s.TotalRequests,
		AverageResponseTimeMs: s.AverageResponseTimeMs,
		ErrorRatePercent:      s.ErrorRatePercent,
		ThroughputPerSecond:   s.ThroughputPerSecond,
	})
}

func (a *aggregator) isSealed() bool {
	a.mut.Lock()
	defer a.mut.Unlock()
	return a.sealed
}

// snapshot returns a deep copy of the result as of now. For a sealed
// aggregator it returns a copy of the final result.
func (a *aggregator) snapshot(now time.Time) *model.LoadTestResult {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return a.final.Clone()
	}
	return a.build(now.Sub(a.result.StartTime))
}

// seal moves the result to the given terminal status and freezes it. It
// returns the final result and whether this call sealed it. Sealing an
// already sealed aggregator returns the existing final result.
func (a *aggregator) seal(status model.Status, end time.Time, sysErr *model.LoadTestError) (*model.LoadTestResult, bool) {
	a.mut.Lock()
	defer a.mut.Unlock()
	if a.sealed {
		return a.final.Clone(), false
	}
	if sysErr != nil {
		a.result.Errors = append(a.result.Errors, *sysErr)
	}
	elapsed := end.Sub(a.result.StartTime)
	a.result.Status = status
	a.result.EndTime = &end
	a.result.DurationMs = elapsed.Milliseconds()
	// A terminal run always reports a positive duration.
	if a.result.DurationMs <= 0 {
		a.result.DurationMs = 1
	}
	a.final = a.build(elapsed)
	a.sealed = true
	return a.final.Clone(), true
}

// build assembles a LoadTestResult from the current counters. The caller
// must hold the lock.
func (a *aggregator) build(elapsed time.Duration) *model.LoadTestResult {
	res := a.result.Clone()
	if res.EndTime == nil {
		res.DurationMs = elapsed.Milliseconds()
	}
	res.Stats = a.counters.stats(elapsed)
	res.P50ResponseTime, res.P95ResponseTime, res.P99ResponseTime = percentiles(a.samples)

	res.ScenarioResults = make([]model.ScenarioResult, 0, len(a.scenarios))
	for _, sa := range a.scenarios {
		sr := model.ScenarioResult{
			ScenarioID:   sa.id,
			ScenarioName: sa.name,
			Executions:   sa.executions,
			StepResults:  make([]model.StepResult, 0, len(sa.steps)),
			Stats:        sa.counters.stats(elapsed),
		}
		sr.P50ResponseTime, sr.P95ResponseTime, sr.P99ResponseTime = percentiles(sa.samples)
		for _, sta := range sa.steps {
			sr.StepResults = append(sr.StepResults, model.StepResult{
				StepID:           sta.id,
				StepName:         sta.name,
				Action:           sta.action,
				AssertionsPassed: sta.passed,
				AssertionsFailed: sta.failed,
				AssertionResults: append([]model.AssertionResult(nil), sta.assertions...),
				Stats:            sta.counters.stats(elapsed),
			})
		}
		res.ScenarioResults = append(res.ScenarioResults, sr)
	}
	if res.Errors == nil {
		res.Errors = []model.LoadTestError{}
	}
	if res.SystemMetrics == nil {
		res.SystemMetrics = []model.SystemMetrics{}
	}
	if res.Metrics == nil {
		res.Metrics = []model.LoadTestMetric{}
	}
	return res
}

// systemError builds a system_error record.
func systemError(now time.Time, msg string, details map[string]string) *model.LoadTestError {
	return &model.LoadTestError{
		Timestamp: now,
		ErrorType: model.ErrorSystem,
		Message:   msg,
		Details:   details,
	}
}
