// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"maps"
	"slices"
	"time"
)

// ErrorType classifies a LoadTestError.
type ErrorType string

// Available error types.
const (
	ErrorTimeout         ErrorType = "timeout"
	ErrorConnection      ErrorType = "connection_error"
	ErrorHTTP            ErrorType = "http_error"
	ErrorAssertionFailed ErrorType = "assertion_failed"
	ErrorSystem          ErrorType = "system_error"
)

// LoadTestError is an immutable record of a failure observed during a run.
type LoadTestError struct {
	Timestamp  time.Time         `json:"timestamp"`
	ScenarioID string            `json:"scenarioId,omitempty"`
	StepID     string            `json:"stepId,omitempty"`
	ErrorType  ErrorType         `json:"errorType"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

// AssertionResult is the outcome of evaluating one Assertion.
type AssertionResult struct {
	Timestamp time.Time       `json:"timestamp"`
	Target    AssertionTarget `json:"target"`
	Operator  Operator        `json:"operator"`
	Expected  float64         `json:"expected"`
	Actual    float64         `json:"actual"`
	Passed    bool            `json:"passed"`
}

// Stats holds the request counters and latency rollups shared by runs,
// scenarios and steps.
type Stats struct {
	TotalRequests         int64   `json:"totalRequests"`
	SuccessfulRequests    int64   `json:"successfulRequests"`
	FailedRequests        int64   `json:"failedRequests"`
	AverageResponseTimeMs float64 `json:"averageResponseTimeMs"`
	// MinResponseTimeMs is 0 until a sample was recorded.
	MinResponseTimeMs   float64 `json:"minResponseTimeMs"`
	MaxResponseTimeMs   float64 `json:"maxResponseTimeMs"`
	ErrorRatePercent    float64 `json:"errorRatePercent"`
	ThroughputPerSecond float64 `json:"throughputPerSecond"`
}

// StepResult is the per-step rollup nested in a ScenarioResult.
type StepResult struct {
	StepID           string            `json:"stepId"`
	StepName         string            `json:"stepName,omitempty"`
	Action           StepAction        `json:"action"`
	AssertionsPassed int64             `json:"assertionsPassed,omitempty"`
	AssertionsFailed int64             `json:"assertionsFailed,omitempty"`
	AssertionResults []AssertionResult `json:"assertionResults,omitempty"`
	Stats
}

// ScenarioResult is the per-scenario rollup nested in a LoadTestResult.
type ScenarioResult struct {
	ScenarioID      string       `json:"scenarioId"`
	ScenarioName    string       `json:"scenarioName"`
	Executions      int64        `json:"executions"`
	P50ResponseTime float64      `json:"p50ResponseTime"`
	P95ResponseTime float64      `json:"p95ResponseTime"`
	P99ResponseTime float64      `json:"p99ResponseTime"`
	StepResults     []StepResult `json:"stepResults"`
	Stats
}

// SystemMetrics is one sample of the host resource usage.
type SystemMetrics struct {
	Timestamp          time.Time `json:"timestamp"`
	CPUUsagePercent    float64   `json:"cpuUsage"`
	MemoryUsagePercent float64   `json:"memoryUsage"`
	NetworkLatencyMs   float64   `json:"networkLatency"`
	Goroutines         int       `json:"goroutines"`
	BatteryLevel       *float64  `json:"batteryLevel,omitempty"`
	TemperatureC       *float64  `json:"temperature,omitempty"`
}

// LoadTestMetric is a periodic snapshot of a run's aggregate counters.
type LoadTestMetric struct {
	Timestamp             time.Time `json:"timestamp"`
	ElapsedSeconds        float64   `json:"elapsedSeconds"`
	ActiveUsers           int       `json:"activeUsers"`
	TotalRequests         int64     `json:"totalRequests"`
	AverageResponseTimeMs float64   `json:"averageResponseTimeMs"`
	ErrorRatePercent      float64   `json:"errorRatePercent"`
	ThroughputPerSecond   float64   `json:"throughputPerSecond"`
}

// LoadTestResult is the aggregate of one run. It is owned by a single run
// and must not be mutated once EndTime is set.
type LoadTestResult struct {
	ID              string           `json:"id"`
	ConfigID        string           `json:"configId"`
	ConfigName      string           `json:"configName"`
	Status          Status           `json:"status"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         *time.Time       `json:"endTime,omitempty"`
	DurationMs      int64            `json:"duration"`
	P50ResponseTime float64          `json:"p50ResponseTime"`
	P95ResponseTime float64          `json:"p95ResponseTime"`
	P99ResponseTime float64          `json:"p99ResponseTime"`
	ScenarioResults []ScenarioResult `json:"scenarioResults"`
	Errors          []LoadTestError  `json:"errors"`
	SystemMetrics   []SystemMetrics  `json:"systemMetrics"`
	Metrics         []LoadTestMetric `json:"metrics"`
	SchemaVersion   string           `json:"schemaVersion,omitempty"`
	Stats
}

// ScenarioResult returns the rollup for the given scenario id, or nil.
func (r *LoadTestResult) ScenarioResult(id string) *ScenarioResult {
	for i := range r.ScenarioResults {
		if r.ScenarioResults[i].ScenarioID == id {
			return &r.ScenarioResults[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the result.
func (r *LoadTestResult) Clone() *LoadTestResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	c.ScenarioResults = make([]ScenarioResult, len(r.ScenarioResults))
	for i, sr := range r.ScenarioResults {
		c.ScenarioResults[i] = sr
		c.ScenarioResults[i].StepResults = make([]StepResult, len(sr.StepResults))
		for j, st := range sr.StepResults {
			c.ScenarioResults[i].StepResults[j] = st
			c.ScenarioResults[i].StepResults[j].AssertionResults = slices.Clone(st.AssertionResults)
		}
	}
	c.Errors = make([]LoadTestError, len(r.Errors))
	for i, e := range r.Errors {
		c.Errors[i] = e
		c.Errors[i].Details = maps.Clone(e.Details)
	}
	c.SystemMetrics = slices.Clone(r.SystemMetrics)
	c.Metrics = slices.Clone(r.Metrics)
	return &c
}
