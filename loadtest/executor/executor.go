// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/performance"
)

// Observation is what a step observed, handed to the next step of the same
// scenario execution so that assertions have something to look at.
type Observation struct {
	LatencyMs  float64
	StatusCode int
}

// Outcome is the result of executing a single step.
type Outcome struct {
	Latency    time.Duration
	Success    bool
	StatusCode int
	// Error is set when Success is false. Timestamp and ids are filled in by
	// the caller.
	Error     *model.LoadTestError
	Assertion *model.AssertionResult
}

// LatencyMs returns the latency in milliseconds.
func (o Outcome) LatencyMs() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

// Observation returns what the next step should observe.
func (o Outcome) Observation() Observation {
	return Observation{LatencyMs: o.LatencyMs(), StatusCode: o.StatusCode}
}

// Executor runs a single LoadTestStep.
type Executor interface {
	Execute(ctx context.Context, step *model.LoadTestStep, prev Observation) Outcome
}

// Config holds the information needed to create a StepExecutor.
type Config struct {
	// BaseURL is prepended to relative api_call endpoints.
	BaseURL string
	// Client issues api_call requests. A client sharing a tuned transport is
	// created when nil.
	Client *http.Client
	// Simulator provides the randomized stand-ins for user gestures.
	// Defaults to a RandomSimulator with a 100-300ms delay.
	Simulator Simulator
	// Metrics is optional.
	Metrics *performance.ExecutorMetrics
}

// StepExecutor is the default Executor implementation.
type StepExecutor struct {
	baseURL   string
	client    *http.Client
	simulator Simulator
	metrics   *performance.ExecutorMetrics
}

// New creates and initializes a new StepExecutor.
func New(cfg Config) *StepExecutor {
	e := &StepExecutor{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		client:    cfg.Client,
		simulator: cfg.Simulator,
		metrics:   cfg.Metrics,
	}
	if e.client == nil {
		e.client = &http.Client{Transport: NewTransport(DefaultMaxConns)}
	}
	if e.simulator == nil {
		e.simulator = NewRandomSimulator(100*time.Millisecond, 300*time.Millisecond)
	}
	return e
}

// Execute runs the step and reports its latency and outcome. It never
// panics on step-level failures; those are reported through the Outcome.
func (e *StepExecutor) Execute(ctx context.Context, step *model.LoadTestStep, prev Observation) Outcome {
	var out Outcome
	switch step.Action {
	case model.ActionAPICall:
		out = e.apiCall(ctx, step)
	case model.ActionWait:
		out = e.wait(ctx, step)
	case model.ActionAssertion:
		out = e.assert(step, prev)
	case model.ActionUIInteraction:
		out = e.uiInteraction(ctx, step)
	default:
		out = Outcome{
			Error: &model.LoadTestError{
				ErrorType: model.ErrorSystem,
				Message:   fmt.Sprintf("unknown step action %q", step.Action),
			},
		}
	}
	e.observeStep(step.Action, out)
	return out
}

func (e *StepExecutor) wait(ctx context.Context, step *model.LoadTestStep) Outcome {
	start := time.Now()
	_ = sleepContext(ctx, step.Timeout())
	return Outcome{Latency: time.Since(start), Success: true}
}

func (e *StepExecutor) uiInteraction(ctx context.Context, step *model.LoadTestStep) Outcome {
	start := time.Now()
	_ = sleepContext(ctx, e.simulator.InteractionDelay())
	out := Outcome{Latency: time.Since(start), Success: true}
	if e.simulator.ShouldFail(step.FailureRatePercent) {
		out.Success = false
		out.Error = &model.LoadTestError{
			ErrorType: model.ErrorConnection,
			Message:   "simulated interaction failure",
			Details:   map[string]string{"simulated": "true"},
		}
	}
	return out
}

func (e *StepExecutor) assert(step *model.LoadTestStep, prev Observation) Outcome {
	start := time.Now()
	a := step.Assertion

	var observed float64
	switch a.Target {
	case model.TargetStatusCode:
		observed = float64(prev.StatusCode)
	default:
		observed = prev.LatencyMs
	}

	res := &model.AssertionResult{
		Timestamp: start,
		Target:    a.Target,
		Operator:  a.Operator,
		Expected:  a.Value,
		Actual:    observed,
		Passed:    a.Evaluate(observed),
	}
	out := Outcome{Latency: time.Since(start), Success: res.Passed, Assertion: res}
	if !res.Passed {
		out.Error = &model.LoadTestError{
			ErrorType: model.ErrorAssertionFailed,
			Message:   fmt.Sprintf("assertion failed: %s %g %s %g", a.Target, observed, a.Operator, a.Value),
			Details: map[string]string{
				"target":   string(a.Target),
				"operator": string(a.Operator),
				"expected": fmt.Sprintf("%g", a.Value),
				"actual":   fmt.Sprintf("%g", observed),
			},
		}
	}
	return out
}

func (e *StepExecutor) observeStep(action model.StepAction, out Outcome) {
	if e.metrics == nil {
		return
	}
	e.metrics.StepTimes.WithLabelValues(string(action)).Observe(out.Latency.Seconds())
	if out.Error != nil {
		e.metrics.StepErrors.WithLabelValues(string(action), string(out.Error.ErrorType)).Inc()
	}
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep is exported for the scenario runner's think time.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepContext(ctx, d)
}

// ensure StepExecutor implements Executor interface
var _ Executor = (*StepExecutor)(nil)
