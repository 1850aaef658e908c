// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mattermost/ltengine/loadtest/executor"
	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/logger"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/stretchr/testify/require"
)

// fakeExecutor sleeps for latency on every step and tracks how many steps
// run at the same time.
type fakeExecutor struct {
	latency time.Duration
	panics  bool

	calls       atomic.Int64
	running     atomic.Int64
	maxRunning  atomic.Int64
	mut         sync.Mutex
	observation []executor.Observation
}

func (f *fakeExecutor) Execute(ctx context.Context, step *model.LoadTestStep, prev executor.Observation) executor.Outcome {
	f.calls.Add(1)
	if f.panics {
		panic("executor exploded")
	}
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		cur := f.maxRunning.Load()
		if n <= cur || f.maxRunning.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mut.Lock()
	f.observation = append(f.observation, prev)
	f.mut.Unlock()

	start := time.Now()
	_ = executor.Sleep(ctx, f.latency)
	return executor.Outcome{Latency: time.Since(start), Success: true, StatusCode: 200}
}

func newTestLogger(t *testing.T) *mlog.Logger {
	t.Helper()
	log, err := logger.New(&logger.Settings{})
	require.NoError(t, err)
	return log
}

func runTestConfig(duration, users int, steps ...model.LoadTestStep) model.LoadTestConfig {
	if len(steps) == 0 {
		steps = []model.LoadTestStep{{ID: "s1", Action: model.ActionWait}}
	}
	return model.LoadTestConfig{
		ID:              "cfg",
		Name:            "run",
		DurationSeconds: duration,
		ConcurrentUsers: users,
		Scenarios: []model.LoadTestScenario{
			{ID: "sc1", Name: "only", Weight: 100, Steps: steps},
		},
	}
}

func newTestRun(t *testing.T, cfg model.LoadTestConfig, exec executor.Executor) *run {
	t.Helper()
	limits := newTestLimits(t)
	limits.TickIntervalMs = 5
	limits.MetricsIntervalMs = 50
	limits.DrainTimeoutMs = 2000
	return newRun(runParams{
		id:     "run",
		config: cfg,
		limits: limits,
		exec:   exec,
		log:    newTestLogger(t),
	}, time.Now())
}

func waitRun(t *testing.T, r *run) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.wait(ctx))
}

func TestRunCapacity(t *testing.T) {
	r := &run{config: model.LoadTestConfig{ConcurrentUsers: 11, RampUpSeconds: 10}}
	require.Equal(t, 1, r.capacity(0))
	require.Equal(t, 6, r.capacity(5*time.Second))
	require.Equal(t, 10, r.capacity(9999*time.Millisecond))
	require.Equal(t, 11, r.capacity(10*time.Second))
	require.Equal(t, 11, r.capacity(time.Minute))

	r.config.RampUpSeconds = 0
	require.Equal(t, 11, r.capacity(0))

	r.config.ConcurrentUsers = 1
	r.config.RampUpSeconds = 10
	require.Equal(t, 1, r.capacity(0))
}

func TestRunCompletes(t *testing.T) {
	exec := &fakeExecutor{latency: 20 * time.Millisecond}
	r := newTestRun(t, runTestConfig(1, 3), exec)
	r.launch()
	waitRun(t, r)

	res := r.snapshot()
	require.Equal(t, model.StatusCompleted, res.Status)
	require.NotNil(t, res.EndTime)
	require.GreaterOrEqual(t, res.DurationMs, int64(1000))
	require.Positive(t, res.TotalRequests)
	require.Equal(t, exec.calls.Load(), res.TotalRequests)
	require.Zero(t, res.FailedRequests)
	require.NotEmpty(t, res.Metrics)
	require.False(t, r.isActive())
}

func TestRunConcurrencyCap(t *testing.T) {
	exec := &fakeExecutor{latency: 100 * time.Millisecond}
	r := newTestRun(t, runTestConfig(1, 3), exec)
	r.launch()
	waitRun(t, r)

	require.LessOrEqual(t, exec.maxRunning.Load(), int64(3))
	require.Equal(t, int64(3), exec.maxRunning.Load())
}

func TestRunStepsInOrder(t *testing.T) {
	exec := &fakeExecutor{latency: 10 * time.Millisecond}
	cfg := runTestConfig(1, 1,
		model.LoadTestStep{ID: "s1", Action: model.ActionWait},
		model.LoadTestStep{ID: "s2", Action: model.ActionWait},
	)
	r := newTestRun(t, cfg, exec)
	r.launch()
	waitRun(t, r)

	res := r.snapshot()
	sc := res.ScenarioResult("sc1")
	require.NotNil(t, sc)
	// Every execution that completed ran both steps, the last one may have
	// been cut short.
	require.GreaterOrEqual(t, sc.StepResults[0].TotalRequests, sc.StepResults[1].TotalRequests)
	require.LessOrEqual(t, sc.StepResults[0].TotalRequests-sc.StepResults[1].TotalRequests, int64(1))

	// The second step observes the first one, the first step of an
	// execution observes nothing.
	exec.mut.Lock()
	defer exec.mut.Unlock()
	require.Equal(t, executor.Observation{}, exec.observation[0])
	require.Equal(t, 200, exec.observation[1].StatusCode)
	require.Positive(t, exec.observation[1].LatencyMs)
}

func TestRunStop(t *testing.T) {
	exec := &fakeExecutor{latency: 50 * time.Millisecond}
	r := newTestRun(t, runTestConfig(60, 2), exec)

	var finished atomic.Int32
	r.onFinish = func(_ *run, res *model.LoadTestResult) {
		finished.Add(1)
		require.Equal(t, model.StatusCancelled, res.Status)
	}
	r.launch()
	time.Sleep(200 * time.Millisecond)

	res := r.stop()
	require.Equal(t, model.StatusCancelled, res.Status)
	require.Positive(t, res.DurationMs)
	total := res.TotalRequests

	// Stopping again returns the same final result.
	again := r.stop()
	require.Equal(t, model.StatusCancelled, again.Status)
	require.Equal(t, total, again.TotalRequests)

	waitRun(t, r)
	require.Equal(t, int32(1), finished.Load())
	// Samples of the executions still in flight when stopping are discarded.
	require.Equal(t, total, r.snapshot().TotalRequests)
}

func TestRunPanicFails(t *testing.T) {
	exec := &fakeExecutor{panics: true}
	r := newTestRun(t, runTestConfig(5, 1), exec)
	r.launch()
	waitRun(t, r)

	res := r.snapshot()
	require.Equal(t, model.StatusFailed, res.Status)
	require.NotEmpty(t, res.Errors)
	sysErr := res.Errors[len(res.Errors)-1]
	require.Equal(t, model.ErrorSystem, sysErr.ErrorType)
	require.Contains(t, sysErr.Message, "executor exploded")
	require.Equal(t, "sc1", sysErr.Details["scenarioId"])
	require.Equal(t, "s1", sysErr.Details["stepId"])
	require.NotEmpty(t, sysErr.Details["stack"])
}

func TestRunSubscribe(t *testing.T) {
	exec := &fakeExecutor{latency: 10 * time.Millisecond}
	r := newTestRun(t, runTestConfig(1, 1), exec)
	ch, unsubscribe := r.subscribe()
	defer unsubscribe()
	r.launch()

	var last *model.LoadTestResult
	timeout := time.After(10 * time.Second)
	for done := false; !done; {
		select {
		case res, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = res
		case <-timeout:
			require.FailNow(t, "timed out waiting for the stream to end")
		}
	}
	require.NotNil(t, last)
	require.Equal(t, model.StatusCompleted, last.Status)

	// Subscribing after the end yields the final result only.
	ch, _ = r.subscribe()
	res, ok := <-ch
	require.True(t, ok)
	require.Equal(t, model.StatusCompleted, res.Status)
	_, ok = <-ch
	require.False(t, ok)
}

// blockingExecutor blocks until ctx is done and reports a connection error,
// the way an api_call does when its request is cancelled.
type blockingExecutor struct{}

func (blockingExecutor) Execute(ctx context.Context, _ *model.LoadTestStep, _ executor.Observation) executor.Outcome {
	<-ctx.Done()
	return executor.Outcome{
		Error: &model.LoadTestError{ErrorType: model.ErrorConnection, Message: ctx.Err().Error()},
	}
}

func TestRunDrainTimeoutDiscardsCancelledExecutions(t *testing.T) {
	r := newTestRun(t, runTestConfig(1, 1), blockingExecutor{})
	r.limits.DrainTimeoutMs = 100
	r.launch()
	waitRun(t, r)

	res := r.snapshot()
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Zero(t, res.TotalRequests)
	require.Zero(t, res.FailedRequests)
	require.Zero(t, res.ErrorRatePercent)
	require.Empty(t, res.Errors)
}

func TestRunStopWhileDraining(t *testing.T) {
	exec := &fakeExecutor{latency: 5 * time.Second}
	r := newTestRun(t, runTestConfig(1, 1), exec)
	r.limits.DrainTimeoutMs = 30000
	r.launch()

	require.Eventually(t, r.draining.Load, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	res := r.stop()
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.GreaterOrEqual(t, res.DurationMs, int64(1000))

	waitRun(t, r)
	require.Equal(t, model.StatusCompleted, r.snapshot().Status)
}

func TestRunSubscribeLastValueIsFinal(t *testing.T) {
	for range 50 {
		r := newTestRun(t, runTestConfig(60, 1), &fakeExecutor{})
		ch, unsubscribe := r.subscribe()

		stale := r.snapshot()
		require.Equal(t, model.StatusRunning, stale.Status)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range 100 {
				r.publish(stale)
			}
		}()
		r.finish(model.StatusCompleted, nil)
		<-done

		var last *model.LoadTestResult
		for res := range ch {
			last = res
		}
		require.NotNil(t, last)
		require.Equal(t, model.StatusCompleted, last.Status)
		unsubscribe()
	}
}
