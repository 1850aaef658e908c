// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattermost/ltengine/loadtest/executor"
	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/performance"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"golang.org/x/time/rate"
)

// run is one execution of a LoadTestConfig. It owns its aggregator and its
// scheduling loop and shares nothing mutable with other runs.
type run struct {
	id      string
	start   time.Time
	config  model.LoadTestConfig
	limits  SchedulerConfiguration
	agg     *aggregator
	runner  *scenarioRunner
	log     *mlog.Logger
	metrics *performance.EngineMetrics
	rnd     func() float64
	// onFinish is called exactly once, right after the result is sealed.
	onFinish func(r *run, res *model.LoadTestResult)

	stopOnce sync.Once
	stopChan chan struct{}
	// execCtx is handed to scenario executions. It is only cancelled when
	// draining is cut short or the engine shuts down. Outcomes of cancelled
	// executions are not recorded.
	execCtx    context.Context
	execCancel context.CancelFunc

	wg       sync.WaitGroup
	inflight atomic.Int64
	draining atomic.Bool
	loopDone chan struct{}
	drained  chan struct{}

	subsMut sync.Mutex
	subs    map[chan *model.LoadTestResult]struct{}
}

type runParams struct {
	id       string
	config   model.LoadTestConfig
	limits   SchedulerConfiguration
	exec     executor.Executor
	log      *mlog.Logger
	metrics  *performance.EngineMetrics
	rnd      func() float64
	onFinish func(r *run, res *model.LoadTestResult)
}

func newRun(p runParams, start time.Time) *run {
	r := &run{
		id:       p.id,
		start:    start,
		config:   p.config,
		limits:   p.limits,
		agg:      newAggregator(p.id, &p.config, start, p.limits),
		log:      p.log,
		metrics:  p.metrics,
		rnd:      p.rnd,
		onFinish: p.onFinish,
		stopChan: make(chan struct{}),
		loopDone: make(chan struct{}),
		drained:  make(chan struct{}),
		subs:     make(map[chan *model.LoadTestResult]struct{}),
	}
	if r.rnd == nil {
		r.rnd = rand.Float64
	}
	r.execCtx, r.execCancel = context.WithCancel(context.Background())
	r.runner = &scenarioRunner{
		exec: p.exec,
		agg:  r.agg,
		fail: r.fail,
	}
	return r
}

// launch starts the scheduling loop and the metrics collector.
func (r *run) launch() {
	go r.loop()
	go r.collect()
	go func() {
		<-r.loopDone
		r.wg.Wait()
		r.execCancel()
		close(r.drained)
	}()
}

// loop is the scheduling loop. It runs until the configured duration
// elapses or the run is stopped.
func (r *run) loop() {
	defer close(r.loopDone)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("scheduler: loop panicked", mlog.String("test_id", r.id), mlog.String("panic", fmt.Sprint(p)))
			r.fail(systemError(time.Now(), fmt.Sprintf("scheduling loop panicked: %v", p), map[string]string{
				"stack": string(debug.Stack()),
			}))
		}
	}()

	deadline := r.start.Add(r.config.Duration())
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	go func() {
		select {
		case <-r.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	limiter := rate.NewLimiter(rate.Every(r.limits.tickInterval()), 1)
	r.log.Info("scheduler: started", mlog.String("test_id", r.id), mlog.String("config_id", r.config.ID),
		mlog.Int("duration_s", r.config.DurationSeconds), mlog.Int("concurrent_users", r.config.ConcurrentUsers))

	for {
		if r.isStopped() {
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the next tick would fall past the
			// deadline.
			<-ctx.Done()
			break
		}
		now := time.Now()
		if !now.Before(deadline) {
			break
		}
		r.tick(now.Sub(r.start))
	}

	if r.isStopped() {
		return
	}
	r.draining.Store(true)
	r.drainAndComplete()
}

// tick runs one scheduling pass.
func (r *run) tick(elapsed time.Duration) {
	limit := r.capacity(elapsed)
	for _, idx := range selectScenarios(r.config.SelectionMode, r.config.Scenarios, r.rnd) {
		if r.isStopped() {
			return
		}
		if r.inflight.Load() >= int64(limit) {
			return
		}
		r.dispatch(&r.config.Scenarios[idx])
	}
}

// capacity returns how many executions may be in flight after elapsed.
// During the ramp-up the limit grows linearly from 1 to ConcurrentUsers.
func (r *run) capacity(elapsed time.Duration) int {
	users := r.config.ConcurrentUsers
	rampUp := time.Duration(r.config.RampUpSeconds) * time.Second
	if rampUp <= 0 || elapsed >= rampUp || users <= 1 {
		return users
	}
	return 1 + int(float64(users-1)*elapsed.Seconds()/rampUp.Seconds())
}

func (r *run) dispatch(sc *model.LoadTestScenario) {
	if !r.agg.recordExecution(sc.ID) {
		return
	}
	r.wg.Add(1)
	r.inflight.Add(1)
	if r.metrics != nil {
		r.metrics.ScenarioExecutions.WithLabelValues(sc.ID).Inc()
		r.metrics.InflightExecutions.Inc()
	}
	go func() {
		defer func() {
			r.inflight.Add(-1)
			if r.metrics != nil {
				r.metrics.InflightExecutions.Dec()
			}
			r.wg.Done()
		}()
		r.runner.run(r.execCtx, sc)
	}()
}

// drainAndComplete waits for in-flight executions, bounded by the drain
// timeout, and then finalizes the run as completed. Stopping the run while
// draining cancels the remaining executions right away.
func (r *run) drainAndComplete() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(r.limits.drainTimeout())
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		r.log.Warn("scheduler: drain timeout reached, cancelling in-flight executions",
			mlog.String("test_id", r.id), mlog.Int("inflight", int(r.inflight.Load())))
		r.execCancel()
		<-done
	case <-r.stopChan:
		r.execCancel()
		<-done
	}
	r.finish(model.StatusCompleted, nil)
}

// collect takes a LoadTestMetric snapshot on every metrics interval and
// pushes a live result to the subscribers.
func (r *run) collect() {
	ticker := time.NewTicker(r.limits.metricsInterval())
	defer ticker.Stop()
	for {
		select {
		case <-r.stopChan:
			return
		case <-r.loopDone:
			return
		case now := <-ticker.C:
			r.agg.addMetric(int(r.inflight.Load()), now)
			if snap := r.agg.snapshot(now); snap.Status == model.StatusRunning {
				r.publish(snap)
			}
		}
	}
}

func (r *run) isStopped() bool {
	select {
	case <-r.stopChan:
		return true
	default:
		return false
	}
}

func (r *run) isActive() bool {
	return !r.agg.isSealed()
}

// stop cancels the run. The result is sealed and persisted right away.
// Executions already dispatched are left to complete but their samples are
// discarded. A run that already reached its duration is not cancelled: its
// drain is cut short and it completes.
func (r *run) stop() *model.LoadTestResult {
	if r.draining.Load() {
		r.stopOnce.Do(func() { close(r.stopChan) })
		<-r.loopDone
		return r.snapshot()
	}
	r.stopOnce.Do(func() { close(r.stopChan) })
	res, _ := r.finish(model.StatusCancelled, nil)
	return res
}

// fail moves the run to the failed state and records sysErr.
func (r *run) fail(sysErr *model.LoadTestError) {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.finish(model.StatusFailed, sysErr)
}

// finish seals the result with the given status. Only the first call has an
// effect; later ones return the already sealed result.
func (r *run) finish(status model.Status, sysErr *model.LoadTestError) (*model.LoadTestResult, bool) {
	res, sealed := r.agg.seal(status, time.Now(), sysErr)
	if !sealed {
		return res, false
	}
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.log.Info("scheduler: finished", mlog.String("test_id", r.id), mlog.String("status", res.Status.String()),
		mlog.Int("total_requests", int(res.TotalRequests)), mlog.String("error_rate", fmt.Sprintf("%.2f%%", res.ErrorRatePercent)))
	if r.onFinish != nil {
		r.onFinish(r, res)
	}
	r.publishFinal(res)
	return res, true
}

// snapshot returns the live result.
func (r *run) snapshot() *model.LoadTestResult {
	return r.agg.snapshot(time.Now())
}

// wait blocks until the scheduling loop exited and every dispatched
// execution returned, or ctx is done.
func (r *run) wait(ctx context.Context) error {
	select {
	case <-r.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subscribe returns a channel receiving live snapshots until the run ends.
// The last value sent is the final result. The channel is closed afterwards.
func (r *run) subscribe() (<-chan *model.LoadTestResult, func()) {
	ch := make(chan *model.LoadTestResult, 1)
	r.subsMut.Lock()
	if r.subs == nil {
		r.subsMut.Unlock()
		ch <- r.snapshot()
		close(ch)
		return ch, func() {}
	}
	r.subs[ch] = struct{}{}
	r.subsMut.Unlock()

	unsubscribe := func() {
		r.subsMut.Lock()
		defer r.subsMut.Unlock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// publish sends res to every subscriber, replacing a value that wasn't
// consumed yet so that slow readers always get the latest one.
func (r *run) publish(res *model.LoadTestResult) {
	r.subsMut.Lock()
	defer r.subsMut.Unlock()
	if r.subs == nil {
		return
	}
	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res.Clone():
		default:
		}
	}
}

// publishFinal sends the final result to every subscriber and closes their
// channels. Snapshots published afterwards are dropped.
func (r *run) publishFinal(res *model.LoadTestResult) {
	r.subsMut.Lock()
	defer r.subsMut.Unlock()
	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- res.Clone()
		close(ch)
	}
	r.subs = nil
}
