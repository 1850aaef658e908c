// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mattermost/ltengine/defaults"
	"github.com/mattermost/ltengine/loadtest/executor"
	"github.com/mattermost/ltengine/loadtest/model"
	"github.com/mattermost/ltengine/loadtest/report"
	"github.com/mattermost/ltengine/loadtest/store"
	"github.com/mattermost/ltengine/loadtest/store/filestore"
	"github.com/mattermost/ltengine/loadtest/store/memstore"
	"github.com/mattermost/ltengine/loadtest/store/sqlstore"
	"github.com/mattermost/ltengine/performance"

	"github.com/google/uuid"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/wiggin77/merror"
)

// Engine is the entry point of the load-test engine. It stores configs,
// starts and stops runs and gives access to their results.
type Engine struct {
	config    *Config
	log       *mlog.Logger
	repo      *store.Repository
	metrics   *performance.Metrics
	monitor   *performance.Monitor
	client    *http.Client
	simulator executor.Simulator
	rnd       func() float64

	mut      sync.RWMutex
	runs     map[string]*run
	shutdown bool

	monitorMut sync.Mutex
}

// Option customizes an Engine.
type Option func(e *engineOptions)

type engineOptions struct {
	kv        store.KVStore
	sampler   performance.Sampler
	simulator executor.Simulator
	client    *http.Client
	metrics   *performance.Metrics
	rnd       func() float64
}

// WithKVStore makes the engine persist to kv instead of the store described
// in the configuration.
func WithKVStore(kv store.KVStore) Option {
	return func(o *engineOptions) { o.kv = kv }
}

// WithSampler replaces the system metrics sampler.
func WithSampler(sampler performance.Sampler) Option {
	return func(o *engineOptions) { o.sampler = sampler }
}

// WithSimulator replaces the simulator used by ui_interaction steps.
func WithSimulator(sim executor.Simulator) Option {
	return func(o *engineOptions) { o.simulator = sim }
}

// WithHTTPClient replaces the client used by api_call steps.
func WithHTTPClient(client *http.Client) Option {
	return func(o *engineOptions) { o.client = client }
}

// WithMetrics makes the engine report to the given metrics registry.
func WithMetrics(metrics *performance.Metrics) Option {
	return func(o *engineOptions) { o.metrics = metrics }
}

// WithRandom replaces the source of the uniform draws in [0,1) used for
// scenario selection.
func WithRandom(rnd func() float64) Option {
	return func(o *engineOptions) { o.rnd = rnd }
}

// NewKVStore creates the store described by cfg.
func NewKVStore(cfg StoreConfiguration) (store.KVStore, error) {
	switch cfg.Type {
	case StoreMemory, "":
		return memstore.New(), nil
	case StoreFile:
		return filestore.New(cfg.Path)
	case StorePostgres:
		return sqlstore.New(cfg.DataSource, cfg.Table)
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

// New creates and initializes a new Engine.
func New(config *Config, log *mlog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		return nil, errors.New("config should not be nil")
	}
	if log == nil {
		return nil, errors.New("logger should not be nil")
	}
	if err := defaults.Validate(config); err != nil {
		return nil, fmt.Errorf("could not validate configuration: %w", err)
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.kv
	if kv == nil {
		var err error
		kv, err = NewKVStore(config.StoreConfiguration)
		if err != nil {
			return nil, fmt.Errorf("could not create store: %w", err)
		}
	}
	codec, err := store.NewCodec(config.StoreConfiguration.Codec)
	if err != nil {
		return nil, err
	}
	repo, err := store.NewRepository(kv, codec)
	if err != nil {
		return nil, err
	}

	monitor, err := performance.NewMonitor(config.MonitorConfiguration, o.sampler, log)
	if err != nil {
		return nil, fmt.Errorf("could not create monitor: %w", err)
	}

	metrics := o.metrics
	if metrics == nil {
		metrics = performance.NewMetrics()
	}
	monitor.SetMetrics(metrics.EngineMetrics())

	exCfg := config.ExecutorConfiguration
	client := o.client
	if client == nil {
		client = &http.Client{
			Transport: executor.NewTransport(exCfg.MaxConnsPerHost),
			Timeout:   time.Duration(exCfg.RequestTimeoutMs) * time.Millisecond,
		}
	}
	sim := o.simulator
	if sim == nil {
		sim = executor.NewRandomSimulator(
			time.Duration(exCfg.UIMinDelayMs)*time.Millisecond,
			time.Duration(exCfg.UIMaxDelayMs)*time.Millisecond,
		)
	}

	return &Engine{
		config:    config,
		log:       log,
		repo:      repo,
		metrics:   metrics,
		monitor:   monitor,
		client:    client,
		simulator: sim,
		rnd:       o.rnd,
		runs:      make(map[string]*run),
	}, nil
}

// Metrics returns the metrics registry of the engine.
func (e *Engine) Metrics() *performance.Metrics {
	return e.metrics
}

// CreateConfig assigns a new id to cfg, validates and stores it. The stored
// config is returned.
func (e *Engine) CreateConfig(cfg model.LoadTestConfig) (model.LoadTestConfig, error) {
	cfg.ID = uuid.NewString()
	cfg.CreatedAt = time.Now().UTC()
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		return model.LoadTestConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := e.repo.SaveConfig(cfg); err != nil {
		return model.LoadTestConfig{}, err
	}
	e.log.Info("engine: config created", mlog.String("config_id", cfg.ID), mlog.String("name", cfg.Name))
	return cfg, nil
}

// DeleteConfig removes the config with the given id.
func (e *Engine) DeleteConfig(id string) error {
	ok, err := e.repo.DeleteConfig(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConfigNotFound
	}
	e.log.Info("engine: config deleted", mlog.String("config_id", id))
	return nil
}

// GetConfigs returns all the stored configs.
func (e *Engine) GetConfigs() ([]model.LoadTestConfig, error) {
	configs, err := e.repo.Configs()
	if err != nil {
		return nil, err
	}
	if configs == nil {
		configs = []model.LoadTestConfig{}
	}
	return configs, nil
}

// GetConfig returns the config with the given id, or nil.
func (e *Engine) GetConfig(id string) (*model.LoadTestConfig, error) {
	return e.repo.Config(id)
}

// StartTest starts a new run of the config with the given id and returns
// its initial result. It fails with ErrConfigNotFound if there is no such
// config, in which case no result is created.
func (e *Engine) StartTest(configID string) (*model.LoadTestResult, error) {
	e.mut.RLock()
	shutdown := e.shutdown
	e.mut.RUnlock()
	if shutdown {
		return nil, ErrEngineShutdown
	}

	cfg, err := e.repo.Config(configID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}

	r := newRun(runParams{
		id:     uuid.NewString(),
		config: *cfg,
		limits: e.config.SchedulerConfiguration,
		exec: executor.New(executor.Config{
			BaseURL:   cfg.TargetEndpoint,
			Client:    e.client,
			Simulator: e.simulator,
			Metrics:   e.metrics.ExecutorMetrics(),
		}),
		log:      e.log,
		metrics:  e.metrics.EngineMetrics(),
		rnd:      e.rnd,
		onFinish: e.onRunFinished,
	}, time.Now())

	initial := r.snapshot()
	if err := e.repo.SaveResult(initial); err != nil {
		return nil, fmt.Errorf("could not save result: %w", err)
	}

	e.subscribeMonitor(r)
	em := e.metrics.EngineMetrics()
	em.RunsStarted.Inc()
	em.ActiveRuns.Inc()

	e.mut.Lock()
	if e.shutdown {
		e.mut.Unlock()
		r.stop()
		return nil, ErrEngineShutdown
	}
	e.runs[r.id] = r
	e.mut.Unlock()

	r.launch()
	go func() {
		_ = r.wait(context.Background())
		e.mut.Lock()
		delete(e.runs, r.id)
		e.mut.Unlock()
	}()

	e.log.Info("engine: test started", mlog.String("test_id", r.id), mlog.String("config_id", cfg.ID))
	return initial, nil
}

// onRunFinished persists the final result of a run.
func (e *Engine) onRunFinished(r *run, res *model.LoadTestResult) {
	e.unsubscribeMonitor(r)
	em := e.metrics.EngineMetrics()
	em.ActiveRuns.Dec()
	em.RunsFinished.WithLabelValues(res.Status.String()).Inc()
	if err := e.repo.SaveResult(res); err != nil {
		e.log.Error("engine: could not save result", mlog.String("test_id", r.id), mlog.Err(err))
	}
}

func (e *Engine) subscribeMonitor(r *run) {
	e.monitorMut.Lock()
	defer e.monitorMut.Unlock()
	e.monitor.Subscribe(r.id, r.agg.addSystemMetrics)
	e.monitor.Start()
}

func (e *Engine) unsubscribeMonitor(r *run) {
	e.monitorMut.Lock()
	defer e.monitorMut.Unlock()
	if e.monitor.Unsubscribe(r.id) == 0 {
		e.monitor.Stop()
	}
}

// trackedRun returns the run with the given id if it is still tracked,
// which is until all of its executions have returned.
func (e *Engine) trackedRun(testID string) *run {
	e.mut.RLock()
	defer e.mut.RUnlock()
	return e.runs[testID]
}

func (e *Engine) activeRun(testID string) *run {
	r := e.trackedRun(testID)
	if r == nil || !r.isActive() {
		return nil
	}
	return r
}

// StopTest cancels the active run with the given id and returns its final
// result. A run that is draining after its full duration completes instead
// of being cancelled. It returns nil if no such run is active.
func (e *Engine) StopTest(testID string) (*model.LoadTestResult, error) {
	r := e.activeRun(testID)
	if r == nil {
		return nil, nil
	}
	res := r.stop()
	e.log.Info("engine: test stopped", mlog.String("test_id", testID))
	return res, nil
}

// GetResult returns a live snapshot for a tracked run, the stored result
// otherwise, or nil if the run is unknown.
func (e *Engine) GetResult(testID string) (*model.LoadTestResult, error) {
	if r := e.trackedRun(testID); r != nil {
		return r.snapshot(), nil
	}
	return e.repo.Result(testID)
}

// GetHistory returns every stored result.
func (e *Engine) GetHistory() ([]model.LoadTestResult, error) {
	history, err := e.repo.History()
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.LoadTestResult{}
	}
	return history, nil
}

// GenerateReport combines the stored result of the given run with its
// config and analysis. It returns nil if the result is unknown.
func (e *Engine) GenerateReport(testID string) (*report.Report, error) {
	res, err := e.repo.Result(testID)
	if err != nil || res == nil {
		return nil, err
	}
	cfg, err := e.repo.Config(res.ConfigID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, res.ConfigID)
	}
	return report.New(res, cfg), nil
}

// Wait blocks until the run with the given id has ended and every
// execution it dispatched has returned, or ctx is done. Waiting on an
// unknown or already drained run returns immediately.
func (e *Engine) Wait(ctx context.Context, testID string) error {
	r := e.trackedRun(testID)
	if r == nil {
		return nil
	}
	return r.wait(ctx)
}

// Subscribe returns a channel receiving live results of the given active
// run. The final result is the last value sent before the channel is
// closed. The returned function releases the subscription early.
func (e *Engine) Subscribe(testID string) (<-chan *model.LoadTestResult, func(), error) {
	r := e.activeRun(testID)
	if r == nil {
		return nil, nil, ErrTestNotRunning
	}
	ch, unsubscribe := r.subscribe()
	return ch, unsubscribe, nil
}

// ActiveTests returns the ids of the runs currently in progress.
func (e *Engine) ActiveTests() []string {
	e.mut.RLock()
	defer e.mut.RUnlock()
	ids := make([]string, 0, len(e.runs))
	for id, r := range e.runs {
		if r.isActive() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown cancels every active run, waits for their executions to return
// or ctx to be done, and closes the store.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mut.Lock()
	if e.shutdown {
		e.mut.Unlock()
		return nil
	}
	e.shutdown = true
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mut.Unlock()

	merr := merror.New()
	for _, r := range runs {
		r.execCancel()
		r.stop()
	}
	for _, r := range runs {
		if err := r.wait(ctx); err != nil {
			merr.Append(fmt.Errorf("test %s did not drain: %w", r.id, err))
		}
	}
	e.monitor.Stop()
	if err := e.repo.Close(); err != nil {
		merr.Append(fmt.Errorf("could not close store: %w", err))
	}
	e.log.Info("engine: shut down", mlog.Int("stopped_tests", len(runs)))
	return merr.ErrorOrNil()
}
