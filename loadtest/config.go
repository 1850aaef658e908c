// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/mattermost/ltengine/defaults"
	"github.com/mattermost/ltengine/logger"
	"github.com/mattermost/ltengine/performance"
)

// storeType describes the backend used to persist configs and results.
type storeType string

// Available store backends.
const (
	StoreMemory   storeType = "memory"
	StoreFile     storeType = "file"
	StorePostgres storeType = "postgres"
)

// StoreConfiguration holds information about where configs and results are
// persisted.
type StoreConfiguration struct {
	// The type of the store.
	// Possible values:
	//   StoreMemory - Nothing survives a restart.
	//   StoreFile - One file per record under Path.
	//   StorePostgres - A single table in the database at DataSource.
	Type storeType `default:"memory" validate:"oneof:{memory,file,postgres}"`
	// Directory used by the file store.
	Path string `default:"./data"`
	// Encoding of the persisted records.
	Codec string `default:"json" validate:"oneof:{json,msgpack}"`
	// PostgreSQL connection string used by the postgres store.
	DataSource string `default:""`
	// Table used by the postgres store.
	Table string `default:"ltengine_kv"`
}

// SchedulerConfiguration holds the tuning knobs of the virtual user
// scheduler.
type SchedulerConfiguration struct {
	// Pacing delay between two scheduling passes.
	TickIntervalMs int `default:"100" validate:"range:[1,]"`
	// Interval at which LoadTestMetric snapshots are taken.
	MetricsIntervalMs int `default:"1000" validate:"range:[10,]"`
	// Number of latency samples kept per run and per scenario for
	// percentile computation.
	MaxLatencySamples int `default:"100000" validate:"range:[1,]"`
	// Number of system metrics samples kept per run.
	MaxSystemSamples int `default:"1000" validate:"range:[1,]"`
	// Number of assertion results kept per step. Counters are never capped.
	MaxAssertionResults int `default:"1000" validate:"range:[0,]"`
	// How long a run that reached its duration waits for in-flight
	// executions before being finalized.
	DrainTimeoutMs int `default:"30000" validate:"range:[0,]"`
}

// ExecutorConfiguration holds information about how steps are executed.
type ExecutorConfiguration struct {
	// Upper bound for any single api_call request, regardless of the step
	// timeout.
	RequestTimeoutMs int `default:"60000" validate:"range:(0,]"`
	// Maximum number of connections per target host.
	MaxConnsPerHost int `default:"256" validate:"range:(0,]"`
	// Bounds of the simulated delay of ui_interaction steps.
	UIMinDelayMs int `default:"100" validate:"range:[0,$UIMaxDelayMs]"`
	UIMaxDelayMs int `default:"300" validate:"range:[0,]"`
}

// Config holds the engine configuration.
type Config struct {
	StoreConfiguration     StoreConfiguration
	SchedulerConfiguration SchedulerConfiguration
	ExecutorConfiguration  ExecutorConfiguration
	MonitorConfiguration   performance.MonitorConfig
	LogSettings            logger.Settings
}

// IsValid checks whether a Config is valid or not.
// Returns an error if the validation fails.
func (c *Config) IsValid() error {
	switch c.StoreConfiguration.Type {
	case StoreFile:
		if c.StoreConfiguration.Path == "" {
			return errors.New("StoreConfiguration.Path should be set for the file store")
		}
	case StorePostgres:
		if c.StoreConfiguration.DataSource == "" {
			return errors.New("StoreConfiguration.DataSource should be set for the postgres store")
		}
	}
	return nil
}

func (c *SchedulerConfiguration) tickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *SchedulerConfiguration) metricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalMs) * time.Millisecond
}

func (c *SchedulerConfiguration) drainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMs) * time.Millisecond
}

// NewConfig returns a Config with all the default values set.
func NewConfig() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadConfig reads the configuration file from the given path, falling back
// to ./config/ltengine.json. Fields missing from the file keep their
// default value.
func ReadConfig(configFilePath string) (*Config, error) {
	var cfg Config
	if err := defaults.ReadFrom(configFilePath, "./config/ltengine.json", &cfg); err != nil {
		return nil, err
	}
	if err := defaults.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("could not validate configuration: %w", err)
	}
	return &cfg, nil
}
