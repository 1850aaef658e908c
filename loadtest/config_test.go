// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattermost/ltengine/defaults"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.NoError(t, defaults.Validate(cfg))

	require.Equal(t, StoreMemory, cfg.StoreConfiguration.Type)
	require.Equal(t, "json", cfg.StoreConfiguration.Codec)
	require.Equal(t, 100, cfg.SchedulerConfiguration.TickIntervalMs)
	require.Equal(t, 1000, cfg.SchedulerConfiguration.MetricsIntervalMs)
	require.Equal(t, 100000, cfg.SchedulerConfiguration.MaxLatencySamples)
	require.Equal(t, 100, cfg.ExecutorConfiguration.UIMinDelayMs)
	require.Equal(t, 300, cfg.ExecutorConfiguration.UIMaxDelayMs)
	require.Equal(t, 5000, cfg.MonitorConfiguration.UpdateIntervalMs)
	require.Equal(t, "INFO", cfg.LogSettings.ConsoleLevel)
}

func TestConfigIsValid(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(cfg *Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"file store without path", func(cfg *Config) {
			cfg.StoreConfiguration.Type = StoreFile
			cfg.StoreConfiguration.Path = ""
		}, "StoreConfiguration.Path should be set for the file store"},
		{"postgres store without data source", func(cfg *Config) {
			cfg.StoreConfiguration.Type = StorePostgres
		}, "StoreConfiguration.DataSource should be set for the postgres store"},
		{"unknown store", func(cfg *Config) {
			cfg.StoreConfiguration.Type = "redis"
		}, "Type is not valid"},
		{"unknown codec", func(cfg *Config) {
			cfg.StoreConfiguration.Codec = "xml"
		}, "Codec"},
		{"zero tick", func(cfg *Config) {
			cfg.SchedulerConfiguration.TickIntervalMs = 0
		}, "TickIntervalMs"},
		{"inverted ui delays", func(cfg *Config) {
			cfg.ExecutorConfiguration.UIMinDelayMs = 500
		}, "UIMinDelayMs"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig()
			require.NoError(t, err)
			tc.modify(cfg)
			err = defaults.Validate(cfg)
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestReadConfig(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltengine.json")
		err := os.WriteFile(path, []byte(`{
			"StoreConfiguration": {"Type": "file", "Path": "/tmp/ltengine"},
			"SchedulerConfiguration": {"TickIntervalMs": 50}
		}`), 0o600)
		require.NoError(t, err)

		cfg, err := ReadConfig(path)
		require.NoError(t, err)
		require.Equal(t, StoreFile, cfg.StoreConfiguration.Type)
		require.Equal(t, "/tmp/ltengine", cfg.StoreConfiguration.Path)
		require.Equal(t, 50, cfg.SchedulerConfiguration.TickIntervalMs)
		require.Equal(t, 1000, cfg.SchedulerConfiguration.MetricsIntervalMs)
		require.Equal(t, "json", cfg.StoreConfiguration.Codec)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltengine.yaml")
		err := os.WriteFile(path, []byte("storeconfiguration:\n  codec: msgpack\n"), 0o600)
		require.NoError(t, err)

		cfg, err := ReadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "msgpack", cfg.StoreConfiguration.Codec)
		require.Equal(t, StoreMemory, cfg.StoreConfiguration.Type)
	})

	t.Run("toml round trip", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)
		cfg.StoreConfiguration.Type = StoreFile
		cfg.StoreConfiguration.Path = "/var/lib/ltengine"
		cfg.SchedulerConfiguration.DrainTimeoutMs = 5000
		cfg.MonitorConfiguration.ProbeURL = "http://localhost:8065/ping"

		data, err := toml.Marshal(cfg)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "ltengine.toml")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		read, err := ReadConfig(path)
		require.NoError(t, err)
		require.Equal(t, cfg, read)
	})

	t.Run("partial toml keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltengine.toml")
		err := os.WriteFile(path, []byte("[SchedulerConfiguration]\nTickIntervalMs = 25\n"), 0o600)
		require.NoError(t, err)

		cfg, err := ReadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 25, cfg.SchedulerConfiguration.TickIntervalMs)
		require.Equal(t, 30000, cfg.SchedulerConfiguration.DrainTimeoutMs)
		require.Equal(t, StoreMemory, cfg.StoreConfiguration.Type)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltengine.json")
		err := os.WriteFile(path, []byte(`{"StoreConfiguration": {"Type": "postgres"}}`), 0o600)
		require.NoError(t, err)

		_, err = ReadConfig(path)
		require.ErrorContains(t, err, "DataSource")
	})

	t.Run("unknown fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ltengine.json")
		err := os.WriteFile(path, []byte(`{"Unknown": true}`), 0o600)
		require.NoError(t, err)

		_, err = ReadConfig(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}

func TestNewKVStore(t *testing.T) {
	kv, err := NewKVStore(StoreConfiguration{Type: StoreMemory})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv, err = NewKVStore(StoreConfiguration{Type: StoreFile, Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	_, err = NewKVStore(StoreConfiguration{Type: "redis"})
	require.EqualError(t, err, `unknown store type "redis"`)
}
