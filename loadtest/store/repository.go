// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/wiggin77/merror"
)

const (
	configsKey      = "loadtest_configs"
	historyKey      = "loadtest_history"
	resultKeyPrefix = "loadtest_result_"
)

// Repository keeps the two logical collections of the engine on top of a
// KVStore: the list of configs and the run history. Every result is also
// stored under its own key for direct lookup.
type Repository struct {
	kv    KVStore
	codec Codec
	mut   sync.Mutex
}

// NewRepository creates a Repository. A nil codec defaults to JSON.
func NewRepository(kv KVStore, codec Codec) (*Repository, error) {
	if kv == nil {
		return nil, errors.New("store: kv store should not be nil")
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Repository{kv: kv, codec: codec}, nil
}

func resultKey(id string) string {
	return resultKeyPrefix + id
}

func (r *Repository) load(key string, v any) (bool, error) {
	data, err := r.kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("store: failed to get %q: %w", key, err)
	}
	if err := r.codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (r *Repository) save(key string, v any) error {
	data, err := r.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: failed to encode %q: %w", key, err)
	}
	if err := r.kv.Set(key, data); err != nil {
		return fmt.Errorf("store: failed to set %q: %w", key, err)
	}
	return nil
}

// Configs returns all the stored configs in creation order.
func (r *Repository) Configs() ([]model.LoadTestConfig, error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.configs()
}

func (r *Repository) configs() ([]model.LoadTestConfig, error) {
	var configs []model.LoadTestConfig
	if _, err := r.load(configsKey, &configs); err != nil {
		return nil, err
	}
	for _, c := range configs {
		if err := model.CheckSchemaVersion(c.SchemaVersion); err != nil {
			return nil, fmt.Errorf("store: config %s: %w", c.ID, err)
		}
	}
	return configs, nil
}

// Config returns the config with the given id, or nil if it doesn't exist.
func (r *Repository) Config(id string) (*model.LoadTestConfig, error) {
	configs, err := r.Configs()
	if err != nil {
		return nil, err
	}
	for i := range configs {
		if configs[i].ID == id {
			return &configs[i], nil
		}
	}
	return nil, nil
}

// SaveConfig inserts the config, or replaces the one with the same id.
func (r *Repository) SaveConfig(cfg model.LoadTestConfig) error {
	if cfg.ID == "" {
		return errors.New("store: config id should not be empty")
	}
	r.mut.Lock()
	defer r.mut.Unlock()

	configs, err := r.configs()
	if err != nil {
		return err
	}
	replaced := false
	for i := range configs {
		if configs[i].ID == cfg.ID {
			configs[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		configs = append(configs, cfg)
	}
	return r.save(configsKey, configs)
}

// DeleteConfig removes the config with the given id. It reports whether the
// config existed.
func (r *Repository) DeleteConfig(id string) (bool, error) {
	r.mut.Lock()
	defer r.mut.Unlock()

	configs, err := r.configs()
	if err != nil {
		return false, err
	}
	for i := range configs {
		if configs[i].ID == id {
			configs = append(configs[:i], configs[i+1:]...)
			return true, r.save(configsKey, configs)
		}
	}
	return false, nil
}

// SaveResult stores the result under its own key and upserts it in the
// history list. Both writes are attempted even if one fails.
func (r *Repository) SaveResult(res *model.LoadTestResult) error {
	if res == nil || res.ID == "" {
		return errors.New("store: result should have an id")
	}
	r.mut.Lock()
	defer r.mut.Unlock()

	merr := merror.New()
	if err := r.save(resultKey(res.ID), res); err != nil {
		merr.Append(err)
	}

	history, err := r.history()
	if err != nil {
		merr.Append(err)
		return merr.ErrorOrNil()
	}
	replaced := false
	for i := range history {
		if history[i].ID == res.ID {
			history[i] = *res
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, *res)
	}
	if err := r.save(historyKey, history); err != nil {
		merr.Append(err)
	}
	return merr.ErrorOrNil()
}

// Result returns the result with the given id, or nil if it doesn't exist.
func (r *Repository) Result(id string) (*model.LoadTestResult, error) {
	var res model.LoadTestResult
	found, err := r.load(resultKey(id), &res)
	if err != nil || !found {
		return nil, err
	}
	if err := model.CheckSchemaVersion(res.SchemaVersion); err != nil {
		return nil, fmt.Errorf("store: result %s: %w", id, err)
	}
	return &res, nil
}

// History returns every stored result in the order they were first saved.
func (r *Repository) History() ([]model.LoadTestResult, error) {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.history()
}

func (r *Repository) history() ([]model.LoadTestResult, error) {
	var history []model.LoadTestResult
	if _, err := r.load(historyKey, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Close closes the underlying KVStore.
func (r *Repository) Close() error {
	return r.kv.Close()
}
