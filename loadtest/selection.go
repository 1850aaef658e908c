// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"errors"

	"github.com/mattermost/ltengine/loadtest/model"
)

// selectIndependent runs one Bernoulli trial per scenario: a scenario is
// picked when a uniform draw in [0,100) falls below its weight. Any number
// of scenarios, including none, may be picked.
func selectIndependent(scenarios []model.LoadTestScenario, rnd func() float64) []int {
	var picked []int
	for i := range scenarios {
		if rnd()*100 < scenarios[i].Weight {
			picked = append(picked, i)
		}
	}
	return picked
}

// selectWeighted picks exactly one scenario with probability proportional to
// its weight. Weights don't need to sum to 100.
func selectWeighted(scenarios []model.LoadTestScenario, rnd func() float64) (int, error) {
	if len(scenarios) == 0 {
		return -1, errors.New("scenarios cannot be empty")
	}
	var sum float64
	for i := range scenarios {
		sum += scenarios[i].Weight
	}
	if sum <= 0 {
		return -1, errors.New("weights sum cannot be zero")
	}
	distance := rnd() * sum
	last := -1
	for i := range scenarios {
		if scenarios[i].Weight <= 0 {
			continue
		}
		last = i
		distance -= scenarios[i].Weight
		if distance < 0 {
			return i, nil
		}
	}
	// Rounding may leave a tiny positive distance.
	return last, nil
}

// selectScenarios returns the indexes of the scenarios to dispatch on one
// scheduling tick according to mode.
func selectScenarios(mode model.SelectionMode, scenarios []model.LoadTestScenario, rnd func() float64) []int {
	if mode == model.SelectionWeighted {
		idx, err := selectWeighted(scenarios, rnd)
		if err != nil {
			return nil
		}
		return []int{idx}
	}
	return selectIndependent(scenarios, rnd)
}
