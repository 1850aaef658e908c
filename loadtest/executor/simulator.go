// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package executor

import (
	"math/rand/v2"
	"time"
)

// Simulator supplies the randomized stand-ins for device and user behaviour
// used by ui_interaction steps. Tests provide deterministic implementations.
type Simulator interface {
	// InteractionDelay returns how long a simulated gesture takes.
	InteractionDelay() time.Duration
	// ShouldFail reports whether a gesture with the given failure rate
	// (0-100) fails.
	ShouldFail(failureRatePercent float64) bool
}

// RandomSimulator draws delays uniformly in [min, max].
type RandomSimulator struct {
	min time.Duration
	max time.Duration
}

// NewRandomSimulator returns a RandomSimulator. Bounds are swapped if given
// in the wrong order.
func NewRandomSimulator(min, max time.Duration) *RandomSimulator {
	if max < min {
		min, max = max, min
	}
	return &RandomSimulator{min: min, max: max}
}

func (s *RandomSimulator) InteractionDelay() time.Duration {
	if s.max == s.min {
		return s.min
	}
	return s.min + rand.N(s.max-s.min+1)
}

func (s *RandomSimulator) ShouldFail(failureRatePercent float64) bool {
	if failureRatePercent <= 0 {
		return false
	}
	return rand.Float64()*100 < failureRatePercent
}
