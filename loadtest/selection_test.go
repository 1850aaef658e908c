// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"math/rand/v2"
	"testing"

	"github.com/mattermost/ltengine/loadtest/model"

	"github.com/stretchr/testify/require"
)

func constRand(v float64) func() float64 {
	return func() float64 { return v }
}

func scenariosWithWeights(weights ...float64) []model.LoadTestScenario {
	scenarios := make([]model.LoadTestScenario, len(weights))
	for i, w := range weights {
		scenarios[i] = model.LoadTestScenario{Weight: w}
	}
	return scenarios
}

func TestSelectIndependent(t *testing.T) {
	scenarios := scenariosWithWeights(100, 0, 50)

	require.Equal(t, []int{0, 2}, selectIndependent(scenarios, constRand(0.4)))
	require.Equal(t, []int{0}, selectIndependent(scenarios, constRand(0.5)))
	require.Equal(t, []int{0}, selectIndependent(scenarios, constRand(0.9999)))
	// A zero weight never fires, even on a zero draw.
	require.Equal(t, []int{0, 2}, selectIndependent(scenarios, constRand(0)))
	require.Empty(t, selectIndependent(scenariosWithWeights(0, 0), constRand(0)))
	require.Empty(t, selectIndependent(nil, constRand(0)))
}

func TestSelectIndependentFrequency(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	scenarios := scenariosWithWeights(100, 0, 30)

	counts := make([]int, len(scenarios))
	n := 10000
	for range n {
		for _, idx := range selectIndependent(scenarios, rnd.Float64) {
			counts[idx]++
		}
	}
	require.Equal(t, n, counts[0])
	require.Zero(t, counts[1])
	require.InDelta(t, 0.3, float64(counts[2])/float64(n), 0.03)
}

func TestSelectWeighted(t *testing.T) {
	t.Run("errors", func(t *testing.T) {
		_, err := selectWeighted(nil, constRand(0))
		require.EqualError(t, err, "scenarios cannot be empty")

		_, err = selectWeighted(scenariosWithWeights(0, 0), constRand(0))
		require.EqualError(t, err, "weights sum cannot be zero")
	})

	t.Run("cdf", func(t *testing.T) {
		scenarios := scenariosWithWeights(10, 0, 30)
		testCases := []struct {
			draw     float64
			expected int
		}{
			{0, 0},
			{0.2, 0},
			{0.25, 2},
			{0.5, 2},
			{0.9999, 2},
		}
		for _, tc := range testCases {
			idx, err := selectWeighted(scenarios, constRand(tc.draw))
			require.NoError(t, err)
			require.Equal(t, tc.expected, idx, "draw %v", tc.draw)
		}
	})

	t.Run("zero weights are never picked", func(t *testing.T) {
		scenarios := scenariosWithWeights(0, 5, 0)
		for _, draw := range []float64{0, 0.3, 0.99999} {
			idx, err := selectWeighted(scenarios, constRand(draw))
			require.NoError(t, err)
			require.Equal(t, 1, idx)
		}
	})

	t.Run("distribution", func(t *testing.T) {
		rnd := rand.New(rand.NewPCG(3, 4))
		scenarios := scenariosWithWeights(25, 75)
		counts := make([]int, len(scenarios))
		n := 10000
		for range n {
			idx, err := selectWeighted(scenarios, rnd.Float64)
			require.NoError(t, err)
			counts[idx]++
		}
		require.InDelta(t, 0.25, float64(counts[0])/float64(n), 0.03)
		require.InDelta(t, 0.75, float64(counts[1])/float64(n), 0.03)
	})
}

func TestSelectScenarios(t *testing.T) {
	scenarios := scenariosWithWeights(50, 50)

	require.Equal(t, []int{0, 1}, selectScenarios(model.SelectionIndependent, scenarios, constRand(0.1)))
	require.Equal(t, []int{0, 1}, selectScenarios("", scenarios, constRand(0.1)))
	require.Equal(t, []int{0}, selectScenarios(model.SelectionWeighted, scenarios, constRand(0.1)))
	require.Equal(t, []int{1}, selectScenarios(model.SelectionWeighted, scenarios, constRand(0.6)))
	require.Nil(t, selectScenarios(model.SelectionWeighted, scenariosWithWeights(0), constRand(0.6)))
}
