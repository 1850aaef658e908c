// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package loadtest

import (
	"math"
	"slices"
)

// percentile returns the p-th percentile of sorted using the nearest-rank
// method: the smallest sample such that at least p percent of the samples
// are less than or equal to it. It returns 0 for an empty slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(n) / 100))
	rank = max(1, min(rank, n))
	return sorted[rank-1]
}

// percentiles returns p50, p95 and p99 of samples. samples is left untouched.
func percentiles(samples []float64) (p50, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return percentile(sorted, 50), percentile(sorted, 95), percentile(sorted, 99)
}
