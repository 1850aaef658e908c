// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"fmt"
	"math"
	"slices"

	"github.com/mattermost/ltengine/loadtest/model"
)

// Grade is a letter summarizing how a run did against its thresholds.
type Grade string

// Available grades.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Scalability is a qualitative assessment of the throughput per configured
// user.
type Scalability string

// Available scalability assessments.
const (
	ScalabilityExcellent Scalability = "excellent"
	ScalabilityGood      Scalability = "good"
	ScalabilityFair      Scalability = "fair"
	ScalabilityPoor      Scalability = "poor"
)

// Bottleneck thresholds.
const (
	slowResponseMs       = 2000.0
	highErrorRatePercent = 5.0
	lowThroughput        = 10.0
	highCPUPercent       = 80.0
	highMemoryPercent    = 85.0
	lowStabilityScore    = 70.0
)

// Analysis is the outcome of grading a LoadTestResult.
type Analysis struct {
	PerformanceGrade      Grade       `json:"performanceGrade"`
	ResponseTimeScore     float64     `json:"responseTimeScore"`
	ErrorRateScore        float64     `json:"errorRateScore"`
	OverallScore          float64     `json:"overallScore"`
	Bottlenecks           []string    `json:"bottlenecks"`
	StabilityScore        float64     `json:"stabilityScore"`
	ScalabilityAssessment Scalability `json:"scalabilityAssessment"`
	ThroughputPerUser     float64     `json:"throughputPerUser"`
}

// Analyze grades res against the thresholds of cfg. It has no side effects
// and always returns the same analysis for the same input. A nil cfg is
// treated as a config with no thresholds and a single user.
func Analyze(res *model.LoadTestResult, cfg *model.LoadTestConfig) Analysis {
	var c model.LoadTestConfig
	if cfg != nil {
		c = *cfg
	}
	a := Analysis{
		Bottlenecks:           []string{},
		ScalabilityAssessment: ScalabilityPoor,
	}
	if res == nil || res.TotalRequests == 0 {
		a.PerformanceGrade = GradeF
		a.Bottlenecks = append(a.Bottlenecks, "No requests were executed")
		return a
	}

	a.ResponseTimeScore = responseTimeScore(res.AverageResponseTimeMs, c.ExpectedResponseTimeMs)
	a.ErrorRateScore = errorRateScore(res.ErrorRatePercent, c.MaxErrorRatePercent)
	a.OverallScore = (a.ResponseTimeScore + a.ErrorRateScore) / 2
	a.PerformanceGrade = gradeFor(a.OverallScore)
	a.Bottlenecks = bottlenecks(res)
	a.StabilityScore = stabilityScore(res)

	users := max(c.ConcurrentUsers, 1)
	a.ThroughputPerUser = res.ThroughputPerSecond / float64(users)
	a.ScalabilityAssessment = scalabilityFor(a.ThroughputPerUser)
	return a
}

func responseTimeScore(avg, expected float64) float64 {
	if expected <= 0 || avg <= expected {
		return 100
	}
	return max(0, 100-(avg-expected)/expected*100)
}

func errorRateScore(rate, maxRate float64) float64 {
	if rate <= maxRate {
		return 100
	}
	return max(0, 100-(rate-maxRate)*10)
}

func gradeFor(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

func scalabilityFor(perUser float64) Scalability {
	switch {
	case perUser >= 1:
		return ScalabilityExcellent
	case perUser >= 0.5:
		return ScalabilityGood
	case perUser >= 0.1:
		return ScalabilityFair
	default:
		return ScalabilityPoor
	}
}

// stabilityScore penalizes the error rate and the spread between the
// fastest and the slowest response, each by at most 50 points.
func stabilityScore(res *model.LoadTestResult) float64 {
	errPenalty := min(50, res.ErrorRatePercent*2)
	spreadPenalty := min(50, (res.MaxResponseTimeMs-res.MinResponseTimeMs)/100)
	return math.Max(0, math.Min(100, 100-errPenalty-spreadPenalty))
}

func bottlenecks(res *model.LoadTestResult) []string {
	out := []string{}
	if res.AverageResponseTimeMs > slowResponseMs {
		out = append(out, fmt.Sprintf("High average response time: %.0fms", res.AverageResponseTimeMs))
	}
	if res.ErrorRatePercent > highErrorRatePercent {
		out = append(out, fmt.Sprintf("High error rate: %.2f%%", res.ErrorRatePercent))
	}
	if res.ThroughputPerSecond < lowThroughput {
		out = append(out, fmt.Sprintf("Low throughput: %.2f requests/s", res.ThroughputPerSecond))
	}
	for _, sr := range res.ScenarioResults {
		if sr.TotalRequests > 0 && sr.AverageResponseTimeMs > slowResponseMs {
			out = append(out, fmt.Sprintf("Slow scenario %q: %.0fms average response time", sr.ScenarioName, sr.AverageResponseTimeMs))
		}
	}
	cpu, mem := systemUsage(res.SystemMetrics)
	if cpu > highCPUPercent {
		out = append(out, fmt.Sprintf("High CPU usage: %.1f%% on average", cpu))
	}
	if mem > highMemoryPercent {
		out = append(out, fmt.Sprintf("High memory usage: %.1f%% peak", mem))
	}
	return out
}

// systemUsage returns the average CPU usage and the peak memory usage of
// the samples.
func systemUsage(samples []model.SystemMetrics) (cpuAvg, memPeak float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, m := range samples {
		cpuAvg += m.CPUUsagePercent
		memPeak = max(memPeak, m.MemoryUsagePercent)
	}
	return cpuAvg / float64(len(samples)), memPeak
}

// recommend returns the recommendations for a graded run.
func recommend(res *model.LoadTestResult, cfg *model.LoadTestConfig, a Analysis) []string {
	if res == nil || res.TotalRequests == 0 {
		return []string{"Check that the scenarios have a positive weight and that the test ran long enough to dispatch them."}
	}
	var c model.LoadTestConfig
	if cfg != nil {
		c = *cfg
	}

	var out []string
	if c.ExpectedResponseTimeMs > 0 && res.AverageResponseTimeMs > c.ExpectedResponseTimeMs {
		out = append(out, fmt.Sprintf("Average response time %.0fms exceeds the expected %.0fms: profile the slowest steps and add caching where possible.",
			res.AverageResponseTimeMs, c.ExpectedResponseTimeMs))
	}
	if res.ErrorRatePercent > c.MaxErrorRatePercent {
		msg := fmt.Sprintf("Error rate %.2f%% exceeds the allowed %.2f%%: investigate the failing requests.",
			res.ErrorRatePercent, c.MaxErrorRatePercent)
		if t := mostCommonError(res.Errors); t != "" {
			msg = fmt.Sprintf("Error rate %.2f%% exceeds the allowed %.2f%%: most errors are of type %s.",
				res.ErrorRatePercent, c.MaxErrorRatePercent, t)
		}
		out = append(out, msg)
	}
	if res.P99ResponseTime > 0 && res.P50ResponseTime > 0 && res.P99ResponseTime > 3*res.P50ResponseTime {
		out = append(out, "The p99 response time is more than three times the median: look for contention or slow outliers.")
	}
	if a.StabilityScore < lowStabilityScore {
		out = append(out, "Response times vary widely: check for resource contention under load.")
	}
	switch a.ScalabilityAssessment {
	case ScalabilityPoor, ScalabilityFair:
		out = append(out, fmt.Sprintf("Throughput per user is %.2f requests/s: reduce think time or scale the target horizontally.", a.ThroughputPerUser))
	}
	cpu, mem := systemUsage(res.SystemMetrics)
	if cpu > highCPUPercent {
		out = append(out, "CPU is saturated on the load generator: lower the concurrency or spread the load.")
	}
	if mem > highMemoryPercent {
		out = append(out, "Memory usage is close to the limit: lower MaxLatencySamples or the concurrency.")
	}
	if a.PerformanceGrade == GradeD || a.PerformanceGrade == GradeF {
		out = append(out, "Overall performance is below expectations: address the bottlenecks above before increasing the load.")
	}
	if len(out) == 0 {
		out = append(out, "Performance is within the configured thresholds.")
	}
	return out
}

// mostCommonError returns the error type seen most often, ties broken by
// name.
func mostCommonError(errs []model.LoadTestError) model.ErrorType {
	counts := make(map[model.ErrorType]int)
	for _, e := range errs {
		counts[e.ErrorType]++
	}
	types := make([]model.ErrorType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.Sort(types)
	var best model.ErrorType
	for _, t := range types {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return best
}
