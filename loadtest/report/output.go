// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// gradeColor returns the color used to display g.
func gradeColor(g Grade) *color.Color {
	switch g {
	case GradeA, GradeB:
		return color.New(color.FgGreen, color.Bold)
	case GradeC:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// WriteText prints a human readable summary of the report to the given
// target. The grade is colored when the process output is a terminal.
func (r *Report) WriteText(target io.Writer) {
	res := r.Result
	a := r.Analysis

	fmt.Fprintf(target, "Load test %s\n", r.Label())
	if res != nil {
		fmt.Fprintf(target, "Status: %s\n", res.Status)
		fmt.Fprintf(target, "Duration: %s\n", (time.Duration(res.DurationMs) * time.Millisecond).String())
	}
	fmt.Fprintf(target, "Grade: %s (score %.1f)\n", gradeColor(a.PerformanceGrade).Sprint(string(a.PerformanceGrade)), a.OverallScore)
	fmt.Fprintf(target, "Stability: %.1f/100\n", a.StabilityScore)
	fmt.Fprintf(target, "Scalability: %s (%.2f requests/s per user)\n", a.ScalabilityAssessment, a.ThroughputPerUser)

	if res != nil {
		fmt.Fprintln(target)
		fmt.Fprintf(target, "Requests: %d total, %d successful, %d failed (%.2f%% errors)\n",
			res.TotalRequests, res.SuccessfulRequests, res.FailedRequests, res.ErrorRatePercent)
		fmt.Fprintf(target, "Response time: avg %.2fms, min %.2fms, max %.2fms\n",
			res.AverageResponseTimeMs, res.MinResponseTimeMs, res.MaxResponseTimeMs)
		fmt.Fprintf(target, "Percentiles: p50 %.2fms, p95 %.2fms, p99 %.2fms\n",
			res.P50ResponseTime, res.P95ResponseTime, res.P99ResponseTime)
		fmt.Fprintf(target, "Throughput: %.2f requests/s\n", res.ThroughputPerSecond)

		for _, sr := range res.ScenarioResults {
			fmt.Fprintf(target, "  - %s: %d executions, %d requests, avg %.2fms, p95 %.2fms, %.2f%% errors\n",
				sr.ScenarioName, sr.Executions, sr.TotalRequests, sr.AverageResponseTimeMs, sr.P95ResponseTime, sr.ErrorRatePercent)
		}
	}

	if len(a.Bottlenecks) > 0 {
		fmt.Fprintln(target)
		fmt.Fprintln(target, color.YellowString("Bottlenecks:"))
		for _, b := range a.Bottlenecks {
			fmt.Fprintf(target, "  - %s\n", b)
		}
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(target)
		fmt.Fprintln(target, "Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(target, "  - %s\n", rec)
		}
	}
}

// WriteMarkdown prints the report in markdown to the given target.
func (r *Report) WriteMarkdown(target io.Writer) {
	res := r.Result
	a := r.Analysis

	fmt.Fprintf(target, "## Load test report: %s\n\n", r.Label())
	fmt.Fprintf(target, "**Grade: %s** (score %.1f, stability %.1f, scalability %s)\n\n",
		a.PerformanceGrade, a.OverallScore, a.StabilityScore, a.ScalabilityAssessment)

	if res != nil {
		fmt.Fprintln(target, "### Summary:")
		fmt.Fprintln(target, "| Metric | Value |")
		fmt.Fprintln(target, "| --- | --- |")
		fmt.Fprintf(target, "| Status | %s |\n", res.Status)
		fmt.Fprintf(target, "| Duration | %s |\n", time.Duration(res.DurationMs)*time.Millisecond)
		fmt.Fprintf(target, "| Total requests | %d |\n", res.TotalRequests)
		fmt.Fprintf(target, "| Failed requests | %d |\n", res.FailedRequests)
		fmt.Fprintf(target, "| Error rate | %.2f%% |\n", res.ErrorRatePercent)
		fmt.Fprintf(target, "| Avg response time | %.2fms |\n", res.AverageResponseTimeMs)
		fmt.Fprintf(target, "| P95 response time | %.2fms |\n", res.P95ResponseTime)
		fmt.Fprintf(target, "| P99 response time | %.2fms |\n", res.P99ResponseTime)
		fmt.Fprintf(target, "| Throughput | %.2f req/s |\n", res.ThroughputPerSecond)
		fmt.Fprintln(target)

		if len(res.ScenarioResults) > 0 {
			fmt.Fprintln(target, "### Scenarios:")
			fmt.Fprintln(target, "| Scenario | Executions | Requests | Avg | P95 | P99 | Errors |")
			fmt.Fprintln(target, "| --- | --- | --- | --- | --- | --- | --- |")
			for _, sr := range res.ScenarioResults {
				fmt.Fprintf(target, "| %s | %d | %d | %.2fms | %.2fms | %.2fms | %.2f%% |\n",
					escape(sr.ScenarioName), sr.Executions, sr.TotalRequests, sr.AverageResponseTimeMs,
					sr.P95ResponseTime, sr.P99ResponseTime, sr.ErrorRatePercent)
			}
			fmt.Fprintln(target)
		}
	}

	if len(a.Bottlenecks) > 0 {
		fmt.Fprintln(target, "### Bottlenecks:")
		for _, b := range a.Bottlenecks {
			fmt.Fprintf(target, "- %s\n", b)
		}
		fmt.Fprintln(target)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(target, "### Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(target, "- %s\n", rec)
		}
	}
}

// escape makes s safe to print inside a markdown table cell.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// printHeader prints the header row of a comparison markdown table.
func printHeader(target io.Writer, cols int) {
	fmt.Fprint(target, "| | Base | ")
	fmt.Fprintln(target, strings.Repeat("Actual | Delta | Delta % |", cols))

	fmt.Fprint(target, "| --- | --- | ")
	fmt.Fprintln(target, strings.Repeat("--- | --- | --- |", cols))
}
