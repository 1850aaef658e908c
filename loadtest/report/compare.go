// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// diff contains the differences from a base measurement.
type diff struct {
	actual       float64
	delta        float64
	deltaPercent float64
}

func newDiff(base, actual float64) diff {
	d := diff{
		actual: actual,
		delta:  actual - base,
	}
	d.deltaPercent = d.delta / base * 100
	if math.IsNaN(d.deltaPercent) || math.IsInf(d.deltaPercent, 0) {
		d.deltaPercent = 0
	}
	return d
}

// measure extracts a single value out of a report.
type measure struct {
	name  string
	value func(r *Report) (float64, bool)
}

func runMeasures() []measure {
	return []measure{
		{"Avg response time (ms)", func(r *Report) (float64, bool) { return r.Result.AverageResponseTimeMs, true }},
		{"P50 response time (ms)", func(r *Report) (float64, bool) { return r.Result.P50ResponseTime, true }},
		{"P95 response time (ms)", func(r *Report) (float64, bool) { return r.Result.P95ResponseTime, true }},
		{"P99 response time (ms)", func(r *Report) (float64, bool) { return r.Result.P99ResponseTime, true }},
		{"Error rate (%)", func(r *Report) (float64, bool) { return r.Result.ErrorRatePercent, true }},
		{"Throughput (req/s)", func(r *Report) (float64, bool) { return r.Result.ThroughputPerSecond, true }},
		{"Overall score", func(r *Report) (float64, bool) { return r.Analysis.OverallScore, true }},
		{"Stability score", func(r *Report) (float64, bool) { return r.Analysis.StabilityScore, true }},
	}
}

func scenarioMeasures(base *Report) []measure {
	var ms []measure
	for _, sr := range base.Result.ScenarioResults {
		id := sr.ScenarioID
		ms = append(ms,
			measure{sr.ScenarioName + " avg (ms)", func(r *Report) (float64, bool) {
				s := r.Result.ScenarioResult(id)
				if s == nil {
					return 0, false
				}
				return s.AverageResponseTimeMs, true
			}},
			measure{sr.ScenarioName + " p99 (ms)", func(r *Report) (float64, bool) {
				s := r.Result.ScenarioResult(id)
				if s == nil {
					return 0, false
				}
				return s.P99ResponseTime, true
			}},
		)
	}
	return ms
}

// Compare compares the given set of reports and prints the comparison in
// markdown to the given target. The first report is considered to be the
// base.
func Compare(target io.Writer, reports ...*Report) error {
	if len(reports) < 2 {
		return errors.New("at least two reports are needed for a comparison")
	}
	for i, r := range reports {
		if r == nil || r.Result == nil {
			return fmt.Errorf("report %d has no result", i)
		}
	}
	base := reports[0]
	others := reports[1:]

	fmt.Fprintf(target, "### Base: %s\n", base.Label())
	for i, r := range others {
		fmt.Fprintf(target, "- Run %d: %s (grade %s, base grade %s)\n", i+1, r.Label(), r.Analysis.PerformanceGrade, base.Analysis.PerformanceGrade)
	}
	fmt.Fprintln(target)

	fmt.Fprintln(target, "### Run:")
	printMeasures(target, base, others, runMeasures())

	if scenarios := scenarioMeasures(base); len(scenarios) > 0 {
		fmt.Fprintln(target)
		fmt.Fprintln(target, "### Scenarios:")
		printMeasures(target, base, others, scenarios)
	}
	return nil
}

func printMeasures(target io.Writer, base *Report, others []*Report, ms []measure) {
	printHeader(target, len(others))
	for _, m := range ms {
		baseValue, _ := m.value(base)
		fmt.Fprintf(target, "| %s | %.2f ", escape(m.name), baseValue)
		for _, r := range others {
			actual, ok := m.value(r)
			if !ok {
				fmt.Fprint(target, "| - | - | - ")
				continue
			}
			d := newDiff(baseValue, actual)
			fmt.Fprintf(target, "| %.2f | %.2f | %.2f ", d.actual, d.delta, d.deltaPercent)
		}
		fmt.Fprintln(target, "|")
	}
}
