// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestResult() *LoadTestResult {
	end := time.Now()
	return &LoadTestResult{
		ID:       "run",
		ConfigID: "cfg",
		Status:   StatusCompleted,
		EndTime:  &end,
		ScenarioResults: []ScenarioResult{
			{
				ScenarioID: "sc1",
				StepResults: []StepResult{
					{StepID: "s1", AssertionResults: []AssertionResult{{Passed: true}}},
				},
			},
		},
		Errors: []LoadTestError{
			{ErrorType: ErrorHTTP, Details: map[string]string{"statusCode": "500"}},
		},
		SystemMetrics: []SystemMetrics{{CPUUsagePercent: 10}},
		Metrics:       []LoadTestMetric{{TotalRequests: 1}},
		Stats:         Stats{TotalRequests: 1, SuccessfulRequests: 1},
	}
}

func TestResultClone(t *testing.T) {
	var nilResult *LoadTestResult
	require.Nil(t, nilResult.Clone())

	orig := newTestResult()
	c := orig.Clone()
	require.Equal(t, orig, c)

	*c.EndTime = c.EndTime.Add(time.Hour)
	c.ScenarioResults[0].StepResults[0].AssertionResults[0].Passed = false
	c.ScenarioResults[0].StepResults[0].StepID = "changed"
	c.Errors[0].Details["statusCode"] = "404"
	c.SystemMetrics[0].CPUUsagePercent = 90
	c.Metrics[0].TotalRequests = 2
	c.TotalRequests = 5

	require.NotEqual(t, orig.EndTime, c.EndTime)
	require.True(t, orig.ScenarioResults[0].StepResults[0].AssertionResults[0].Passed)
	require.Equal(t, "s1", orig.ScenarioResults[0].StepResults[0].StepID)
	require.Equal(t, "500", orig.Errors[0].Details["statusCode"])
	require.Equal(t, 10.0, orig.SystemMetrics[0].CPUUsagePercent)
	require.Equal(t, int64(1), orig.Metrics[0].TotalRequests)
	require.Equal(t, int64(1), orig.TotalRequests)
}

func TestResultScenarioResult(t *testing.T) {
	res := newTestResult()
	sr := res.ScenarioResult("sc1")
	require.NotNil(t, sr)
	sr.Executions = 3
	require.Equal(t, int64(3), res.ScenarioResults[0].Executions)
	require.Nil(t, res.ScenarioResult("missing"))
}

func TestResultJSON(t *testing.T) {
	res := newTestResult()
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Equal(t, "completed", fields["status"])
	require.Equal(t, "cfg", fields["configId"])
	// Embedded stats are flattened.
	require.Equal(t, 1.0, fields["totalRequests"])
	require.Contains(t, fields, "duration")

	var decoded LoadTestResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, StatusCompleted, decoded.Status)
	require.Equal(t, res.TotalRequests, decoded.TotalRequests)
	require.Equal(t, "sc1", decoded.ScenarioResults[0].ScenarioID)
}
